package entropy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// RandomOrgEndpoint is the random.org JSON-RPC endpoint.
const RandomOrgEndpoint = "https://api.random.org/json-rpc/4/invoke"

const (
	defaultBatch   = 100
	requestTimeout = 15 * time.Second
	retryAfter     = time.Minute
)

// Pool is a Source that draws decimal fractions from random.org in batches.
// While the service is unreachable draws come from crypto/rand and no new
// request is made until retryAfter has passed.
type Pool struct {
	Key      string
	Endpoint string       // Defaults to RandomOrgEndpoint
	Batch    int          // Fractions per request; defaults to 100
	HTTP     *http.Client // Defaults to a client with a 15s timeout

	mu       sync.Mutex
	buf      []float64
	failedAt time.Time
	now      func() time.Time
}

// NewPool returns a random.org pool, or nil when key is empty.
func NewPool(key string) *Pool {
	if key == "" {
		return nil
	}
	return &Pool{Key: key}
}

// Float64 returns the next pooled fraction. A nil Pool draws from crypto/rand.
func (p *Pool) Float64() float64 {
	if p == nil {
		return cryptoFloat()
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buf) == 0 && p.clock().Sub(p.failedAt) >= retryAfter {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		err := p.fill(ctx)
		cancel()
		if err != nil {
			p.failedAt = p.clock()
			slog.Warn("random.org unavailable, using crypto/rand", "error", err)
		}
	}
	if len(p.buf) == 0 {
		return cryptoFloat()
	}
	f := p.buf[0]
	p.buf = p.buf[1:]
	return f
}

func (p *Pool) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return min(int(p.Float64()*float64(n)), n-1)
}

// Shuffle is a Fisher-Yates shuffle over pooled draws.
func (p *Pool) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, p.Intn(i+1))
	}
}

func (p *Pool) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int       `json:"id"`
}

type rpcParams struct {
	APIKey        string `json:"apiKey"`
	N             int    `json:"n"`
	DecimalPlaces int    `json:"decimalPlaces"`
}

type rpcResponse struct {
	Result *struct {
		Random struct {
			Data []float64 `json:"data"`
		} `json:"random"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// fill requests one batch. The caller holds p.mu.
func (p *Pool) fill(ctx context.Context) error {
	batch := p.Batch
	if batch <= 0 {
		batch = defaultBatch
	}
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = RandomOrgEndpoint
	}
	client := p.HTTP
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "generateDecimalFractions",
		Params:  rpcParams{APIKey: p.Key, N: batch, DecimalPlaces: 6},
		ID:      1,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("random.org: status %d", resp.StatusCode)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("random.org: decode: %w", err)
	}
	if out.Error != nil {
		return fmt.Errorf("random.org: %s (code %d)", out.Error.Message, out.Error.Code)
	}
	if out.Result == nil || len(out.Result.Random.Data) == 0 {
		return fmt.Errorf("random.org: empty result")
	}
	for _, f := range out.Result.Random.Data {
		if f >= 0 && f < 1 {
			p.buf = append(p.buf, f)
		}
	}
	slog.Debug("random.org pool refilled", "count", len(p.buf))
	return nil
}

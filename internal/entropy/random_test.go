package entropy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSeededIsDeterministic(t *testing.T) {
	a, b := NewSeeded(42), NewSeeded(42)
	for i := 0; i < 20; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d: %v != %v", i, x, y)
		}
	}
	if a.Intn(1000) != b.Intn(1000) {
		t.Fatal("Intn diverged for equal seeds")
	}
}

func TestNilPoolStaysInRange(t *testing.T) {
	if NewPool("") != nil {
		t.Fatal("expected nil pool for empty key")
	}
	var p *Pool
	for i := 0; i < 200; i++ {
		f := p.Float64()
		if f < 0 || f >= 1 {
			t.Fatalf("Float64 out of range: %v", f)
		}
		if n := p.Intn(7); n < 0 || n >= 7 {
			t.Fatalf("Intn out of range: %d", n)
		}
	}

	xs := []int{0, 1, 2, 3, 4, 5}
	p.Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
	seen := map[int]bool{}
	for _, x := range xs {
		seen[x] = true
	}
	if len(seen) != 6 {
		t.Fatalf("shuffle lost elements: %v", xs)
	}
}

func TestPoolDrawsBatches(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Method != "generateDecimalFractions" || req.Params.N != 2 || req.Params.APIKey != "k" {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte(`{"jsonrpc":"2.0","result":{"random":{"data":[0.25,0.5]}},"id":1}`))
	}))
	defer ts.Close()

	p := &Pool{Key: "k", Endpoint: ts.URL, Batch: 2}
	if a, b := p.Float64(), p.Float64(); a != 0.25 || b != 0.5 {
		t.Fatalf("draws = %v, %v", a, b)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d after one batch", hits.Load())
	}
	if p.Float64() != 0.25 || hits.Load() != 2 {
		t.Fatalf("expected a second batch, hits = %d", hits.Load())
	}
}

func TestPoolBacksOffAfterFailure(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":401,"message":"bad key"},"id":1}`))
	}))
	defer ts.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &Pool{Key: "k", Endpoint: ts.URL, now: func() time.Time { return now }}
	for i := 0; i < 5; i++ {
		if f := p.Float64(); f < 0 || f >= 1 {
			t.Fatalf("fallback draw out of range: %v", f)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d, want 1 while backing off", hits.Load())
	}
	now = now.Add(retryAfter)
	p.Float64()
	if hits.Load() != 2 {
		t.Fatalf("hits = %d, want a retry after the backoff", hits.Load())
	}
}

func TestScript(t *testing.T) {
	s := &Script{Floats: []float64{0.1, 0.2}, Ints: []int{3, 9}, Fallback: 0.99}
	if s.Float64() != 0.1 || s.Float64() != 0.2 {
		t.Fatal("scripted floats out of order")
	}
	if s.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", s.Remaining())
	}
	if s.Float64() != 0.99 {
		t.Fatal("expected fallback after exhaustion")
	}
	if s.Intn(5) != 3 {
		t.Fatal("expected scripted int 3")
	}
	if got := s.Intn(5); got != 4 {
		t.Fatalf("out-of-range scripted int should wrap, got %d", got)
	}
	if s.Intn(5) != 0 {
		t.Fatal("expected 0 after ints exhausted")
	}
}

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/talgya/pawnbroker/internal/shop"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultCacheSize = 256
)

// Fallback serves customers from a primary source and drops to the library
// on any error or timeout. Results are cached per day, slot and reputation
// bucket so a retried request gets the same customer back.
type Fallback struct {
	primary Source
	library *Library
	timeout time.Duration
	cache   *lru.Cache
}

// WithFallback wraps primary. A nil primary always uses the library.
func WithFallback(primary Source, library *Library, timeout time.Duration) *Fallback {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cache, _ := lru.New(defaultCacheSize)
	return &Fallback{primary: primary, library: library, timeout: timeout, cache: cache}
}

func cacheKey(day, slot int, rep shop.Reputation) string {
	return fmt.Sprintf("%d:%d:%s", day, slot, rep.Bucket())
}

// Customer returns a customer for the queue position. It never fails.
// Callers receive their own copy.
func (f *Fallback) Customer(ctx context.Context, day, slot int, rep shop.Reputation) *shop.Customer {
	key := cacheKey(day, slot, rep)
	if v, ok := f.cache.Get(key); ok {
		return v.(*shop.Customer).Clone()
	}

	c := f.fromPrimary(ctx, day, slot, rep)
	if c == nil {
		c = f.library.Customer(day, slot, rep)
	}
	f.cache.Add(key, c)
	return c.Clone()
}

func (f *Fallback) fromPrimary(ctx context.Context, day, slot int, rep shop.Reputation) *shop.Customer {
	if f.primary == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	c, err := f.primary.NewCustomer(ctx, day, slot, rep)
	if err != nil {
		slog.Warn("customer generator failed, using library", "day", day, "slot", slot, "error", err)
		return nil
	}
	if c == nil {
		slog.Warn("customer generator returned nothing, using library", "day", day, "slot", slot)
		return nil
	}
	slog.Debug("generated customer", "name", c.Name, "elapsed", time.Since(start).Round(time.Millisecond))
	return c
}

package monobank

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"jarfeed/internal/domain"
)

type fakeFetcher struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (f *fakeFetcher) ClientInfo(context.Context) (*domain.ClientInfo, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ClientInfo{ClientID: "c", Jars: []domain.Jar{{ID: "jar", Balance: int64(n)}}}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(f ClientInfoFetcher, clock *fakeClock) *ClientInfoCache {
	cache := NewClientInfoCache(f, time.Minute, zerolog.Nop())
	cache.now = clock.Now
	return cache
}

func TestCacheServesWithinWindow(t *testing.T) {
	fetcher := &fakeFetcher{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := newTestCache(fetcher, clock)

	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	clock.Advance(59 * time.Second)
	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected 1 external call, got %d", got)
	}
}

func TestCacheRefreshesAfterWindow(t *testing.T) {
	fetcher := &fakeFetcher{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := newTestCache(fetcher, clock)

	_, _ = cache.Get(context.Background())
	clock.Advance(time.Minute)
	snap, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Fatalf("expected 2 external calls, got %d", got)
	}
	if snap.Info.Jars[0].Balance != 2 || snap.Stale {
		t.Fatalf("expected fresh payload, got %#v", snap)
	}
}

func TestCacheFallsBackToStaleEntry(t *testing.T) {
	fetcher := &fakeFetcher{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := newTestCache(fetcher, clock)

	_, _ = cache.Get(context.Background())
	fetcher.err = &domain.ExternalAPIError{Op: "client_info", Kind: domain.KindRateLimited, Status: 429, Err: errors.New("too many requests")}
	clock.Advance(2 * time.Minute)

	snap, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("expected stale fallback, got %v", err)
	}
	if !snap.Stale || snap.Info.Jars[0].Balance != 1 {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
	if snap.Age(clock.Now()) != 2*time.Minute {
		t.Fatalf("unexpected age: %v", snap.Age(clock.Now()))
	}
}

func TestCachePropagatesErrorWithoutEntry(t *testing.T) {
	fetcher := &fakeFetcher{err: &domain.ExternalAPIError{Op: "client_info", Kind: domain.KindUnauthorized, Status: 401, Err: errors.New("unknown token")}}
	cache := newTestCache(fetcher, &fakeClock{now: time.Unix(1000, 0)})

	_, err := cache.Get(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if _, ok := cache.Peek(); ok {
		t.Fatalf("Peek must report an empty slot")
	}
	if !errors.Is(cache.LastError(), domain.ErrUnauthorized) {
		t.Fatalf("LastError = %v", cache.LastError())
	}
}

func TestCacheCollapsesConcurrentMisses(t *testing.T) {
	fetcher := &fakeFetcher{delay: 50 * time.Millisecond}
	cache := newTestCache(fetcher, &fakeClock{now: time.Unix(1000, 0)})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(context.Background()); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected a single external call, got %d", got)
	}
}

func TestPeekNeverFetches(t *testing.T) {
	fetcher := &fakeFetcher{}
	cache := newTestCache(fetcher, &fakeClock{now: time.Unix(1000, 0)})

	if _, ok := cache.Peek(); ok {
		t.Fatalf("expected empty slot")
	}
	if fetcher.calls.Load() != 0 {
		t.Fatalf("Peek must not call the external API")
	}
}

package monobank

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"jarfeed/internal/domain"
	"jarfeed/internal/metrics"
)

// ClientInfoFetcher is the single external call the cache sits in front of.
type ClientInfoFetcher interface {
	ClientInfo(ctx context.Context) (*domain.ClientInfo, error)
}

// Snapshot is the cached payload together with its age information.
type Snapshot struct {
	Info      *domain.ClientInfo
	FetchedAt time.Time
	// Stale is set when Get fell back to an expired entry after a failed fetch.
	Stale bool
}

// Age reports how old the snapshot is at now.
func (s Snapshot) Age(now time.Time) time.Duration {
	if s.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(s.FetchedAt)
}

// ClientInfoCache is a single-slot, time-boxed cache. Concurrent Get calls
// that miss share one external request.
type ClientInfoCache struct {
	fetcher ClientInfoFetcher
	ttl     time.Duration
	logger  zerolog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	info      *domain.ClientInfo
	fetchedAt time.Time
	lastErr   error

	group singleflight.Group
}

func NewClientInfoCache(fetcher ClientInfoFetcher, ttl time.Duration, logger zerolog.Logger) *ClientInfoCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ClientInfoCache{
		fetcher: fetcher,
		ttl:     ttl,
		logger:  logger.With().Str("component", "client_info_cache").Logger(),
		now:     time.Now,
	}
}

// Get returns the cached payload while it is fresh, otherwise refreshes it.
// A failed refresh falls back to the previous payload when one exists.
func (c *ClientInfoCache) Get(ctx context.Context) (Snapshot, error) {
	if snap, ok := c.fresh(); ok {
		metrics.ClientInfoCache.WithLabelValues("hit").Inc()
		c.logger.Debug().Str("event", "client_info_cached").Dur("age", snap.Age(c.now())).Msg("serving cached client info")
		return snap, nil
	}

	v, err, _ := c.group.Do("client-info", func() (any, error) {
		if snap, ok := c.fresh(); ok {
			return snap, nil
		}
		metrics.ClientInfoCache.WithLabelValues("miss").Inc()
		info, err := c.fetcher.ClientInfo(ctx)
		if err != nil {
			c.mu.Lock()
			c.lastErr = err
			c.mu.Unlock()
			return Snapshot{}, err
		}
		fetchedAt := c.now()
		c.mu.Lock()
		c.info = info
		c.fetchedAt = fetchedAt
		c.lastErr = nil
		c.mu.Unlock()
		c.logger.Info().Str("event", "client_info_fetched").Int("jars", len(info.Jars)).Msg("client info refreshed")
		return Snapshot{Info: info, FetchedAt: fetchedAt}, nil
	})
	if err == nil {
		return v.(Snapshot), nil
	}

	if snap, ok := c.Peek(); ok {
		metrics.ClientInfoCache.WithLabelValues("stale").Inc()
		snap.Stale = true
		c.logger.Warn().Err(err).Str("event", "client_info_stale_fallback").Dur("age", snap.Age(c.now())).Msg("using stale client info")
		return snap, nil
	}
	return Snapshot{}, err
}

// Peek returns the current slot without touching the external API.
func (c *ClientInfoCache) Peek() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.info == nil {
		return Snapshot{}, false
	}
	return Snapshot{Info: c.info, FetchedAt: c.fetchedAt}, true
}

// LastError returns the error of the most recent failed refresh, or nil once
// a refresh succeeds.
func (c *ClientInfoCache) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// TTL returns the freshness window.
func (c *ClientInfoCache) TTL() time.Duration { return c.ttl }

func (c *ClientInfoCache) fresh() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.info == nil || c.now().Sub(c.fetchedAt) >= c.ttl {
		return Snapshot{}, false
	}
	return Snapshot{Info: c.info, FetchedAt: c.fetchedAt}, true
}

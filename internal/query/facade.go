package query

import (
	"context"

	"github.com/rs/zerolog"

	"jarfeed/internal/domain"
	"jarfeed/internal/ingest"
	"jarfeed/internal/metrics"
)

// Source tells the caller where a result came from.
type Source string

const (
	SourceStore  Source = "store"
	SourceMemory Source = "memory"
)

type Result[T any] struct {
	Data   T
	Source Source
}

// Facade answers read queries from the store and falls back to the shadow
// state when the store fails. It never returns an error.
type Facade struct {
	store  domain.DonationReader
	shadow *ingest.Shadow
	logger zerolog.Logger
}

func NewFacade(store domain.DonationReader, shadow *ingest.Shadow, logger zerolog.Logger) *Facade {
	return &Facade{
		store:  store,
		shadow: shadow,
		logger: logger.With().Str("component", "query").Logger(),
	}
}

func (f *Facade) Stats(ctx context.Context) Result[domain.AggregateStats] {
	stats, err := f.store.AggregateStats(ctx)
	if err == nil {
		return Result[domain.AggregateStats]{Data: stats, Source: SourceStore}
	}
	f.fallback("stats", err)
	return Result[domain.AggregateStats]{Data: f.shadow.Stats(), Source: SourceMemory}
}

func (f *Facade) Top(ctx context.Context, limit int) Result[[]domain.TopDonor] {
	top, err := f.store.TopDonors(ctx, limit)
	if err == nil {
		return Result[[]domain.TopDonor]{Data: top, Source: SourceStore}
	}
	f.fallback("top", err)
	return Result[[]domain.TopDonor]{Data: f.shadow.Top(limit), Source: SourceMemory}
}

func (f *Facade) Recent(ctx context.Context, limit int) Result[[]domain.Donation] {
	recent, err := f.store.ListRecent(ctx, limit, 0)
	if err == nil {
		return Result[[]domain.Donation]{Data: recent, Source: SourceStore}
	}
	f.fallback("recent", err)
	return Result[[]domain.Donation]{Data: f.shadow.Recent(limit), Source: SourceMemory}
}

// Latest returns the newest donation, or nil when there is none.
func (f *Facade) Latest(ctx context.Context) Result[*domain.Donation] {
	recent := f.Recent(ctx, 1)
	var latest *domain.Donation
	if len(recent.Data) > 0 {
		d := recent.Data[0]
		latest = &d
	}
	return Result[*domain.Donation]{Data: latest, Source: recent.Source}
}

func (f *Facade) fallback(query string, err error) {
	metrics.QueryFallbacks.WithLabelValues(query).Inc()
	f.logger.Warn().Err(err).Str("event", query+"_failed").Msg("store read failed, serving in-memory state")
}

package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jarfeed/internal/domain"
	"jarfeed/internal/metrics"
)

// Broadcaster fans a donation out to realtime subscribers. Implementations
// must not block on slow subscribers.
type Broadcaster interface {
	Broadcast(d domain.Donation)
}

const defaultWriteTimeout = 5 * time.Second

// Pipeline is the only writer of the donation store and the shadow state.
// Ingest never fails: a store error is logged and the shadow keeps serving
// reads.
type Pipeline struct {
	store        domain.DonationWriter
	shadow       *Shadow
	broadcaster  Broadcaster
	logger       zerolog.Logger
	writeTimeout time.Duration
	locks        idLocks
}

func NewPipeline(store domain.DonationWriter, shadow *Shadow, broadcaster Broadcaster, logger zerolog.Logger) *Pipeline {
	if shadow == nil {
		shadow = NewShadow()
	}
	return &Pipeline{
		store:        store,
		shadow:       shadow,
		broadcaster:  broadcaster,
		logger:       logger.With().Str("component", "ingest").Logger(),
		writeTimeout: defaultWriteTimeout,
	}
}

// Ingest records a real donation. Subscribers are notified before the store
// write so a slow or failing store never delays them. Ingests of the same id
// run one at a time so the shadow and the store agree on the last writer.
func (p *Pipeline) Ingest(ctx context.Context, d domain.Donation) {
	unlock := p.locks.lock(d.ID)
	defer unlock()

	replaced := p.shadow.Add(d)
	p.broadcast(d)

	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	err := p.store.UpsertDonation(writeCtx, d)
	cancel()
	if err != nil {
		metrics.StoreWrites.WithLabelValues("error").Inc()
		p.logger.Error().Err(err).Str("event", "donation_save_failed").Str("id", d.ID).Msg("store")
	} else {
		metrics.StoreWrites.WithLabelValues("ok").Inc()
		p.logger.Debug().Str("event", "donation_saved").Str("id", d.ID).Msg("store")
	}

	metrics.DonationsIngested.WithLabelValues("real").Inc()
	p.logDonation(p.logger.Info(), d).
		Bool("replaced", replaced).
		Bool("persisted", err == nil).
		Msg("donation received")
}

// IngestTest broadcasts a synthetic donation. It never touches the store or
// the shadow state.
func (p *Pipeline) IngestTest(_ context.Context, d domain.Donation) {
	p.broadcast(d)
	metrics.DonationsIngested.WithLabelValues("test").Inc()
	p.logDonation(p.logger.Info(), d).Bool("test", true).Msg("test donation broadcast")
}

// Rehydrate loads previously stored donations into the shadow state. Input is
// newest first, as returned by the store.
func (p *Pipeline) Rehydrate(donations []domain.Donation) {
	for i := len(donations) - 1; i >= 0; i-- {
		p.shadow.Add(donations[i])
	}
	stats := p.shadow.Stats()
	p.logger.Info().
		Int("count", len(donations)).
		Str("total_amount", stats.TotalAmount.String()).
		Int64("unique_donors", stats.UniqueDonors).
		Msg("existing donations loaded")
}

func (p *Pipeline) broadcast(d domain.Donation) {
	if p.broadcaster != nil {
		p.broadcaster.Broadcast(d)
	}
}

func (p *Pipeline) logDonation(ev *zerolog.Event, d domain.Donation) *zerolog.Event {
	return ev.
		Str("id", d.ID).
		Str("name", d.Name).
		Str("amount", d.Amount.String()).
		Str("counter_name", d.CounterName).
		Str("comment", d.Comment)
}

// idLocks hands out one mutex per donation id, dropped once nobody holds it.
type idLocks struct {
	mu   sync.Mutex
	byID map[string]*idLock
}

type idLock struct {
	sync.Mutex
	refs int
}

func (l *idLocks) lock(id string) func() {
	l.mu.Lock()
	if l.byID == nil {
		l.byID = make(map[string]*idLock)
	}
	m, ok := l.byID[id]
	if !ok {
		m = &idLock{}
		l.byID[id] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		if m.refs--; m.refs == 0 {
			delete(l.byID, id)
		}
		l.mu.Unlock()
	}
}

package monobank

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jarfeed/internal/domain"
	"jarfeed/internal/metrics"
)

// StatementFetcher is the raw statement call the gate sits in front of.
type StatementFetcher interface {
	Statement(ctx context.Context, account string, from, to time.Time) ([]domain.Transaction, error)
}

// StatementGate lets at most one statement request through per window. Calls
// inside the window fail with domain.ErrThrottled without reaching the bank.
type StatementGate struct {
	next   StatementFetcher
	window time.Duration
	logger zerolog.Logger
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewStatementGate(next StatementFetcher, window time.Duration, logger zerolog.Logger) *StatementGate {
	if window <= 0 {
		window = time.Minute
	}
	return &StatementGate{
		next:   next,
		window: window,
		logger: logger.With().Str("component", "statement_gate").Logger(),
		now:    time.Now,
	}
}

// Statement forwards to the bank when the window allows it. A forwarded call
// consumes the window whether or not it succeeds.
func (g *StatementGate) Statement(ctx context.Context, account string, from, to time.Time) ([]domain.Transaction, error) {
	g.mu.Lock()
	now := g.now()
	if !g.last.IsZero() {
		if wait := g.window - now.Sub(g.last); wait > 0 {
			g.mu.Unlock()
			metrics.BankRequests.WithLabelValues("statement", "throttled").Inc()
			g.logger.Debug().Str("event", "statement_throttled").Dur("retry_in", wait).Msg("bank api")
			return nil, fmt.Errorf("statement: next call allowed in %s: %w", wait.Round(time.Second), domain.ErrThrottled)
		}
	}
	g.last = now
	g.mu.Unlock()

	return g.next.Statement(ctx, account, from, to)
}

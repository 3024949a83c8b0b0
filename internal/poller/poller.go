package poller

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jarfeed/internal/domain"
	"jarfeed/internal/metrics"
	"jarfeed/internal/monobank"
)

// ClientInfoSource resolves the jar list. In production it is the
// ClientInfoCache; the poller never calls the bank for client info directly.
type ClientInfoSource interface {
	Get(ctx context.Context) (monobank.Snapshot, error)
}

type StatementSource interface {
	Statement(ctx context.Context, account string, from, to time.Time) ([]domain.Transaction, error)
}

type Ingester interface {
	Ingest(ctx context.Context, d domain.Donation)
}

type Options struct {
	JarTitle        string
	JarID           string
	Interval        time.Duration
	StatementWindow time.Duration
	SteadyWindow    time.Duration
	BootstrapLimit  int
	AnonymousName   string
	UnknownSender   string
}

// Poller periodically pulls the jar statement and hands new incoming
// transactions to the ingestion pipeline. It owns the last-seen transaction id.
type Poller struct {
	clientInfo ClientInfoSource
	statements StatementSource
	ingester   Ingester
	logger     zerolog.Logger
	opts       Options
	now        func() time.Time

	cycle sync.Mutex

	mu       sync.Mutex
	lastSeen string
	jarTitle string
	jarID    string
}

func New(clientInfo ClientInfoSource, statements StatementSource, ingester Ingester, opts Options, logger zerolog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.StatementWindow <= 0 {
		opts.StatementWindow = 30 * 24 * time.Hour
	}
	if opts.SteadyWindow <= 0 {
		opts.SteadyWindow = 24 * time.Hour
	}
	if opts.BootstrapLimit <= 0 {
		opts.BootstrapLimit = 3
	}
	if opts.AnonymousName == "" {
		opts.AnonymousName = "Anonymous"
	}
	if opts.UnknownSender == "" {
		opts.UnknownSender = "Unknown sender"
	}
	return &Poller{
		clientInfo: clientInfo,
		statements: statements,
		ingester:   ingester,
		logger:     logger.With().Str("component", "poller").Logger(),
		opts:       opts,
		now:        time.Now,
		jarTitle:   opts.JarTitle,
		jarID:      opts.JarID,
	}
}

// Run polls immediately and then on every interval until ctx is done. Cycles
// never overlap: a tick that arrives during a slow cycle is dropped.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().Dur("interval", p.opts.Interval).Str("jar_title", p.JarTitle()).Msg("poller: started")
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("poller: stopped")
			return nil
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce executes one poll cycle and returns how many donations were handed
// to the ingester. Failures are logged, never returned.
func (p *Poller) RunOnce(ctx context.Context) int {
	if !p.cycle.TryLock() {
		p.logger.Debug().Msg("poller: cycle already running, skipping")
		return 0
	}
	defer p.cycle.Unlock()

	if ctx.Err() != nil {
		return 0
	}
	start := p.now()
	n, outcome := p.poll(ctx)
	metrics.PollCycles.WithLabelValues(outcome).Inc()
	metrics.PollDuration.Observe(float64(time.Since(start).Milliseconds()))
	return n
}

func (p *Poller) poll(ctx context.Context) (int, string) {
	snap, err := p.clientInfo.Get(ctx)
	if err != nil {
		return 0, p.logAPIError("client_info", err)
	}
	title, id := p.Target()
	jar, err := snap.Info.FindJar(id, title)
	if err != nil {
		p.logger.Warn().Err(err).Str("event", "jar_not_found").Str("jar_title", title).Str("jar_id", id).Msg("bank api")
		return 0, "jar_not_found"
	}

	now := p.now()
	txs, err := p.statements.Statement(ctx, jar.ID, now.Add(-p.opts.StatementWindow), now)
	if errors.Is(err, domain.ErrThrottled) {
		p.logger.Debug().Err(err).Msg("poller: statement window not open, skipping cycle")
		return 0, "throttled"
	}
	if err != nil {
		return 0, p.logAPIError("statement", err)
	}

	fresh := p.selectNew(txs, now)
	if len(fresh) == 0 {
		return 0, "ok"
	}
	p.logger.Info().Str("event", "new_transactions_found").Int("count", len(fresh)).Msg("bank api")

	// Writes already started must finish even if shutdown begins mid-cycle.
	ingestCtx := context.WithoutCancel(ctx)
	for _, tx := range fresh {
		p.ingester.Ingest(ingestCtx, p.toDonation(tx))
	}
	return len(fresh), "ok"
}

// selectNew filters incoming transactions and advances lastSeen. Transactions
// older than the steady-state window are dropped even when unseen, so a long
// outage does not replay history.
func (p *Poller) selectNew(txs []domain.Transaction, now time.Time) []domain.Transaction {
	incoming := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Amount > 0 {
			incoming = append(incoming, tx)
		}
	}
	sort.SliceStable(incoming, func(i, j int) bool { return incoming[i].Time > incoming[j].Time })

	p.mu.Lock()
	defer p.mu.Unlock()

	var fresh []domain.Transaction
	if p.lastSeen == "" {
		fresh = incoming[:min(p.opts.BootstrapLimit, len(incoming))]
	} else {
		cutoff := now.Add(-p.opts.SteadyWindow)
		for _, tx := range incoming {
			if tx.ID != p.lastSeen && time.Unix(tx.Time, 0).After(cutoff) {
				fresh = append(fresh, tx)
			}
		}
	}
	if len(fresh) > 0 {
		p.lastSeen = fresh[0].ID
	}
	return fresh
}

func (p *Poller) toDonation(tx domain.Transaction) domain.Donation {
	name := tx.CounterName
	if name == "" {
		name = ExtractName(tx.Description, p.opts.AnonymousName)
	}
	counter := tx.CounterName
	if counter == "" {
		counter = p.opts.UnknownSender
	}
	return domain.Donation{
		ID:          tx.ID,
		Name:        name,
		Amount:      domain.FromMinorUnits(tx.Amount),
		Description: tx.Description,
		Comment:     tx.Comment,
		CounterName: counter,
		Timestamp:   tx.Time * 1000,
	}
}

func (p *Poller) logAPIError(op string, err error) string {
	var apiErr *domain.ExternalAPIError
	if !errors.As(err, &apiErr) {
		p.logger.Error().Err(err).Str("event", "api_error").Str("op", op).Msg("bank api")
		return "api_error"
	}
	level, event := zerolog.ErrorLevel, "api_error"
	switch {
	case apiErr.Kind == domain.KindRateLimited:
		level, event = zerolog.WarnLevel, "rate_limited"
	case apiErr.Kind == domain.KindBadRequest:
		event = "bad_request"
	case apiErr.Kind == domain.KindUnauthorized:
		event = "invalid_token"
	case apiErr.Status == 0:
		level, event = zerolog.WarnLevel, "network_error"
	}
	p.logger.WithLevel(level).Err(err).Str("event", event).Str("op", op).Int("status", apiErr.Status).Msg("bank api")
	return event
}

// SetLastSeen seeds the last-seen transaction id, typically from the newest
// stored donation at startup.
func (p *Poller) SetLastSeen(id string) {
	p.mu.Lock()
	p.lastSeen = id
	p.mu.Unlock()
}

func (p *Poller) LastSeen() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

// SetTarget re-targets the poller at another jar. An empty id falls back to
// matching by title.
func (p *Poller) SetTarget(title, id string) {
	p.mu.Lock()
	if title != "" {
		p.jarTitle = title
	}
	p.jarID = id
	p.mu.Unlock()
	p.logger.Info().Str("jar_title", title).Str("jar_id", id).Msg("poller: target updated")
}

func (p *Poller) JarTitle() string {
	title, _ := p.Target()
	return title
}

// Target returns the jar title and id the poller currently matches.
func (p *Poller) Target() (title, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jarTitle, p.jarID
}

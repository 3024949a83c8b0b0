package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"jarfeed/internal/domain"
	"jarfeed/internal/monobank"
	"jarfeed/internal/query"
)

// DonationQueries is the read side served by the donation endpoints.
type DonationQueries interface {
	Stats(ctx context.Context) query.Result[domain.AggregateStats]
	Top(ctx context.Context, limit int) query.Result[[]domain.TopDonor]
	Recent(ctx context.Context, limit int) query.Result[[]domain.Donation]
	Latest(ctx context.Context) query.Result[*domain.Donation]
}

type TestIngester interface {
	IngestTest(ctx context.Context, d domain.Donation)
}

// JarSnapshots exposes the poller-owned client info slot without refreshing it.
type JarSnapshots interface {
	Peek() (monobank.Snapshot, bool)
	LastError() error
	TTL() time.Duration
}

type App struct {
	Queries DonationQueries
	Ingest  TestIngester
	// Jars is nil when the bank integration is disabled.
	Jars JarSnapshots
	// JarTarget returns the jar the poller currently watches.
	JarTarget   func() (title, id string)
	Location    *time.Location
	Subscribers func() int
	Logger      zerolog.Logger

	now func() time.Time
}

func (a *App) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

func (a *App) location() *time.Location {
	if a.Location != nil {
		return a.Location
	}
	return time.UTC
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]any{"success": false, "error": message})
}

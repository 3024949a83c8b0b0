package query

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarfeed/internal/adapter/repo"
	"jarfeed/internal/domain"
	"jarfeed/internal/infra"
	"jarfeed/internal/ingest"
)

type failingReader struct{}

var errDown = domain.NewStoreError("read", errors.New("database is locked"))

func (failingReader) ListRecent(context.Context, int, int) ([]domain.Donation, error) {
	return nil, errDown
}

func (failingReader) AggregateStats(context.Context) (domain.AggregateStats, error) {
	return domain.AggregateStats{}, errDown
}

func (failingReader) TopDonors(context.Context, int) ([]domain.TopDonor, error) {
	return nil, errDown
}

func newSQLiteStore(t *testing.T) *repo.DonationStoreSQLite {
	t.Helper()
	db, err := infra.OpenSQLite(":memory:")
	require.NoError(t, err)
	store := repo.NewDonationStoreSQLite(infra.NewSQLDB(db, zerolog.Nop()), db)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(p *ingest.Pipeline) {
	ctx := context.Background()
	p.Ingest(ctx, domain.Donation{ID: "a", Name: "X", Amount: decimal.NewFromInt(100), Timestamp: 1000})
	p.Ingest(ctx, domain.Donation{ID: "b", Name: "Y", Amount: decimal.NewFromInt(50), Timestamp: 2000})
}

func TestFacadeEmptyStore(t *testing.T) {
	store := newSQLiteStore(t)
	f := NewFacade(store, ingest.NewShadow(), zerolog.Nop())

	res := f.Stats(context.Background())
	assert.Equal(t, SourceStore, res.Source)
	assert.True(t, res.Data.TotalAmount.IsZero())
	assert.Zero(t, res.Data.TotalCount)
	assert.Zero(t, res.Data.UniqueDonors)
	assert.Nil(t, res.Data.LatestDonation)

	latest := f.Latest(context.Background())
	assert.Nil(t, latest.Data)
}

func TestFacadeReadsFromStore(t *testing.T) {
	store := newSQLiteStore(t)
	shadow := ingest.NewShadow()
	seed(ingest.NewPipeline(store, shadow, nil, zerolog.Nop()))
	f := NewFacade(store, shadow, zerolog.Nop())

	top := f.Top(context.Background(), 10)
	assert.Equal(t, SourceStore, top.Source)
	require.Len(t, top.Data, 2)
	assert.Equal(t, "X", top.Data[0].Name)
	assert.True(t, top.Data[0].Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "Y", top.Data[1].Name)

	recent := f.Recent(context.Background(), 1)
	require.Len(t, recent.Data, 1)
	assert.Equal(t, "b", recent.Data[0].ID)
}

func TestFacadeFallsBackToMemory(t *testing.T) {
	shadow := ingest.NewShadow()
	seed(ingest.NewPipeline(&nopWriter{}, shadow, nil, zerolog.Nop()))
	f := NewFacade(failingReader{}, shadow, zerolog.Nop())
	ctx := context.Background()

	stats := f.Stats(ctx)
	assert.Equal(t, SourceMemory, stats.Source)
	assert.EqualValues(t, 2, stats.Data.TotalCount)
	assert.True(t, stats.Data.TotalAmount.Equal(decimal.NewFromInt(150)))
	require.NotNil(t, stats.Data.LatestDonation)
	assert.Equal(t, "b", stats.Data.LatestDonation.ID)

	top := f.Top(ctx, 10)
	assert.Equal(t, SourceMemory, top.Source)
	require.Len(t, top.Data, 2)
	assert.Equal(t, "X", top.Data[0].Name)

	recent := f.Recent(ctx, 1)
	assert.Equal(t, SourceMemory, recent.Source)
	require.Len(t, recent.Data, 1)
	assert.Equal(t, "b", recent.Data[0].ID)

	latest := f.Latest(ctx)
	assert.Equal(t, SourceMemory, latest.Source)
	require.NotNil(t, latest.Data)
	assert.Equal(t, "b", latest.Data.ID)
}

type nopWriter struct{}

func (nopWriter) UpsertDonation(context.Context, domain.Donation) error { return nil }

package repo

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"jarfeed/internal/domain"
	"jarfeed/internal/infra"
	"jarfeed/internal/sqlinline"
)

// DonationStorePG implements domain.DonationStore using PostgreSQL.
type DonationStorePG struct {
	sql   infra.SQLExecutor
	close func()
}

// NewDonationStorePG wraps an executor; closeFn (usually pool.Close) runs on Close.
func NewDonationStorePG(sql infra.SQLExecutor, closeFn func()) *DonationStorePG {
	return &DonationStorePG{sql: sql, close: closeFn}
}

// Init creates the schema if absent.
func (r *DonationStorePG) Init(ctx context.Context) error {
	for _, stmt := range sqlinline.PGSchema {
		if _, err := r.sql.Exec(ctx, stmt); err != nil {
			return domain.NewStoreError("init", err)
		}
	}
	return nil
}

// UpsertDonation inserts the donation or replaces the row with the same id.
func (r *DonationStorePG) UpsertDonation(ctx context.Context, d domain.Donation) error {
	_, err := r.sql.Exec(ctx, sqlinline.QPGUpsertDonation,
		d.ID, d.Name, d.Amount.StringFixed(2), d.Description, d.Comment, d.CounterName, d.Timestamp)
	return domain.NewStoreError("upsert", err)
}

// ListRecent returns donations newest first.
func (r *DonationStorePG) ListRecent(ctx context.Context, limit, offset int) ([]domain.Donation, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QPGListDonations, limit, offset)
	if err != nil {
		return nil, domain.NewStoreError("list", err)
	}
	defer rows.Close()

	items := make([]domain.Donation, 0, limit)
	for rows.Next() {
		d, err := scanPGDonation(rows)
		if err != nil {
			return nil, domain.NewStoreError("list", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("list", err)
	}
	return items, nil
}

// AggregateStats computes totals and the latest donation.
func (r *DonationStorePG) AggregateStats(ctx context.Context) (domain.AggregateStats, error) {
	var (
		stats domain.AggregateStats
		total string
	)
	if err := r.sql.QueryRow(ctx, sqlinline.QPGDonationTotals).Scan(&total, &stats.TotalCount, &stats.UniqueDonors); err != nil {
		return domain.AggregateStats{}, domain.NewStoreError("stats", err)
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return domain.AggregateStats{}, domain.NewStoreError("stats", fmt.Errorf("parse total %q: %w", total, err))
	}
	stats.TotalAmount = amount

	latest, err := scanPGDonation(r.sql.QueryRow(ctx, sqlinline.QPGLatestDonation))
	switch {
	case err == nil:
		stats.LatestDonation = &latest
	case infra.IsNoRows(err):
	default:
		return domain.AggregateStats{}, domain.NewStoreError("stats", err)
	}
	return stats, nil
}

// TopDonors sums amounts per name.
func (r *DonationStorePG) TopDonors(ctx context.Context, limit int) ([]domain.TopDonor, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QPGTopDonors, limit)
	if err != nil {
		return nil, domain.NewStoreError("top", err)
	}
	defer rows.Close()

	donors := make([]domain.TopDonor, 0, limit)
	for rows.Next() {
		var name, total string
		if err := rows.Scan(&name, &total); err != nil {
			return nil, domain.NewStoreError("top", err)
		}
		amount, err := decimal.NewFromString(total)
		if err != nil {
			return nil, domain.NewStoreError("top", fmt.Errorf("parse total %q: %w", total, err))
		}
		donors = append(donors, domain.TopDonor{Name: name, Amount: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("top", err)
	}
	return donors, nil
}

// LoadAll returns up to limit donations newest first.
func (r *DonationStorePG) LoadAll(ctx context.Context, limit int) ([]domain.Donation, error) {
	return r.ListRecent(ctx, limit, 0)
}

// Close releases the pool. pgxpool.Close blocks until acquired connections
// are returned, so an in-flight upsert finishes first.
func (r *DonationStorePG) Close() error {
	if r.close != nil {
		r.close()
	}
	return nil
}

func scanPGDonation(row infra.Row) (domain.Donation, error) {
	var (
		d      domain.Donation
		amount string
	)
	if err := row.Scan(&d.ID, &d.Name, &amount, &d.Description, &d.Comment, &d.CounterName, &d.Timestamp); err != nil {
		return domain.Donation{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.Donation{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	d.Amount = parsed
	return d, nil
}

var _ domain.DonationStore = (*DonationStorePG)(nil)

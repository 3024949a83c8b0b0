package repo

import (
	"context"
	"database/sql"
	"sync"

	"jarfeed/internal/domain"
	"jarfeed/internal/infra"
	"jarfeed/internal/sqlinline"
)

// DonationStoreSQLite implements domain.DonationStore on a local SQLite file.
// Writes and Close share a mutex so Close never cuts an upsert in half.
type DonationStoreSQLite struct {
	sql infra.SQLiteExecutor
	db  *sql.DB

	mu     sync.Mutex
	closed bool
}

func NewDonationStoreSQLite(exec infra.SQLiteExecutor, db *sql.DB) *DonationStoreSQLite {
	return &DonationStoreSQLite{sql: exec, db: db}
}

func (r *DonationStoreSQLite) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stmt := range sqlinline.LiteSchema {
		if _, err := r.sql.Exec(ctx, stmt); err != nil {
			return domain.NewStoreError("init", err)
		}
	}
	return nil
}

func (r *DonationStoreSQLite) UpsertDonation(ctx context.Context, d domain.Donation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.NewStoreError("upsert", sql.ErrConnDone)
	}
	minor := d.Amount.Round(2).Shift(2).IntPart()
	_, err := r.sql.Exec(ctx, sqlinline.QLiteUpsertDonation,
		d.ID, d.Name, minor, d.Description, d.Comment, d.CounterName, d.Timestamp)
	return domain.NewStoreError("upsert", err)
}

func (r *DonationStoreSQLite) ListRecent(ctx context.Context, limit, offset int) ([]domain.Donation, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QLiteListDonations, limit, offset)
	if err != nil {
		return nil, domain.NewStoreError("list", err)
	}
	defer rows.Close()

	items := make([]domain.Donation, 0, limit)
	for rows.Next() {
		d, err := scanLiteDonation(rows)
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

func (r *DonationStoreSQLite) AggregateStats(ctx context.Context) (domain.AggregateStats, error) {
	var (
		stats domain.AggregateStats
		total int64
	)
	if err := r.sql.QueryRow(ctx, sqlinline.QLiteDonationTotals).Scan(&total, &stats.TotalCount, &stats.UniqueDonors); err != nil {
		return domain.AggregateStats{}, domain.NewStoreError("stats", err)
	}
	stats.TotalAmount = domain.FromMinorUnits(total)

	latest, err := scanLiteDonation(r.sql.QueryRow(ctx, sqlinline.QLiteLatestDonation))
	switch {
	case err == nil:
		stats.LatestDonation = &latest
	case infra.IsNoRows(err):
	default:
		return domain.AggregateStats{}, domain.NewStoreError("stats", err)
	}
	return stats, nil
}

func (r *DonationStoreSQLite) TopDonors(ctx context.Context, limit int) ([]domain.TopDonor, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QLiteTopDonors, limit)
	if err != nil {
		return nil, domain.NewStoreError("top", err)
	}
	defer rows.Close()

	donors := make([]domain.TopDonor, 0, limit)
	for rows.Next() {
		var (
			name  string
			total int64
		)
		if err := rows.Scan(&name, &total); err != nil {
			return nil, domain.NewStoreError("top", err)
		}
		donors = append(donors, domain.TopDonor{Name: name, Amount: domain.FromMinorUnits(total)})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("top", err)
	}
	return donors, nil
}

func (r *DonationStoreSQLite) LoadAll(ctx context.Context, limit int) ([]domain.Donation, error) {
	return r.ListRecent(ctx, limit, 0)
}

// Close waits for an in-flight upsert and closes the database.
func (r *DonationStoreSQLite) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func scanLiteDonation(row infra.Row) (domain.Donation, error) {
	var (
		d     domain.Donation
		minor int64
	)
	if err := row.Scan(&d.ID, &d.Name, &minor, &d.Description, &d.Comment, &d.CounterName, &d.Timestamp); err != nil {
		return domain.Donation{}, err
	}
	d.Amount = domain.FromMinorUnits(minor)
	return d, nil
}

var _ domain.DonationStore = (*DonationStoreSQLite)(nil)

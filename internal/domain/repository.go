package domain

import "context"

// DonationStore is the durable donation table plus its aggregate queries.
// Implementations wrap every failure in a *StoreError and must treat a
// duplicate ID as a replacement, never as an error.
type DonationStore interface {
	UpsertDonation(ctx context.Context, donation Donation) error
	// ListRecent returns donations ordered by timestamp, newest first.
	ListRecent(ctx context.Context, limit, offset int) ([]Donation, error)
	AggregateStats(ctx context.Context) (AggregateStats, error)
	// TopDonors groups by name and orders by total descending; ties go to the
	// name that was stored first.
	TopDonors(ctx context.Context, limit int) ([]TopDonor, error)
	// LoadAll is used once at startup to rehydrate in-memory state.
	LoadAll(ctx context.Context, limit int) ([]Donation, error)
	Close() error
}

// DonationReader is the read side used by the query layer and the CLI.
type DonationReader interface {
	ListRecent(ctx context.Context, limit, offset int) ([]Donation, error)
	AggregateStats(ctx context.Context) (AggregateStats, error)
	TopDonors(ctx context.Context, limit int) ([]TopDonor, error)
}

// DonationWriter is the write side owned by the ingestion pipeline.
type DonationWriter interface {
	UpsertDonation(ctx context.Context, donation Donation) error
}

package repo

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"jarfeed/internal/domain"
	"jarfeed/internal/infra"
)

// Open connects to the backend named by cfg.DBDriver and applies its schema.
func Open(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (domain.DonationStore, error) {
	switch cfg.DBDriver {
	case infra.DBDriverPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, domain.NewStoreError("init", err)
		}
		store := NewDonationStorePG(infra.NewSQLRunner(pool, logger), pool.Close)
		if err := store.Init(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case infra.DBDriverSQLite:
		db, err := infra.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, domain.NewStoreError("init", err)
		}
		store := NewDonationStoreSQLite(infra.NewSQLDB(db, logger), db)
		if err := store.Init(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, domain.NewStoreError("init", fmt.Errorf("unsupported database driver %q", cfg.DBDriver))
	}
}

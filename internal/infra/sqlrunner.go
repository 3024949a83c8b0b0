package infra

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SQLExecutor defines the contract required by the PostgreSQL store for executing SQL queries.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// Row is the scan-only view shared by pgx and database/sql rows.
type Row interface {
	Scan(dest ...any) error
}

// SQLiteExecutor is the database/sql counterpart of SQLExecutor.
type SQLiteExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// SQLRunner executes marker-tagged statements on a pgx pool and logs each one
// by its marker.
type SQLRunner struct {
	Pool   *pgxpool.Pool
	Logger zerolog.Logger
}

func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{Pool: pool, Logger: logger}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, trimmed, err := ExtractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	r.Logger.Debug().Msgf("sql[%s] exec", marker)
	tag, err := r.Pool.Exec(ctx, trimmed, args...)
	if err != nil {
		r.Logger.Error().Err(err).Msgf("sql[%s] error", marker)
		return tag, err
	}
	return tag, nil
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, trimmed, err := ExtractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	r.Logger.Debug().Msgf("sql[%s] query_row", marker)
	row := r.Pool.QueryRow(ctx, trimmed, args...)
	return loggingRow{row: row, logger: r.Logger, marker: marker}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, trimmed, err := ExtractMarker(query)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug().Msgf("sql[%s] query", marker)
	rows, err := r.Pool.Query(ctx, trimmed, args...)
	if err != nil {
		r.Logger.Error().Err(err).Msgf("sql[%s] error", marker)
		return nil, err
	}
	return rows, nil
}

// SQLDB is the database/sql flavour of SQLRunner, used for SQLite.
type SQLDB struct {
	DB     *sql.DB
	Logger zerolog.Logger
}

func NewSQLDB(db *sql.DB, logger zerolog.Logger) *SQLDB {
	return &SQLDB{DB: db, Logger: logger}
}

func (s *SQLDB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	marker, trimmed, err := ExtractMarker(query)
	if err != nil {
		return nil, err
	}
	s.Logger.Debug().Msgf("sql[%s] exec", marker)
	res, err := s.DB.ExecContext(ctx, trimmed, args...)
	if err != nil {
		s.Logger.Error().Err(err).Msgf("sql[%s] error", marker)
		return nil, err
	}
	return res, nil
}

func (s *SQLDB) QueryRow(ctx context.Context, query string, args ...any) Row {
	marker, trimmed, err := ExtractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	s.Logger.Debug().Msgf("sql[%s] query_row", marker)
	return loggingRow{row: s.DB.QueryRowContext(ctx, trimmed, args...), logger: s.Logger, marker: marker}
}

func (s *SQLDB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	marker, trimmed, err := ExtractMarker(query)
	if err != nil {
		return nil, err
	}
	s.Logger.Debug().Msgf("sql[%s] query", marker)
	rows, err := s.DB.QueryContext(ctx, trimmed, args...)
	if err != nil {
		s.Logger.Error().Err(err).Msgf("sql[%s] error", marker)
		return nil, err
	}
	return rows, nil
}

type loggingRow struct {
	row    Row
	logger zerolog.Logger
	marker string
}

func (l loggingRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	if err != nil && !IsNoRows(err) {
		l.logger.Error().Err(err).Msgf("sql[%s] scan error", l.marker)
	}
	return err
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

// IsNoRows reports whether err signals an empty result for either driver.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// ExtractMarker splits a `--sql <uuid>` tagged statement into its marker and body.
func ExtractMarker(query string) (string, string, error) {
	trimmed := strings.TrimSpace(query)
	lines := strings.Split(trimmed, "\n")
	if len(lines) == 0 {
		return "", "", errors.New("empty query")
	}
	markerLine := strings.TrimSpace(lines[0])
	if !markerRegexp.MatchString(markerLine) {
		return "", "", errors.New("sql marker missing or invalid")
	}
	return strings.TrimSpace(strings.TrimPrefix(markerLine, "--sql ")), strings.Join(lines[1:], "\n"), nil
}

var (
	_ SQLExecutor    = (*SQLRunner)(nil)
	_ SQLiteExecutor = (*SQLDB)(nil)
)

package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"storefront/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the repositories translate into domain errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// DefaultQueryTimeout bounds a statement when no timeout is configured.
const DefaultQueryTimeout = 5 * time.Second

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// conn pairs a DBTX with the per-statement timeout applied to every call.
type conn struct {
	db      DBTX
	timeout time.Duration
}

func newConn(db DBTX, timeout time.Duration) conn {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return conn{db: db, timeout: timeout}
}

func (c conn) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// wrapErr annotates err with the failed operation and classifies driver
// failures into the domain taxonomy.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}

	switch pgCode(err) {
	case pgUniqueViolation:
		return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrConflict, err)
	case pgForeignKeyViolation:
		return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrNotFound, err)
	case pgCheckViolation:
		return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrValidation, err)
	}

	if isUnavailable(err) {
		return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrStorageUnavailable, err)
	}

	return fmt.Errorf("failed to %s: %w", op, err)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		pgconn.Timeout(err) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TxRepos exposes repositories bound to one transaction
type TxRepos interface {
	Users() UserRepository
	Products() ProductRepository
	Cart() CartRepository
	Orders() OrderRepository
	OrderItems() OrderItemRepository
}

// TxManager runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise, including on panic.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}

type txManager struct {
	db      *sql.DB
	timeout time.Duration
}

// NewTxManager creates a TxManager over db
func NewTxManager(db *sql.DB, queryTimeout time.Duration) TxManager {
	return &txManager{db: db, timeout: queryTimeout}
}

func (m *txManager) WithinTx(ctx context.Context, fn func(r TxRepos) error) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txRepos{tx: tx, timeout: m.timeout}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("commit transaction", err)
	}
	return nil
}

type txRepos struct {
	tx      *sql.Tx
	timeout time.Duration
}

func (r *txRepos) Users() UserRepository           { return NewUserRepository(r.tx, r.timeout) }
func (r *txRepos) Products() ProductRepository     { return NewProductRepository(r.tx, r.timeout) }
func (r *txRepos) Cart() CartRepository            { return NewCartRepository(r.tx, r.timeout) }
func (r *txRepos) Orders() OrderRepository         { return NewOrderRepository(r.tx, r.timeout) }
func (r *txRepos) OrderItems() OrderItemRepository { return NewOrderItemRepository(r.tx, r.timeout) }

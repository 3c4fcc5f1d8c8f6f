package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

func (s *Store) RunTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// maxTxAttempts bounds how often a serializable transaction is retried
// after a serialization failure or deadlock.
const maxTxAttempts = 3

// RunSerialTx runs fn in a serializable transaction, retrying it when
// postgres aborts the transaction with a retryable error. fn may run
// more than once and must be safe to repeat.
func (s *Store) RunSerialTx(ctx context.Context, fn func(ctx context.Context, tx DB) error) error {
	return retryTx(func() error {
		return s.RunTx(ctx, nil, fn)
	})
}

func retryTx(run func() error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = run()
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}

func (s *Store) Catalog() *CatalogRepo     { return &CatalogRepo{store: s} }
func (s *Store) Inventory() *InventoryRepo { return &InventoryRepo{store: s} }
func (s *Store) Orders() *OrderRepo        { return &OrderRepo{store: s} }
func (s *Store) Admins() *AdminRepo        { return &AdminRepo{pool: s.pool} }

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/eloisazulbaran123-dev/tuboletapass/internal/domain"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/repository"
)

type InventoryRepo struct {
	store *Store
	db    DB
}

func (r *InventoryRepo) With(db DB) *InventoryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *InventoryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.store.pool
}

// CreateTiers inserts the given tiers and returns them with their
// assigned IDs, in input order. The inserts run in one transaction so
// an event never ends up with a partial tier set.
func (r *InventoryRepo) CreateTiers(ctx context.Context, tiers []domain.TicketTier) ([]domain.TicketTier, error) {
	const op = "postgres.InventoryRepo.CreateTiers"

	if r.db != nil {
		out, err := r.createTiersCore(ctx, tiers)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}
		return out, nil
	}

	var out []domain.TicketTier
	err := r.store.RunSerialTx(ctx, func(ctx context.Context, tx DB) error {
		var err error
		out, err = r.With(tx).createTiersCore(ctx, tiers)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return out, nil
}

func (r *InventoryRepo) createTiersCore(ctx context.Context, tiers []domain.TicketTier) ([]domain.TicketTier, error) {
	db := r.handle()

	batch := &pgx.Batch{}
	for _, t := range tiers {
		batch.Queue(
			`INSERT INTO ticket_tiers(event_id, type, price, total, available)
         	 VALUES ($1, $2, $3, $4, $5)
       		 RETURNING id, created_at`,
			t.EventID, t.Type, t.Price, t.Total, t.Available,
		)
	}

	br := db.SendBatch(ctx, batch)
	defer br.Close()

	out := make([]domain.TicketTier, len(tiers))
	for i, t := range tiers {
		if err := br.QueryRow().Scan(&t.ID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out[i] = t
	}

	return out, nil
}

// TiersByEvent returns the event's tiers cheapest-first.
func (r *InventoryRepo) TiersByEvent(ctx context.Context, eventID int64) ([]domain.TicketTier, error) {
	const op = "postgres.InventoryRepo.TiersByEvent"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, event_id, type, price, total, available, created_at
       	 FROM ticket_tiers
      	 WHERE event_id = $1
      	 ORDER BY price ASC`,
		eventID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []domain.TicketTier
	for rows.Next() {
		var t domain.TicketTier
		if err := rows.Scan(&t.ID, &t.EventID, &t.Type, &t.Price, &t.Total, &t.Available, &t.CreatedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *InventoryRepo) TiersByIDs(ctx context.Context, ids []int64) ([]domain.TicketTier, error) {
	const op = "postgres.InventoryRepo.TiersByIDs"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, event_id, type, price, total, available, created_at
       	 FROM ticket_tiers
      	 WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []domain.TicketTier
	for rows.Next() {
		var t domain.TicketTier
		if err := rows.Scan(&t.ID, &t.EventID, &t.Type, &t.Price, &t.Total, &t.Available, &t.CreatedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// Reserve atomically decrements the tier's available count. The
// decrement and the sufficiency check are one conditional UPDATE, so
// concurrent callers cannot take the same stock twice.
//
// Returns:
//   - error: repository.ErrInsufficientStock when fewer than qty remain.
//   - error: repository.ErrNotFound when the tier does not exist.
func (r *InventoryRepo) Reserve(ctx context.Context, tierID int64, qty int) error {
	const op = "postgres.InventoryRepo.Reserve"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE ticket_tiers
        	SET available = available - $2
      	 WHERE id = $1 AND available >= $2`,
		tierID, qty,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM ticket_tiers WHERE id = $1)`,
			tierID,
		).Scan(&exists); err != nil {
			return wrapDBErr(op, err)
		}
		if !exists {
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, repository.ErrInsufficientStock)
	}

	return nil
}

// Release returns qty units to the tier, capped at its total capacity.
func (r *InventoryRepo) Release(ctx context.Context, tierID int64, qty int) error {
	const op = "postgres.InventoryRepo.Release"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE ticket_tiers
        	SET available = LEAST(total, available + $2)
      	 WHERE id = $1`,
		tierID, qty,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

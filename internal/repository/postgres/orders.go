package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eloisazulbaran123-dev/tuboletapass/internal/domain"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/repository"
)

type OrderRepo struct {
	store *Store
	db    DB
}

func (r *OrderRepo) With(db DB) *OrderRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *OrderRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.store.pool
}

// Create persists the order and its line items in one transaction.
//
// Returns:
//   - error: repository.ErrConflict when the order number is already taken.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	const op = "postgres.OrderRepo.Create"

	if r.db != nil {
		if err := r.createCore(ctx, o); err != nil {
			return fmt.Errorf("%s: %w", op, translateDBErr(err))
		}
		return nil
	}

	err := r.store.RunSerialTx(ctx, func(ctx context.Context, tx DB) error {
		return r.With(tx).createCore(ctx, o)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return nil
}

func (r *OrderRepo) createCore(ctx context.Context, o *domain.Order) error {
	db := r.handle()

	if err := db.QueryRow(ctx,
		`INSERT INTO orders(id, number, user_id, email, name, phone,
                        	subtotal, service_fee, total,
                        	payment_method, card_last_four, provider, payment_ref, status)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
     	 RETURNING created_at`,
		o.ID, o.Number, o.Buyer.UserID, o.Buyer.Email, o.Buyer.Name, o.Buyer.Phone,
		o.Subtotal, o.ServiceFee, o.Total,
		o.Payment.Method, o.Payment.CardLastFour, o.Payment.Provider, o.Payment.Reference,
		o.Status,
	).Scan(&o.CreatedAt); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, it := range o.Items {
		batch.Queue(
			`INSERT INTO order_items(order_id, tier_id, quantity, unit_price)
         	 VALUES ($1, $2, $3, $4)`,
			o.ID, it.TierID, it.Quantity, it.UnitPrice,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	const op = "postgres.OrderRepo.Get"

	db := r.handle()

	var o domain.Order
	err := db.QueryRow(ctx,
		`SELECT id, number, user_id, email, name, phone,
            	subtotal, service_fee, total,
            	payment_method, card_last_four, provider, payment_ref,
            	status, created_at
       	 FROM orders WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.Number, &o.Buyer.UserID, &o.Buyer.Email, &o.Buyer.Name, &o.Buyer.Phone,
		&o.Subtotal, &o.ServiceFee, &o.Total,
		&o.Payment.Method, &o.Payment.CardLastFour, &o.Payment.Provider, &o.Payment.Reference,
		&o.Status, &o.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	rows, err := db.Query(ctx,
		`SELECT tier_id, quantity, unit_price
       	 FROM order_items WHERE order_id = $1
      	 ORDER BY tier_id`,
		id,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.TierID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, wrapDBErr(op, err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &o, nil
}

// List returns orders newest-first, narrowed by the filter's non-zero
// fields, each populated with its line items.
func (r *OrderRepo) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	const op = "postgres.OrderRepo.List"

	db := r.handle()

	sql := `SELECT id, number, user_id, email, name, phone,
               	subtotal, service_fee, total,
               	payment_method, card_last_four, provider, payment_ref,
               	status, created_at
          	FROM orders`
	var args []any
	var where []string

	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.BuyerID != "" {
		args = append(args, f.BuyerID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	for i, w := range where {
		if i == 0 {
			sql += " WHERE " + w
		} else {
			sql += " AND " + w
		}
	}
	sql += " ORDER BY created_at DESC"

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []domain.Order
	byID := map[uuid.UUID]int{}
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.Number, &o.Buyer.UserID, &o.Buyer.Email, &o.Buyer.Name, &o.Buyer.Phone,
			&o.Subtotal, &o.ServiceFee, &o.Total,
			&o.Payment.Method, &o.Payment.CardLastFour, &o.Payment.Provider, &o.Payment.Reference,
			&o.Status, &o.CreatedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		byID[o.ID] = len(out)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	if len(out) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, 0, len(out))
	for _, o := range out {
		ids = append(ids, o.ID)
	}

	itemRows, err := db.Query(ctx,
		`SELECT order_id, tier_id, quantity, unit_price
       	 FROM order_items WHERE order_id = ANY($1)
      	 ORDER BY tier_id`,
		ids,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var oid uuid.UUID
		var it domain.OrderItem
		if err := itemRows.Scan(&oid, &it.TierID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, wrapDBErr(op, err)
		}
		if i, ok := byID[oid]; ok {
			out[i].Items = append(out[i].Items, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// TransitionStatus flips the order's status from one value to another
// as a single conditional UPDATE. The compare and the set are one
// statement, so concurrent transitions on the same order serialize at
// the storage layer and at most one wins.
//
// Returns:
//   - error: repository.ErrStatusChanged when the order exists but is no
//     longer in the expected status.
//   - error: repository.ErrNotFound when the order does not exist.
func (r *OrderRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	const op = "postgres.OrderRepo.TransitionStatus"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`,
			id,
		).Scan(&exists); err != nil {
			return wrapDBErr(op, err)
		}
		if !exists {
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, repository.ErrStatusChanged)
	}

	return nil
}

func (r *OrderRepo) CountsByStatus(ctx context.Context) (*domain.OrderCounts, error) {
	const op = "postgres.OrderRepo.CountsByStatus"

	db := r.handle()

	var c domain.OrderCounts
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE status = 'pending'),
            	COUNT(*) FILTER (WHERE status = 'confirmed'),
            	COUNT(*) FILTER (WHERE status = 'rejected'),
            	COUNT(*)
       	 FROM orders`,
	).Scan(&c.Pending, &c.Confirmed, &c.Rejected, &c.Total)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &c, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/eloisazulbaran123-dev/tuboletapass/internal/domain"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/repository"
)

type CatalogRepo struct {
	store *Store
	db    DB
}

func (r *CatalogRepo) With(db DB) *CatalogRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CatalogRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.store.pool
}

func (r *CatalogRepo) CreateEvent(ctx context.Context, e *domain.Event) (int64, error) {
	const op = "postgres.CatalogRepo.CreateEvent"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO events(title, venue, city, category, base_price, starts_at, image, description)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
     	 RETURNING id`,
		e.Title, e.Venue, e.City, e.Category, e.BasePrice, e.StartsAt, e.Image, e.Description,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *CatalogRepo) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "postgres.CatalogRepo.GetEvent"

	db := r.handle()

	var e domain.Event
	err := db.QueryRow(ctx,
		`SELECT id, title, venue, city, category, base_price, starts_at, image, description, created_at
       	 FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Title, &e.Venue, &e.City, &e.Category, &e.BasePrice,
		&e.StartsAt, &e.Image, &e.Description, &e.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &e, nil
}

// ListEvents returns events newest-first, optionally narrowed by city
// and category. Empty filter fields match everything.
func (r *CatalogRepo) ListEvents(ctx context.Context, city, category string) ([]domain.Event, error) {
	const op = "postgres.CatalogRepo.ListEvents"

	db := r.handle()

	sql := `SELECT id, title, venue, city, category, base_price, starts_at, image, description, created_at
       	 	FROM events`
	var args []any
	var where []string

	if city != "" {
		args = append(args, city)
		where = append(where, fmt.Sprintf("city = $%d", len(args)))
	}
	if category != "" {
		args = append(args, category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
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

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Venue, &e.City, &e.Category, &e.BasePrice,
			&e.StartsAt, &e.Image, &e.Description, &e.CreatedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *CatalogRepo) UpdateEvent(ctx context.Context, e *domain.Event) error {
	const op = "postgres.CatalogRepo.UpdateEvent"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE events
        	SET title = $2, venue = $3, city = $4, category = $5,
            	base_price = $6, starts_at = $7, image = $8, description = $9
      	 WHERE id = $1`,
		e.ID, e.Title, e.Venue, e.City, e.Category, e.BasePrice, e.StartsAt, e.Image, e.Description,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

// OrderRefCounts reports how many orders reference any tier of the event,
// and how many of those are confirmed. The catalog service uses it to
// enforce the delete policy.
func (r *CatalogRepo) OrderRefCounts(ctx context.Context, eventID int64) (total, confirmed int64, err error) {
	const op = "postgres.CatalogRepo.OrderRefCounts"

	db := r.handle()

	err = db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT o.id),
            	COUNT(DISTINCT o.id) FILTER (WHERE o.status = 'confirmed')
       	 FROM orders o
       	 JOIN order_items oi ON oi.order_id = o.id
       	 JOIN ticket_tiers t ON t.id = oi.tier_id
      	 WHERE t.event_id = $1`,
		eventID,
	).Scan(&total, &confirmed)
	if err != nil {
		return 0, 0, wrapDBErr(op, err)
	}

	return total, confirmed, nil
}

// DeleteEvent removes the event and its tiers in one transaction. When
// cascade is true it also removes non-confirmed orders whose items
// reference those tiers. Confirmed orders always block the delete.
func (r *CatalogRepo) DeleteEvent(ctx context.Context, eventID int64, cascade bool) error {
	const op = "postgres.CatalogRepo.DeleteEvent"

	if r.db != nil {
		if err := r.deleteEventCore(ctx, eventID, cascade); err != nil {
			return fmt.Errorf("%s: %w", op, translateDBErr(err))
		}
		return nil
	}

	err := r.store.RunSerialTx(ctx, func(ctx context.Context, tx DB) error {
		return r.With(tx).deleteEventCore(ctx, eventID, cascade)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return nil
}

func (r *CatalogRepo) deleteEventCore(ctx context.Context, eventID int64, cascade bool) error {
	db := r.handle()

	var confirmed int64
	if err := db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT o.id)
       	 FROM orders o
       	 JOIN order_items oi ON oi.order_id = o.id
       	 JOIN ticket_tiers t ON t.id = oi.tier_id
      	 WHERE t.event_id = $1 AND o.status = 'confirmed'`,
		eventID,
	).Scan(&confirmed); err != nil {
		return err
	}
	if confirmed > 0 {
		return repository.ErrEventReferenced
	}

	if cascade {
		if _, err := db.Exec(ctx,
			`DELETE FROM orders o
          	 USING order_items oi, ticket_tiers t
      	 	 WHERE oi.order_id = o.id
        	   AND t.id = oi.tier_id
        	   AND t.event_id = $1`,
			eventID,
		); err != nil {
			return err
		}
	}

	if _, err := db.Exec(ctx, `DELETE FROM ticket_tiers WHERE event_id = $1`, eventID); err != nil {
		return err
	}

	tag, err := db.Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

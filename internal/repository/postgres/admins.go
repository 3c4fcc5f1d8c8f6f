package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRepo struct {
	pool *pgxpool.Pool
}

// RoleByUserID returns the admin role assigned to the user, if any.
//
// Returns:
//   - error: repository.ErrNotFound when the user has no admin record.
func (r *AdminRepo) RoleByUserID(ctx context.Context, userID string) (string, error) {
	const op = "postgres.AdminRepo.RoleByUserID"

	var role string
	if err := r.pool.QueryRow(ctx,
		`SELECT role FROM admin_users WHERE user_id = $1`,
		userID,
	).Scan(&role); err != nil {
		return "", wrapDBErr(op, err)
	}

	return role, nil
}

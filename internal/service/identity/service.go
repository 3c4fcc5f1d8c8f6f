package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/eloisazulbaran123-dev/tuboletapass/internal/domain"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/repository"
)

// RoleAdmin is the role the admin surface requires. Both stored admin
// roles (admin, superadmin) satisfy it.
const RoleAdmin = "admin"

// RoleStore resolves elevated roles. The identity provider itself is
// external; only the role assignment table is ours.
type RoleStore interface {
	RoleByUserID(ctx context.Context, userID string) (string, error)
}

type Config struct {
	// Secret verifies HS256 access tokens issued by the identity
	// provider.
	Secret []byte
}

// Service is the boundary to the external identity provider: it turns a
// bearer token into a Principal and answers role checks. Sessions,
// sign-in and password flows live on the provider side and are out of
// scope here.
type Service struct {
	roles RoleStore
	cfg   Config
}

func New(roles RoleStore, cfg Config) *Service {
	return &Service{roles: roles, cfg: cfg}
}

// PrincipalFromToken verifies the raw access token and builds the
// request principal, including any elevated roles assigned to the user.
//
// Returns:
//   - *domain.Principal: the authenticated identity.
//   - error: identity.ErrNoToken when raw is empty,
//     identity.ErrInvalidToken when verification fails.
func (s *Service) PrincipalFromToken(ctx context.Context, raw string) (*domain.Principal, error) {
	const op = "service.identity.PrincipalFromToken"

	if raw == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoToken)
	}

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.cfg.Secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	p := &domain.Principal{ID: sub}
	p.Email, _ = claims["email"].(string)
	p.Name, _ = claims["name"].(string)
	p.Phone, _ = claims["phone"].(string)

	role, err := s.roles.RoleByUserID(ctx, sub)
	switch {
	case err == nil:
		if role == "admin" || role == "superadmin" {
			p.Roles = append(p.Roles, RoleAdmin)
		}
	case errors.Is(err, repository.ErrNotFound):
		// plain customer, no elevated roles
	default:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

// RequireRole checks that the principal carries the role.
//
// Returns:
//   - error: identity.ErrForbidden when it does not.
func (s *Service) RequireRole(p *domain.Principal, role string) error {
	const op = "service.identity.RequireRole"

	if p == nil || !p.HasRole(role) {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	return nil
}

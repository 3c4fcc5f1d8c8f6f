package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eloisazulbaran123-dev/tuboletapass/internal/domain"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/repository"
)

// Default tier provisioning: every event becomes sellable immediately,
// without manual tier setup.
const (
	tierGeneral = "General"
	tierVIP     = "VIP"
	tierPlatea  = "Platea"

	capGeneral = 100
	capVIP     = 50
	capPlatea  = 75
)

type TierStore interface {
	CreateTiers(ctx context.Context, tiers []domain.TicketTier) ([]domain.TicketTier, error)
	TiersByEvent(ctx context.Context, eventID int64) ([]domain.TicketTier, error)
	TiersByIDs(ctx context.Context, ids []int64) ([]domain.TicketTier, error)
	Reserve(ctx context.Context, tierID int64, qty int) error
	Release(ctx context.Context, tierID int64, qty int) error
}

// Service is the inventory ledger. It is the sole mutation point for a
// tier's available count; the store's Reserve is a single conditional
// decrement, never a read-then-write pair.
type Service struct {
	store TierStore
}

func New(store TierStore) *Service {
	return &Service{store: store}
}

// Reserve atomically takes qty units from the tier.
//
// Returns:
//   - error: inventory.InsufficientStockError when fewer than qty remain.
//   - error: inventory.ErrTierNotFound when the tier does not exist.
func (s *Service) Reserve(ctx context.Context, tierID int64, qty int) error {
	const op = "service.inventory.Reserve"

	if qty <= 0 {
		return fmt.Errorf("%s: %w", op, ErrBadQuantity)
	}

	if err := s.store.Reserve(ctx, tierID, qty); err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return fmt.Errorf("%s: %w", op, InsufficientStockError{TierID: tierID})
		}
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrTierNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Release returns qty units to the tier. The store caps available at
// the tier's total, so releasing can never overfill capacity.
func (s *Service) Release(ctx context.Context, tierID int64, qty int) error {
	const op = "service.inventory.Release"

	if qty <= 0 {
		return fmt.Errorf("%s: %w", op, ErrBadQuantity)
	}

	if err := s.store.Release(ctx, tierID, qty); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrTierNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DefaultTiers builds the three standard tiers for an event priced off
// its base price: General at the base price, VIP at twice it, Platea at
// 1.5× rounded to whole pesos.
func DefaultTiers(eventID, basePrice int64) []domain.TicketTier {
	platea := decimal.NewFromInt(basePrice).
		Mul(decimal.NewFromFloat(1.5)).
		Round(0).
		IntPart()

	return []domain.TicketTier{
		{EventID: eventID, Type: tierGeneral, Price: basePrice, Total: capGeneral, Available: capGeneral},
		{EventID: eventID, Type: tierVIP, Price: 2 * basePrice, Total: capVIP, Available: capVIP},
		{EventID: eventID, Type: tierPlatea, Price: platea, Total: capPlatea, Available: capPlatea},
	}
}

// CreateDefaultTiers provisions the standard three tiers for the event
// and returns them with assigned IDs.
func (s *Service) CreateDefaultTiers(ctx context.Context, eventID, basePrice int64) ([]domain.TicketTier, error) {
	const op = "service.inventory.CreateDefaultTiers"

	created, err := s.store.CreateTiers(ctx, DefaultTiers(eventID, basePrice))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return created, nil
}

func (s *Service) TiersByEvent(ctx context.Context, eventID int64) ([]domain.TicketTier, error) {
	const op = "service.inventory.TiersByEvent"

	tiers, err := s.store.TiersByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tiers, nil
}

// TiersByIDs returns the referenced tiers keyed by ID. Every requested
// ID must exist; a missing one fails the whole lookup.
func (s *Service) TiersByIDs(ctx context.Context, ids []int64) (map[int64]domain.TicketTier, error) {
	const op = "service.inventory.TiersByIDs"

	tiers, err := s.store.TiersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	byID := make(map[int64]domain.TicketTier, len(tiers))
	for _, t := range tiers {
		byID[t.ID] = t
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%s: tier %d: %w", op, id, ErrTierNotFound)
		}
	}

	return byID, nil
}

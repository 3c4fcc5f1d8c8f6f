package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eloisazulbaran123-dev/tuboletapass/internal/domain"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/repository"
	redisrepo "github.com/eloisazulbaran123-dev/tuboletapass/internal/repository/redis"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/uow"
)

type OrderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
	CountsByStatus(ctx context.Context) (*domain.OrderCounts, error)
}

// Ledger is the inventory side of confirmation. Reserve must be atomic
// at the storage layer; the lifecycle manager builds its all-or-nothing
// guarantee on top of that.
type Ledger interface {
	Reserve(ctx context.Context, tierID int64, qty int) error
	Release(ctx context.Context, tierID int64, qty int) error
	TiersByIDs(ctx context.Context, ids []int64) (map[int64]domain.TicketTier, error)
}

type Config struct {
	// FeeRate is the service-fee fraction applied to the subtotal.
	// Zero means no fee; the configuration layer supplies the default.
	FeeRate decimal.Decimal
	// MaxCreateAttempts bounds order-number regeneration on collision.
	MaxCreateAttempts int
}

// Service owns order records and the status machine governing them.
// Inventory is touched only at confirmation; an order sitting pending
// reserves nothing, so stock can be taken by someone else in the
// meantime. That window is a documented property of the checkout flow,
// not an oversight.
type Service struct {
	store  OrderStore
	ledger Ledger
	cache  *redisrepo.Cache
	pubsub *redisrepo.OrdersPubSub
	cfg    Config
}

func New(
	store OrderStore,
	ledger Ledger,
	cache *redisrepo.Cache,
	pubsub *redisrepo.OrdersPubSub,
	cfg Config,
) *Service {
	if cfg.MaxCreateAttempts <= 0 {
		cfg.MaxCreateAttempts = 3
	}

	return &Service{
		store:  store,
		ledger: ledger,
		cache:  cache,
		pubsub: pubsub,
		cfg:    cfg,
	}
}

// Create validates and persists a pending order. Unit prices and totals
// are recomputed from the current tier prices; whatever amounts the
// client submitted are discarded. Inventory is not touched.
//
// Parameters:
//   - ctx: request-scoped context.
//   - buyer: the purchasing identity; email is required.
//   - items: line items carrying tier ID and quantity.
//   - pay: payment variant; a transfer without a reference gets one
//     generated.
//
// Returns:
//   - *domain.Order: the persisted order, status pending.
//   - error: orders.ErrNoItems, orders.ErrBadQuantity,
//     orders.ErrMissingBuyer, a payment validation error, or
//     inventory's not-found error when a tier does not exist.
func (s *Service) Create(
	ctx context.Context,
	buyer domain.Buyer,
	items []domain.OrderItem,
	pay domain.Payment,
) (*domain.Order, error) {
	const op = "service.orders.Create"

	if len(items) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoItems)
	}

	if buyer.Email == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingBuyer)
	}

	// Merge duplicate tier references so the reservation sequence at
	// confirmation sees each tier exactly once.
	merged := make([]domain.OrderItem, 0, len(items))
	idx := map[int64]int{}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%s: %w", op, ErrBadQuantity)
		}
		if i, ok := idx[it.TierID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		idx[it.TierID] = len(merged)
		merged = append(merged, domain.OrderItem{TierID: it.TierID, Quantity: it.Quantity})
	}

	if pay.Method == domain.PaymentTransfer && pay.Reference == "" {
		pay.Reference = GenerateReference()
	}
	if err := pay.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ids := make([]int64, len(merged))
	for i, it := range merged {
		ids[i] = it.TierID
	}

	tiers, err := s.ledger.TiersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range merged {
		merged[i].UnitPrice = tiers[merged[i].TierID].Price
	}

	o := &domain.Order{
		ID:      uuid.New(),
		Buyer:   buyer,
		Items:   merged,
		Payment: pay,
		Status:  domain.OrderPending,
	}
	domain.Price(o, s.cfg.FeeRate)

	for attempt := 0; attempt < s.cfg.MaxCreateAttempts; attempt++ {
		o.Number = GenerateNumber()
		err = s.store.Create(ctx, o)
		if err == nil {
			if s.pubsub != nil {
				_ = s.pubsub.PublishOrderChanged(ctx, o.ID.String(), string(o.Status))
			}
			return o, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil, fmt.Errorf("%s: %w", op, ErrNumberCollision)
}

// Confirm transitions a pending order to confirmed, reserving stock for
// every line item on the way. The operation is all-or-nothing: a failed
// reservation releases everything taken in this attempt and leaves the
// order pending; a lost status race releases everything and reports an
// illegal transition. Only after all reservations hold does the status
// flip, via a conditional update that at most one caller can win.
//
// Returns:
//   - *domain.Order: the confirmed order.
//   - error: orders.ErrOrderNotFound, orders.ErrInvalidTransition, or
//     inventory.InsufficientStockError carrying the starved tier ID.
func (s *Service) Confirm(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	const op = "service.orders.Confirm"

	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !o.Status.CanTransitionTo(domain.OrderConfirmed) {
		return nil, fmt.Errorf("%s: %s: %w", op, o.Status, ErrInvalidTransition)
	}

	u := uow.New()

	for _, it := range o.Items {
		it := it
		u.Step(
			func(ctx context.Context) error {
				return s.ledger.Reserve(ctx, it.TierID, it.Quantity)
			},
			func(ctx context.Context) {
				_ = s.ledger.Release(ctx, it.TierID, it.Quantity)
			},
		)
	}

	u.Step(
		func(ctx context.Context) error {
			err := s.store.TransitionStatus(ctx, o.ID, domain.OrderPending, domain.OrderConfirmed)
			if errors.Is(err, repository.ErrStatusChanged) {
				return ErrInvalidTransition
			}
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		},
		nil,
	)

	u.After(func(ctx context.Context) {
		s.invalidateTierEvents(ctx, o.Items)
		if s.pubsub != nil {
			_ = s.pubsub.PublishOrderChanged(ctx, o.ID.String(), string(domain.OrderConfirmed))
		}
	})

	if err := u.Run(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	o.Status = domain.OrderConfirmed
	return o, nil
}

// Reject transitions a pending order to rejected. Nothing was reserved
// for a pending order, so inventory is never touched.
//
// Returns:
//   - *domain.Order: the rejected order.
//   - error: orders.ErrOrderNotFound or orders.ErrInvalidTransition.
func (s *Service) Reject(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	const op = "service.orders.Reject"

	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !o.Status.CanTransitionTo(domain.OrderRejected) {
		return nil, fmt.Errorf("%s: %s: %w", op, o.Status, ErrInvalidTransition)
	}

	if err := s.store.TransitionStatus(ctx, o.ID, domain.OrderPending, domain.OrderRejected); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidTransition)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.pubsub != nil {
		_ = s.pubsub.PublishOrderChanged(ctx, o.ID.String(), string(domain.OrderRejected))
	}

	o.Status = domain.OrderRejected
	return o, nil
}

func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	const op = "service.orders.Get"

	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return o, nil
}

// List returns orders newest-first, narrowed by the filter.
func (s *Service) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	const op = "service.orders.List"

	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%s: %q: %w", op, f.Status, ErrBadStatusFilter)
	}

	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Stats returns order counts by status for the admin dashboard.
func (s *Service) Stats(ctx context.Context) (*domain.OrderCounts, error) {
	const op = "service.orders.Stats"

	c, err := s.store.CountsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return c, nil
}

// invalidateTierEvents drops cached availability for every event whose
// tiers this order touched.
func (s *Service) invalidateTierEvents(ctx context.Context, items []domain.OrderItem) {
	if s.cache == nil {
		return
	}

	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.TierID
	}

	tiers, err := s.ledger.TiersByIDs(ctx, ids)
	if err != nil {
		return
	}

	seen := map[int64]bool{}
	for _, t := range tiers {
		if !seen[t.EventID] {
			seen[t.EventID] = true
			_ = s.cache.InvalidateEvent(ctx, t.EventID)
		}
	}
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eloisazulbaran123-dev/tuboletapass/internal/domain"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/repository"
	redisrepo "github.com/eloisazulbaran123-dev/tuboletapass/internal/repository/redis"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/uow"
)

type EventStore interface {
	CreateEvent(ctx context.Context, e *domain.Event) (int64, error)
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
	ListEvents(ctx context.Context, city, category string) ([]domain.Event, error)
	UpdateEvent(ctx context.Context, e *domain.Event) error
	DeleteEvent(ctx context.Context, id int64, cascade bool) error
	OrderRefCounts(ctx context.Context, eventID int64) (total, confirmed int64, err error)
}

// Ledger is the slice of the inventory ledger the catalog needs:
// default tier provisioning on event creation, and tier reads.
type Ledger interface {
	CreateDefaultTiers(ctx context.Context, eventID, basePrice int64) ([]domain.TicketTier, error)
	TiersByEvent(ctx context.Context, eventID int64) ([]domain.TicketTier, error)
}

type Config struct {
	// CascadeDelete permits deleting an event that non-confirmed orders
	// reference, removing those orders with it. Confirmed orders always
	// block deletion regardless of this setting.
	CascadeDelete bool

	SummaryTTL time.Duration
	TiersTTL   time.Duration
	ListTTL    time.Duration
}

type Service struct {
	store  EventStore
	ledger Ledger
	cache  *redisrepo.Cache
	cfg    Config
}

func New(store EventStore, ledger Ledger, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = 60 * time.Second
	}

	if cfg.TiersTTL <= 0 {
		cfg.TiersTTL = 15 * time.Second
	}

	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 30 * time.Second
	}

	return &Service{
		store:  store,
		ledger: ledger,
		cache:  cache,
		cfg:    cfg,
	}
}

// CreateEvent persists the event and provisions its three default
// tiers. If provisioning fails the event is removed again; an event
// without sellable tiers never becomes visible.
//
// Returns:
//   - *domain.Event: the created event.
//   - []domain.TicketTier: the provisioned default tiers.
//   - error: catalog.ErrInvalidEvent on missing fields.
func (s *Service) CreateEvent(ctx context.Context, e *domain.Event) (*domain.Event, []domain.TicketTier, error) {
	const op = "service.catalog.CreateEvent"

	if e.Title == "" || e.Venue == "" || e.City == "" || e.BasePrice <= 0 {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidEvent)
	}

	var tiers []domain.TicketTier

	u := uow.New()

	u.Step(
		func(ctx context.Context) error {
			id, err := s.store.CreateEvent(ctx, e)
			if err != nil {
				return err
			}
			e.ID = id
			return nil
		},
		func(ctx context.Context) {
			_ = s.store.DeleteEvent(ctx, e.ID, true)
		},
	)

	u.Step(
		func(ctx context.Context) error {
			created, err := s.ledger.CreateDefaultTiers(ctx, e.ID, e.BasePrice)
			if err != nil {
				return err
			}
			tiers = created
			return nil
		},
		nil,
	)

	u.After(func(ctx context.Context) {
		if s.cache != nil {
			_ = s.cache.InvalidateEvent(ctx, e.ID)
		}
	})

	if err := u.Run(ctx); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return e, tiers, nil
}

// GetEvent retrieves an event by ID through the cache.
//
// Returns:
//   - error: catalog.ErrEventNotFound when the event does not exist.
func (s *Service) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "service.catalog.GetEvent"

	if s.cache == nil {
		e, err := s.store.GetEvent(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%s: %w", op, ErrEventNotFound)
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return e, nil
	}

	event, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyEventSummary(id),
		s.cfg.SummaryTTL,
		func(ctx context.Context) (domain.Event, error) {
			e, err := s.store.GetEvent(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Event{}, ErrEventNotFound
				}
				return domain.Event{}, err
			}
			return *e, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &event, nil
}

// ListEvents returns events newest-first, optionally filtered by city
// and category.
func (s *Service) ListEvents(ctx context.Context, city, category string) ([]domain.Event, error) {
	const op = "service.catalog.ListEvents"

	if s.cache == nil {
		out, err := s.store.ListEvents(ctx, city, category)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return out, nil
	}

	out, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyEventList(city, category),
		s.cfg.ListTTL,
		func(ctx context.Context) ([]domain.Event, error) {
			return s.store.ListEvents(ctx, city, category)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// TiersByEvent returns the event's ticket tiers cheapest-first through
// the cache. Availability counts go stale for at most TiersTTL;
// order confirmation invalidates them sooner.
func (s *Service) TiersByEvent(ctx context.Context, eventID int64) ([]domain.TicketTier, error) {
	const op = "service.catalog.TiersByEvent"

	if s.cache == nil {
		tiers, err := s.ledger.TiersByEvent(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return tiers, nil
	}

	tiers, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyEventTiers(eventID),
		s.cfg.TiersTTL,
		func(ctx context.Context) ([]domain.TicketTier, error) {
			return s.ledger.TiersByEvent(ctx, eventID)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tiers, nil
}

// UpdateEvent rewrites the event's display fields.
//
// Returns:
//   - error: catalog.ErrEventNotFound when the event does not exist.
func (s *Service) UpdateEvent(ctx context.Context, e *domain.Event) error {
	const op = "service.catalog.UpdateEvent"

	if e.Title == "" || e.Venue == "" || e.City == "" || e.BasePrice <= 0 {
		return fmt.Errorf("%s: %w", op, ErrInvalidEvent)
	}

	if err := s.store.UpdateEvent(ctx, e); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		_ = s.cache.InvalidateEvent(ctx, e.ID)
	}

	return nil
}

// DeleteEvent removes an event. Confirmed orders referencing its tiers
// always block the delete; other referencing orders block it unless the
// cascade policy is enabled, in which case they are removed with it.
//
// Returns:
//   - error: catalog.ErrEventHasConfirmedOrders or
//     catalog.ErrEventHasOrders when the delete policy refuses.
//   - error: catalog.ErrEventNotFound when the event does not exist.
func (s *Service) DeleteEvent(ctx context.Context, eventID int64) error {
	const op = "service.catalog.DeleteEvent"

	total, confirmed, err := s.store.OrderRefCounts(ctx, eventID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if confirmed > 0 {
		return fmt.Errorf("%s: %w", op, ErrEventHasConfirmedOrders)
	}
	if total > 0 && !s.cfg.CascadeDelete {
		return fmt.Errorf("%s: %w", op, ErrEventHasOrders)
	}

	if err := s.store.DeleteEvent(ctx, eventID, s.cfg.CascadeDelete); err != nil {
		// The repository re-checks under its own transaction; a confirm
		// racing the delete surfaces here.
		if errors.Is(err, repository.ErrEventReferenced) {
			return fmt.Errorf("%s: %w", op, ErrEventHasConfirmedOrders)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		_ = s.cache.InvalidateEvent(ctx, eventID)
	}

	return nil
}

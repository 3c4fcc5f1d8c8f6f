package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eloisazulbaran123-dev/tuboletapass/internal/domain"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/repository"
)

// fakeTierStore mimics the atomic conditional decrement the SQL store
// performs: Reserve either takes the full quantity or fails without
// changing anything.
type fakeTierStore struct {
	mu     sync.Mutex
	nextID int64
	tiers  map[int64]*domain.TicketTier
}

func newFakeTierStore() *fakeTierStore {
	return &fakeTierStore{tiers: map[int64]*domain.TicketTier{}}
}

func (f *fakeTierStore) CreateTiers(_ context.Context, tiers []domain.TicketTier) ([]domain.TicketTier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.TicketTier, len(tiers))
	for i, t := range tiers {
		f.nextID++
		t.ID = f.nextID
		f.tiers[t.ID] = &t
		out[i] = t
	}
	return out, nil
}

func (f *fakeTierStore) GetTier(_ context.Context, id int64) (*domain.TicketTier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tiers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTierStore) TiersByEvent(_ context.Context, eventID int64) ([]domain.TicketTier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.TicketTier
	for _, t := range f.tiers {
		if t.EventID == eventID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTierStore) TiersByIDs(_ context.Context, ids []int64) ([]domain.TicketTier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.TicketTier
	for _, id := range ids {
		if t, ok := f.tiers[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTierStore) Reserve(_ context.Context, tierID int64, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tiers[tierID]
	if !ok {
		return repository.ErrNotFound
	}
	if t.Available < qty {
		return repository.ErrInsufficientStock
	}
	t.Available -= qty
	return nil
}

func (f *fakeTierStore) Release(_ context.Context, tierID int64, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tiers[tierID]
	if !ok {
		return repository.ErrNotFound
	}
	t.Available += qty
	if t.Available > t.Total {
		t.Available = t.Total
	}
	return nil
}

func TestDefaultTiers(t *testing.T) {
	tiers := DefaultTiers(7, 50_000)

	require.Len(t, tiers, 3)

	assert.Equal(t, "General", tiers[0].Type)
	assert.Equal(t, int64(50_000), tiers[0].Price)
	assert.Equal(t, 100, tiers[0].Total)
	assert.Equal(t, 100, tiers[0].Available)

	assert.Equal(t, "VIP", tiers[1].Type)
	assert.Equal(t, int64(100_000), tiers[1].Price)
	assert.Equal(t, 50, tiers[1].Total)

	assert.Equal(t, "Platea", tiers[2].Type)
	assert.Equal(t, int64(75_000), tiers[2].Price)
	assert.Equal(t, 75, tiers[2].Total)

	for _, tier := range tiers {
		assert.Equal(t, int64(7), tier.EventID)
		assert.Equal(t, tier.Total, tier.Available)
	}
}

func TestDefaultTiers_PlateaRoundsToWholePesos(t *testing.T) {
	// 33333 * 1.5 = 49999.5, rounds half away from zero to 50000
	tiers := DefaultTiers(1, 33_333)
	assert.Equal(t, int64(50_000), tiers[2].Price)
}

func TestService_Reserve(t *testing.T) {
	store := newFakeTierStore()
	svc := New(store)
	ctx := context.Background()

	created, err := store.CreateTiers(ctx, []domain.TicketTier{
		{EventID: 1, Type: "General", Price: 50_000, Total: 2, Available: 2},
	})
	require.NoError(t, err)
	tierID := created[0].ID

	require.NoError(t, svc.Reserve(ctx, tierID, 2))

	got, err := store.GetTier(ctx, tierID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Available)
}

func TestService_Reserve_InsufficientStock(t *testing.T) {
	store := newFakeTierStore()
	svc := New(store)
	ctx := context.Background()

	created, err := store.CreateTiers(ctx, []domain.TicketTier{
		{EventID: 1, Type: "VIP", Price: 100_000, Total: 1, Available: 1},
	})
	require.NoError(t, err)
	tierID := created[0].ID

	err = svc.Reserve(ctx, tierID, 2)

	var stock InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, tierID, stock.TierID)

	// nothing was taken
	got, err := store.GetTier(ctx, tierID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Available)
}

func TestService_Reserve_TierNotFound(t *testing.T) {
	svc := New(newFakeTierStore())

	err := svc.Reserve(context.Background(), 404, 1)
	assert.ErrorIs(t, err, ErrTierNotFound)
}

func TestService_Reserve_BadQuantity(t *testing.T) {
	svc := New(newFakeTierStore())

	assert.ErrorIs(t, svc.Reserve(context.Background(), 1, 0), ErrBadQuantity)
	assert.ErrorIs(t, svc.Reserve(context.Background(), 1, -3), ErrBadQuantity)
}

func TestService_Release_CappedAtTotal(t *testing.T) {
	store := newFakeTierStore()
	svc := New(store)
	ctx := context.Background()

	created, err := store.CreateTiers(ctx, []domain.TicketTier{
		{EventID: 1, Type: "General", Price: 50_000, Total: 10, Available: 9},
	})
	require.NoError(t, err)
	tierID := created[0].ID

	require.NoError(t, svc.Release(ctx, tierID, 5))

	got, err := store.GetTier(ctx, tierID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Available)
}

func TestService_CreateDefaultTiers(t *testing.T) {
	store := newFakeTierStore()
	svc := New(store)

	tiers, err := svc.CreateDefaultTiers(context.Background(), 3, 40_000)
	require.NoError(t, err)
	require.Len(t, tiers, 3)

	for _, tier := range tiers {
		assert.NotZero(t, tier.ID)
		assert.Equal(t, int64(3), tier.EventID)
	}
}

func TestService_TiersByIDs_MissingTierFails(t *testing.T) {
	store := newFakeTierStore()
	svc := New(store)
	ctx := context.Background()

	created, err := store.CreateTiers(ctx, []domain.TicketTier{
		{EventID: 1, Type: "General", Price: 50_000, Total: 10, Available: 10},
	})
	require.NoError(t, err)

	_, err = svc.TiersByIDs(ctx, []int64{created[0].ID, 999})
	assert.ErrorIs(t, err, ErrTierNotFound)
}

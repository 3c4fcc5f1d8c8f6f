package httpgin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eloisazulbaran123-dev/tuboletapass/internal/domain"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/repository"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service/catalog"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service/identity"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service/inventory"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service/orders"
)

var testSecret = []byte("router-test-secret")

// memStore backs every repository port with one in-memory state so the
// full HTTP surface can be exercised without postgres.
type memStore struct {
	mu sync.Mutex

	nextEventID int64
	events      map[int64]*domain.Event

	nextTierID int64
	tiers      map[int64]*domain.TicketTier

	orders  map[uuid.UUID]*domain.Order
	numbers map[string]bool

	roles map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		events:  map[int64]*domain.Event{},
		tiers:   map[int64]*domain.TicketTier{},
		orders:  map[uuid.UUID]*domain.Order{},
		numbers: map[string]bool{},
		roles:   map[string]string{},
	}
}

// catalog.EventStore

func (m *memStore) CreateEvent(_ context.Context, e *domain.Event) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	cp := *e
	cp.ID = m.nextEventID
	m.events[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memStore) GetEvent(_ context.Context, id int64) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) ListEvents(_ context.Context, city, category string) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, e := range m.events {
		if city != "" && e.City != city {
			continue
		}
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (m *memStore) UpdateEvent(_ context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memStore) DeleteEvent(_ context.Context, id int64, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *memStore) OrderRefCounts(_ context.Context, eventID int64) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total, confirmed int64
	for _, o := range m.orders {
		for _, it := range o.Items {
			t, ok := m.tiers[it.TierID]
			if !ok || t.EventID != eventID {
				continue
			}
			total++
			if o.Status == domain.OrderConfirmed {
				confirmed++
			}
			break
		}
	}
	return total, confirmed, nil
}

// inventory.TierStore

func (m *memStore) CreateTiers(_ context.Context, tiers []domain.TicketTier) ([]domain.TicketTier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TicketTier, len(tiers))
	for i, t := range tiers {
		t := t
		m.nextTierID++
		t.ID = m.nextTierID
		m.tiers[t.ID] = &t
		out[i] = t
	}
	return out, nil
}

func (m *memStore) GetTier(_ context.Context, id int64) (*domain.TicketTier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tiers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) TiersByEvent(_ context.Context, eventID int64) ([]domain.TicketTier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TicketTier
	for _, t := range m.tiers {
		if t.EventID == eventID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) TiersByIDs(_ context.Context, ids []int64) ([]domain.TicketTier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TicketTier
	for _, id := range ids {
		if t, ok := m.tiers[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) Reserve(_ context.Context, tierID int64, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tiers[tierID]
	if !ok {
		return repository.ErrNotFound
	}
	if t.Available < qty {
		return repository.ErrInsufficientStock
	}
	t.Available -= qty
	return nil
}

func (m *memStore) Release(_ context.Context, tierID int64, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tiers[tierID]
	if !ok {
		return repository.ErrNotFound
	}
	t.Available += qty
	if t.Available > t.Total {
		t.Available = t.Total
	}
	return nil
}

// orders.OrderStore

func (m *memStore) Create(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.numbers[o.Number] {
		return repository.ErrConflict
	}
	m.numbers[o.Number] = true
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	m.orders[o.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *memStore) List(_ context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.BuyerID != "" && o.Buyer.UserID != f.BuyerID {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *memStore) TransitionStatus(_ context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	if o.Status != from {
		return repository.ErrStatusChanged
	}
	o.Status = to
	return nil
}

func (m *memStore) CountsByStatus(_ context.Context) (*domain.OrderCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &domain.OrderCounts{}
	for _, o := range m.orders {
		switch o.Status {
		case domain.OrderPending:
			c.Pending++
		case domain.OrderConfirmed:
			c.Confirmed++
		case domain.OrderRejected:
			c.Rejected++
		}
		c.Total++
	}
	return c, nil
}

// identity.RoleStore

func (m *memStore) RoleByUserID(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[userID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return role, nil
}

type testEnv struct {
	store  *memStore
	svcs   *service.Services
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	ledger := inventory.New(store)

	svcs := &service.Services{
		Catalog:   catalog.New(store, ledger, nil, catalog.Config{}),
		Inventory: ledger,
		Orders:    orders.New(store, ledger, nil, nil, orders.Config{FeeRate: decimal.NewFromFloat(0.05)}),
		Identity:  identity.New(store, identity.Config{Secret: testSecret}),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(svcs, nil, nil, logger)

	return &testEnv{store: store, svcs: svcs, router: router}
}

func (e *testEnv) seedEvent(t *testing.T) (*domain.Event, []domain.TicketTier) {
	t.Helper()
	ev, tiers, err := e.svcs.Catalog.CreateEvent(context.Background(), &domain.Event{
		Title:     "Festival Cordillera",
		Venue:     "Parque Simón Bolívar",
		City:      "Bogotá",
		Category:  "Festival",
		BasePrice: 50_000,
		StartsAt:  time.Now().Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	return ev, tiers
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)
	return raw
}

func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func checkoutBody(tierID int64, qty int) string {
	return fmt.Sprintf(`{
		"email": "ana@example.com",
		"name": "Ana",
		"items": [{"tier_id": %d, "quantity": %d}],
		"payment": {"method": "card", "card_last_four": "4242"}
	}`, tierID, qty)
}

func TestRouter_GuestCheckout(t *testing.T) {
	env := newTestEnv(t)
	_, tiers := env.seedEvent(t)

	w := env.do(http.MethodPost, "/orders", "", checkoutBody(tiers[0].ID, 2))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Status)
	assert.True(t, strings.HasPrefix(resp.Number, "TB-"))
	assert.Equal(t, int64(100_000), resp.Subtotal)
	assert.Equal(t, int64(105_000), resp.Total)
	assert.Equal(t, "$ 105.000", resp.TotalFormatted)

	// pending orders reserve nothing
	tier, err := env.store.GetTier(context.Background(), tiers[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 100, tier.Available)
}

func TestRouter_Checkout_TransferReferencePassthrough(t *testing.T) {
	env := newTestEnv(t)
	_, tiers := env.seedEvent(t)

	body := fmt.Sprintf(`{
		"email": "ana@example.com",
		"items": [{"tier_id": %d, "quantity": 1}],
		"payment": {"method": "transfer", "provider": "Bancolombia", "reference": "555123456"}
	}`, tiers[0].ID)

	w := env.do(http.MethodPost, "/orders", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "555123456", resp.Payment.Reference)
}

func TestRouter_Checkout_BadPayment(t *testing.T) {
	env := newTestEnv(t)
	_, tiers := env.seedEvent(t)

	body := fmt.Sprintf(`{
		"email": "ana@example.com",
		"items": [{"tier_id": %d, "quantity": 1}],
		"payment": {"method": "card", "card_last_four": "4242", "provider": "Nequi"}
	}`, tiers[0].ID)

	w := env.do(http.MethodPost, "/orders", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_GetEvent_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/events/999", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/events/not-a-number", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_AdminGuard(t *testing.T) {
	env := newTestEnv(t)
	env.store.roles["boss"] = "admin"

	// no token
	w := env.do(http.MethodGet, "/admin/stats", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// customer token
	w = env.do(http.MethodGet, "/admin/stats", env.token(t, "cust"), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// admin token
	w = env.do(http.MethodGet, "/admin/stats", env.token(t, "boss"), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ConfirmFlow(t *testing.T) {
	env := newTestEnv(t)
	env.store.roles["boss"] = "admin"
	_, tiers := env.seedEvent(t)
	admin := env.token(t, "boss")

	w := env.do(http.MethodPost, "/orders", "", checkoutBody(tiers[0].ID, 2))
	require.Equal(t, http.StatusCreated, w.Code)

	var created OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = env.do(http.MethodPost, "/admin/orders/"+created.ID+"/confirm", admin, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var confirmed OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &confirmed))
	assert.Equal(t, "confirmed", confirmed.Status)

	tier, err := env.store.GetTier(context.Background(), tiers[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 98, tier.Available)

	// confirming again is a conflict
	w = env.do(http.MethodPost, "/admin/orders/"+created.ID+"/confirm", admin, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter_Confirm_InsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	env.store.roles["boss"] = "admin"
	_, tiers := env.seedEvent(t)
	admin := env.token(t, "boss")

	// VIP tier has 50 seats; order 51
	vip := tiers[1]
	w := env.do(http.MethodPost, "/orders", "", checkoutBody(vip.ID, 51))
	require.Equal(t, http.StatusCreated, w.Code)

	var created OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = env.do(http.MethodPost, "/admin/orders/"+created.ID+"/confirm", admin, "")
	require.Equal(t, http.StatusConflict, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, vip.ID, resp.TierID)
}

func TestRouter_OrderVisibility(t *testing.T) {
	env := newTestEnv(t)
	env.store.roles["boss"] = "admin"
	_, tiers := env.seedEvent(t)

	ana := env.token(t, "ana")
	w := env.do(http.MethodPost, "/orders", ana, checkoutBody(tiers[0].ID, 1))
	require.Equal(t, http.StatusCreated, w.Code)

	var created OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// owner sees it
	w = env.do(http.MethodGet, "/orders/"+created.ID, ana, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// another customer gets a 404, not a 403
	w = env.do(http.MethodGet, "/orders/"+created.ID, env.token(t, "other"), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// admins see everything
	w = env.do(http.MethodGet, "/orders/"+created.ID, env.token(t, "boss"), "")
	assert.Equal(t, http.StatusOK, w.Code)

	// anonymous lookups are rejected
	w = env.do(http.MethodGet, "/orders/"+created.ID, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_ListOrders_ScopedToBuyer(t *testing.T) {
	env := newTestEnv(t)
	env.store.roles["boss"] = "admin"
	_, tiers := env.seedEvent(t)

	for _, user := range []string{"ana", "luis"} {
		w := env.do(http.MethodPost, "/orders", env.token(t, user), checkoutBody(tiers[0].ID, 1))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do(http.MethodGet, "/orders", env.token(t, "ana"), "")
	require.Equal(t, http.StatusOK, w.Code)
	var mine []OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	assert.Len(t, mine, 1)

	w = env.do(http.MethodGet, "/orders", env.token(t, "boss"), "")
	require.Equal(t, http.StatusOK, w.Code)
	var all []OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)
}

func TestRouter_AdminCreateEvent(t *testing.T) {
	env := newTestEnv(t)
	env.store.roles["boss"] = "admin"

	body := `{
		"title": "Rock al Parque",
		"venue": "Parque Simón Bolívar",
		"city": "Bogotá",
		"category": "Festival",
		"base_price": 80000,
		"starts_at": "2026-11-20T19:00:00-05:00"
	}`

	w := env.do(http.MethodPost, "/admin/events", env.token(t, "boss"), body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp CreateEventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotZero(t, resp.Event.ID)
	require.Len(t, resp.Tiers, 3)
	assert.Equal(t, int64(160_000), resp.Tiers[1].Price)
}

func TestRouter_DeleteEvent_BlockedByConfirmedOrder(t *testing.T) {
	env := newTestEnv(t)
	env.store.roles["boss"] = "admin"
	ev, tiers := env.seedEvent(t)
	admin := env.token(t, "boss")

	w := env.do(http.MethodPost, "/orders", "", checkoutBody(tiers[0].ID, 1))
	require.Equal(t, http.StatusCreated, w.Code)
	var created OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = env.do(http.MethodPost, "/admin/orders/"+created.ID+"/confirm", admin, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodDelete, fmt.Sprintf("/admin/events/%d", ev.ID), admin, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

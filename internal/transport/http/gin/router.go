package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/eloisazulbaran123-dev/tuboletapass/internal/domain"
	redisrepo "github.com/eloisazulbaran123-dev/tuboletapass/internal/repository/redis"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service/catalog"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service/identity"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service/inventory"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service/orders"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS(), AuthMiddleware(svcs.Identity))
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public catalog
	r.GET("/events", handleListEvents(svcs))
	r.GET("/events/:id", handleGetEvent(svcs))
	r.GET("/events/:id/tiers", handleListEventTiers(svcs))

	// Checkout and order lookup
	r.POST("/orders", handleCreateOrder(svcs, idem, limiter))
	r.GET("/orders", RequireAuth(), handleListOrders(svcs))
	r.GET("/orders/:id", RequireAuth(), handleGetOrder(svcs))

	// Admin console
	admin := r.Group("/admin", RequireRole(svcs.Identity, identity.RoleAdmin))
	{
		admin.POST("/events", handleAdminCreateEvent(svcs))
		admin.PUT("/events/:id", handleAdminUpdateEvent(svcs))
		admin.DELETE("/events/:id", handleAdminDeleteEvent(svcs))
		admin.POST("/orders/:id/confirm", handleAdminConfirmOrder(svcs))
		admin.POST("/orders/:id/reject", handleAdminRejectOrder(svcs))
		admin.GET("/stats", handleAdminStats(svcs))
	}

	return r
}

// --- Handlers ---

// @Summary  List events
// @Param    city      query  string  false "filter by city"
// @Param    category  query  string  false "filter by category"
// @Success  200  {array}  domain.Event
// @Router   /events [get]
func handleListEvents(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := svcs.Catalog.ListEvents(
			c.Request.Context(),
			c.Query("city"),
			c.Query("category"),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, events, "public, max-age=30", true)
	}
}

// @Summary  Get event
// @Param    id  path  int  true  "Event ID"
// @Success  200  {object}  domain.Event
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id} [get]
func handleGetEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		e, err := svcs.Catalog.GetEvent(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, e, "public, max-age=60", true)
	}
}

// @Summary  List an event's ticket tiers
// @Param    id  path  int  true  "Event ID"
// @Success  200  {array}  domain.TicketTier
// @Router   /events/{id}/tiers [get]
func handleListEventTiers(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		tiers, err := svcs.Catalog.TiersByEvent(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// availability changes often, keep the client cache short
		writeJSONWithCache(c, http.StatusOK, tiers, "public, max-age=15", true)
	}
}

// @Summary  Create order (idempotent checkout)
// @Param    req body  CreateOrderRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} OrderResponse
// @Failure  400 {object} ErrorResponse
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /orders [post]
func handleCreateOrder(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		buyer := domain.Buyer{
			Email: req.Email,
			Name:  req.Name,
			Phone: req.Phone,
		}
		// A signed-in buyer's identity wins over whatever the form says.
		if p := principalFrom(c); p != nil {
			buyer.UserID = p.ID
			if p.Email != "" {
				buyer.Email = p.Email
			}
		}

		idemOwner := buyer.UserID
		if idemOwner == "" {
			idemOwner = "ip:" + c.ClientIP()
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemOrder(idemOwner, idemKey)

			if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			}

			locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, 60*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		if limiter != nil {
			ok, _, retry, err := limiter.Allow(c.Request.Context(), "ip:"+c.ClientIP())
			if err != nil {
				respondErr(c, err)
				return
			}
			if !ok {
				if idemStorageKey != "" && idem != nil {
					_ = idem.Release(c.Request.Context(), idemStorageKey)
				}
				c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
				c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
				return
			}
		}

		items := make([]domain.OrderItem, len(req.Items))
		for i, it := range req.Items {
			items[i] = domain.OrderItem{TierID: it.TierID, Quantity: it.Quantity}
		}

		pay := domain.Payment{
			Method:       domain.PaymentMethod(req.Payment.Method),
			CardLastFour: req.Payment.CardLastFour,
			Provider:     req.Payment.Provider,
			Reference:    req.Payment.Reference,
		}

		o, err := svcs.Orders.Create(c.Request.Context(), buyer, items, pay)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := toOrderResponse(o)

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  List orders (own; admins see all and may filter by status)
// @Param    status  query  string  false "pending|confirmed|rejected"
// @Success  200 {array} OrderResponse
// @Router   /orders [get]
func handleListOrders(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principalFrom(c)

		f := domain.OrderFilter{
			Status: domain.OrderStatus(c.Query("status")),
		}
		if !p.HasRole(identity.RoleAdmin) {
			f.BuyerID = p.ID
		}

		list, err := svcs.Orders.List(c.Request.Context(), f)
		if err != nil {
			respondErr(c, err)
			return
		}

		out := make([]OrderResponse, len(list))
		for i := range list {
			out[i] = toOrderResponse(&list[i])
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Get order
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  200 {object} OrderResponse
// @Router   /orders/{id} [get]
func handleGetOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		o, err := svcs.Orders.Get(c.Request.Context(), orderID)
		if err != nil {
			respondErr(c, err)
			return
		}

		p := principalFrom(c)
		if !p.HasRole(identity.RoleAdmin) && o.Buyer.UserID != p.ID {
			// don't leak existence of other buyers' orders
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "order not found"})
			return
		}

		c.JSON(http.StatusOK, toOrderResponse(o))
	}
}

// @Summary  Create event with default tiers
// @Param    req body  CreateEventRequest true "payload"
// @Success  201 {object} CreateEventResponse
// @Router   /admin/events [post]
func handleAdminCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		starts, err := parseRFC3339(req.StartsAt)
		if err != nil {
			badRequest(c, "invalid starts_at (RFC3339)")
			return
		}

		e := &domain.Event{
			Title:       req.Title,
			Venue:       req.Venue,
			City:        req.City,
			Category:    req.Category,
			BasePrice:   req.BasePrice,
			StartsAt:    starts,
			Image:       req.Image,
			Description: req.Description,
		}

		created, tiers, err := svcs.Catalog.CreateEvent(c.Request.Context(), e)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateEventResponse{Event: *created, Tiers: tiers})
	}
}

// @Summary  Update event display fields
// @Param    id  path  int  true  "Event ID"
// @Param    req body  CreateEventRequest true "payload"
// @Success  200 {object} domain.Event
// @Router   /admin/events/{id} [put]
func handleAdminUpdateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		starts, err := parseRFC3339(req.StartsAt)
		if err != nil {
			badRequest(c, "invalid starts_at (RFC3339)")
			return
		}

		e := &domain.Event{
			ID:          eventID,
			Title:       req.Title,
			Venue:       req.Venue,
			City:        req.City,
			Category:    req.Category,
			BasePrice:   req.BasePrice,
			StartsAt:    starts,
			Image:       req.Image,
			Description: req.Description,
		}

		if err := svcs.Catalog.UpdateEvent(c.Request.Context(), e); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, e)
	}
}

// @Summary  Delete event
// @Param    id  path  int  true  "Event ID"
// @Success  204
// @Failure  409 {object} ErrorResponse "orders reference this event"
// @Router   /admin/events/{id} [delete]
func handleAdminDeleteEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Catalog.DeleteEvent(c.Request.Context(), eventID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Confirm order, reserving inventory
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  200 {object} OrderResponse
// @Failure  409 {object} ErrorResponse "insufficient stock / already decided"
// @Router   /admin/orders/{id}/confirm [post]
func handleAdminConfirmOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Orders.Confirm(c.Request.Context(), orderID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponse(o))
	}
}

// @Summary  Reject order
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  200 {object} OrderResponse
// @Router   /admin/orders/{id}/reject [post]
func handleAdminRejectOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Orders.Reject(c.Request.Context(), orderID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponse(o))
	}
}

// @Summary  Order counts by status
// @Success  200 {object} domain.OrderCounts
// @Router   /admin/stats [get]
func handleAdminStats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svcs.Orders.Stats(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var stock inventory.InsufficientStockError
	if errors.As(err, &stock) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:  "insufficient stock",
			TierID: stock.TierID,
		})
		return
	}

	switch {
	// catalog service
	case errors.Is(err, catalog.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
		return
	case errors.Is(err, catalog.ErrInvalidEvent):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "event is missing required fields"})
		return
	case errors.Is(err, catalog.ErrEventHasConfirmedOrders):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "confirmed orders reference this event"})
		return
	case errors.Is(err, catalog.ErrEventHasOrders):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "orders reference this event"})
		return
	// orders service
	case errors.Is(err, orders.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "order not found"})
		return
	case errors.Is(err, orders.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "order already decided"})
		return
	case errors.Is(err, orders.ErrNoItems),
		errors.Is(err, orders.ErrBadQuantity),
		errors.Is(err, orders.ErrMissingBuyer),
		errors.Is(err, orders.ErrBadStatusFilter),
		errors.Is(err, domain.ErrUnknownPaymentMethod),
		errors.Is(err, domain.ErrMixedPaymentFields),
		errors.Is(err, domain.ErrMissingPaymentFields):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	// inventory service
	case errors.Is(err, inventory.ErrTierNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ticket tier not found"})
		return
	// identity service
	case errors.Is(err, identity.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	case errors.Is(err, identity.ErrNoToken), errors.Is(err, identity.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

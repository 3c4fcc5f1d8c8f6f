package httpgin

import (
	"time"

	"github.com/eloisazulbaran123-dev/tuboletapass/internal/domain"
)

type OrderItemInput struct {
	TierID   int64 `json:"tier_id" binding:"required"`
	Quantity int   `json:"quantity" binding:"required,gt=0"`
}

type PaymentInput struct {
	Method       string `json:"method" binding:"required,oneof=card transfer"`
	CardLastFour string `json:"card_last_four,omitempty"`
	Provider     string `json:"provider,omitempty"`
	// Reference lets a transfer buyer submit their own payment
	// reference; left empty, one is generated.
	Reference string `json:"reference,omitempty"`
}

type CreateOrderRequest struct {
	Email   string           `json:"email" binding:"required,email"`
	Name    string           `json:"name"`
	Phone   string           `json:"phone"`
	Items   []OrderItemInput `json:"items" binding:"required,min=1,dive"`
	Payment PaymentInput     `json:"payment" binding:"required"`
}

type OrderItemResponse struct {
	TierID    int64 `json:"tier_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

type PaymentResponse struct {
	Method       string `json:"method"`
	CardLastFour string `json:"card_last_four,omitempty"`
	Provider     string `json:"provider,omitempty"`
	Reference    string `json:"reference,omitempty"`
}

type OrderResponse struct {
	ID                string              `json:"id"`
	Number            string              `json:"number"`
	Email             string              `json:"email"`
	Name              string              `json:"name,omitempty"`
	Phone             string              `json:"phone,omitempty"`
	Items             []OrderItemResponse `json:"items"`
	Subtotal          int64               `json:"subtotal"`
	ServiceFee        int64               `json:"service_fee"`
	Total             int64               `json:"total"`
	TotalFormatted    string              `json:"total_formatted"`
	SubtotalFormatted string              `json:"subtotal_formatted"`
	Payment           PaymentResponse     `json:"payment"`
	Status            string              `json:"status"`
	CreatedAt         time.Time           `json:"created_at"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			TierID:    it.TierID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}

	return OrderResponse{
		ID:                o.ID.String(),
		Number:            o.Number,
		Email:             o.Buyer.Email,
		Name:              o.Buyer.Name,
		Phone:             o.Buyer.Phone,
		Items:             items,
		Subtotal:          o.Subtotal,
		ServiceFee:        o.ServiceFee,
		Total:             o.Total,
		TotalFormatted:    FormatCOP(o.Total),
		SubtotalFormatted: FormatCOP(o.Subtotal),
		Payment: PaymentResponse{
			Method:       string(o.Payment.Method),
			CardLastFour: o.Payment.CardLastFour,
			Provider:     o.Payment.Provider,
			Reference:    o.Payment.Reference,
		},
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
	}
}

type CreateEventRequest struct {
	Title       string `json:"title" binding:"required"`
	Venue       string `json:"venue" binding:"required"`
	City        string `json:"city" binding:"required"`
	Category    string `json:"category"`
	BasePrice   int64  `json:"base_price" binding:"required,gt=0"`
	StartsAt    string `json:"starts_at" binding:"required"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

type CreateEventResponse struct {
	Event domain.Event        `json:"event"`
	Tiers []domain.TicketTier `json:"tiers"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	TierID int64  `json:"tier_id,omitempty"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

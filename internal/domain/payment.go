package domain

import "errors"

type PaymentMethod string

const (
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

var (
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrMixedPaymentFields   = errors.New("payment carries fields of another method")
	ErrMissingPaymentFields = errors.New("payment is missing required fields")
)

// Payment is a tagged variant: Method selects which of the remaining
// fields are meaningful. Card payments carry only the masked last four
// digits; transfer payments carry the provider and the generated
// payment reference.
type Payment struct {
	Method       PaymentMethod
	CardLastFour string
	Provider     string
	Reference    string
}

// Validate rejects payments whose field shape does not match the method.
func (p Payment) Validate() error {
	switch p.Method {
	case PaymentCard:
		if p.Provider != "" || p.Reference != "" {
			return ErrMixedPaymentFields
		}
		if len(p.CardLastFour) != 4 {
			return ErrMissingPaymentFields
		}
	case PaymentTransfer:
		if p.CardLastFour != "" {
			return ErrMixedPaymentFields
		}
		if p.Provider == "" {
			return ErrMissingPaymentFields
		}
	default:
		return ErrUnknownPaymentMethod
	}
	return nil
}

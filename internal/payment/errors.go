package payment

import (
	"fmt"

	"github.com/dukerupert/bazaar/internal/domain"
)

var (
	// ErrCancelled is returned when the shopper dismisses the widget or it times out.
	ErrCancelled = domain.Canceled("payment.widget", "Payment was cancelled. Your order is saved; you can try paying again.")

	// ErrNoAttempt is returned when a widget callback arrives with no payment waiting.
	ErrNoAttempt = domain.NotFound("payment.callback", "No payment is waiting for confirmation")

	// ErrOrderMismatch is returned when a callback names a different gateway order.
	ErrOrderMismatch = domain.Invalid("payment.callback", "Payment confirmation does not match this order")

	// ErrAttemptInProgress is returned when a widget is already open for the checkout.
	ErrAttemptInProgress = domain.Conflict("payment.widget", "A payment is already in progress")
)

// GatewayError wraps an error returned by a payment provider's API.
type GatewayError struct {
	Provider  string // "stripe"
	Message   string // Human-readable error message
	Code      string // Provider error code (e.g., "card_declined")
	RequestID string // Provider request ID for debugging
	Err       error
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsDeclined returns true if error is due to card decline.
func (e *GatewayError) IsDeclined() bool {
	return e.Code == "card_declined"
}

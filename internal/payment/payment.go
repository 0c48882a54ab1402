// Package payment bridges checkout to an external payment gateway.
//
// A payment runs in three steps: the Gateway creates a gateway order for the
// amount due, the Widget collects the shopper's payment against it, and the
// Gateway verifies the confirmation the widget produced. The order service
// drives these steps the same way whichever implementations are wired in.
package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Gateway creates gateway orders and verifies payment confirmations.
// Implementations: MarketplaceGateway (marketplace package), StripeGateway, MockGateway.
type Gateway interface {
	// CreateOrder registers the amount due with the gateway.
	CreateOrder(ctx context.Context, params CreateOrderParams) (*GatewayOrder, error)

	// Verify checks a confirmation. Only Verified == true means the payment completed.
	Verify(ctx context.Context, c Confirmation) (*Verification, error)
}

// Widget collects a payment from the shopper for a gateway order.
// Open blocks until the shopper pays, dismisses the widget, or ctx ends.
// Dismissal and timeout return ErrCancelled.
type Widget interface {
	Open(ctx context.Context, cfg WidgetConfig) (*Confirmation, error)
}

// CreateOrderParams is the gateway order request.
// Amount is in major currency units.
type CreateOrderParams struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Receipt  string          `json:"receipt"`
}

// GatewayOrder is the gateway's handle for a pending payment.
type GatewayOrder struct {
	ID       string          `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Confirmation is the payload a widget hands back after a successful payment.
type Confirmation struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
}

type Verification struct {
	Verified bool `json:"verified"`
}

// Receipt is the receipt reference sent with a gateway order for orderID.
func Receipt(orderID string) string {
	return "receipt_" + orderID
}

// Description is the human-readable widget line for orderID.
func Description(orderID string) string {
	return fmt.Sprintf("Order #%s", orderID)
}

// MinorUnits converts a major-unit amount to the gateway's smallest unit
// (paise, cents), rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// =============================================================================
// WIDGET CONFIGURATION
// =============================================================================

// Prefill is the contact data shown in the widget form.
type Prefill struct {
	Name    string `json:"name,omitempty"`
	Contact string `json:"contact,omitempty"`
}

type Theme struct {
	Color string `json:"color,omitempty"`
}

// WidgetConfig is the declarative configuration of the gateway's checkout overlay.
type WidgetConfig struct {
	// AttemptID ties a live widget callback to the checkout that opened it.
	AttemptID string `json:"-"`

	KeyID          string          `json:"key"`
	Amount         decimal.Decimal `json:"-"`
	AmountMinor    int64           `json:"amount"`
	Currency       string          `json:"currency"`
	Name           string          `json:"name,omitempty"`
	Description    string          `json:"description"`
	GatewayOrderID string          `json:"order_id"`
	Prefill        Prefill         `json:"prefill"`
	Theme          Theme           `json:"theme"`
}

// Mode selects how the widget step runs. It is fixed at startup.
type Mode string

const (
	// ModeSandbox simulates the widget. Nothing is charged.
	ModeSandbox Mode = "sandbox"
	// ModeLive hands the widget to the shopper's browser.
	ModeLive Mode = "live"
)

// ParseMode validates a configured mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSandbox, ModeLive:
		return Mode(s), nil
	}
	return "", fmt.Errorf("payment: unknown mode %q", s)
}

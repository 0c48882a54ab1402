package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// intentAPI is the slice of the Stripe Payment Intents API the gateway uses.
type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeGateway uses a Stripe PaymentIntent as the gateway order.
// The storefront confirms the intent with Stripe's client library and posts the
// intent id back; Verify then checks with Stripe that the intent succeeded.
type StripeGateway struct {
	intents intentAPI
}

// NewStripeGateway creates a gateway using the given secret key.
func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{
		intents: &paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
	}
}

// CreateOrder creates a PaymentIntent for the amount due.
// The receipt doubles as idempotency key so a repeated call cannot charge twice.
func (g *StripeGateway) CreateOrder(ctx context.Context, params CreateOrderParams) (*GatewayOrder, error) {
	p := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(MinorUnits(params.Amount)),
		Currency:    stripe.String(strings.ToLower(params.Currency)),
		Description: stripe.String(params.Receipt),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	p.Context = ctx
	p.AddMetadata("receipt", params.Receipt)
	p.SetIdempotencyKey(params.Receipt)

	pi, err := g.intents.New(p)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return &GatewayOrder{
		ID:       pi.ID,
		Amount:   decimal.New(pi.Amount, -2),
		Currency: strings.ToUpper(string(pi.Currency)),
	}, nil
}

// Verify reports whether the confirmed intent has succeeded.
// Stripe confirmations carry no signature; the intent status is authoritative.
func (g *StripeGateway) Verify(ctx context.Context, c Confirmation) (*Verification, error) {
	if c.OrderID == "" {
		return &Verification{Verified: false}, nil
	}

	p := &stripe.PaymentIntentParams{}
	p.Context = ctx

	pi, err := g.intents.Get(c.OrderID, p)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return &Verification{Verified: pi.Status == stripe.PaymentIntentStatusSucceeded}, nil
}

func wrapStripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &GatewayError{
			Provider:  "stripe",
			Message:   se.Msg,
			Code:      string(se.Code),
			RequestID: se.RequestID,
			Err:       err,
		}
	}
	return &GatewayError{Provider: "stripe", Message: err.Error(), Err: err}
}

package marketplace

import (
	"context"
	"net/http"

	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/dukerupert/bazaar/internal/payment"
)

// PaymentClient is the payment.Gateway backed by the marketplace's own
// payment endpoints, which front the real gateway and hold its secret.
type PaymentClient struct {
	c *Client
}

var _ payment.Gateway = (*PaymentClient)(nil)

// Payments returns the payment resource.
func (c *Client) Payments() *PaymentClient {
	return &PaymentClient{c: c}
}

func (pc *PaymentClient) CreateOrder(ctx context.Context, params payment.CreateOrderParams) (*payment.GatewayOrder, error) {
	var out struct {
		Order payment.GatewayOrder `json:"order"`
	}
	if err := pc.c.do(ctx, "payments.create_order", http.MethodPost, "/payments/create-order", params, &out); err != nil {
		return nil, err
	}
	if out.Order.ID == "" {
		return nil, domain.Internal(nil, "payments.create_order", "marketplace returned a gateway order without an id")
	}
	return &out.Order, nil
}

func (pc *PaymentClient) Verify(ctx context.Context, c payment.Confirmation) (*payment.Verification, error) {
	var out payment.Verification
	if err := pc.c.do(ctx, "payments.verify", http.MethodPost, "/payments/verify", c, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

package marketplace

import (
	"context"
	"net/http"

	"github.com/dukerupert/bazaar/internal/domain"
)

// OrderClient implements domain.OrderAPI.
type OrderClient struct {
	c *Client
}

var _ domain.OrderAPI = (*OrderClient)(nil)

// Orders returns the order resource.
func (c *Client) Orders() *OrderClient {
	return &OrderClient{c: c}
}

func (oc *OrderClient) Create(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	var out struct {
		Order domain.Order `json:"order"`
	}
	if err := oc.c.do(ctx, "orders.create", http.MethodPost, "/orders", req, &out); err != nil {
		return nil, err
	}
	if out.Order.ID == "" {
		return nil, domain.Internal(nil, "orders.create", "marketplace returned an order without an id")
	}
	return &out.Order, nil
}

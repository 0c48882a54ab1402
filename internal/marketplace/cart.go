package marketplace

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dukerupert/bazaar/internal/domain"
)

// CartClient implements domain.CartAPI.
type CartClient struct {
	c *Client
}

var _ domain.CartAPI = (*CartClient)(nil)

// Cart returns the cart resource.
func (c *Client) Cart() *CartClient {
	return &CartClient{c: c}
}

type cartResponse struct {
	Items []domain.CartLineItem `json:"items"`
}

func (cc *CartClient) List(ctx context.Context) ([]domain.CartLineItem, error) {
	var out cartResponse
	if err := cc.c.do(ctx, "cart.list", http.MethodGet, "/cart", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (cc *CartClient) AddItem(ctx context.Context, params domain.AddCartItemParams) ([]domain.CartLineItem, error) {
	var out cartResponse
	if err := cc.c.do(ctx, "cart.add_item", http.MethodPost, "/cart/items", params, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (cc *CartClient) UpdateQuantity(ctx context.Context, itemID string, quantity int) ([]domain.CartLineItem, error) {
	body := struct {
		Quantity int `json:"quantity"`
	}{quantity}

	var out cartResponse
	if err := cc.c.do(ctx, "cart.update_quantity", http.MethodPut, "/cart/items/"+url.PathEscape(itemID), body, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (cc *CartClient) RemoveItem(ctx context.Context, itemID string) ([]domain.CartLineItem, error) {
	var out cartResponse
	if err := cc.c.do(ctx, "cart.remove_item", http.MethodDelete, "/cart/items/"+url.PathEscape(itemID), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (cc *CartClient) Clear(ctx context.Context) error {
	return cc.c.do(ctx, "cart.clear", http.MethodDelete, "/cart", nil, nil)
}

package marketplace

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dukerupert/bazaar/internal/domain"
)

// WishlistClient implements domain.WishlistAPI.
type WishlistClient struct {
	c *Client
}

var _ domain.WishlistAPI = (*WishlistClient)(nil)

// Wishlist returns the wishlist resource.
func (c *Client) Wishlist() *WishlistClient {
	return &WishlistClient{c: c}
}

type wishlistResponse struct {
	Products []domain.ProductSnapshot `json:"products"`
}

func (wc *WishlistClient) List(ctx context.Context) ([]domain.ProductSnapshot, error) {
	var out wishlistResponse
	if err := wc.c.do(ctx, "wishlist.list", http.MethodGet, "/wishlist", nil, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

func (wc *WishlistClient) Add(ctx context.Context, productID string) ([]domain.ProductSnapshot, error) {
	body := struct {
		ProductID string `json:"productId"`
	}{productID}

	var out wishlistResponse
	if err := wc.c.do(ctx, "wishlist.add", http.MethodPost, "/wishlist", body, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

func (wc *WishlistClient) Remove(ctx context.Context, productID string) ([]domain.ProductSnapshot, error) {
	var out wishlistResponse
	if err := wc.c.do(ctx, "wishlist.remove", http.MethodDelete, "/wishlist/"+url.PathEscape(productID), nil, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

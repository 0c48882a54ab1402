package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CART DOMAIN ERRORS
// =============================================================================

var (
	ErrCartEmpty        = &Error{Code: ECONFLICT, Message: "Your cart is empty"}
	ErrCartItemNotFound = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrInvalidQuantity  = &Error{Code: EINVALID, Message: "Quantity must be at least 1"}
	ErrInvalidPrice     = &Error{Code: EINVALID, Message: "Price cannot be negative"}
)

// CartAPI is the remote marketplace cart resource.
// Every call is scoped to the shopper whose token travels in ctx.
type CartAPI interface {
	// List returns the shopper's cart line items.
	List(ctx context.Context) ([]CartLineItem, error)

	// AddItem adds a product from a seller, returning the updated line items.
	AddItem(ctx context.Context, params AddCartItemParams) ([]CartLineItem, error)

	// UpdateQuantity sets the quantity of a line item, returning the updated line items.
	UpdateQuantity(ctx context.Context, itemID string, quantity int) ([]CartLineItem, error)

	// RemoveItem removes a line item, returning the updated line items.
	RemoveItem(ctx context.Context, itemID string) ([]CartLineItem, error)

	// Clear empties the cart. A failed Clear leaves the cart unchanged.
	Clear(ctx context.Context) error
}

// AddCartItemParams identifies what to put in the cart.
type AddCartItemParams struct {
	ProductID string `json:"productId" validate:"required"`
	SellerID  string `json:"sellerId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

// ProductSnapshot is the product as it looked when it was added to the cart.
type ProductSnapshot struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Images    []string        `json:"images,omitempty"`
	ListPrice decimal.Decimal `json:"price"`
	Category  string          `json:"category,omitempty"`
}

// SellerSnapshot is the seller fulfilling a line item.
type SellerSnapshot struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// CartLineItem is one cart entry. The same product from two sellers is two line items.
// Price is the unit price captured at add time and may differ from Product.ListPrice.
type CartLineItem struct {
	ID                string          `json:"id"`
	Product           ProductSnapshot `json:"product"`
	Seller            SellerSnapshot  `json:"seller"`
	Quantity          int             `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
	EstimatedDelivery string          `json:"estimatedDelivery,omitempty"`
}

// Valid reports whether the line item may be submitted in an order.
func (i CartLineItem) Valid() error {
	if i.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if i.Price.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

// LineTotal is price × quantity.
func (i CartLineItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemCount sums quantities across line items, the number shown on the cart badge.
func ItemCount(items []CartLineItem) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

// =============================================================================
// WISHLIST
// =============================================================================

// WishlistAPI is the remote marketplace wishlist resource.
type WishlistAPI interface {
	List(ctx context.Context) ([]ProductSnapshot, error)
	Add(ctx context.Context, productID string) ([]ProductSnapshot, error)
	Remove(ctx context.Context, productID string) ([]ProductSnapshot, error)
}

package domain

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderAPI is the remote marketplace order resource.
type OrderAPI interface {
	// Create submits an order. The returned error carries a user-displayable message.
	Create(ctx context.Context, req OrderRequest) (*Order, error)
}

// OrderLine is the product/seller/quantity/price tuple sent for each cart line item.
type OrderLine struct {
	ProductID string          `json:"product"`
	SellerID  string          `json:"seller"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderRequest is the body of an order creation call.
type OrderRequest struct {
	Address       DeliveryAddress `json:"shippingAddress"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Items         []OrderLine     `json:"items"`
	Total         decimal.Decimal `json:"totalAmount"`
}

// NewOrderRequest maps cart line items onto an order request.
func NewOrderRequest(addr DeliveryAddress, method PaymentMethod, items []CartLineItem, total decimal.Decimal) OrderRequest {
	lines := make([]OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, OrderLine{
			ProductID: item.Product.ID,
			SellerID:  item.Seller.ID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return OrderRequest{
		Address:       addr,
		PaymentMethod: method,
		Items:         lines,
		Total:         total,
	}
}

// Order is a created order as returned by the marketplace.
type Order struct {
	ID string `json:"id"`
}

// OrderConfirmation tells the storefront where to go after a successful placement.
type OrderConfirmation struct {
	OrderID     string `json:"orderId"`
	RedirectURL string `json:"redirect"`
}

// ConfirmationURL is the storefront path of the order confirmation view.
func ConfirmationURL(orderID string) string {
	return fmt.Sprintf("/orders/%s/confirmation", orderID)
}

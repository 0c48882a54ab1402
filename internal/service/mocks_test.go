package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/shopspring/decimal"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockCartAPI implements domain.CartAPI for testing.
// Without overrides it serves Items and records every call.
type mockCartAPI struct {
	ListFunc  func(ctx context.Context) ([]domain.CartLineItem, error)
	ClearFunc func(ctx context.Context) error

	Items   []domain.CartLineItem
	CallLog []string
	mu      sync.Mutex
}

func (m *mockCartAPI) log(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, fmt.Sprintf(format, args...))
}

func (m *mockCartAPI) count(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.CallLog {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (m *mockCartAPI) List(ctx context.Context) ([]domain.CartLineItem, error) {
	m.log("List")
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return append([]domain.CartLineItem(nil), m.Items...), nil
}

func (m *mockCartAPI) AddItem(ctx context.Context, params domain.AddCartItemParams) ([]domain.CartLineItem, error) {
	m.log("AddItem(%s, %s, %d)", params.ProductID, params.SellerID, params.Quantity)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Items = append(m.Items, domain.CartLineItem{
		ID:       "ci_" + params.ProductID,
		Product:  domain.ProductSnapshot{ID: params.ProductID},
		Seller:   domain.SellerSnapshot{ID: params.SellerID},
		Quantity: params.Quantity,
		Price:    decimal.NewFromInt(100),
	})
	return append([]domain.CartLineItem(nil), m.Items...), nil
}

func (m *mockCartAPI) UpdateQuantity(ctx context.Context, itemID string, quantity int) ([]domain.CartLineItem, error) {
	m.log("UpdateQuantity(%s, %d)", itemID, quantity)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Items {
		if m.Items[i].ID == itemID {
			m.Items[i].Quantity = quantity
			return append([]domain.CartLineItem(nil), m.Items...), nil
		}
	}
	return nil, domain.ErrCartItemNotFound
}

func (m *mockCartAPI) RemoveItem(ctx context.Context, itemID string) ([]domain.CartLineItem, error) {
	m.log("RemoveItem(%s)", itemID)
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.Items[:0]
	for _, item := range m.Items {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	m.Items = kept
	return append([]domain.CartLineItem(nil), m.Items...), nil
}

func (m *mockCartAPI) Clear(ctx context.Context) error {
	m.log("Clear")
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx)
	}
	m.mu.Lock()
	m.Items = nil
	m.mu.Unlock()
	return nil
}

// mockOrderAPI implements domain.OrderAPI for testing.
type mockOrderAPI struct {
	CreateFunc func(ctx context.Context, req domain.OrderRequest) (*domain.Order, error)

	Requests []domain.OrderRequest
	mu       sync.Mutex
}

func (m *mockOrderAPI) Create(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	n := len(m.Requests)
	m.mu.Unlock()

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return &domain.Order{ID: fmt.Sprintf("ord_%d", n)}, nil
}

func (m *mockOrderAPI) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// mockWishlistAPI implements domain.WishlistAPI for testing.
type mockWishlistAPI struct {
	Products []domain.ProductSnapshot
	Err      error
}

func (m *mockWishlistAPI) List(ctx context.Context) ([]domain.ProductSnapshot, error) {
	return m.Products, m.Err
}

func (m *mockWishlistAPI) Add(ctx context.Context, productID string) ([]domain.ProductSnapshot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.Products = append(m.Products, domain.ProductSnapshot{ID: productID})
	return m.Products, nil
}

func (m *mockWishlistAPI) Remove(ctx context.Context, productID string) ([]domain.ProductSnapshot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	kept := m.Products[:0]
	for _, p := range m.Products {
		if p.ID != productID {
			kept = append(kept, p)
		}
	}
	m.Products = kept
	return m.Products, nil
}

// ============================================================================
// Fixtures
// ============================================================================

func shopperContext() context.Context {
	return domain.NewContextWithShopper(context.Background(), &domain.Shopper{ID: "u_1", Name: "Asha Rao", Token: "tok"})
}

// lampCart is a single line of two units at 500: subtotal exactly 1000.
func lampCart() []domain.CartLineItem {
	return []domain.CartLineItem{{
		ID:       "ci_1",
		Product:  domain.ProductSnapshot{ID: "p_lamp", Name: "Brass Lamp", ListPrice: decimal.NewFromInt(550)},
		Seller:   domain.SellerSnapshot{ID: "s_1", Name: "Jaipur Crafts"},
		Quantity: 2,
		Price:    decimal.NewFromInt(500),
	}}
}

func validAddress() domain.DeliveryAddress {
	return domain.DeliveryAddress{
		FullName:   "Asha Rao",
		Phone:      "9876543210",
		Street:     "12 MG Road",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
	}
}

package storefront

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/bazaar/internal/checkout"
	"github.com/dukerupert/bazaar/internal/cookie"
	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/dukerupert/bazaar/internal/payment"
	"github.com/dukerupert/bazaar/internal/service"
)

// mockCheckoutService implements service.CheckoutService for testing
type mockCheckoutService struct {
	beginFunc      func(ctx context.Context, previousID string) (*checkout.Snapshot, error)
	getFunc        func(ctx context.Context, sessionID string) (*checkout.Snapshot, error)
	setAddressFunc func(ctx context.Context, sessionID string, addr domain.DeliveryAddress) (*checkout.Snapshot, error)
	setPaymentFunc func(ctx context.Context, sessionID string, sel domain.PaymentSelection) (*checkout.Snapshot, error)
	nextFunc       func(ctx context.Context, sessionID string) (*checkout.Snapshot, error)
	previousFunc   func(ctx context.Context, sessionID string) (*checkout.Snapshot, error)
	abandonFunc    func(ctx context.Context, sessionID string) error
}

func (m *mockCheckoutService) Begin(ctx context.Context, previousID string) (*checkout.Snapshot, error) {
	if m.beginFunc != nil {
		return m.beginFunc(ctx, previousID)
	}
	return &checkout.Snapshot{ID: "sess_new", Step: checkout.StepAddress}, nil
}

func (m *mockCheckoutService) Get(ctx context.Context, sessionID string) (*checkout.Snapshot, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, sessionID)
	}
	if sessionID == "" {
		return nil, checkout.ErrSessionNotFound
	}
	return &checkout.Snapshot{ID: sessionID, Step: checkout.StepReview}, nil
}

func (m *mockCheckoutService) SetAddress(ctx context.Context, sessionID string, addr domain.DeliveryAddress) (*checkout.Snapshot, error) {
	if m.setAddressFunc != nil {
		return m.setAddressFunc(ctx, sessionID, addr)
	}
	return &checkout.Snapshot{ID: sessionID, Step: checkout.StepAddress, Address: addr}, nil
}

func (m *mockCheckoutService) SetPayment(ctx context.Context, sessionID string, sel domain.PaymentSelection) (*checkout.Snapshot, error) {
	if m.setPaymentFunc != nil {
		return m.setPaymentFunc(ctx, sessionID, sel)
	}
	return &checkout.Snapshot{ID: sessionID, Step: checkout.StepPayment, Payment: sel}, nil
}

func (m *mockCheckoutService) Next(ctx context.Context, sessionID string) (*checkout.Snapshot, error) {
	if m.nextFunc != nil {
		return m.nextFunc(ctx, sessionID)
	}
	return &checkout.Snapshot{ID: sessionID, Step: checkout.StepPayment}, nil
}

func (m *mockCheckoutService) Previous(ctx context.Context, sessionID string) (*checkout.Snapshot, error) {
	if m.previousFunc != nil {
		return m.previousFunc(ctx, sessionID)
	}
	return &checkout.Snapshot{ID: sessionID, Step: checkout.StepAddress}, nil
}

func (m *mockCheckoutService) Abandon(ctx context.Context, sessionID string) error {
	if m.abandonFunc != nil {
		return m.abandonFunc(ctx, sessionID)
	}
	return nil
}

func (m *mockCheckoutService) ExpireIdle(ctx context.Context, maxIdle time.Duration) int {
	return 0
}

// mockOrderService implements service.OrderService for testing
type mockOrderService struct {
	placeOrderFunc func(ctx context.Context, sessionID string) (*domain.OrderConfirmation, error)
}

func (m *mockOrderService) PlaceOrder(ctx context.Context, sessionID string) (*domain.OrderConfirmation, error) {
	if m.placeOrderFunc != nil {
		return m.placeOrderFunc(ctx, sessionID)
	}
	return &domain.OrderConfirmation{OrderID: "ord_1", RedirectURL: domain.ConfirmationURL("ord_1")}, nil
}

// mockCartService implements service.CartService for testing
type mockCartService struct {
	loadFunc   func(ctx context.Context) (*service.CartSnapshot, error)
	addFunc    func(ctx context.Context, params domain.AddCartItemParams) (*service.CartSnapshot, error)
	updateFunc func(ctx context.Context, itemID string, quantity int) (*service.CartSnapshot, error)
	removeFunc func(ctx context.Context, itemID string) (*service.CartSnapshot, error)
	clearFunc  func(ctx context.Context) error
}

func (m *mockCartService) Load(ctx context.Context) (*service.CartSnapshot, error) {
	if m.loadFunc != nil {
		return m.loadFunc(ctx)
	}
	return &service.CartSnapshot{Items: []domain.CartLineItem{}}, nil
}

func (m *mockCartService) Add(ctx context.Context, params domain.AddCartItemParams) (*service.CartSnapshot, error) {
	if m.addFunc != nil {
		return m.addFunc(ctx, params)
	}
	return &service.CartSnapshot{ItemCount: params.Quantity}, nil
}

func (m *mockCartService) UpdateQuantity(ctx context.Context, itemID string, quantity int) (*service.CartSnapshot, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, itemID, quantity)
	}
	return &service.CartSnapshot{ItemCount: quantity}, nil
}

func (m *mockCartService) Remove(ctx context.Context, itemID string) (*service.CartSnapshot, error) {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, itemID)
	}
	return &service.CartSnapshot{}, nil
}

func (m *mockCartService) Clear(ctx context.Context) error {
	if m.clearFunc != nil {
		return m.clearFunc(ctx)
	}
	return nil
}

// mockWishlistService implements service.WishlistService for testing
type mockWishlistService struct {
	products []domain.ProductSnapshot
	err      error
	removed  string
}

func (m *mockWishlistService) List(ctx context.Context) ([]domain.ProductSnapshot, error) {
	return m.products, m.err
}

func (m *mockWishlistService) Add(ctx context.Context, productID string) ([]domain.ProductSnapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	if productID == "" {
		return nil, domain.NewValidationError("wishlist.add", "productId", "is required")
	}
	m.products = append(m.products, domain.ProductSnapshot{ID: productID})
	return m.products, nil
}

func (m *mockWishlistService) Remove(ctx context.Context, productID string) ([]domain.ProductSnapshot, error) {
	m.removed = productID
	return m.products, m.err
}

// mockBridge implements WidgetBridge for testing
type mockBridge struct {
	mu        sync.Mutex
	pending   map[string]payment.WidgetConfig
	confirmed map[string]payment.Confirmation
	dismissed []string
}

func newMockBridge() *mockBridge {
	return &mockBridge{
		pending:   map[string]payment.WidgetConfig{},
		confirmed: map[string]payment.Confirmation{},
	}
}

func (m *mockBridge) Pending(attemptID string) (payment.WidgetConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.pending[attemptID]
	return cfg, ok
}

func (m *mockBridge) Confirm(attemptID string, c payment.Confirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[attemptID]; !ok {
		return payment.ErrNoAttempt
	}
	m.confirmed[attemptID] = c
	return nil
}

func (m *mockBridge) Dismiss(attemptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[attemptID]; !ok {
		return payment.ErrNoAttempt
	}
	m.dismissed = append(m.dismissed, attemptID)
	return nil
}

// request builds an authenticated JSON request, optionally carrying a checkout cookie.
func request(method, target, body, sessionID string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		r.AddCookie(&http.Cookie{Name: cookie.CheckoutCookieName, Value: sessionID})
	}
	shopper := &domain.Shopper{ID: "u_1", Name: "Asha Rao", Token: "tok"}
	return r.WithContext(domain.NewContextWithShopper(r.Context(), shopper))
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

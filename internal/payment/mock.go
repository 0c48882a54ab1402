package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MockGateway is a mock payment gateway for testing.
// By default it creates sandbox gateway orders and verifies every confirmation.
type MockGateway struct {
	// CreateOrderFunc allows customizing gateway order creation behavior
	CreateOrderFunc func(ctx context.Context, params CreateOrderParams) (*GatewayOrder, error)

	// VerifyFunc allows customizing verification behavior
	VerifyFunc func(ctx context.Context, c Confirmation) (*Verification, error)

	// Orders stores created gateway orders by ID
	Orders map[string]*GatewayOrder

	// Verified stores every confirmation passed to Verify
	Verified []Confirmation

	// CallLog tracks method calls for test assertions
	CallLog []string

	mu sync.Mutex
}

// NewMockGateway creates a new mock payment gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Orders:  make(map[string]*GatewayOrder),
		CallLog: []string{},
	}
}

// CreateOrder creates a mock gateway order.
func (m *MockGateway) CreateOrder(ctx context.Context, params CreateOrderParams) (*GatewayOrder, error) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateOrder(%s, %s, %s)", params.Amount.StringFixed(2), params.Currency, params.Receipt))
	fn := m.CreateOrderFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, params)
	}

	o := &GatewayOrder{
		ID:       "order_sandbox_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Amount:   params.Amount,
		Currency: params.Currency,
	}

	m.mu.Lock()
	m.Orders[o.ID] = o
	m.mu.Unlock()
	return o, nil
}

// Verify records a confirmation and reports it verified.
func (m *MockGateway) Verify(ctx context.Context, c Confirmation) (*Verification, error) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("Verify(%s, %s)", c.PaymentID, c.OrderID))
	m.Verified = append(m.Verified, c)
	fn := m.VerifyFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, c)
	}
	return &Verification{Verified: true}, nil
}

// Calls returns a copy of the call log.
func (m *MockGateway) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

// CountCalls returns how many logged calls start with method.
func (m *MockGateway) CountCalls(method string) int {
	n := 0
	for _, c := range m.Calls() {
		if strings.HasPrefix(c, method+"(") {
			n++
		}
	}
	return n
}

// MockWidget is a scripted Widget for testing.
type MockWidget struct {
	// OpenFunc allows customizing the shopper's behavior. Defaults to paying.
	OpenFunc func(ctx context.Context, cfg WidgetConfig) (*Confirmation, error)

	// Opened stores every configuration the widget was opened with
	Opened []WidgetConfig

	mu sync.Mutex
}

// NewMockWidget creates a widget that pays every gateway order it is shown.
func NewMockWidget() *MockWidget {
	return &MockWidget{}
}

// Open records cfg and pays immediately unless OpenFunc says otherwise.
func (w *MockWidget) Open(ctx context.Context, cfg WidgetConfig) (*Confirmation, error) {
	w.mu.Lock()
	w.Opened = append(w.Opened, cfg)
	fn := w.OpenFunc
	w.mu.Unlock()

	if fn != nil {
		return fn(ctx, cfg)
	}
	return &Confirmation{
		PaymentID: "pay_mock_" + uuid.NewString(),
		OrderID:   cfg.GatewayOrderID,
		Signature: "sig_mock",
	}, nil
}

// OpenCount returns how many times the widget was opened.
func (w *MockWidget) OpenCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.Opened)
}

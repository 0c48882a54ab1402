// Package checkout holds the checkout session and its step state machine.
//
// Steps are strictly linear: address → payment → review. Next is guarded by
// the current step's validator, Previous is always allowed and never discards
// what the shopper entered. Placing the order is the terminal event and is run
// by the order service, not by this package.
package checkout

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/dukerupert/bazaar/internal/pricing"
	"github.com/shopspring/decimal"
)

// Step is a checkout stage.
type Step string

const (
	StepAddress Step = "address"
	StepPayment Step = "payment"
	StepReview  Step = "review"
)

var (
	ErrNoNextStep    = domain.Invalid("checkout.next", "Review is the last step. Place your order to continue.")
	ErrNotOnReview   = domain.Invalid("checkout.place_order", "Please review your order before placing it")
	ErrSessionBusy   = domain.Conflict("checkout.update", "Your order is being placed. Please wait.")
	ErrUnknownMethod = domain.Invalid("checkout.payment", "Unsupported payment method")
)

// PendingOrder is an order the marketplace accepted whose placement has not
// finished: the online payment is outstanding, or the cart clear after it
// failed. A later attempt reuses it only while the cart still matches what
// was ordered.
type PendingOrder struct {
	OrderID string
	Method  domain.PaymentMethod
	Total   decimal.Decimal
	// Paid is set once payment is verified or not needed (cash on delivery).
	// Only the cart clear remains.
	Paid  bool
	lines string
}

// NewPendingOrder records orderID as placed for items at total.
func NewPendingOrder(orderID string, method domain.PaymentMethod, items []domain.CartLineItem, total decimal.Decimal) *PendingOrder {
	return &PendingOrder{
		OrderID: orderID,
		Method:  method,
		Total:   total,
		lines:   lineFingerprint(items),
	}
}

// Matches reports whether the order was placed for exactly items at total.
func (p *PendingOrder) Matches(items []domain.CartLineItem, total decimal.Decimal) bool {
	return p.Total.Equal(total) && p.lines == lineFingerprint(items)
}

// lineFingerprint is order independent: the marketplace may list a cart in any order.
func lineFingerprint(items []domain.CartLineItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s/%s/%d/%s", item.Product.ID, item.Seller.ID, item.Quantity, item.Price.StringFixed(2)))
	}
	slices.Sort(lines)
	return strings.Join(lines, ";")
}

// Session is one shopper's checkout attempt. It lives in memory only.
type Session struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time

	mu        sync.Mutex
	step      Step
	address   domain.DeliveryAddress
	payment   domain.PaymentSelection
	items     []domain.CartLineItem
	summary   pricing.Summary
	pending   *PendingOrder
	touchedAt time.Time

	busy atomic.Bool
}

// New starts a checkout on the address step. An empty cart cannot be checked out.
// The address is pre-filled with the shopper's name when known.
func New(id, ownerID, shopperName string, items []domain.CartLineItem, rules pricing.Rules) (*Session, error) {
	if len(items) == 0 {
		return nil, domain.ErrCartEmpty
	}

	now := time.Now()
	s := &Session{
		ID:        id,
		OwnerID:   ownerID,
		CreatedAt: now,
		step:      StepAddress,
		address:   domain.DeliveryAddress{FullName: shopperName},
		payment:   domain.PaymentSelection{Type: domain.PaymentCOD},
		touchedAt: now,
	}
	s.setItems(items, rules)
	return s, nil
}

// setItems replaces the line items and recomputes the summary wholesale.
// Callers hold s.mu or own s exclusively.
func (s *Session) setItems(items []domain.CartLineItem, rules pricing.Rules) {
	s.items = append([]domain.CartLineItem(nil), items...)
	s.summary = rules.Compute(s.items)
	s.touchedAt = time.Now()
}

// SetAddress stores form input. It is allowed on any step and does not validate.
func (s *Session) SetAddress(addr domain.DeliveryAddress) error {
	if s.Busy() {
		return ErrSessionBusy
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.address = addr
	s.touchedAt = time.Now()
	return nil
}

// SetPayment stores the payment selection. Only the method must be known;
// details are validated when leaving the payment step.
func (s *Session) SetPayment(sel domain.PaymentSelection) error {
	if !sel.Type.Valid() {
		return ErrUnknownMethod
	}
	if s.Busy() {
		return ErrSessionBusy
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payment = sel
	s.touchedAt = time.Now()
	return nil
}

// Next advances one step if the current step's guard passes.
// On failure the step is unchanged and a *domain.ValidationError is returned.
func (s *Session) Next() error {
	if s.Busy() {
		return ErrSessionBusy
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.step {
	case StepAddress:
		if err := ValidateAddress(s.address); err != nil {
			return err
		}
		s.address = s.address.Normalize()
		s.step = StepPayment
	case StepPayment:
		if err := ValidatePayment(s.payment); err != nil {
			return err
		}
		s.step = StepReview
	default:
		return ErrNoNextStep
	}
	s.touchedAt = time.Now()
	return nil
}

// Previous steps back once. It is a no-op on the address step.
func (s *Session) Previous() error {
	if s.Busy() {
		return ErrSessionBusy
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.step {
	case StepReview:
		s.step = StepPayment
	case StepPayment:
		s.step = StepAddress
	}
	s.touchedAt = time.Now()
	return nil
}

// ReadyToPlace is the Place Order guard: the shopper must be on review with a
// non-empty cart of valid line items.
func (s *Session) ReadyToPlace() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != StepReview {
		return ErrNotOnReview
	}
	if len(s.items) == 0 {
		return domain.ErrCartEmpty
	}
	for _, item := range s.items {
		if err := item.Valid(); err != nil {
			return err
		}
	}
	return nil
}

// TryAcquire takes the busy flag. It returns false if a placement is already running.
func (s *Session) TryAcquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

// Release drops the busy flag.
func (s *Session) Release() {
	s.busy.Store(false)
}

// Busy reports whether an order placement holds the session.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// SetPending records an order whose placement is unfinished.
// A nil order clears it.
func (s *Session) SetPending(p *PendingOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = p
}

// Pending returns the outstanding order, if any.
func (s *Session) Pending() *PendingOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	return &p
}

// IdleSince reports when the session was last changed.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	ID           string                  `json:"id"`
	Step         Step                    `json:"step"`
	Address      domain.DeliveryAddress  `json:"address"`
	Payment      domain.PaymentSelection `json:"payment"`
	Items        []domain.CartLineItem   `json:"items"`
	Summary      pricing.Summary         `json:"summary"`
	PendingOrder string                  `json:"pendingOrderId,omitempty"`
	Busy         bool                    `json:"busy"`
}

// Snapshot copies the session. Payment details are kept in full; call
// Redacted before returning it to a client.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:      s.ID,
		Step:    s.step,
		Address: s.address,
		Payment: s.payment,
		Items:   append([]domain.CartLineItem(nil), s.items...),
		Summary: s.summary,
		Busy:    s.busy.Load(),
	}
	if s.pending != nil {
		snap.PendingOrder = s.pending.OrderID
	}
	return snap
}

// Redacted returns the snapshot with card and UPI secrets removed.
func (s Snapshot) Redacted() Snapshot {
	s.Payment = s.Payment.Redacted()
	return s
}

package storefront

import (
	"net/http"
	"time"

	"github.com/dukerupert/bazaar/internal/checkout"
	"github.com/dukerupert/bazaar/internal/cookie"
	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/dukerupert/bazaar/internal/handler"
	"github.com/dukerupert/bazaar/internal/middleware"
	"github.com/dukerupert/bazaar/internal/payment"
	"github.com/dukerupert/bazaar/internal/service"
)

// WidgetBridge relays the live payment widget between the browser and a
// place-order request that is waiting on it. payment.CallbackWidget implements it.
type WidgetBridge interface {
	Pending(attemptID string) (payment.WidgetConfig, bool)
	Confirm(attemptID string, c payment.Confirmation) error
	Dismiss(attemptID string) error
}

// CheckoutHandler serves the checkout steps and order placement.
// The session id travels in the checkout cookie.
type CheckoutHandler struct {
	checkout   service.CheckoutService
	orders     service.OrderService
	bridge     WidgetBridge
	cookies    *cookie.Config
	sessionTTL time.Duration
}

// NewCheckoutHandler creates a new checkout handler. bridge is nil in sandbox
// mode, where the widget never reaches the browser.
func NewCheckoutHandler(checkout service.CheckoutService, orders service.OrderService, bridge WidgetBridge, cookies *cookie.Config, sessionTTL time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:   checkout,
		orders:     orders,
		bridge:     bridge,
		cookies:    cookies,
		sessionTTL: sessionTTL,
	}
}

func sessionID(r *http.Request) string {
	return cookie.Get(r, cookie.CheckoutCookieName)
}

// Begin handles POST /api/checkout
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	snap, err := h.checkout.Begin(r.Context(), sessionID(r))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	h.cookies.SetSession(w, cookie.CheckoutCookieName, snap.ID, cookie.CheckoutCookiePath, h.sessionTTL)
	middleware.GetLogger(r.Context()).Info("checkout started", "session_id", snap.ID, "items", len(snap.Items))
	handler.WriteJSON(w, http.StatusCreated, snap)
}

// Get handles GET /api/checkout
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.checkout.Get(r.Context(), sessionID(r)))
}

// SetAddress handles PUT /api/checkout/address
func (h *CheckoutHandler) SetAddress(w http.ResponseWriter, r *http.Request) {
	var addr domain.DeliveryAddress
	if err := handler.DecodeJSON(r, "checkout.address", &addr); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.respond(w, r)(h.checkout.SetAddress(r.Context(), sessionID(r), addr))
}

// SetPayment handles PUT /api/checkout/payment-method
func (h *CheckoutHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var sel domain.PaymentSelection
	if err := handler.DecodeJSON(r, "checkout.payment", &sel); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.respond(w, r)(h.checkout.SetPayment(r.Context(), sessionID(r), sel))
}

// Next handles POST /api/checkout/next
func (h *CheckoutHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.checkout.Next(r.Context(), sessionID(r)))
}

// Previous handles POST /api/checkout/previous
func (h *CheckoutHandler) Previous(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.checkout.Previous(r.Context(), sessionID(r)))
}

// Abandon handles DELETE /api/checkout
func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.Abandon(r.Context(), sessionID(r)); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.cookies.ClearSession(w, cookie.CheckoutCookieName, cookie.CheckoutCookiePath)
	w.WriteHeader(http.StatusNoContent)
}

// PlaceOrder handles POST /api/checkout/place-order
//
// In live mode the request stays open while the shopper is in the payment
// widget; the browser drives the widget through the payment routes below.
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	confirmation, err := h.orders.PlaceOrder(r.Context(), sessionID(r))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	h.cookies.ClearSession(w, cookie.CheckoutCookieName, cookie.CheckoutCookiePath)
	handler.WriteJSON(w, http.StatusOK, confirmation)
}

// Payment handles GET /api/checkout/payment
// It returns the widget configuration while a live payment is waiting.
func (h *CheckoutHandler) Payment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	cfg, ok := h.bridge.Pending(id)
	if !ok {
		handler.ErrorResponse(w, r, payment.ErrNoAttempt)
		return
	}
	handler.WriteJSON(w, http.StatusOK, cfg)
}

// ConfirmPayment handles POST /api/checkout/payment/confirm
// The order outcome is delivered on the waiting place-order response.
func (h *CheckoutHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var c payment.Confirmation
	if err := handler.DecodeJSON(r, "checkout.payment.confirm", &c); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if c.PaymentID == "" || c.OrderID == "" {
		handler.ErrorResponse(w, r, domain.Invalid("checkout.payment.confirm", "Payment confirmation is incomplete"))
		return
	}

	if err := h.bridge.Confirm(id, c); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// DismissPayment handles POST /api/checkout/payment/dismiss
func (h *CheckoutHandler) DismissPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	if err := h.bridge.Dismiss(id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ownedSession resolves the cookie's session for the live widget routes,
// checking that it belongs to the signed-in shopper.
func (h *CheckoutHandler) ownedSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.bridge == nil {
		handler.ErrorResponse(w, r, payment.ErrNoAttempt)
		return "", false
	}

	snap, err := h.checkout.Get(r.Context(), sessionID(r))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return "", false
	}
	return snap.ID, true
}

// respond writes a session snapshot or the error that prevented one.
func (h *CheckoutHandler) respond(w http.ResponseWriter, r *http.Request) func(*checkout.Snapshot, error) {
	return func(snap *checkout.Snapshot, err error) {
		if err != nil {
			handler.ErrorResponse(w, r, err)
			return
		}
		handler.WriteJSON(w, http.StatusOK, snap)
	}
}

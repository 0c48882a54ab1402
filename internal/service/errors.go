package service

import (
	"errors"
	"fmt"

	"github.com/dukerupert/bazaar/internal/domain"
)

// Stage names the orchestrator step an order placement stopped at.
type Stage string

const (
	StageCreateOrder  Stage = "create_order"
	StageGatewayOrder Stage = "gateway_order"
	StagePayment      Stage = "payment"
	StageVerify       Stage = "verify"
	StageClearCart    Stage = "clear_cart"
)

// Fallback messages, one per stage. The marketplace's own message wins when it sent one.
var stageMessages = map[Stage]string{
	StageCreateOrder:  "Failed to place order. Please try again.",
	StageGatewayOrder: "Could not start the payment. Please try again.",
	StagePayment:      "Payment was not completed.",
	StageVerify:       "Payment verification failed. Please contact support.",
	StageClearCart:    "Your order was placed, but we could not clear your cart. Please try again.",
}

var (
	ErrCheckoutBusy       = domain.Conflict("checkout.place_order", "Your order is already being placed. Please wait.")
	ErrPaymentNotVerified = domain.Errorf(domain.EPAYMENT, "checkout.verify", "%s", stageMessages[StageVerify])
	ErrPaymentCancelled   = domain.Canceled("checkout.payment", "Payment was cancelled. Your order is saved; you can try paying again.")
)

// PlacementError reports where an order placement stopped.
// OrderID is set once the marketplace has accepted the order.
type PlacementError struct {
	Stage   Stage
	OrderID string
	Err     error
}

func (e *PlacementError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("place order %s: %s: %v", e.OrderID, e.Stage, e.Err)
	}
	return fmt.Sprintf("place order: %s: %v", e.Stage, e.Err)
}

func (e *PlacementError) Unwrap() error {
	return e.Err
}

// Code is the domain code of the underlying failure.
func (e *PlacementError) Code() string {
	return domain.ErrorCode(e.Err)
}

// Message is the one user-visible message for this failure.
func (e *PlacementError) Message() string {
	var de *domain.Error
	if errors.As(e.Err, &de) && de.Code != domain.EINTERNAL && de.Message != "" {
		return de.Message
	}
	return stageMessages[e.Stage]
}

// placementFailed wraps err for stage as a domain error whose message is the
// stage message, so generic error rendering shows the right text.
func placementFailed(stage Stage, orderID string, err error) error {
	pe := &PlacementError{Stage: stage, OrderID: orderID, Err: err}
	code := pe.Code()
	if code == domain.EINTERNAL {
		// Our own faults still surface as the stage's failure, not a bare 500 text.
		code = domain.EUNAVAILABLE
	}
	return &domain.Error{
		Code:    code,
		Op:      "checkout.place_order." + string(stage),
		Message: pe.Message(),
		Err:     pe,
	}
}

// StageOf returns the stage err stopped at, or "" if err is not a placement failure.
func StageOf(err error) Stage {
	var pe *PlacementError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}

// OrderIDOf returns the created order id carried by a placement failure.
func OrderIDOf(err error) string {
	var pe *PlacementError
	if errors.As(err, &pe) {
		return pe.OrderID
	}
	return ""
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/bazaar/internal/checkout"
	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/dukerupert/bazaar/internal/events"
	"github.com/dukerupert/bazaar/internal/payment"
	"github.com/dukerupert/bazaar/internal/telemetry"
)

// DefaultCallTimeout bounds each marketplace and gateway call made while placing an order.
const DefaultCallTimeout = 30 * time.Second

// OrderService places the order for a checkout session on the review step.
type OrderService interface {
	// PlaceOrder runs create order → (gateway order → widget → verify) → clear cart.
	// Failures are domain errors wrapping a *PlacementError naming the stage.
	// The session survives every failure, and a retry resumes at the failed stage.
	PlaceOrder(ctx context.Context, sessionID string) (*domain.OrderConfirmation, error)
}

// OrderConfig carries the payment settings fixed at startup.
type OrderConfig struct {
	Mode        payment.Mode
	Currency    string
	KeyID       string
	StoreName   string
	ThemeColor  string
	CallTimeout time.Duration
}

type orderService struct {
	store   *checkout.Store
	orders  domain.OrderAPI
	carts   domain.CartAPI
	gateway payment.Gateway
	widget  payment.Widget
	bus     events.Bus
	cfg     OrderConfig
	metrics *telemetry.CheckoutMetrics
	logger  *slog.Logger
}

// NewOrderService creates a new OrderService instance.
func NewOrderService(
	store *checkout.Store,
	orders domain.OrderAPI,
	carts domain.CartAPI,
	gateway payment.Gateway,
	widget payment.Widget,
	bus events.Bus,
	cfg OrderConfig,
	metrics *telemetry.CheckoutMetrics,
	logger *slog.Logger,
) OrderService {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Mode == "" {
		cfg.Mode = payment.ModeSandbox
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &orderService{
		store:   store,
		orders:  orders,
		carts:   carts,
		gateway: gateway,
		widget:  widget,
		bus:     bus,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *orderService) PlaceOrder(ctx context.Context, sessionID string) (*domain.OrderConfirmation, error) {
	shopperID := domain.ShopperIDFromContext(ctx)
	sess, err := s.store.Get(sessionID, shopperID)
	if err != nil {
		return nil, err
	}

	if !sess.TryAcquire() {
		return nil, ErrCheckoutBusy
	}
	defer sess.Release()

	if err := sess.ReadyToPlace(); err != nil {
		return nil, err
	}

	snap := sess.Snapshot()
	method := snap.Payment.Type
	logger := s.logger.With(
		slog.String("session_id", sess.ID),
		slog.String("shopper_id", shopperID),
		slog.String("payment_method", string(method)),
	)

	// The placement outlives a dropped request: once started, each call runs to
	// completion under its own timeout.
	work := context.WithoutCancel(ctx)

	pending := sess.Pending()
	if pending != nil && !pending.Matches(snap.Items, snap.Summary.Total) {
		logger.Warn("pending order does not match the cart, placing a new order",
			slog.String("order_id", pending.OrderID),
			slog.String("order_total", pending.Total.StringFixed(2)),
		)
		sess.SetPending(nil)
		pending = nil
	}

	var orderID string
	switch {
	case pending != nil && pending.Paid:
		orderID = pending.OrderID
		logger.Info("retrying cart clear for placed order", slog.String("order_id", orderID))
	case pending != nil && method.Online():
		orderID = pending.OrderID
		logger.Info("retrying payment for pending order", slog.String("order_id", orderID))
	default:
		req := domain.NewOrderRequest(snap.Address, method, snap.Items, snap.Summary.Total)
		order, err := call(work, s.cfg.CallTimeout, func(ctx context.Context) (*domain.Order, error) {
			return s.orders.Create(ctx, req)
		})
		if err != nil {
			return nil, s.fail(work, logger, StageCreateOrder, "", err)
		}
		orderID = order.ID
		if s.metrics != nil {
			s.metrics.ObserveOrder(string(method), snap.Summary.Total)
		}
		logger.Info("order created",
			slog.String("order_id", orderID),
			slog.String("total", snap.Summary.Total.StringFixed(2)),
		)
	}

	placed := checkout.NewPendingOrder(orderID, method, snap.Items, snap.Summary.Total)
	if method.Online() && (pending == nil || !pending.Paid) {
		sess.SetPending(placed)
		if err := s.pay(work, logger, sess, snap, orderID); err != nil {
			return nil, err
		}
	}

	// Until the cart is cleared the order stays pending, so a retry only clears.
	placed.Paid = true
	sess.SetPending(placed)

	if err := callErr(work, s.cfg.CallTimeout, s.carts.Clear); err != nil {
		return nil, s.fail(work, logger, StageClearCart, orderID, err)
	}
	if s.metrics != nil {
		s.metrics.CartsCleared.Inc()
	}
	publishCount(work, s.bus, logger, events.KindCart, shopperID, 0)
	logger.Info("cart cleared", slog.String("order_id", orderID))

	s.store.Delete(sess.ID)
	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(s.store.Len()))
	}

	return &domain.OrderConfirmation{
		OrderID:     orderID,
		RedirectURL: domain.ConfirmationURL(orderID),
	}, nil
}

// pay runs the payment sub-flow for orderID.
func (s *orderService) pay(ctx context.Context, logger *slog.Logger, sess *checkout.Session, snap checkout.Snapshot, orderID string) error {
	method := snap.Payment.Type
	total := snap.Summary.Total

	gatewayOrder, err := call(ctx, s.cfg.CallTimeout, func(ctx context.Context) (*payment.GatewayOrder, error) {
		return s.gateway.CreateOrder(ctx, payment.CreateOrderParams{
			Amount:   total,
			Currency: s.cfg.Currency,
			Receipt:  payment.Receipt(orderID),
		})
	})
	if err != nil {
		return s.fail(ctx, logger, StageGatewayOrder, orderID, err)
	}
	logger = logger.With(slog.String("order_id", orderID), slog.String("gateway_order_id", gatewayOrder.ID))
	logger.Info("gateway order created")

	if s.metrics != nil {
		s.metrics.PaymentAttempts.WithLabelValues(string(method), string(s.cfg.Mode)).Inc()
	}
	telemetry.AddBreadcrumb("checkout", "payment widget opened", map[string]interface{}{
		"order_id":         orderID,
		"gateway_order_id": gatewayOrder.ID,
		"mode":             string(s.cfg.Mode),
	})

	// The widget has its own timeout; the shopper may take a while.
	confirmation, err := s.widget.Open(ctx, payment.WidgetConfig{
		AttemptID:      sess.ID,
		KeyID:          s.cfg.KeyID,
		Amount:         total,
		AmountMinor:    payment.MinorUnits(total),
		Currency:       s.cfg.Currency,
		Name:           s.cfg.StoreName,
		Description:    payment.Description(orderID),
		GatewayOrderID: gatewayOrder.ID,
		Prefill: payment.Prefill{
			Name:    snap.Address.FullName,
			Contact: snap.Address.Phone,
		},
		Theme: payment.Theme{Color: s.cfg.ThemeColor},
	})
	if err != nil {
		if errors.Is(err, payment.ErrCancelled) {
			if s.metrics != nil {
				s.metrics.PaymentCancelled.WithLabelValues(string(method)).Inc()
			}
			err = ErrPaymentCancelled
		}
		return s.fail(ctx, logger, StagePayment, orderID, err)
	}

	verification, err := call(ctx, s.cfg.CallTimeout, func(ctx context.Context) (*payment.Verification, error) {
		return s.gateway.Verify(ctx, *confirmation)
	})
	if err != nil {
		return s.fail(ctx, logger, StageVerify, orderID, err)
	}
	if !verification.Verified {
		if s.metrics != nil {
			s.metrics.PaymentVerified.WithLabelValues("rejected").Inc()
		}
		return s.fail(ctx, logger, StageVerify, orderID, ErrPaymentNotVerified)
	}
	if s.metrics != nil {
		s.metrics.PaymentVerified.WithLabelValues("verified").Inc()
	}
	logger.Info("payment verified", slog.String("payment_id", confirmation.PaymentID))
	return nil
}

// fail records a placement failure and returns it as a domain error.
func (s *orderService) fail(ctx context.Context, logger *slog.Logger, stage Stage, orderID string, err error) error {
	failure := placementFailed(stage, orderID, err)

	if s.metrics != nil {
		s.metrics.PlacementFailed.WithLabelValues(string(stage)).Inc()
	}

	attrs := []any{
		slog.String("stage", string(stage)),
		slog.String("order_id", orderID),
		slog.String("error", err.Error()),
	}
	switch domain.ErrorCode(failure) {
	case domain.ECANCELED:
		logger.Info("payment cancelled by shopper", attrs...)
		return failure
	case domain.EINVALID, domain.EUNAUTHORIZED:
		logger.Warn("order placement rejected", attrs...)
		return failure
	}

	logger.Error("order placement failed", attrs...)
	telemetry.CaptureErrorFromContext(ctx, failure, map[string]interface{}{
		"stage":    string(stage),
		"order_id": orderID,
	})
	return failure
}

// call runs fn under its own timeout derived from ctx.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func callErr(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

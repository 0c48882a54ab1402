package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/bazaar/internal/checkout"
	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/dukerupert/bazaar/internal/pricing"
	"github.com/dukerupert/bazaar/internal/telemetry"
	"github.com/google/uuid"
)

// CheckoutService runs the checkout step state machine for the signed-in shopper.
// Sessions are looked up by id and must belong to the shopper in ctx.
type CheckoutService interface {
	// Begin loads the cart and opens a session on the address step.
	// An open, idle session named by previousID is replaced. Its pending order
	// carries over only while the cart still matches it.
	Begin(ctx context.Context, previousID string) (*checkout.Snapshot, error)
	Get(ctx context.Context, sessionID string) (*checkout.Snapshot, error)
	SetAddress(ctx context.Context, sessionID string, addr domain.DeliveryAddress) (*checkout.Snapshot, error)
	SetPayment(ctx context.Context, sessionID string, sel domain.PaymentSelection) (*checkout.Snapshot, error)
	Next(ctx context.Context, sessionID string) (*checkout.Snapshot, error)
	Previous(ctx context.Context, sessionID string) (*checkout.Snapshot, error)
	Abandon(ctx context.Context, sessionID string) error

	// ExpireIdle drops sessions untouched for longer than maxIdle.
	ExpireIdle(ctx context.Context, maxIdle time.Duration) int
}

type checkoutService struct {
	store   *checkout.Store
	carts   CartService
	rules   pricing.Rules
	metrics *telemetry.CheckoutMetrics
	logger  *slog.Logger
}

// NewCheckoutService creates a new CheckoutService instance.
func NewCheckoutService(store *checkout.Store, carts CartService, rules pricing.Rules, metrics *telemetry.CheckoutMetrics, logger *slog.Logger) CheckoutService {
	if logger == nil {
		logger = slog.Default()
	}
	return &checkoutService{
		store:   store,
		carts:   carts,
		rules:   rules,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *checkoutService) Begin(ctx context.Context, previousID string) (*checkout.Snapshot, error) {
	shopper := domain.ShopperFromContext(ctx)
	if shopper == nil {
		return nil, domain.Unauthorized("checkout.begin", "Please log in to continue")
	}

	var pending *checkout.PendingOrder
	if previousID != "" {
		if prev, err := s.store.Get(previousID, shopper.ID); err == nil {
			if prev.Busy() {
				return nil, ErrCheckoutBusy
			}
			pending = prev.Pending()
		}
	}

	cart, err := s.carts.Load(ctx)
	if err != nil {
		s.reject("upstream")
		return nil, err
	}

	sess, err := checkout.New(uuid.NewString(), shopper.ID, shopper.Name, cart.Items, s.rules)
	if err != nil {
		s.reject("empty_cart")
		return nil, err
	}
	if pending != nil {
		snap := sess.Snapshot()
		if pending.Matches(snap.Items, snap.Summary.Total) {
			sess.SetPending(pending)
		} else {
			s.logger.Info("cart changed since the pending order, dropping it",
				slog.String("order_id", pending.OrderID),
				slog.String("order_total", pending.Total.StringFixed(2)),
				slog.String("cart_total", snap.Summary.Total.StringFixed(2)),
			)
		}
	}

	if previousID != "" {
		s.store.Delete(previousID)
	}
	s.store.Put(sess)

	if s.metrics != nil {
		s.metrics.CheckoutStarted.Inc()
		s.metrics.SessionsActive.Set(float64(s.store.Len()))
	}
	s.logger.Info("checkout started",
		slog.String("session_id", sess.ID),
		slog.String("shopper_id", shopper.ID),
		slog.Int("items", len(cart.Items)),
		slog.String("total", cart.Summary.Total.StringFixed(2)),
	)
	return snapshot(sess), nil
}

func (s *checkoutService) reject(reason string) {
	if s.metrics != nil {
		s.metrics.CheckoutRejected.WithLabelValues(reason).Inc()
	}
}

func (s *checkoutService) session(ctx context.Context, sessionID string) (*checkout.Session, error) {
	return s.store.Get(sessionID, domain.ShopperIDFromContext(ctx))
}

func (s *checkoutService) Get(ctx context.Context, sessionID string) (*checkout.Snapshot, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return snapshot(sess), nil
}

func (s *checkoutService) SetAddress(ctx context.Context, sessionID string, addr domain.DeliveryAddress) (*checkout.Snapshot, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.SetAddress(addr); err != nil {
		return nil, err
	}
	return snapshot(sess), nil
}

func (s *checkoutService) SetPayment(ctx context.Context, sessionID string, sel domain.PaymentSelection) (*checkout.Snapshot, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.SetPayment(sel); err != nil {
		return nil, err
	}
	return snapshot(sess), nil
}

func (s *checkoutService) Next(ctx context.Context, sessionID string) (*checkout.Snapshot, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	from := sess.Snapshot().Step
	if err := sess.Next(); err != nil {
		if s.metrics != nil && domain.IsValidationError(err) {
			s.metrics.StepRejected.WithLabelValues(string(from)).Inc()
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.StepAdvanced.WithLabelValues(string(from)).Inc()
	}
	return snapshot(sess), nil
}

func (s *checkoutService) Previous(ctx context.Context, sessionID string) (*checkout.Snapshot, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Previous(); err != nil {
		return nil, err
	}
	return snapshot(sess), nil
}

func (s *checkoutService) Abandon(ctx context.Context, sessionID string) error {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Busy() {
		return ErrCheckoutBusy
	}
	s.store.Delete(sess.ID)
	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(s.store.Len()))
	}
	return nil
}

func (s *checkoutService) ExpireIdle(ctx context.Context, maxIdle time.Duration) int {
	n := s.store.Expire(time.Now().Add(-maxIdle))
	if s.metrics != nil {
		s.metrics.SessionsExpired.Add(float64(n))
		s.metrics.SessionsActive.Set(float64(s.store.Len()))
	}
	return n
}

// snapshot is the client view of a session: payment secrets never leave the service.
func snapshot(sess *checkout.Session) *checkout.Snapshot {
	snap := sess.Snapshot().Redacted()
	return &snap
}

package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// CheckoutMetrics holds Prometheus metrics for the checkout funnel.
// Labels never carry shopper or order ids.
type CheckoutMetrics struct {
	// Funnel
	CheckoutStarted  prometheus.Counter
	CheckoutRejected *prometheus.CounterVec
	StepAdvanced     *prometheus.CounterVec
	StepRejected     *prometheus.CounterVec

	// Orders and payment
	OrdersCreated    *prometheus.CounterVec
	OrderValue       prometheus.Histogram
	PlacementFailed  *prometheus.CounterVec
	PaymentAttempts  *prometheus.CounterVec
	PaymentVerified  *prometheus.CounterVec
	PaymentCancelled *prometheus.CounterVec
	CartsCleared     prometheus.Counter

	// Cart and wishlist
	CartMutations     *prometheus.CounterVec
	WishlistMutations *prometheus.CounterVec
	CartLoadsShared   prometheus.Counter

	// Sessions
	SessionsActive  prometheus.Gauge
	SessionsExpired prometheus.Counter

	// Marketplace API
	MarketplaceLatency *prometheus.HistogramVec
}

// NewCheckoutMetrics creates checkout metrics registered with reg.
// A nil reg uses the default registerer.
func NewCheckoutMetrics(namespace string, reg prometheus.Registerer) *CheckoutMetrics {
	if namespace == "" {
		namespace = "bazaar"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	subsystem := "checkout"

	return &CheckoutMetrics{
		// =======================================================================
		// Funnel
		// =======================================================================
		CheckoutStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "started_total",
			Help:      "Checkout sessions begun with a non-empty cart",
		}),
		CheckoutRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rejected_total",
			Help:      "Checkout attempts refused before a session was created",
		}, []string{"reason"}), // reason: empty_cart, upstream
		StepAdvanced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "step_advanced_total",
			Help:      "Successful forward transitions by the step left",
		}, []string{"step"}),
		StepRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "step_rejected_total",
			Help:      "Forward transitions refused by a step guard",
		}, []string{"step"}),

		// =======================================================================
		// Orders and payment
		// =======================================================================
		OrdersCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "orders_created_total",
			Help:      "Orders created in the marketplace",
		}, []string{"payment_method"}),
		OrderValue: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_value",
			Help:      "Order total in major currency units",
			Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 25000, 50000},
		}),
		PlacementFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "placement_failed_total",
			Help:      "Order placements that stopped at a stage",
		}, []string{"stage"}), // stage: create_order, gateway_order, payment, verify, clear_cart
		PaymentAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payment_attempts_total",
			Help:      "Payment widgets opened",
		}, []string{"payment_method", "mode"}),
		PaymentVerified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payment_verifications_total",
			Help:      "Payment verification outcomes",
		}, []string{"result"}), // result: verified, rejected
		PaymentCancelled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payment_cancelled_total",
			Help:      "Payment widgets dismissed or timed out",
		}, []string{"payment_method"}),
		CartsCleared: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "carts_cleared_total",
			Help:      "Carts cleared after a completed order",
		}),

		// =======================================================================
		// Cart and wishlist
		// =======================================================================
		CartMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "mutations_total",
			Help:      "Cart mutations by operation",
		}, []string{"operation"}), // operation: add, update, remove, clear
		WishlistMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wishlist",
			Name:      "mutations_total",
			Help:      "Wishlist mutations by operation",
		}, []string{"operation"}),
		CartLoadsShared: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "loads_shared_total",
			Help:      "Cart loads that shared one upstream call with another load for the same shopper",
		}),

		// =======================================================================
		// Sessions
		// =======================================================================
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_active",
			Help:      "Checkout sessions held in memory",
		}),
		SessionsExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_expired_total",
			Help:      "Idle checkout sessions removed by the janitor",
		}),

		// =======================================================================
		// Marketplace API
		// =======================================================================
		MarketplaceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketplace",
			Name:      "request_duration_seconds",
			Help:      "Marketplace API call duration (separates our slowness from theirs)",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation", "status"}),
	}
}

// ObserveMarketplace records one marketplace API call. Status 0 means no response.
func (m *CheckoutMetrics) ObserveMarketplace(op string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.MarketplaceLatency.WithLabelValues(op, statusClass(status)).Observe(d.Seconds())
}

// ObserveOrder records a created order.
func (m *CheckoutMetrics) ObserveOrder(method string, total decimal.Decimal) {
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(method).Inc()
	m.OrderValue.Observe(total.InexactFloat64())
}

func statusClass(status int) string {
	switch {
	case status == 0:
		return "error"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Global instance for easy access from services
var Checkout *CheckoutMetrics

// InitCheckoutMetrics initializes the global checkout metrics instance
func InitCheckoutMetrics(namespace string, reg prometheus.Registerer) *CheckoutMetrics {
	Checkout = NewCheckoutMetrics(namespace, reg)
	return Checkout
}

package telemetry

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutMetrics_ObserveMarketplace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics("test", reg)

	m.ObserveMarketplace("cart.list", 200, 40*time.Millisecond)
	m.ObserveMarketplace("cart.list", 503, time.Second)
	m.ObserveMarketplace("orders.create", 0, time.Second)

	assert.Equal(t, 3, testutil.CollectAndCount(m.MarketplaceLatency))
}

func TestCheckoutMetrics_ObserveOrder(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics("test", reg)

	m.ObserveOrder("cod", decimal.NewFromInt(1230))
	m.ObserveOrder("upi", decimal.NewFromInt(500))
	m.ObserveOrder("cod", decimal.NewFromInt(80))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.OrdersCreated.WithLabelValues("cod")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OrdersCreated.WithLabelValues("upi")))
}

func TestCheckoutMetrics_NilSafe(t *testing.T) {
	var m *CheckoutMetrics
	assert.NotPanics(t, func() {
		m.ObserveMarketplace("cart.list", 200, time.Millisecond)
		m.ObserveOrder("cod", decimal.NewFromInt(1))
	})
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "error", statusClass(0))
	assert.Equal(t, "2xx", statusClass(201))
	assert.Equal(t, "3xx", statusClass(304))
	assert.Equal(t, "4xx", statusClass(409))
	assert.Equal(t, "5xx", statusClass(502))
}

func TestScrubEvent(t *testing.T) {
	event := &sentry.Event{Request: &sentry.Request{
		Data:    `{"cardNumber":"4111111111111111","cvv":"123"}`,
		Cookies: "bazaar_token=abc",
		Headers: map[string]string{
			"Authorization": "Bearer abc",
			"Cookie":        "bazaar_token=abc",
			"Accept":        "application/json",
		},
	}}

	out := scrubEvent(event, nil)

	assert.Empty(t, out.Request.Data)
	assert.Empty(t, out.Request.Cookies)
	assert.NotContains(t, out.Request.Headers, "Authorization")
	assert.NotContains(t, out.Request.Headers, "Cookie")
	assert.Equal(t, "application/json", out.Request.Headers["Accept"])
}

func TestSentry_DisabledIsNoop(t *testing.T) {
	flush, err := InitSentry(SentryConfig{Enabled: true, DSN: ""}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer flush()

	assert.False(t, IsEnabled(), "no DSN means disabled")
	assert.NotPanics(t, func() {
		CaptureError(errors.New("boom"), map[string]any{"stage": "verify"})
		AddBreadcrumb("checkout", "payment widget opened", nil)
	})

	var reached bool
	h := SentryMiddleware()(SentryContextMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		_, ok := w.(http.Flusher)
		assert.True(t, ok, "the writer is passed through untouched")
		w.WriteHeader(http.StatusNoContent)
	})))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events/counts", nil))

	assert.True(t, reached)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

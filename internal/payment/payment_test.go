package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"1230", 123000},
		{"0.5", 50},
		{"19.995", 2000},
		{"0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, MinorUnits(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestReceiptAndDescription(t *testing.T) {
	assert.Equal(t, "receipt_ord_7", Receipt("ord_7"))
	assert.Equal(t, "Order #ord_7", Description("ord_7"))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("sandbox")
	require.NoError(t, err)
	assert.Equal(t, ModeSandbox, m)

	m, err = ParseMode("live")
	require.NoError(t, err)
	assert.Equal(t, ModeLive, m)

	_, err = ParseMode("test")
	assert.Error(t, err)
}

// =============================================================================
// SimulatedWidget
// =============================================================================

func TestSimulatedWidget_Open(t *testing.T) {
	var waited time.Duration
	w := NewSimulatedWidget(2 * time.Second)
	w.after = func(d time.Duration) <-chan time.Time {
		waited = d
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}

	c, err := w.Open(context.Background(), WidgetConfig{GatewayOrderID: "order_sandbox_1"})

	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, waited)
	assert.Equal(t, "order_sandbox_1", c.OrderID)
	assert.True(t, strings.HasPrefix(c.PaymentID, "pay_sandbox_"))
	assert.True(t, strings.HasPrefix(c.Signature, "sig_sandbox_"))
}

func TestSimulatedWidget_ContextCancelled(t *testing.T) {
	w := NewSimulatedWidget(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Open(ctx, WidgetConfig{GatewayOrderID: "order_sandbox_1"})

	assert.ErrorIs(t, err, ErrCancelled)
}

func TestNewSimulatedWidget_DefaultDelay(t *testing.T) {
	assert.Equal(t, DefaultSandboxDelay, NewSimulatedWidget(0).Delay)
}

// =============================================================================
// CallbackWidget
// =============================================================================

func openAsync(w *CallbackWidget, ctx context.Context, cfg WidgetConfig) <-chan outcome {
	done := make(chan outcome, 1)
	go func() {
		c, err := w.Open(ctx, cfg)
		done <- outcome{confirmation: c, err: err}
	}()
	return done
}

func waitPending(t *testing.T, w *CallbackWidget, id string) WidgetConfig {
	t.Helper()
	var cfg WidgetConfig
	require.Eventually(t, func() bool {
		var ok bool
		cfg, ok = w.Pending(id)
		return ok
	}, time.Second, 5*time.Millisecond)
	return cfg
}

func TestCallbackWidget_Confirm(t *testing.T) {
	w := NewCallbackWidget(time.Minute)
	done := openAsync(w, context.Background(), WidgetConfig{AttemptID: "sess_1", GatewayOrderID: "order_1", KeyID: "rzp_live_x"})

	cfg := waitPending(t, w, "sess_1")
	assert.Equal(t, "rzp_live_x", cfg.KeyID)

	require.NoError(t, w.Confirm("sess_1", Confirmation{PaymentID: "pay_1", OrderID: "order_1", Signature: "sig"}))

	o := <-done
	require.NoError(t, o.err)
	assert.Equal(t, "pay_1", o.confirmation.PaymentID)

	_, ok := w.Pending("sess_1")
	assert.False(t, ok, "attempt is removed once answered")
}

func TestCallbackWidget_OrderMismatch(t *testing.T) {
	w := NewCallbackWidget(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := openAsync(w, ctx, WidgetConfig{AttemptID: "sess_1", GatewayOrderID: "order_1"})
	waitPending(t, w, "sess_1")

	err := w.Confirm("sess_1", Confirmation{PaymentID: "pay_1", OrderID: "order_other"})
	assert.ErrorIs(t, err, ErrOrderMismatch)

	require.NoError(t, w.Dismiss("sess_1"))
	o := <-done
	assert.ErrorIs(t, o.err, ErrCancelled)
}

func TestCallbackWidget_Dismiss(t *testing.T) {
	w := NewCallbackWidget(time.Minute)
	done := openAsync(w, context.Background(), WidgetConfig{AttemptID: "sess_1", GatewayOrderID: "order_1"})
	waitPending(t, w, "sess_1")

	require.NoError(t, w.Dismiss("sess_1"))

	o := <-done
	assert.Nil(t, o.confirmation)
	assert.ErrorIs(t, o.err, ErrCancelled)
	assert.Equal(t, domain.ECANCELED, domain.ErrorCode(o.err))
}

func TestCallbackWidget_Timeout(t *testing.T) {
	w := NewCallbackWidget(20 * time.Millisecond)

	_, err := w.Open(context.Background(), WidgetConfig{AttemptID: "sess_1", GatewayOrderID: "order_1"})

	assert.ErrorIs(t, err, ErrCancelled)
	_, ok := w.Pending("sess_1")
	assert.False(t, ok)
}

func TestCallbackWidget_NoAttempt(t *testing.T) {
	w := NewCallbackWidget(time.Minute)
	assert.ErrorIs(t, w.Confirm("nope", Confirmation{}), ErrNoAttempt)
	assert.ErrorIs(t, w.Dismiss("nope"), ErrNoAttempt)
}

func TestCallbackWidget_SecondOpenRejected(t *testing.T) {
	w := NewCallbackWidget(time.Minute)
	done := openAsync(w, context.Background(), WidgetConfig{AttemptID: "sess_1", GatewayOrderID: "order_1"})
	waitPending(t, w, "sess_1")

	_, err := w.Open(context.Background(), WidgetConfig{AttemptID: "sess_1", GatewayOrderID: "order_2"})
	assert.ErrorIs(t, err, ErrAttemptInProgress)

	require.NoError(t, w.Dismiss("sess_1"))
	<-done
}

// =============================================================================
// StripeGateway
// =============================================================================

type fakeIntents struct {
	newParams *stripe.PaymentIntentParams
	getID     string
	intent    *stripe.PaymentIntent
	err       error
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.newParams = params
	return f.intent, f.err
}

func (f *fakeIntents) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.getID = id
	return f.intent, f.err
}

func TestStripeGateway_CreateOrder(t *testing.T) {
	fake := &fakeIntents{intent: &stripe.PaymentIntent{ID: "pi_123", Amount: 123000, Currency: "inr"}}
	g := &StripeGateway{intents: fake}

	o, err := g.CreateOrder(context.Background(), CreateOrderParams{
		Amount:   decimal.NewFromInt(1230),
		Currency: "INR",
		Receipt:  "receipt_ord_1",
	})

	require.NoError(t, err)
	assert.Equal(t, "pi_123", o.ID)
	assert.True(t, o.Amount.Equal(decimal.NewFromInt(1230)))
	assert.Equal(t, "INR", o.Currency)

	require.NotNil(t, fake.newParams)
	assert.Equal(t, int64(123000), *fake.newParams.Amount)
	assert.Equal(t, "inr", *fake.newParams.Currency)
	assert.Equal(t, "receipt_ord_1", fake.newParams.Metadata["receipt"])
	assert.Equal(t, "receipt_ord_1", *fake.newParams.IdempotencyKey)
}

func TestStripeGateway_Verify(t *testing.T) {
	tests := []struct {
		name   string
		status stripe.PaymentIntentStatus
		want   bool
	}{
		{name: "succeeded", status: stripe.PaymentIntentStatusSucceeded, want: true},
		{name: "processing", status: stripe.PaymentIntentStatusProcessing, want: false},
		{name: "requires payment method", status: stripe.PaymentIntentStatusRequiresPaymentMethod, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeIntents{intent: &stripe.PaymentIntent{ID: "pi_123", Status: tt.status}}
			g := &StripeGateway{intents: fake}

			v, err := g.Verify(context.Background(), Confirmation{PaymentID: "pi_123", OrderID: "pi_123"})

			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Verified)
			assert.Equal(t, "pi_123", fake.getID)
		})
	}
}

func TestStripeGateway_Errors(t *testing.T) {
	fake := &fakeIntents{err: &stripe.Error{Msg: "Your card was declined.", Code: stripe.ErrorCodeCardDeclined, RequestID: "req_1"}}
	g := &StripeGateway{intents: fake}

	_, err := g.CreateOrder(context.Background(), CreateOrderParams{Amount: decimal.NewFromInt(10), Currency: "INR", Receipt: "r"})

	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "card_declined", ge.Code)
	assert.Equal(t, "req_1", ge.RequestID)
	assert.True(t, ge.IsDeclined())
}

func TestMockGateway_DefaultBehavior(t *testing.T) {
	m := NewMockGateway()

	o, err := m.CreateOrder(context.Background(), CreateOrderParams{Amount: decimal.NewFromInt(1230), Currency: "INR", Receipt: "receipt_1"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(o.ID, "order_sandbox_"))

	v, err := m.Verify(context.Background(), Confirmation{PaymentID: "pay_1", OrderID: o.ID})
	require.NoError(t, err)
	assert.True(t, v.Verified)

	assert.Equal(t, []string{"CreateOrder(1230.00, INR, receipt_1)", "Verify(pay_1, " + o.ID + ")"}, m.Calls())
	assert.Equal(t, 1, m.CountCalls("Verify"))
}

package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultSandboxDelay stands in for the time a shopper spends in the widget.
const DefaultSandboxDelay = 1500 * time.Millisecond

// SimulatedWidget is the sandbox Widget. After a fixed delay it returns a
// locally generated confirmation for the gateway order. The payment and
// signature ids only look like gateway output; they are not cryptographically
// meaningful and must only be verified by a sandbox-aware gateway.
type SimulatedWidget struct {
	Delay time.Duration

	// after is replaceable so tests do not sleep.
	after func(time.Duration) <-chan time.Time
}

// NewSimulatedWidget returns a sandbox widget; a non-positive delay uses DefaultSandboxDelay.
func NewSimulatedWidget(delay time.Duration) *SimulatedWidget {
	if delay <= 0 {
		delay = DefaultSandboxDelay
	}
	return &SimulatedWidget{Delay: delay, after: time.After}
}

// Open waits the configured delay, then confirms payment of cfg.GatewayOrderID.
func (w *SimulatedWidget) Open(ctx context.Context, cfg WidgetConfig) (*Confirmation, error) {
	after := w.after
	if after == nil {
		after = time.After
	}

	select {
	case <-ctx.Done():
		return nil, ErrCancelled
	case <-after(w.Delay):
	}

	return &Confirmation{
		PaymentID: "pay_sandbox_" + uuid.NewString(),
		OrderID:   cfg.GatewayOrderID,
		Signature: "sig_sandbox_" + uuid.NewString(),
	}, nil
}

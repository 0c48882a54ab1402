package payment

import (
	"context"
	"sync"
	"time"
)

// DefaultWidgetTimeout bounds how long a live widget may stay open.
const DefaultWidgetTimeout = 10 * time.Minute

// CallbackWidget is the live Widget. The gateway's overlay runs in the
// shopper's browser, so Open parks the attempt until the browser reports back
// through Confirm or Dismiss. An attempt nobody answers before the timeout is
// treated as a dismissal.
type CallbackWidget struct {
	timeout time.Duration

	mu       sync.Mutex
	attempts map[string]*attempt
}

type attempt struct {
	cfg    WidgetConfig
	result chan outcome
}

type outcome struct {
	confirmation *Confirmation
	err          error
}

func NewCallbackWidget(timeout time.Duration) *CallbackWidget {
	if timeout <= 0 {
		timeout = DefaultWidgetTimeout
	}
	return &CallbackWidget{
		timeout:  timeout,
		attempts: make(map[string]*attempt),
	}
}

// Open publishes cfg for the browser and waits for its callback.
func (w *CallbackWidget) Open(ctx context.Context, cfg WidgetConfig) (*Confirmation, error) {
	a := &attempt{cfg: cfg, result: make(chan outcome, 1)}

	w.mu.Lock()
	if _, exists := w.attempts[cfg.AttemptID]; exists {
		w.mu.Unlock()
		return nil, ErrAttemptInProgress
	}
	w.attempts[cfg.AttemptID] = a
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.attempts, cfg.AttemptID)
		w.mu.Unlock()
	}()

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	select {
	case o := <-a.result:
		return o.confirmation, o.err
	case <-timer.C:
		return nil, ErrCancelled
	case <-ctx.Done():
		return nil, ErrCancelled
	}
}

// Pending returns the configuration of the widget waiting for attemptID.
func (w *CallbackWidget) Pending(attemptID string) (WidgetConfig, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.attempts[attemptID]
	if !ok {
		return WidgetConfig{}, false
	}
	return a.cfg, true
}

// Confirm delivers the widget's success payload. The gateway order must match.
func (w *CallbackWidget) Confirm(attemptID string, c Confirmation) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	a, ok := w.attempts[attemptID]
	if !ok {
		return ErrNoAttempt
	}
	if c.OrderID != a.cfg.GatewayOrderID {
		return ErrOrderMismatch
	}
	return w.deliver(a, outcome{confirmation: &c})
}

// Dismiss reports that the shopper closed the widget without paying.
func (w *CallbackWidget) Dismiss(attemptID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	a, ok := w.attempts[attemptID]
	if !ok {
		return ErrNoAttempt
	}
	return w.deliver(a, outcome{err: ErrCancelled})
}

// deliver hands over the first callback. Later ones find the slot taken.
// Caller holds w.mu.
func (w *CallbackWidget) deliver(a *attempt, o outcome) error {
	select {
	case a.result <- o:
		return nil
	default:
		return ErrNoAttempt
	}
}

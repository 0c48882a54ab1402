package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

const flushTimeout = 2 * time.Second

// SentryConfig configures error reporting. With Enabled false or no DSN every
// helper in this file is a no-op.
type SentryConfig struct {
	DSN              string
	Enabled          bool
	Environment      string
	Release          string
	SampleRate       float64 // 0 means 1.0
	TracesSampleRate float64 // 0 disables tracing
	Debug            bool
}

var enabled atomic.Bool

// InitSentry starts the SDK and returns the flush to defer in main.
func InitSentry(cfg SentryConfig, logger *slog.Logger) (func(), error) {
	enabled.Store(false)
	if !cfg.Enabled || cfg.DSN == "" {
		logger.Info("Sentry disabled", "has_dsn", cfg.DSN != "")
		return func() {}, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 1.0
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		BeforeSend:       scrubEvent,
	}); err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	enabled.Store(true)

	logger.Info("Sentry initialized",
		"environment", cfg.Environment,
		"release", cfg.Release,
		"sample_rate", sampleRate,
	)
	return func() { sentry.Flush(flushTimeout) }, nil
}

// IsEnabled reports whether events are being sent.
func IsEnabled() bool {
	return enabled.Load()
}

// CaptureError reports err from outside a request, e.g. a background job.
func CaptureError(err error, extras map[string]any) {
	CaptureErrorFromContext(context.Background(), err, extras)
}

// CaptureErrorFromContext reports err on the request's hub, so the shopper
// and request id tagged by SentryContextMiddleware come along.
func CaptureErrorFromContext(ctx context.Context, err error, extras map[string]any) {
	if !IsEnabled() || err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_code", domain.ErrorCode(err))
		if op := domain.ErrorOp(err); op != "" {
			scope.SetTag("op", op)
		}
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		hub.CaptureException(err)
	})
}

// AddBreadcrumb records a step of a checkout for the next captured error.
func AddBreadcrumb(category, message string, data map[string]any) {
	if !IsEnabled() {
		return
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Data:     data,
		Level:    sentry.LevelInfo,
	})
}

// SentryMiddleware gives each request its own hub and transaction and reports
// panics. It re-panics so the router's recovery still writes the JSON 500.
func SentryMiddleware() func(http.Handler) http.Handler {
	h := sentryhttp.New(sentryhttp.Options{Repanic: true})
	return func(next http.Handler) http.Handler {
		wrapped := h.Handle(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}

// SentryContextMiddleware tags the request's hub with the request id and
// shopper. It must run after SentryMiddleware and WithShopper.
func SentryContextMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hub := sentry.GetHubFromContext(r.Context()); hub != nil && IsEnabled() {
				hub.ConfigureScope(func(scope *sentry.Scope) {
					if id := domain.RequestIDFromContext(r.Context()); id != "" {
						scope.SetTag("request_id", id)
					}
					if shopper := domain.ShopperFromContext(r.Context()); shopper != nil {
						scope.SetUser(sentry.User{ID: shopper.ID, Name: shopper.Name})
					}
				})
			}
			next.ServeHTTP(w, r)
		})
	}
}

// scrubEvent drops request bodies, cookies and auth headers before an event
// leaves the process. Checkout bodies can hold card numbers and CVVs.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request == nil {
		return event
	}
	event.Request.Data = ""
	event.Request.Cookies = ""
	for k := range event.Request.Headers {
		switch http.CanonicalHeaderKey(k) {
		case "Authorization", "Cookie":
			delete(event.Request.Headers, k)
		}
	}
	return event
}

// HTTPTransport records a span for each marketplace call.
type HTTPTransport struct {
	Transport http.RoundTripper
}

func (t *HTTPTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if !IsEnabled() {
		return base.RoundTrip(req)
	}

	span := sentry.StartSpan(req.Context(), "http.client")
	span.Description = req.Method + " " + req.URL.Host + req.URL.Path
	defer span.Finish()

	resp, err := base.RoundTrip(req)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}
	span.Status = sentry.HTTPtoSpanStatus(resp.StatusCode)
	span.SetData("http.status_code", resp.StatusCode)
	return resp, nil
}

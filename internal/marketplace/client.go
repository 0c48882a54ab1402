// Package marketplace is the HTTP client for the remote marketplace API.
//
// Every call runs as the shopper found in the request context: their bearer
// token is attached, an expired token fails locally without a round trip, and a
// 401 from the API is reported as EUNAUTHORIZED so the storefront can send the
// shopper to log in. Calls go through a circuit breaker that fails fast while
// the API is down. Nothing is retried.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/sony/gobreaker/v2"
)

const (
	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 4 << 20

	msgSessionExpired = "Your session has expired. Please log in again."
	msgUnavailable    = "The marketplace is unavailable right now. Please try again shortly."
)

var (
	ErrNotLoggedIn    = domain.Unauthorized("marketplace.auth", "Please log in to continue")
	ErrSessionExpired = domain.Unauthorized("marketplace.auth", msgSessionExpired)
)

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// BreakerFailures consecutive failures open the breaker for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// ObserveFunc receives the outcome of every upstream call, for metrics.
type ObserveFunc func(op string, status int, d time.Duration)

// Client talks to the marketplace API.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*response]
	logger  *slog.Logger
	observe ObserveFunc
	now     func() time.Time
}

type response struct {
	status int
	body   []byte
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithObserver installs a callback invoked after every upstream call.
func WithObserver(fn ObserveFunc) Option {
	return func(c *Client) { c.observe = fn }
}

// WithClock replaces time.Now for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a marketplace client.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		now:     time.Now,
	}

	c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "marketplace",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		IsSuccessful: isSuccessful,
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// isSuccessful counts only transport failures and 5xx answers against the
// breaker. A 4xx is the API working correctly and saying no.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var ue *upstreamError
	return errors.As(err, &ue) && ue.status < 500
}

// upstreamError is a non-2xx answer. It carries the API's own message.
type upstreamError struct {
	status  int
	message string
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("marketplace: status %d: %s", e.status, e.message)
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	shopper := domain.ShopperFromContext(ctx)
	if shopper == nil || shopper.Token == "" {
		return ErrNotLoggedIn
	}
	if shopper.Expired(c.now()) {
		return ErrSessionExpired
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return domain.Internal(err, op, "failed to encode request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return domain.Internal(err, op, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+shopper.Token)
	if id := domain.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.send(req)
	})
	status := 0
	if resp != nil {
		status = resp.status
	}
	if c.observe != nil {
		c.observe(op, status, time.Since(start))
	}

	if err != nil {
		return c.mapError(op, err)
	}

	if out == nil || len(resp.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return domain.Internal(err, op, "malformed response from marketplace")
	}
	return nil
}

// send performs one round trip. Non-2xx answers come back as *upstreamError
// together with the response so the caller can still see the status.
func (c *Client) send(req *http.Request) (*response, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	r := &response{status: res.StatusCode, body: b}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return r, nil
	}
	return r, &upstreamError{status: res.StatusCode, message: errorMessage(b)}
}

// errorMessage reads the API's {"message": "..."} error body.
func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

func (c *Client) mapError(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.Unavailable(err, op, msgUnavailable)
	}

	var ue *upstreamError
	if !errors.As(err, &ue) {
		if errors.Is(err, context.Canceled) {
			return domain.WrapError(err, domain.ECANCELED, op, "Request was cancelled")
		}
		c.logger.Warn("marketplace unreachable", slog.String("op", op), slog.String("error", err.Error()))
		return domain.Unavailable(err, op, msgUnavailable)
	}

	msg := ue.message
	code := statusToCode(ue.status)
	switch {
	case code == domain.EUNAUTHORIZED:
		msg = msgSessionExpired
	case msg == "" && code == domain.EUNAVAILABLE:
		msg = msgUnavailable
	case msg == "":
		msg = http.StatusText(ue.status)
	}
	return domain.WrapError(ue, code, op, msg)
}

func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.EINVALID
	case http.StatusUnauthorized:
		return domain.EUNAUTHORIZED
	case http.StatusPaymentRequired:
		return domain.EPAYMENT
	case http.StatusForbidden:
		return domain.EFORBIDDEN
	case http.StatusNotFound:
		return domain.ENOTFOUND
	case http.StatusConflict:
		return domain.ECONFLICT
	case http.StatusGone:
		return domain.EGONE
	case http.StatusTooManyRequests:
		return domain.ERATELIMIT
	}
	if status >= 500 {
		return domain.EUNAVAILABLE
	}
	return domain.EINVALID
}

// BreakerState reports the circuit breaker state, for health checks.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

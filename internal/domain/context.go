// Package domain provides core business types and context helpers for bazaar.
//
// Context helpers centralize request-scoped data access so that the shopper's
// marketplace token is always read the same way.
package domain

import (
	"context"
	"time"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// shopperContextKey stores the authenticated shopper.
	shopperContextKey contextKey = iota

	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey
)

// Shopper is the signed-in customer as read from their marketplace token.
// The token is not verified here; the marketplace API remains the authority.
type Shopper struct {
	ID        string
	Name      string
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the token's exp claim has passed.
// A zero ExpiresAt means the token carries no expiry.
func (s *Shopper) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// --- Shopper Context Helpers ---

// NewContextWithShopper returns a new context with the shopper attached.
func NewContextWithShopper(ctx context.Context, shopper *Shopper) context.Context {
	return context.WithValue(ctx, shopperContextKey, shopper)
}

// ShopperFromContext retrieves the shopper from context.
// Returns nil if no shopper is present.
func ShopperFromContext(ctx context.Context) *Shopper {
	shopper, _ := ctx.Value(shopperContextKey).(*Shopper)
	return shopper
}

// ShopperIDFromContext retrieves the shopper ID from context.
// Returns an empty string if no shopper is present.
func ShopperIDFromContext(ctx context.Context) string {
	if shopper := ShopperFromContext(ctx); shopper != nil {
		return shopper.ID
	}
	return ""
}

// IsAuthenticated returns true if there is a shopper in context.
func IsAuthenticated(ctx context.Context) bool {
	return ShopperFromContext(ctx) != nil
}

// --- Request ID Context Helpers ---

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}

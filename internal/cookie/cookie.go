// Package cookie provides the storefront's cookie helpers.
// The checkout session id rides in an HttpOnly cookie so a page reload can
// pick the session back up while it is still in memory.
package cookie

import (
	"net/http"
	"time"
)

// Config holds cookie configuration shared by every cookie the service sets.
type Config struct {
	// Domain scopes cookies; empty means host-only.
	Domain string

	// Secure determines whether cookies require HTTPS.
	// Should be true in production, false in development.
	Secure bool
}

// NewConfig creates a new cookie configuration.
//
// Example:
//
//	cfg := cookie.NewConfig("shop.example.com", true) // production
//	cfg := cookie.NewConfig("", false)                // development
func NewConfig(domain string, secure bool) *Config {
	return &Config{
		Domain: domain,
		Secure: secure,
	}
}

// SetSession sets an HttpOnly, SameSite=Lax session cookie limited to path.
// maxAge is rounded down to whole seconds.
func (c *Config) SetSession(w http.ResponseWriter, name, value, path string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   c.Domain,
		Path:     path,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession removes a session cookie by setting MaxAge to -1.
// Domain and path must match the ones it was set with.
func (c *Config) ClearSession(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Domain:   c.Domain,
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Get retrieves a cookie value from the request.
// Returns empty string if cookie not found.
func Get(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

const (
	// CheckoutCookieName carries the id of the shopper's open checkout session.
	CheckoutCookieName = "bazaar_checkout"

	// CheckoutCookiePath keeps the checkout cookie off every other route.
	CheckoutCookiePath = "/api/checkout"
)

package middleware

import (
	"net/http"
	"strconv"
)

// SecurityHeadersConfig lists the response headers set on every API reply.
// Empty values are not sent; HSTSMaxAge 0 disables HSTS.
type SecurityHeadersConfig struct {
	ContentSecurityPolicy string
	FrameOptions          string
	ContentTypeNosniff    bool
	ReferrerPolicy        string
	PermissionsPolicy     string
	HSTSMaxAge            int // seconds
	HSTSIncludeSubdomains bool
}

// DefaultSecurityHeadersConfig returns headers for a JSON API. Nothing this
// service serves is meant to be rendered or framed by a browser.
func DefaultSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		FrameOptions:          "DENY",
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		PermissionsPolicy:     "camera=(), microphone=(), geolocation=()",
		HSTSMaxAge:            365 * 24 * 60 * 60,
		HSTSIncludeSubdomains: true,
	}
}

// DevSecurityHeadersConfig drops HSTS so plain-http local development keeps working.
func DevSecurityHeadersConfig() SecurityHeadersConfig {
	cfg := DefaultSecurityHeadersConfig()
	cfg.HSTSMaxAge = 0
	return cfg
}

func (c SecurityHeadersConfig) headers() map[string]string {
	h := map[string]string{
		"Content-Security-Policy": c.ContentSecurityPolicy,
		"X-Frame-Options":         c.FrameOptions,
		"Referrer-Policy":         c.ReferrerPolicy,
		"Permissions-Policy":      c.PermissionsPolicy,
	}
	if c.ContentTypeNosniff {
		h["X-Content-Type-Options"] = "nosniff"
	}
	if c.HSTSMaxAge > 0 {
		hsts := "max-age=" + strconv.Itoa(c.HSTSMaxAge)
		if c.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
		h["Strict-Transport-Security"] = hsts
	}
	for k, v := range h {
		if v == "" {
			delete(h, k)
		}
	}
	return h
}

// SecurityHeaders sets the configured headers before the handler runs.
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	headers := config.headers()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for k, v := range headers {
				w.Header().Set(k, v)
			}
			next.ServeHTTP(w, r)
		})
	}
}

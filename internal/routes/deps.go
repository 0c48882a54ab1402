package routes

import (
	"net/http"

	"github.com/dukerupert/bazaar/internal/handler/storefront"
	"github.com/dukerupert/bazaar/internal/router"
)

// StorefrontDeps contains dependencies for the storefront JSON API
type StorefrontDeps struct {
	// Checkout (session, steps, place order, live widget bridge)
	CheckoutHandler *storefront.CheckoutHandler

	// Cart
	CartHandler *storefront.CartHandler

	// Wishlist
	WishlistHandler *storefront.WishlistHandler

	// Badge counts (Server-Sent Events)
	EventsHandler *storefront.EventsHandler

	// RequestTimeout bounds the plain request/response routes. Place-order and
	// the event stream are registered without it.
	RequestTimeout router.Middleware

	// PlaceOrderLimit throttles order placement per shopper.
	PlaceOrderLimit router.Middleware
}

// OpsDeps contains dependencies for operational routes
type OpsDeps struct {
	MetricsHandler http.Handler
	HealthHandler  http.Handler
}

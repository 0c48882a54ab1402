package routes

import (
	"net/http"

	"github.com/dukerupert/bazaar/internal/middleware"
	"github.com/dukerupert/bazaar/internal/router"
)

// RegisterStorefrontRoutes registers the shopper-facing JSON API. Every route
// requires a signed-in shopper.
func RegisterStorefrontRoutes(r *router.Router, deps StorefrontDeps) {
	api := r.Group(middleware.RequireShopper)

	short := api
	if deps.RequestTimeout != nil {
		short = api.Group(deps.RequestTimeout)
	}

	// Checkout session and step navigation
	checkout := deps.CheckoutHandler
	short.Post("/api/checkout", checkout.Begin)
	short.Get("/api/checkout", checkout.Get)
	short.Delete("/api/checkout", checkout.Abandon)
	short.Put("/api/checkout/address", checkout.SetAddress)
	short.Put("/api/checkout/payment-method", checkout.SetPayment)
	short.Post("/api/checkout/next", checkout.Next)
	short.Post("/api/checkout/previous", checkout.Previous)

	// Order placement holds the request open while the payment widget is up
	placeOrder := api
	if deps.PlaceOrderLimit != nil {
		placeOrder = api.Group(deps.PlaceOrderLimit)
	}
	placeOrder.Post("/api/checkout/place-order", checkout.PlaceOrder)

	// Live payment widget bridge
	short.Get("/api/checkout/payment", checkout.Payment)
	short.Post("/api/checkout/payment/confirm", checkout.ConfirmPayment)
	short.Post("/api/checkout/payment/dismiss", checkout.DismissPayment)

	// Shopping cart
	short.Get("/api/cart", deps.CartHandler.View)
	short.Delete("/api/cart", deps.CartHandler.Clear)
	short.Post("/api/cart/items", deps.CartHandler.Add)
	short.Put("/api/cart/items/{id}", deps.CartHandler.Update)
	short.Delete("/api/cart/items/{id}", deps.CartHandler.Remove)

	// Wishlist
	short.Get("/api/wishlist", deps.WishlistHandler.List)
	short.Post("/api/wishlist", deps.WishlistHandler.Add)
	short.Delete("/api/wishlist/{productID}", deps.WishlistHandler.Remove)

	// Badge counts stream until the client disconnects
	api.Get("/api/events/counts", deps.EventsHandler.Counts)
}

// RegisterOpsRoutes registers metrics and health endpoints. They carry no
// shopper authentication and should be firewalled in production.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Handle(http.MethodGet, "/metrics", deps.MetricsHandler)
	r.Handle(http.MethodGet, "/health", deps.HealthHandler)
}

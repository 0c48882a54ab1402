package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/bazaar/internal/cookie"
	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/dukerupert/bazaar/internal/handler/storefront"
	"github.com/dukerupert/bazaar/internal/router"
	"github.com/stretchr/testify/assert"
)

// marker answers with status instead of calling the route's handler, so the
// test can see which middleware a route carries.
func marker(status int) router.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
	}
}

func newTestRouter() *router.Router {
	r := router.New()
	RegisterStorefrontRoutes(r, StorefrontDeps{
		CheckoutHandler: storefront.NewCheckoutHandler(nil, nil, nil, cookie.NewConfig("", false), time.Hour),
		CartHandler:     storefront.NewCartHandler(nil),
		WishlistHandler: storefront.NewWishlistHandler(nil),
		EventsHandler:   storefront.NewEventsHandler(nil, nil, nil, 0),
		RequestTimeout:  marker(http.StatusAccepted),
		PlaceOrderLimit: marker(http.StatusTooManyRequests),
	})
	RegisterOpsRoutes(r, OpsDeps{
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
		HealthHandler:  http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	})
	return r
}

func signedIn(req *http.Request) *http.Request {
	ctx := domain.NewContextWithShopper(req.Context(), &domain.Shopper{ID: "u_1", Token: "tok"})
	return req.WithContext(ctx)
}

func TestStorefrontRoutes_RequireShopper(t *testing.T) {
	r := newTestRouter()

	for _, target := range []string{"/api/cart", "/api/checkout", "/api/wishlist", "/api/events/counts"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
	}
}

func TestStorefrontRoutes_MiddlewarePerRoute(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodPost, "/api/checkout", http.StatusAccepted},
		{http.MethodPut, "/api/checkout/payment-method", http.StatusAccepted},
		{http.MethodPost, "/api/checkout/payment/confirm", http.StatusAccepted},
		{http.MethodDelete, "/api/cart/items/ci_1", http.StatusAccepted},
		{http.MethodDelete, "/api/wishlist/p_1", http.StatusAccepted},
		{http.MethodPost, "/api/checkout/place-order", http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, signedIn(httptest.NewRequest(tt.method, tt.target, nil)))

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestOpsRoutes_NoShopperNeeded(t *testing.T) {
	r := newTestRouter()

	for _, target := range []string{"/metrics", "/health"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))

		assert.Equal(t, http.StatusOK, w.Code, target)
	}
}

func TestRoutes_Table(t *testing.T) {
	r := newTestRouter()

	assert.ElementsMatch(t, []string{
		"POST /api/checkout",
		"GET /api/checkout",
		"DELETE /api/checkout",
		"PUT /api/checkout/address",
		"PUT /api/checkout/payment-method",
		"POST /api/checkout/next",
		"POST /api/checkout/previous",
		"POST /api/checkout/place-order",
		"GET /api/checkout/payment",
		"POST /api/checkout/payment/confirm",
		"POST /api/checkout/payment/dismiss",
		"GET /api/cart",
		"DELETE /api/cart",
		"POST /api/cart/items",
		"PUT /api/cart/items/{id}",
		"DELETE /api/cart/items/{id}",
		"GET /api/wishlist",
		"POST /api/wishlist",
		"DELETE /api/wishlist/{productID}",
		"GET /api/events/counts",
		"GET /metrics",
		"GET /health",
	}, r.Routes())
}

package storefront

import (
	"net/http"

	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/dukerupert/bazaar/internal/handler"
	"github.com/dukerupert/bazaar/internal/service"
)

// CartHandler handles all cart-related storefront routes
type CartHandler struct {
	cartService service.CartService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService service.CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

// View handles GET /api/cart
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	snap, err := h.cartService.Load(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, snap)
}

// Add handles POST /api/cart/items
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var params domain.AddCartItemParams
	if err := handler.DecodeJSON(r, "cart.add", &params); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if params.ProductID == "" {
		handler.ErrorResponse(w, r, domain.NewValidationError("cart.add", "productId", "is required"))
		return
	}
	if params.Quantity == 0 {
		params.Quantity = 1
	}

	snap, err := h.cartService.Add(r.Context(), params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, snap)
}

// Update handles PUT /api/cart/items/{id}
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := handler.DecodeJSON(r, "cart.update", &body); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	snap, err := h.cartService.UpdateQuantity(r.Context(), r.PathValue("id"), body.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, snap)
}

// Remove handles DELETE /api/cart/items/{id}
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	snap, err := h.cartService.Remove(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, snap)
}

// Clear handles DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cartService.Clear(r.Context()); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

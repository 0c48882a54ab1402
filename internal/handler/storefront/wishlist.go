package storefront

import (
	"net/http"

	"github.com/dukerupert/bazaar/internal/handler"
	"github.com/dukerupert/bazaar/internal/service"
)

// WishlistHandler handles the wishlist routes
type WishlistHandler struct {
	wishlist service.WishlistService
}

// NewWishlistHandler creates a new wishlist handler
func NewWishlistHandler(wishlist service.WishlistService) *WishlistHandler {
	return &WishlistHandler{wishlist: wishlist}
}

type wishlistResponse struct {
	Products any `json:"products"`
	Count    int `json:"count"`
}

// List handles GET /api/wishlist
func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.wishlist.List(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, wishlistResponse{Products: products, Count: len(products)})
}

// Add handles POST /api/wishlist
func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID string `json:"productId"`
	}
	if err := handler.DecodeJSON(r, "wishlist.add", &body); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	products, err := h.wishlist.Add(r.Context(), body.ProductID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, wishlistResponse{Products: products, Count: len(products)})
}

// Remove handles DELETE /api/wishlist/{productID}
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	products, err := h.wishlist.Remove(r.Context(), r.PathValue("productID"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, wishlistResponse{Products: products, Count: len(products)})
}

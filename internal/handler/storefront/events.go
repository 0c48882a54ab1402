package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/dukerupert/bazaar/internal/events"
	"github.com/dukerupert/bazaar/internal/handler"
	"github.com/dukerupert/bazaar/internal/middleware"
	"github.com/dukerupert/bazaar/internal/service"
)

// DefaultKeepAlive is how often an idle event stream sends a comment line so
// proxies do not close it.
const DefaultKeepAlive = 25 * time.Second

// EventsHandler streams cart and wishlist badge counts as Server-Sent Events.
type EventsHandler struct {
	bus       events.Bus
	carts     service.CartService
	wishlist  service.WishlistService
	keepAlive time.Duration
}

// NewEventsHandler creates a new events handler. carts and wishlist provide
// the counts sent when a stream opens; either may be nil.
func NewEventsHandler(bus events.Bus, carts service.CartService, wishlist service.WishlistService, keepAlive time.Duration) *EventsHandler {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &EventsHandler{bus: bus, carts: carts, wishlist: wishlist, keepAlive: keepAlive}
}

// Counts handles GET /api/events/counts
func (h *EventsHandler) Counts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := domain.ShopperIDFromContext(ctx)
	logger := middleware.GetLogger(ctx)

	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		handler.InternalErrorResponse(w, r, err)
		return
	}

	// Subscribe before reading the initial counts so no change slips between them.
	updates, cancel := h.bus.Subscribe(ownerID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, e := range h.initialCounts(ctx, ownerID) {
		if err := writeEvent(w, e); err != nil {
			return
		}
	}
	if err := rc.Flush(); err != nil {
		logger.Warn("event stream cannot flush", "error", err)
		return
	}
	logger.Debug("event stream opened")

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("event stream closed")
			return
		case e, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, e); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// initialCounts reads the current counts so a fresh badge is not blank until
// the next change. Failures only leave that badge empty.
func (h *EventsHandler) initialCounts(ctx context.Context, ownerID string) []events.CountChanged {
	var out []events.CountChanged
	now := time.Now()
	logger := middleware.GetLogger(ctx)

	if h.carts != nil {
		if snap, err := h.carts.Load(ctx); err == nil {
			out = append(out, events.CountChanged{Kind: events.KindCart, OwnerID: ownerID, Count: snap.ItemCount, At: now})
		} else {
			logger.Debug("initial cart count unavailable", "error", err)
		}
	}
	if h.wishlist != nil {
		if products, err := h.wishlist.List(ctx); err == nil {
			out = append(out, events.CountChanged{Kind: events.KindWishlist, OwnerID: ownerID, Count: len(products), At: now})
		} else {
			logger.Debug("initial wishlist count unavailable", "error", err)
		}
	}
	return out
}

// writeEvent writes one SSE frame named after the count kind.
func writeEvent(w io.Writer, e events.CountChanged) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
	return err
}

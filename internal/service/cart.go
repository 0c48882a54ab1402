package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/dukerupert/bazaar/internal/events"
	"github.com/dukerupert/bazaar/internal/pricing"
	"github.com/dukerupert/bazaar/internal/telemetry"
	"golang.org/x/sync/singleflight"
)

// CartService loads the shopper's cart with its price summary and applies
// cart mutations. Every result carries a summary recomputed from scratch.
type CartService interface {
	// Load fetches the cart. Concurrent loads for the same shopper share one upstream call.
	Load(ctx context.Context) (*CartSnapshot, error)
	Add(ctx context.Context, params domain.AddCartItemParams) (*CartSnapshot, error)
	UpdateQuantity(ctx context.Context, itemID string, quantity int) (*CartSnapshot, error)
	Remove(ctx context.Context, itemID string) (*CartSnapshot, error)
	Clear(ctx context.Context) error
}

// CartSnapshot is the cart as the storefront shows it.
type CartSnapshot struct {
	Items     []domain.CartLineItem `json:"items"`
	Summary   pricing.Summary       `json:"summary"`
	ItemCount int                   `json:"itemCount"`
}

func newCartSnapshot(items []domain.CartLineItem, rules pricing.Rules) *CartSnapshot {
	if items == nil {
		items = []domain.CartLineItem{}
	}
	return &CartSnapshot{
		Items:     items,
		Summary:   rules.Compute(items),
		ItemCount: domain.ItemCount(items),
	}
}

type cartService struct {
	api     domain.CartAPI
	rules   pricing.Rules
	bus     events.Bus
	metrics *telemetry.CheckoutMetrics
	logger  *slog.Logger
	loads   singleflight.Group
}

// NewCartService creates a new CartService instance.
func NewCartService(api domain.CartAPI, rules pricing.Rules, bus events.Bus, metrics *telemetry.CheckoutMetrics, logger *slog.Logger) CartService {
	if logger == nil {
		logger = slog.Default()
	}
	return &cartService{
		api:     api,
		rules:   rules,
		bus:     bus,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *cartService) Load(ctx context.Context) (*CartSnapshot, error) {
	ownerID := domain.ShopperIDFromContext(ctx)
	if ownerID == "" {
		return nil, domain.Unauthorized("cart.load", "Please log in to continue")
	}

	v, err, shared := s.loads.Do(ownerID, func() (interface{}, error) {
		return s.api.List(ctx)
	})
	if shared && s.metrics != nil {
		s.metrics.CartLoadsShared.Inc()
	}
	if err != nil {
		return nil, err
	}
	// Every caller gets its own copy of the shared slice.
	items := append([]domain.CartLineItem(nil), v.([]domain.CartLineItem)...)
	return newCartSnapshot(items, s.rules), nil
}

func (s *cartService) Add(ctx context.Context, params domain.AddCartItemParams) (*CartSnapshot, error) {
	if params.Quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	items, err := s.api.AddItem(ctx, params)
	if err != nil {
		return nil, err
	}
	return s.mutated(ctx, "add", items), nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, itemID string, quantity int) (*CartSnapshot, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	items, err := s.api.UpdateQuantity(ctx, itemID, quantity)
	if err != nil {
		return nil, err
	}
	return s.mutated(ctx, "update", items), nil
}

func (s *cartService) Remove(ctx context.Context, itemID string) (*CartSnapshot, error) {
	items, err := s.api.RemoveItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return s.mutated(ctx, "remove", items), nil
}

func (s *cartService) Clear(ctx context.Context) error {
	if err := s.api.Clear(ctx); err != nil {
		return err
	}
	s.mutated(ctx, "clear", nil)
	return nil
}

// mutated recomputes the snapshot and announces the new count.
func (s *cartService) mutated(ctx context.Context, op string, items []domain.CartLineItem) *CartSnapshot {
	snap := newCartSnapshot(items, s.rules)
	if s.metrics != nil {
		s.metrics.CartMutations.WithLabelValues(op).Inc()
	}
	publishCount(ctx, s.bus, s.logger, events.KindCart, domain.ShopperIDFromContext(ctx), snap.ItemCount)
	return snap
}

// publishCount announces a count change. A failed publish only costs a stale badge.
func publishCount(ctx context.Context, bus events.Bus, logger *slog.Logger, kind events.Kind, ownerID string, count int) {
	if bus == nil || ownerID == "" {
		return
	}
	err := bus.Publish(ctx, events.CountChanged{
		Kind:    kind,
		OwnerID: ownerID,
		Count:   count,
		At:      time.Now(),
	})
	if err != nil {
		logger.Warn("failed to publish count",
			slog.String("kind", string(kind)),
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
	}
}

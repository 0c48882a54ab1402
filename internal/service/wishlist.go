package service

import (
	"context"
	"log/slog"

	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/dukerupert/bazaar/internal/events"
	"github.com/dukerupert/bazaar/internal/telemetry"
)

// WishlistService lists and edits the shopper's wishlist.
type WishlistService interface {
	List(ctx context.Context) ([]domain.ProductSnapshot, error)
	Add(ctx context.Context, productID string) ([]domain.ProductSnapshot, error)
	Remove(ctx context.Context, productID string) ([]domain.ProductSnapshot, error)
}

type wishlistService struct {
	api     domain.WishlistAPI
	bus     events.Bus
	metrics *telemetry.CheckoutMetrics
	logger  *slog.Logger
}

// NewWishlistService creates a new WishlistService instance.
func NewWishlistService(api domain.WishlistAPI, bus events.Bus, metrics *telemetry.CheckoutMetrics, logger *slog.Logger) WishlistService {
	if logger == nil {
		logger = slog.Default()
	}
	return &wishlistService{api: api, bus: bus, metrics: metrics, logger: logger}
}

func (s *wishlistService) List(ctx context.Context) ([]domain.ProductSnapshot, error) {
	products, err := s.api.List(ctx)
	if err != nil {
		return nil, err
	}
	return nonNil(products), nil
}

func (s *wishlistService) Add(ctx context.Context, productID string) ([]domain.ProductSnapshot, error) {
	if productID == "" {
		return nil, domain.NewValidationError("wishlist.add", "productId", "is required")
	}
	products, err := s.api.Add(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.mutated(ctx, "add", products), nil
}

func (s *wishlistService) Remove(ctx context.Context, productID string) ([]domain.ProductSnapshot, error) {
	products, err := s.api.Remove(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.mutated(ctx, "remove", products), nil
}

func (s *wishlistService) mutated(ctx context.Context, op string, products []domain.ProductSnapshot) []domain.ProductSnapshot {
	products = nonNil(products)
	if s.metrics != nil {
		s.metrics.WishlistMutations.WithLabelValues(op).Inc()
	}
	publishCount(ctx, s.bus, s.logger, events.KindWishlist, domain.ShopperIDFromContext(ctx), len(products))
	return products
}

func nonNil(products []domain.ProductSnapshot) []domain.ProductSnapshot {
	if products == nil {
		return []domain.ProductSnapshot{}
	}
	return products
}

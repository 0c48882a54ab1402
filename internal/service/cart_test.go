package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/dukerupert/bazaar/internal/events"
	"github.com/dukerupert/bazaar/internal/pricing"
	"github.com/dukerupert/bazaar/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartService_Load(t *testing.T) {
	api := &mockCartAPI{Items: lampCart()}
	svc := NewCartService(api, pricing.DefaultRules(), nil, nil, nil)

	snap, err := svc.Load(shopperContext())

	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.ItemCount)
	assert.True(t, snap.Summary.Subtotal.Equal(decimal.NewFromInt(1000)))
	assert.True(t, snap.Summary.Delivery.Equal(decimal.NewFromInt(50)))
	assert.True(t, snap.Summary.Total.Equal(decimal.NewFromInt(1230)))
}

func TestCartService_LoadRequiresShopper(t *testing.T) {
	api := &mockCartAPI{}
	svc := NewCartService(api, pricing.DefaultRules(), nil, nil, nil)

	_, err := svc.Load(context.Background())

	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
	assert.Equal(t, 0, api.count("List"))
}

func TestCartService_ConcurrentLoadsShareOneCall(t *testing.T) {
	release := make(chan struct{})
	var entered atomic.Int32
	api := &mockCartAPI{ListFunc: func(ctx context.Context) ([]domain.CartLineItem, error) {
		entered.Add(1)
		<-release
		return lampCart(), nil
	}}
	metrics := telemetry.NewCheckoutMetrics("test", prometheus.NewRegistry())
	svc := NewCartService(api, pricing.DefaultRules(), nil, metrics, nil)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*CartSnapshot, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := svc.Load(shopperContext())
			assert.NoError(t, err)
			results[i] = snap
		}(i)
	}

	require.Eventually(t, func() bool { return entered.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, api.count("List"))
	assert.Equal(t, float64(callers), testutil.ToFloat64(metrics.CartLoadsShared), "every caller of a shared load counts, the leader included")

	results[0].Items[0].Quantity = 99
	assert.Equal(t, 2, results[1].Items[0].Quantity, "callers do not share the item slice")
}

func TestCartService_MutationsRecomputeAndPublish(t *testing.T) {
	api := &mockCartAPI{Items: lampCart()}
	bus := events.NewMemoryBus()
	counts, cancel := bus.Subscribe("u_1")
	defer cancel()
	svc := NewCartService(api, pricing.DefaultRules(), bus, nil, nil)
	ctx := shopperContext()

	snap, err := svc.UpdateQuantity(ctx, "ci_1", 3)
	require.NoError(t, err)
	assert.True(t, snap.Summary.Subtotal.Equal(decimal.NewFromInt(1500)))
	assert.True(t, snap.Summary.Delivery.IsZero(), "subtotal above the threshold ships free")
	assert.Equal(t, 3, (<-counts).Count)

	snap, err = svc.Add(ctx, domain.AddCartItemParams{ProductID: "p_mug", SellerID: "s_2", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, snap.ItemCount)
	assert.Equal(t, 4, (<-counts).Count)

	snap, err = svc.Remove(ctx, "ci_1")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ItemCount)
	assert.Equal(t, 1, (<-counts).Count)

	require.NoError(t, svc.Clear(ctx))
	e := <-counts
	assert.Equal(t, 0, e.Count)
	assert.Equal(t, events.KindCart, e.Kind)
}

func TestCartService_RejectsBadQuantityLocally(t *testing.T) {
	api := &mockCartAPI{Items: lampCart()}
	svc := NewCartService(api, pricing.DefaultRules(), nil, nil, nil)

	_, err := svc.UpdateQuantity(shopperContext(), "ci_1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = svc.Add(shopperContext(), domain.AddCartItemParams{ProductID: "p", SellerID: "s", Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	assert.Empty(t, api.CallLog)
}

func TestCartService_FailedMutationPublishesNothing(t *testing.T) {
	api := &mockCartAPI{Items: lampCart()}
	bus := events.NewMemoryBus()
	counts, cancel := bus.Subscribe("u_1")
	defer cancel()
	svc := NewCartService(api, pricing.DefaultRules(), bus, nil, nil)

	_, err := svc.UpdateQuantity(shopperContext(), "ci_missing", 2)

	assert.ErrorIs(t, err, domain.ErrCartItemNotFound)
	assert.Len(t, counts, 0)
}

func TestWishlistService(t *testing.T) {
	api := &mockWishlistAPI{}
	bus := events.NewMemoryBus()
	counts, cancel := bus.Subscribe("u_1")
	defer cancel()
	svc := NewWishlistService(api, bus, nil, nil)
	ctx := shopperContext()

	products, err := svc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)

	products, err = svc.Add(ctx, "p_1")
	require.NoError(t, err)
	assert.Len(t, products, 1)
	e := <-counts
	assert.Equal(t, events.KindWishlist, e.Kind)
	assert.Equal(t, 1, e.Count)

	_, err = svc.Add(ctx, "")
	assert.True(t, domain.IsValidationError(err))

	products, err = svc.Remove(ctx, "p_1")
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, 0, (<-counts).Count)
}

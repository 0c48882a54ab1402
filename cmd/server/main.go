package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/bazaar/internal"
	"github.com/dukerupert/bazaar/internal/checkout"
	"github.com/dukerupert/bazaar/internal/cookie"
	"github.com/dukerupert/bazaar/internal/events"
	"github.com/dukerupert/bazaar/internal/handler"
	"github.com/dukerupert/bazaar/internal/handler/storefront"
	"github.com/dukerupert/bazaar/internal/jobs"
	"github.com/dukerupert/bazaar/internal/marketplace"
	"github.com/dukerupert/bazaar/internal/middleware"
	"github.com/dukerupert/bazaar/internal/payment"
	"github.com/dukerupert/bazaar/internal/pricing"
	"github.com/dukerupert/bazaar/internal/router"
	"github.com/dukerupert/bazaar/internal/routes"
	"github.com/dukerupert/bazaar/internal/service"
	"github.com/dukerupert/bazaar/internal/telemetry"
	"github.com/dukerupert/bazaar/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Money is rendered as JSON numbers, as the storefront expects
	decimal.MarshalJSONWithoutQuotes = true

	// Initialize Sentry
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled && cfg.Sentry.DSN != "",
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	// Initialize Prometheus metrics on a private registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewMetrics(cfg.Metrics.Namespace, registry)
	checkoutMetrics := telemetry.InitCheckoutMetrics(cfg.Metrics.Namespace, registry)

	rules, err := pricing.ParseRules(cfg.Pricing.FreeDeliveryThreshold, cfg.Pricing.DeliveryFee, cfg.Pricing.TaxRate)
	if err != nil {
		return fmt.Errorf("pricing configuration invalid: %w", err)
	}

	// ==========================================================================
	// Marketplace API client
	// ==========================================================================

	timeout := time.Duration(cfg.Marketplace.TimeoutSeconds) * time.Second
	client := marketplace.New(marketplace.Config{
		BaseURL:         cfg.Marketplace.BaseURL,
		Timeout:         timeout,
		BreakerFailures: uint32(cfg.Marketplace.BreakerFailures),
		BreakerCooldown: time.Duration(cfg.Marketplace.BreakerCooldownSeconds) * time.Second,
	}, logger,
		marketplace.WithHTTPClient(&http.Client{
			Timeout:   timeout,
			Transport: &telemetry.HTTPTransport{Transport: http.DefaultTransport},
		}),
		marketplace.WithObserver(checkoutMetrics.ObserveMarketplace),
	)
	logger.Info("Marketplace client initialized", "base_url", cfg.Marketplace.BaseURL)

	// ==========================================================================
	// Count-changed bus
	// ==========================================================================

	var bus events.Bus
	if cfg.Events.NATSURL != "" {
		natsBus, err := events.NewNATSBus(cfg.Events.NATSURL, cfg.Events.Subject, logger)
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		defer natsBus.Close()
		bus = natsBus
		logger.Info("Count events published over NATS", "subject_prefix", cfg.Events.Subject)
	} else {
		bus = events.NewMemoryBus()
		logger.Info("Count events kept in-process")
	}

	// ==========================================================================
	// Payment bridge
	// ==========================================================================

	mode, err := payment.ParseMode(cfg.Payment.Mode)
	if err != nil {
		return err
	}

	var gateway payment.Gateway = client.Payments()
	if cfg.Payment.Gateway == "stripe" {
		gateway = payment.NewStripeGateway(cfg.Payment.StripeSecretKey)
	}

	widgetTimeout := time.Duration(cfg.Payment.WidgetTimeoutSeconds) * time.Second
	var (
		widget payment.Widget
		bridge storefront.WidgetBridge
	)
	switch mode {
	case payment.ModeLive:
		callback := payment.NewCallbackWidget(widgetTimeout)
		widget, bridge = callback, callback
	default:
		widget = payment.NewSimulatedWidget(time.Duration(cfg.Payment.SandboxDelayMs) * time.Millisecond)
	}
	logger.Info("Payment bridge initialized", "mode", mode, "gateway", cfg.Payment.Gateway)

	// ==========================================================================
	// Services
	// ==========================================================================

	store := checkout.NewStore()
	cartService := service.NewCartService(client.Cart(), rules, bus, checkoutMetrics, logger)
	wishlistService := service.NewWishlistService(client.Wishlist(), bus, checkoutMetrics, logger)
	checkoutService := service.NewCheckoutService(store, cartService, rules, checkoutMetrics, logger)
	orderService := service.NewOrderService(
		store,
		client.Orders(),
		client.Cart(),
		gateway,
		widget,
		bus,
		service.OrderConfig{
			Mode:       mode,
			Currency:   cfg.Pricing.Currency,
			KeyID:      cfg.Payment.KeyID,
			StoreName:  cfg.Payment.StoreName,
			ThemeColor: cfg.Payment.ThemeColor,
		},
		checkoutMetrics,
		logger,
	)

	// Background janitor for abandoned checkout sessions
	sessionIdle := time.Duration(cfg.Checkout.SessionIdleMinutes) * time.Minute
	janitor := worker.NewWorker(worker.Config{
		PollInterval:   time.Duration(cfg.Checkout.JanitorIntervalSeconds) * time.Second,
		MaxConcurrency: 1,
	}, logger, jobs.NewExpireCheckoutSessions(checkoutService, sessionIdle, logger))
	go func() {
		if err := janitor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("worker stopped", "error", err)
		}
	}()

	// ==========================================================================
	// Initialize middleware
	// ==========================================================================

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig = middleware.DevSecurityHeadersConfig()
	}

	defaultRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer defaultRateLimiter.Stop()
	placeOrderLimiter := middleware.NewRateLimiter(middleware.StrictRateLimiterConfig())
	defer placeOrderLimiter.Stop()

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		middleware.WithClientIP(),
		telemetry.SentryMiddleware(),
		middleware.WithShopper,
		middleware.WithRequestLogger(logger),
		telemetry.SentryContextMiddleware(),
		httpMetrics.Middleware,
		router.Logger(logger),
		router.CORS(cfg.CORSAllowedOrigins),
		middleware.SecurityHeaders(securityConfig),
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		defaultRateLimiter.Middleware,
	)

	cookies := cookie.NewConfig(cfg.Cookie.Domain, cfg.Cookie.Secure)
	routes.RegisterStorefrontRoutes(r, routes.StorefrontDeps{
		CheckoutHandler: storefront.NewCheckoutHandler(checkoutService, orderService, bridge, cookies, sessionIdle),
		CartHandler:     storefront.NewCartHandler(cartService),
		WishlistHandler: storefront.NewWishlistHandler(wishlistService),
		EventsHandler:   storefront.NewEventsHandler(bus, cartService, wishlistService, storefront.DefaultKeepAlive),
		RequestTimeout:  middleware.Timeout(middleware.DefaultTimeout),
		PlaceOrderLimit: placeOrderLimiter.Middleware,
	})
	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		MetricsHandler: httpMetrics.Handler(),
		HealthHandler:  handler.NewHealthHandler(client.BreakerState, store.Len),
	})
	r.NotFound(handler.NotFoundResponse)

	// ==========================================================================
	// Start server
	// ==========================================================================

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Place-order holds its response while the shopper pays in the widget
		WriteTimeout: widgetTimeout + 2*service.DefaultCallTimeout,
		IdleTimeout:  2 * time.Minute,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", addr, "env", cfg.Env, "payment_mode", mode)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		// Open event streams only end when their client leaves
		logger.Warn("Graceful shutdown timed out, closing connections", "error", err)
		if err := srv.Close(); err != nil {
			return fmt.Errorf("server close failed: %w", err)
		}
	}
	logger.Info("Server stopped")

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

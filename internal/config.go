package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	LogLevel    string
	Port        uint16
	BaseURL     string
	Marketplace MarketplaceConfig
	Pricing     PricingConfig
	Payment     PaymentConfig
	Events      EventsConfig
	Sentry      SentryConfig
	Metrics     MetricsConfig
	Cookie      CookieConfig
	Checkout    CheckoutConfig
	// CORSAllowedOrigins lists storefront origins allowed to call the API
	// from the browser. Empty means same-origin only.
	CORSAllowedOrigins []string
	// ShutdownTimeoutSeconds bounds graceful shutdown of the HTTP server.
	ShutdownTimeoutSeconds uint16
}

// MarketplaceConfig points the service at the remote marketplace REST API.
// All cart, order and payment state lives behind it.
type MarketplaceConfig struct {
	BaseURL        string
	TimeoutSeconds uint16

	// BreakerFailures is the number of consecutive upstream failures that opens the breaker.
	BreakerFailures uint16
	// BreakerCooldownSeconds is how long the breaker stays open before probing again.
	BreakerCooldownSeconds uint16
}

// PricingConfig holds the fixed business constants of the order summary.
// Values are decimal strings so that money never passes through float64.
type PricingConfig struct {
	FreeDeliveryThreshold string
	DeliveryFee           string
	TaxRate               string
	Currency              string
}

// PaymentConfig selects how online payments are collected.
//
// Mode is decided once at startup:
//   - "sandbox": payment confirmations are simulated after SandboxDelayMs
//   - "live": the storefront opens the gateway widget and posts its callback back
//
// Gateway picks the bridge that creates and verifies gateway orders:
//   - "marketplace": the marketplace API payment endpoints
//   - "stripe": Stripe Payment Intents, live mode only
type PaymentConfig struct {
	Mode                 string
	Gateway              string
	KeyID                string
	StripeSecretKey      string
	StoreName            string
	ThemeColor           string
	SandboxDelayMs       uint16
	WidgetTimeoutSeconds uint16
}

// EventsConfig configures the count-changed bus.
// An empty NATSURL keeps events in-process.
type EventsConfig struct {
	NATSURL string
	Subject string
}

// SentryConfig holds configuration for Sentry error tracking
type SentryConfig struct {
	DSN              string
	Enabled          bool
	Environment      string
	Release          string
	SampleRate       float64
	TracesSampleRate float64
	Debug            bool
}

// CheckoutConfig bounds the lifetime of in-memory checkout sessions.
type CheckoutConfig struct {
	SessionIdleMinutes     uint16
	JanitorIntervalSeconds uint16
}

type MetricsConfig struct {
	Namespace string
}

type CookieConfig struct {
	Domain string
	Secure bool
}

func NewConfig() (*Config, error) {
	// Try to load .env from current directory, then walk up to find it (max 2 levels)
	err := godotenv.Load()
	if err != nil {
		dir, _ := os.Getwd()
		found := false
		for i := 0; i < 2; i++ {
			dir = filepath.Join(dir, "..")
			if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
				found = true
				break
			}
		}
		if !found {
			slog.Default().Warn("Warning: .env file not found, using environment variables and defaults")
		}
	}

	cfg := &Config{
		Env:                    getEnv("ENV", "dev"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		Port:                   getEnvInt("PORT", 3000),
		BaseURL:                getEnv("BASE_URL", "http://localhost:3000"),
		ShutdownTimeoutSeconds: getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 15),
		Marketplace: MarketplaceConfig{
			BaseURL:                getEnv("MARKETPLACE_API_URL", "http://localhost:5000/api"),
			TimeoutSeconds:         getEnvInt("MARKETPLACE_TIMEOUT_SECONDS", 15),
			BreakerFailures:        getEnvInt("MARKETPLACE_BREAKER_FAILURES", 5),
			BreakerCooldownSeconds: getEnvInt("MARKETPLACE_BREAKER_COOLDOWN_SECONDS", 30),
		},
		Pricing: PricingConfig{
			FreeDeliveryThreshold: getEnv("FREE_DELIVERY_THRESHOLD", "1000"),
			DeliveryFee:           getEnv("DELIVERY_FEE", "50"),
			TaxRate:               getEnv("TAX_RATE", "0.18"),
			Currency:              strings.ToUpper(getEnv("CURRENCY", "INR")),
		},
		Payment: PaymentConfig{
			Mode:                 getEnv("PAYMENT_MODE", "sandbox"),
			Gateway:              getEnv("PAYMENT_GATEWAY", "marketplace"),
			KeyID:                getEnv("PAYMENT_KEY_ID", "rzp_test_your_key_here"),
			StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
			StoreName:            getEnv("STORE_NAME", "Bazaar"),
			ThemeColor:           getEnv("PAYMENT_THEME_COLOR", "#2563eb"),
			SandboxDelayMs:       getEnvInt("PAYMENT_SANDBOX_DELAY_MS", 1500),
			WidgetTimeoutSeconds: getEnvInt("PAYMENT_WIDGET_TIMEOUT_SECONDS", 600),
		},
		Events: EventsConfig{
			NATSURL: getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_SUBJECT_PREFIX", "bazaar.counts"),
		},
		Sentry: SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			Enabled:          getEnvBool("SENTRY_ENABLED", false), // Disabled by default for development
			Environment:      getEnv("SENTRY_ENVIRONMENT", "development"),
			Release:          getEnv("SENTRY_RELEASE", ""),
			SampleRate:       getEnvFloat("SENTRY_SAMPLE_RATE", 1.0),
			TracesSampleRate: getEnvFloat("SENTRY_TRACES_SAMPLE_RATE", 0.0),
			Debug:            getEnvBool("SENTRY_DEBUG", false),
		},
		Metrics: MetricsConfig{
			Namespace: getEnv("METRICS_NAMESPACE", "bazaar"),
		},
		Cookie: CookieConfig{
			Domain: getEnv("COOKIE_DOMAIN", ""),
		},
		Checkout: CheckoutConfig{
			SessionIdleMinutes:     getEnvInt("CHECKOUT_SESSION_IDLE_MINUTES", 30),
			JanitorIntervalSeconds: getEnvInt("CHECKOUT_JANITOR_INTERVAL_SECONDS", 60),
		},
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
	}

	// Validate env
	validEnv := cfg.Env == "dev" || cfg.Env == "prod"
	if !validEnv {
		slog.Default().Warn("Invalid environment. Using default: prod", slog.String("env", cfg.Env))
		cfg.Env = "prod"
	}
	cfg.Cookie.Secure = getEnvBool("COOKIE_SECURE", cfg.Env == "prod")

	// Validate log level
	validLevel := cfg.LogLevel == "info" || cfg.LogLevel == "debug" || cfg.LogLevel == "warn" || cfg.LogLevel == "error"
	if !validLevel {
		slog.Default().Warn("Invalid log level. Using default: info", slog.String("value", cfg.LogLevel))
		cfg.LogLevel = "info"
	}

	if cfg.Payment.Mode != "sandbox" && cfg.Payment.Mode != "live" {
		return nil, fmt.Errorf("PAYMENT_MODE must be sandbox or live, got %q", cfg.Payment.Mode)
	}

	switch cfg.Payment.Gateway {
	case "marketplace":
	case "stripe":
		if cfg.Payment.StripeSecretKey == "" {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY required when PAYMENT_GATEWAY=stripe")
		}
	default:
		return nil, fmt.Errorf("PAYMENT_GATEWAY must be marketplace or stripe, got %q", cfg.Payment.Gateway)
	}

	// Stripe cannot verify a simulated widget confirmation, so every sandbox payment would fail
	if cfg.Payment.Gateway == "stripe" && cfg.Payment.IsSandbox() {
		return nil, fmt.Errorf("PAYMENT_GATEWAY=stripe requires PAYMENT_MODE=live")
	}

	// Live payments against a test key are almost always a misconfiguration in production
	if cfg.Env == "prod" && cfg.Payment.Mode == "live" && strings.HasPrefix(cfg.Payment.KeyID, "rzp_test_") {
		slog.Default().Warn("Live payment mode configured with a test key", slog.String("key_id", cfg.Payment.KeyID))
	}

	if cfg.Marketplace.BaseURL == "" {
		return nil, fmt.Errorf("MARKETPLACE_API_URL must be set")
	}

	return cfg, nil
}

// IsSandbox reports whether online payments are simulated.
func (c PaymentConfig) IsSandbox() bool {
	return c.Mode == "sandbox"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue uint16) uint16 {
	if value := os.Getenv(key); value != "" {
		var intValue uint16
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var floatValue float64
		if _, err := fmt.Sscanf(value, "%f", &floatValue); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Application base URL (for checkout redirects)
	BaseURL string

	// Bearer token signing
	JWTSecret       string
	SessionDuration time.Duration

	// Admin access control. Accounts created for these emails get the admin role.
	AdminEmails []string

	// Stripe Billing Configuration
	// In development, billing handlers respond 503 if the secret key is empty.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Stripe Price IDs per tier. Missing IDs leave every subscription at Free.
	StripePaidPriceID          string
	StripePremiumPriceID       string
	StripeExtraPaidPriceIDs    []string // Currency variants of the paid plan
	StripeExtraPremiumPriceIDs []string // Currency variants of the premium plan

	// Reconciliation
	BillingTimeout         time.Duration // Bound on one provider query
	ReconcileConcurrency   int
	ReconcileRatePerSecond float64

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		SessionDuration: getEnvDuration("SESSION_DURATION", 7*24*time.Hour),

		AdminEmails: getEnvList("ADMIN_EMAILS", strings.ToLower),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		StripePaidPriceID:          getEnv("STRIPE_PRICE_ID_PAID", ""),
		StripePremiumPriceID:       getEnv("STRIPE_PRICE_ID_PREMIUM", ""),
		StripeExtraPaidPriceIDs:    getEnvList("STRIPE_EXTRA_PAID_PRICE_IDS", nil),
		StripeExtraPremiumPriceIDs: getEnvList("STRIPE_EXTRA_PREMIUM_PRICE_IDS", nil),

		BillingTimeout:         getEnvDuration("BILLING_TIMEOUT", 5*time.Second),
		ReconcileConcurrency:   getEnvInt("RECONCILE_CONCURRENCY", 4),
		ReconcileRatePerSecond: getEnvFloat("RECONCILE_RATE_PER_SECOND", 20),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		if cfg.Env != "development" {
			return nil, fmt.Errorf("JWT_SECRET is required when ENV is %q", cfg.Env)
		}
		cfg.JWTSecret = "development-only-secret"
	}

	if cfg.BillingTimeout <= 0 {
		return nil, fmt.Errorf("BILLING_TIMEOUT must be positive, got: %s", cfg.BillingTimeout)
	}
	if cfg.ReconcileConcurrency < 1 {
		return nil, fmt.Errorf("RECONCILE_CONCURRENCY must be at least 1, got: %d", cfg.ReconcileConcurrency)
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, trimming and dropping empty entries.
// normalize, if non-nil, is applied to each entry.
func getEnvList(key string, normalize func(string) string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.TrimSpace(part)
		if normalize != nil {
			part = normalize(part)
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

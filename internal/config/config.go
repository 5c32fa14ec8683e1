package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	LogLevel           string
	LogFormat          string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	AdminToken         string

	FreeShippingThreshold decimal.Decimal
	PixDiscountRate       decimal.Decimal
	ShippingTiers         ShippingTiers

	CartTTL           time.Duration
	ShippingQuoteTTL  time.Duration
	CatalogCacheTTL   time.Duration
	AnalyticsCacheTTL time.Duration
	AnalyticsDays     int

	ViaCEPBaseURL     string
	ViaCEPTimeout     time.Duration
	ViaCEPBreakerOpen time.Duration

	RateLimitStrategy string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	IdempotencyTTL   time.Duration
	CheckoutLockWait time.Duration

	MaxBodyBytes    int64
	SecurityHeaders bool
	EnablePprof     bool
	ShutdownTimeout time.Duration

	AuditEnabled    bool
	AuditSampling   float64
	AuditMaxEntries int64

	EventStream       string
	EventStreamMaxLen int64

	WebhookEndpoints   string
	WebhookTimeout     time.Duration
	WebhookReplayTTL   time.Duration
	NotifyEmailEnabled bool
	NotifyEmailTopics  map[string]bool
	RelayConsumer      string
	WorkerMetricsAddr  string

	OTLPEndpoint    string
	ServiceName     string
	TracingSampling float64
}

// ShippingTiers holds the base price of each regional band.
type ShippingTiers struct {
	Southeast decimal.Decimal
	South     decimal.Decimal
	Other     decimal.Decimal
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var errs []error
	money := func(key, fallback string) decimal.Decimal {
		v, err := parseDecimal(k.String(key), fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return v
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		AdminToken:         strings.TrimSpace(k.String("ADMIN_TOKEN")),

		FreeShippingThreshold: money("FREE_SHIPPING_THRESHOLD", "500"),
		PixDiscountRate:       money("PIX_DISCOUNT_RATE", "0.05"),
		ShippingTiers: ShippingTiers{
			Southeast: money("SHIPPING_TIER_SOUTHEAST", "15"),
			South:     money("SHIPPING_TIER_SOUTH", "25"),
			Other:     money("SHIPPING_TIER_OTHER", "45"),
		},

		CartTTL:           parseDuration(k.String("CART_TTL"), "720h"),
		ShippingQuoteTTL:  parseDuration(k.String("SHIPPING_QUOTE_TTL"), "24h"),
		CatalogCacheTTL:   parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		AnalyticsCacheTTL: parseDuration(k.String("ANALYTICS_CACHE_TTL"), "5m"),
		AnalyticsDays:     parseInt(k.String("ANALYTICS_DEFAULT_DAYS"), 30),

		ViaCEPBaseURL:     valueOrDefault(k.String("VIACEP_BASE_URL"), "https://viacep.com.br"),
		ViaCEPTimeout:     parseDuration(k.String("VIACEP_TIMEOUT"), "5s"),
		ViaCEPBreakerOpen: parseDuration(k.String("VIACEP_BREAKER_OPEN"), "30s"),

		RateLimitStrategy: strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_STRATEGY"), "sliding")),
		RateLimitRequests: parseInt(k.String("RATE_LIMIT_REQUESTS"), 120),
		RateLimitWindow:   parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),

		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CheckoutLockWait: parseDuration(k.String("CHECKOUT_LOCK_WAIT"), "2s"),

		MaxBodyBytes:    int64(parseInt(k.String("HTTP_MAX_BODY_BYTES"), 1<<20)),
		SecurityHeaders: parseBool(k.String("HTTP_SECURITY_HEADERS"), true),
		EnablePprof:     parseBool(k.String("ENABLE_PPROF"), false),
		ShutdownTimeout: parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),

		AuditEnabled:    parseBool(k.String("AUDIT_ENABLED"), true),
		AuditSampling:   parseFloat(k.String("AUDIT_SAMPLING_RATE"), 1),
		AuditMaxEntries: int64(parseInt(k.String("AUDIT_MAX_ENTRIES"), 10000)),

		EventStream:       valueOrDefault(k.String("EVENT_STREAM"), "events:domain"),
		EventStreamMaxLen: int64(parseInt(k.String("EVENT_STREAM_MAXLEN"), 100000)),

		WebhookEndpoints:   strings.TrimSpace(k.String("WEBHOOK_ENDPOINTS")),
		WebhookTimeout:     parseDuration(k.String("WEBHOOK_TIMEOUT"), "5s"),
		WebhookReplayTTL:   parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		NotifyEmailEnabled: parseBool(k.String("NOTIFY_EMAIL_ENABLED"), true),
		NotifyEmailTopics:  parseToggles(k.String("NOTIFY_EMAIL_TOPICS")),
		RelayConsumer:      valueOrDefault(k.String("RELAY_CONSUMER"), hostnameOr("worker-1")),
		WorkerMetricsAddr:  strings.TrimSpace(k.String("WORKER_METRICS_ADDR")),

		OTLPEndpoint:    strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		ServiceName:     valueOrDefault(k.String("OTEL_SERVICE_NAME"), "digital-store"),
		TracingSampling: parseFloat(k.String("OTEL_TRACES_SAMPLER_ARG"), 1),
	}

	if cfg.PixDiscountRate.IsNegative() || cfg.PixDiscountRate.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, errors.New("PIX_DISCOUNT_RATE must be between 0 and 1"))
	}
	if cfg.FreeShippingThreshold.IsNegative() {
		errs = append(errs, errors.New("FREE_SHIPPING_THRESHOLD must not be negative"))
	}
	switch cfg.RateLimitStrategy {
	case "sliding", "fixed", "off":
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_STRATEGY %q must be sliding, fixed or off", cfg.RateLimitStrategy))
	}
	if cfg.TracingSampling < 0 || cfg.TracingSampling > 1 {
		errs = append(errs, errors.New("OTEL_TRACES_SAMPLER_ARG must be between 0 and 1"))
	}
	if cfg.AdminToken == "" && cfg.IsProduction() {
		errs = append(errs, errors.New("ADMIN_TOKEN is required in production"))
	}
	if cfg.RedisURL == "" && cfg.IsProduction() {
		errs = append(errs, errors.New("REDIS_URL is required in production"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV selects production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// parseToggles reads "order.created=true,order.status_changed=false". Topics that are
// not listed stay enabled.
func parseToggles(value string) map[string]bool {
	toggles := map[string]bool{}
	for _, part := range splitAndTrim(value) {
		name, raw, found := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !found {
			toggles[name] = true
			continue
		}
		toggles[name] = parseBool(raw, true)
	}
	return toggles
}

func hostnameOr(fallback string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return fallback
}

func parseDecimal(value, fallback string) (decimal.Decimal, error) {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	return decimal.NewFromString(base)
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}

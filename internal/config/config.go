package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string
	BodyLimitBytes     int64
	// RateLimit uses the limiter formatted rate, e.g. "300-M".
	RateLimit       string
	ShutdownTimeout time.Duration
	HSTSMaxAge      time.Duration

	Log        LogConfig
	Metrics    MetricsConfig
	Tracing    TracingConfig
	Breaker    BreakerConfig
	FreteClick FreteClickConfig
	Postal     PostalConfig
	StoreAPI   StoreAPIConfig
	Webhook    WebhookConfig
}

type LogConfig struct {
	Format string
	Level  string
}

type MetricsConfig struct {
	Enabled   bool
	Namespace string
	Buckets   string
}

type TracingConfig struct {
	Enabled       bool
	ServiceName   string
	Exporter      string
	Endpoint      string
	SamplingRatio float64
}

// BreakerConfig is shared by every outbound client; each gets its own breaker.
type BreakerConfig struct {
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
}

type FreteClickConfig struct {
	BaseURL      string
	Timeout      time.Duration
	QuoteTimeout time.Duration
}

type PostalConfig struct {
	Enabled            bool
	LookupURL          string
	Timeout            time.Duration
	CacheTTL           time.Duration
	DefaultCountryCode string
}

// StoreAPIConfig authenticates the app against the store REST API.
type StoreAPIConfig struct {
	BaseURL          string
	AppID            string
	StoreID          string
	AuthenticationID string
	AccessToken      string
	Timeout          time.Duration
}

type WebhookConfig struct {
	ReplayTTL    time.Duration
	TagLockTTL   time.Duration
	// TagRecordTTL bounds how long a bought tag id is kept for retries.
	TagRecordTTL time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return build(k)
}

func build(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		RateLimit:          valueOrDefault(k.String("RATE_LIMIT"), "300-M"),
		ShutdownTimeout:    parseDuration(k.String("SHUTDOWN_TIMEOUT"), "10s"),
		HSTSMaxAge:         parseDuration(k.String("SECURITY_HSTS_MAX_AGE"), "0s"),
		Log: LogConfig{
			Format: valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			Level:  valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		},
		Metrics: MetricsConfig{
			Enabled:   parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
			Namespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "freteclick"),
			Buckets:   k.String("OBS_HTTP_BUCKETS_MS"),
		},
		Tracing: TracingConfig{
			Enabled:       parseBool(k.String("OBS_ENABLE_TRACING")),
			ServiceName:   valueOrDefault(k.String("OBS_SERVICE_NAME"), "app-freteclick"),
			Exporter:      valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			Endpoint:      k.String("OBS_OTLP_ENDPOINT"),
			SamplingRatio: parseFloat(k.String("OBS_TRACING_SAMPLE_RATIO"), 1),
		},
		Breaker: BreakerConfig{
			MinRequests:  parseInt(k.String("BREAKER_MIN_REQUESTS"), 5),
			FailureRatio: parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
			OpenFor:      parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),
		},
		FreteClick: FreteClickConfig{
			BaseURL:      strings.TrimRight(valueOrDefault(k.String("FRETECLICK_BASE_URL"), "https://api.freteclick.com.br"), "/"),
			Timeout:      parseDuration(k.String("FRETECLICK_TIMEOUT"), "8s"),
			QuoteTimeout: parseDuration(k.String("FRETECLICK_QUOTE_TIMEOUT"), "10s"),
		},
		Postal: PostalConfig{
			Enabled:            parseBoolDefault(k.String("POSTAL_LOOKUP_ENABLED"), true),
			LookupURL:          strings.TrimRight(valueOrDefault(k.String("POSTAL_LOOKUP_URL"), "https://viacep.com.br/ws"), "/"),
			Timeout:            parseDuration(k.String("POSTAL_LOOKUP_TIMEOUT"), "3s"),
			CacheTTL:           parseDuration(k.String("POSTAL_CACHE_TTL"), "24h"),
			DefaultCountryCode: valueOrDefault(k.String("POSTAL_DEFAULT_COUNTRY"), "BR"),
		},
		StoreAPI: StoreAPIConfig{
			BaseURL:          strings.TrimRight(valueOrDefault(k.String("STORE_API_BASE_URL"), "https://api.e-com.plus/v1"), "/"),
			AppID:            valueOrDefault(k.String("ECOM_APP_ID"), "1253"),
			StoreID:          strings.TrimSpace(k.String("STORE_API_STORE_ID")),
			AuthenticationID: strings.TrimSpace(k.String("STORE_API_AUTH_ID")),
			AccessToken:      strings.TrimSpace(k.String("STORE_API_ACCESS_TOKEN")),
			Timeout:          parseDuration(k.String("STORE_API_TIMEOUT"), "10s"),
		},
		Webhook: WebhookConfig{
			ReplayTTL:    parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "10m"),
			TagLockTTL:   parseDuration(k.String("TAG_LOCK_TTL"), "30s"),
			TagRecordTTL: parseDuration(k.String("TAG_RECORD_TTL"), "720h"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	for name, raw := range map[string]string{
		"FRETECLICK_BASE_URL": c.FreteClick.BaseURL,
		"POSTAL_LOOKUP_URL":   c.Postal.LookupURL,
		"STORE_API_BASE_URL":  c.StoreAPI.BaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL", name))
		}
	}
	if c.Production() && c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required in production"))
	}
	if (c.StoreAPI.AuthenticationID == "") != (c.StoreAPI.AccessToken == "") {
		errs = append(errs, errors.New("STORE_API_AUTH_ID and STORE_API_ACCESS_TOKEN must be set together"))
	}
	if c.BodyLimitBytes <= 0 {
		errs = append(errs, errors.New("BODY_LIMIT_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

// Production reports whether the app runs in the production environment.
func (c *Config) Production() bool {
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

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// LoadForTests builds a configuration from values only, without reading the
// process environment or .env files.
func LoadForTests(values map[string]string) (*Config, error) {
	k := koanf.New(".")
	for key, value := range values {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set %s: %w", key, err)
		}
	}
	return build(k)
}

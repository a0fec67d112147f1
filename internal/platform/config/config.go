package config

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile        = ".env"
	defaultPort           = "8080"
	defaultReadTimeout    = 15 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 120 * time.Second
	defaultGatewayTimeout = 10 * time.Second
	defaultCurrency       = "INR"
	defaultCacheTTL       = 15 * time.Minute
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firestore FirestoreConfig
	Redis     RedisConfig
	PubSub    PubSubConfig
	Stripe    StripeConfig
	Gateway   GatewayConfig
	Catalog   CatalogConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// RedisConfig configures the optional product cache backend. An empty Addr
// selects the in-process cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PubSubConfig configures the optional order event topic. An empty topic
// disables event publishing.
type PubSubConfig struct {
	ProjectID       string
	OrderEventTopic string
}

// StripeConfig collects payment provider credentials.
type StripeConfig struct {
	APIKey string
}

// GatewayConfig bounds remote payment gateway calls.
type GatewayConfig struct {
	Timeout  time.Duration
	Currency string
}

// CatalogConfig tunes product lookup caching.
type CatalogConfig struct {
	CacheTTL time.Duration
}

// ValidationError reports configuration fields that failed validation.
type ValidationError struct {
	FieldErrors map[string]string
}

func (e *ValidationError) Error() string {
	fields := e.Fields()
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.FieldErrors[field]))
	}
	return "config validation failed: " + strings.Join(parts, "; ")
}

// Fields lists the offending field names in stable order.
func (e *ValidationError) Fields() []string {
	fields := make([]string, 0, len(e.FieldErrors))
	for field := range e.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Option customises configuration loading.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile   string
	envMap    map[string]string
	skipEnv   bool
	skipFiles bool
}

// WithEnvFile overrides the .env file path consulted during loading.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap supplies explicit values that take precedence over the environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv ignores the process environment; useful in tests.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.skipEnv = true
	}
}

// WithoutEnvFiles skips reading .env files; useful in tests.
func WithoutEnvFiles() Option {
	return func(o *loaderOptions) {
		o.skipFiles = true
	}
}

// Load assembles the Config from the environment, an optional .env file, and
// explicit overrides, then validates it.
func Load(opts ...Option) (Config, error) {
	values, err := environmentValues(opts...)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) string {
		return strings.TrimSpace(values[key])
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         valueOr(lookup("PORT"), defaultPort),
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
			IdleTimeout:  defaultIdleTimeout,
		},
		Firestore: FirestoreConfig{
			ProjectID:    lookup("FIRESTORE_PROJECT_ID"),
			EmulatorHost: lookup("FIRESTORE_EMULATOR_HOST"),
		},
		Redis: RedisConfig{
			Addr:     lookup("REDIS_ADDR"),
			Password: lookup("REDIS_PASSWORD"),
		},
		PubSub: PubSubConfig{
			ProjectID:       valueOr(lookup("PUBSUB_PROJECT_ID"), lookup("FIRESTORE_PROJECT_ID")),
			OrderEventTopic: lookup("ORDER_EVENT_TOPIC"),
		},
		Stripe: StripeConfig{
			APIKey: lookup("STRIPE_API_KEY"),
		},
		Gateway: GatewayConfig{
			Timeout:  defaultGatewayTimeout,
			Currency: valueOr(lookup("PAYMENT_CURRENCY"), defaultCurrency),
		},
		Catalog: CatalogConfig{
			CacheTTL: defaultCacheTTL,
		},
	}

	fieldErrors := map[string]string{}

	if raw := lookup("REDIS_DB"); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil || db < 0 {
			fieldErrors["REDIS_DB"] = "must be a non-negative integer"
		} else {
			cfg.Redis.DB = db
		}
	}
	if raw := lookup("GATEWAY_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			fieldErrors["GATEWAY_TIMEOUT"] = "must be a positive duration"
		} else {
			cfg.Gateway.Timeout = timeout
		}
	}
	if raw := lookup("CATALOG_CACHE_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			fieldErrors["CATALOG_CACHE_TTL"] = "must be a positive duration"
		} else {
			cfg.Catalog.CacheTTL = ttl
		}
	}
	if cfg.Firestore.ProjectID == "" && cfg.Firestore.EmulatorHost == "" {
		fieldErrors["FIRESTORE_PROJECT_ID"] = "project id is required unless the emulator is configured"
	}
	if cfg.PubSub.OrderEventTopic != "" && cfg.PubSub.ProjectID == "" {
		fieldErrors["PUBSUB_PROJECT_ID"] = "project id is required when ORDER_EVENT_TOPIC is set"
	}

	if len(fieldErrors) > 0 {
		return Config{}, &ValidationError{FieldErrors: fieldErrors}
	}
	return cfg, nil
}

func environmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{envFile: defaultEnvFile}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	values := map[string]string{}
	merge := func(source map[string]string) {
		for k, v := range source {
			values[k] = v
		}
	}

	if !options.skipFiles {
		fileValues, err := readEnvFile(options.envFile)
		if err != nil {
			return nil, err
		}
		merge(fileValues)
	}
	if !options.skipEnv {
		merge(systemEnv())
	}
	merge(options.envMap)

	return values, nil
}

func readEnvFile(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: open env file %s: %w", path, err)
	}
	defer file.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		values[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read env file %s: %w", path, err)
	}
	return values, nil
}

func systemEnv() map[string]string {
	values := map[string]string{}
	for _, entry := range os.Environ() {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			continue
		}
		values[key] = value
	}
	return values
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// Package config handles loading and validation of service configuration.
// Supports both development (.env / env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"
)

// Default retry behavior for storefront API calls.
const (
	defaultRetryAttempts = 3
	defaultRetryDelayMS  = 1000
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development)
// or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	StoreID    string

	// Cart identity persistence: "memory", "file", or "redis"
	IdentityBackend string
	IdentityFile    string // file backend: path to the cart id file
	RedisAddr       string // redis backend
	RedisPassword   string
	RedisDB         int

	// Storefront retry knobs
	RetryAttempts int
	RetryDelay    time.Duration

	// Store-specific configuration (loaded from secrets)
	Store StoreConfig
}

// StoreConfig contains store-specific settings.
// In production, this is loaded from Secret Manager as JSON.
// In development, loaded from individual env vars or CONFIG_FILE.
type StoreConfig struct {
	StorefrontDomain string `json:"storefront_domain"`
	APIVersion       string `json:"api_version"` // defaults to "2024-01"
	APIEndpoint      string `json:"api_endpoint"` // derived from domain/version if not set
	AccessToken      string `json:"access_token"`

	// Free shipping threshold in minor currency units (cents).
	// Zero disables the shipping progress bar.
	FreeShippingThreshold int64 `json:"free_shipping_threshold"`

	// Minimum widget version accepted by the client gate. Older widgets
	// get 426 and are told to upgrade. Empty disables the gate.
	MinWidgetVersion string `json:"min_widget_version,omitempty"`

	// Host-page product registry served via /widget/config.
	Products []ProductEntry `json:"products,omitempty"`
}

// ProductEntry maps one product widget to a host-page container.
type ProductEntry struct {
	ProductID   string      `json:"product_id"`
	ContainerID string      `json:"container_id"`
	Promo       *PromoEntry `json:"promo,omitempty"`
}

// PromoEntry is an optional per-product promotion.
type PromoEntry struct {
	PromoProductID string `json:"promo_product_id"`
	ImageURL       string `json:"image_url,omitempty"`
	Text           string `json:"text,omitempty"`
	Disclaimer     string `json:"disclaimer,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	// Local .env is a convenience for development; missing file is fine.
	if envOrDefault("ENVIRONMENT", "development") != "production" {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Port:            envOrDefault("PORT", "8080"),
		Environment:     envOrDefault("ENVIRONMENT", "development"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		GCPProject:      os.Getenv("GCP_PROJECT"),
		StoreID:         os.Getenv("STORE_ID"),
		IdentityBackend: envOrDefault("IDENTITY_BACKEND", "file"),
		IdentityFile:    envOrDefault("IDENTITY_FILE", "sidecart-cart-id"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("parsing REDIS_DB: %w", err)
		}
		cfg.RedisDB = n
	}

	if err := cfg.loadRetry(); err != nil {
		return nil, err
	}

	// Load store config based on environment
	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.StoreID == "" {
			return nil, fmt.Errorf("STORE_ID required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading store config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port            string      `json:"port"`
		Environment     string      `json:"environment"`
		LogLevel        string      `json:"log_level"`
		IdentityBackend string      `json:"identity_backend"`
		IdentityFile    string      `json:"identity_file"`
		RedisAddr       string      `json:"redis_addr"`
		RedisPassword   string      `json:"redis_password"`
		RedisDB         int         `json:"redis_db"`
		RetryAttempts   int         `json:"retry_attempts"`
		RetryDelayMS    int         `json:"retry_delay_ms"`
		Store           StoreConfig `json:"store"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:            withDefault(fileConfig.Port, "8080"),
		Environment:     withDefault(fileConfig.Environment, "development"),
		LogLevel:        withDefault(fileConfig.LogLevel, "info"),
		IdentityBackend: withDefault(fileConfig.IdentityBackend, "file"),
		IdentityFile:    withDefault(fileConfig.IdentityFile, "sidecart-cart-id"),
		RedisAddr:       fileConfig.RedisAddr,
		RedisPassword:   fileConfig.RedisPassword,
		RedisDB:         fileConfig.RedisDB,
		RetryAttempts:   fileConfig.RetryAttempts,
		RetryDelay:      time.Duration(fileConfig.RetryDelayMS) * time.Millisecond,
		Store:           fileConfig.Store,
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadRetry reads retry knobs from env, falling back to defaults.
func (c *Config) loadRetry() error {
	c.RetryAttempts = defaultRetryAttempts
	c.RetryDelay = time.Duration(defaultRetryDelayMS) * time.Millisecond

	if v := os.Getenv("RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing RETRY_ATTEMPTS: %w", err)
		}
		c.RetryAttempts = n
	}
	if v := os.Getenv("RETRY_DELAY_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing RETRY_DELAY_MS: %w", err)
		}
		c.RetryDelay = time.Duration(n) * time.Millisecond
	}
	return nil
}

// loadFromSecretManager fetches store config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{store_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.StoreID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Store); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	return nil
}

// loadFromEnv reads store config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Store = StoreConfig{
		StorefrontDomain: os.Getenv("STOREFRONT_DOMAIN"),
		APIVersion:       os.Getenv("STOREFRONT_API_VERSION"),
		APIEndpoint:      os.Getenv("STOREFRONT_API_ENDPOINT"),
		AccessToken:      os.Getenv("STOREFRONT_ACCESS_TOKEN"),
		MinWidgetVersion: os.Getenv("MIN_WIDGET_VERSION"),
	}

	if v := os.Getenv("FREE_SHIPPING_THRESHOLD"); v != "" {
		cents, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing FREE_SHIPPING_THRESHOLD: %w", err)
		}
		c.Store.FreeShippingThreshold = cents
	}

	// Parse product registry JSON if provided
	if productsJSON := os.Getenv("WIDGET_PRODUCTS"); productsJSON != "" {
		if err := json.Unmarshal([]byte(productsJSON), &c.Store.Products); err != nil {
			return fmt.Errorf("parsing WIDGET_PRODUCTS JSON: %w", err)
		}
	}

	return nil
}

// applyDefaults fills in the derivable store fields.
func (c *Config) applyDefaults() {
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Duration(defaultRetryDelayMS) * time.Millisecond
	}
	if c.Store.APIVersion == "" {
		c.Store.APIVersion = "2024-01"
	}
	if c.Store.APIEndpoint == "" && c.Store.StorefrontDomain != "" {
		domain := strings.TrimSuffix(c.Store.StorefrontDomain, "/")
		domain = strings.TrimPrefix(domain, "https://")
		domain = strings.TrimPrefix(domain, "http://")
		c.Store.APIEndpoint = fmt.Sprintf("https://%s/api/%s/graphql.json", domain, c.Store.APIVersion)
	}
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Store.APIEndpoint == "" {
		return fmt.Errorf("storefront_domain or api_endpoint is required")
	}
	if _, err := url.Parse(c.Store.APIEndpoint); err != nil {
		return fmt.Errorf("invalid api_endpoint: %w", err)
	}
	if c.Store.AccessToken == "" {
		return fmt.Errorf("access_token is required")
	}

	switch c.IdentityBackend {
	case "memory", "file":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis identity backend")
		}
	default:
		return fmt.Errorf("unknown identity backend %q (memory, file, redis)", c.IdentityBackend)
	}

	for i, p := range c.Store.Products {
		if p.ProductID == "" || p.ContainerID == "" {
			return fmt.Errorf("products[%d]: product_id and container_id are required", i)
		}
	}

	return nil
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Engine    EngineConfig    `yaml:"engine"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	MaskStore MaskStoreConfig `yaml:"maskStore"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string          `yaml:"address"`
	ReadTimeout  time.Duration   `yaml:"readTimeout"`
	WriteTimeout time.Duration   `yaml:"writeTimeout"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
	CORSOrigins  []string        `yaml:"corsOrigins"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// EngineConfig tunes the overlay reconciliation engine.
type EngineConfig struct {
	MaxMapViews      int           `yaml:"maxMapViews"`
	RemoveAckTimeout time.Duration `yaml:"removeAckTimeout"`
	DedupTTL         time.Duration `yaml:"dedupTtl"`
}

// MetadataConfig selects the overlay metadata source. An empty base URL means
// the in-process catalog serves metadata directly.
type MetadataConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"`
}

// CatalogConfig controls the layer catalog and its caches.
type CatalogConfig struct {
	CacheTTL time.Duration  `yaml:"cacheTtl"`
	Postgres PostgresConfig `yaml:"postgres"`
	Valkey   ValkeyConfig   `yaml:"valkey"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ValkeyConfig contains connection information for the shared catalog cache.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// MaskStoreConfig points at the S3-compatible bucket holding precomputed
// inverse masks. An empty endpoint falls back to the in-memory store.
type MaskStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("ENGINE_MAX_MAP_VIEWS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxMapViews = parsed
		}
	}
	if v := os.Getenv("ENGINE_REMOVE_ACK_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Engine.RemoveAckTimeout = parsed
		}
	}
	if v := os.Getenv("ENGINE_DEDUP_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Engine.DedupTTL = parsed
		}
	}
	if v := os.Getenv("METADATA_BASE_URL"); v != "" {
		cfg.Metadata.BaseURL = v
	}
	if v := os.Getenv("METADATA_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Metadata.Timeout = parsed
		}
	}
	if v := os.Getenv("CATALOG_CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Catalog.CacheTTL = parsed
		}
	}
	if v := os.Getenv("CATALOG_POSTGRES_DSN"); v != "" {
		cfg.Catalog.Postgres.DSN = v
	}
	if v := os.Getenv("CATALOG_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Catalog.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("CATALOG_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Catalog.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("CATALOG_VALKEY_ENABLED"); v != "" {
		cfg.Catalog.Valkey.Enabled = parseBool(v)
	}
	if v := os.Getenv("CATALOG_VALKEY_ADDR"); v != "" {
		cfg.Catalog.Valkey.Addr = v
	}
	if v := os.Getenv("MASK_STORE_ENDPOINT"); v != "" {
		cfg.MaskStore.Endpoint = v
	}
	if v := os.Getenv("MASK_STORE_ACCESS_KEY"); v != "" {
		cfg.MaskStore.AccessKey = v
	}
	if v := os.Getenv("MASK_STORE_SECRET_KEY"); v != "" {
		cfg.MaskStore.SecretKey = v
	}
	if v := os.Getenv("MASK_STORE_BUCKET"); v != "" {
		cfg.MaskStore.Bucket = v
	}
	if v := os.Getenv("MASK_STORE_REGION"); v != "" {
		cfg.MaskStore.Region = v
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
		},
		Engine: EngineConfig{
			MaxMapViews:      4,
			RemoveAckTimeout: 150 * time.Millisecond,
			DedupTTL:         5 * time.Second,
		},
		Metadata: MetadataConfig{
			Timeout: 10 * time.Second,
		},
		Catalog: CatalogConfig{
			CacheTTL: 30 * time.Minute,
		},
		MaskStore: MaskStoreConfig{
			Bucket: "overlay-masks",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.Engine.MaxMapViews <= 0 {
		return errors.New("engine.maxMapViews must be positive")
	}
	if c.Engine.MaxMapViews > 4 {
		return errors.New("engine.maxMapViews cannot exceed 4")
	}
	if c.Engine.RemoveAckTimeout <= 0 {
		return errors.New("engine.removeAckTimeout must be positive")
	}
	if c.Engine.DedupTTL <= 0 {
		return errors.New("engine.dedupTtl must be positive")
	}
	if c.Catalog.CacheTTL < 0 {
		return errors.New("catalog.cacheTtl cannot be negative")
	}
	if c.Catalog.Valkey.Enabled && strings.TrimSpace(c.Catalog.Valkey.Addr) == "" {
		return errors.New("catalog.valkey.addr cannot be empty when the valkey cache is enabled")
	}
	if c.MaskStore.Endpoint != "" && c.MaskStore.Bucket == "" {
		return errors.New("maskStore.bucket cannot be empty when an endpoint is set")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	return nil
}

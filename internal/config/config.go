package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" default:"sqlite://skkni_cache.db"`
	DBMinConns  int32  `envconfig:"SKKNI_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"SKKNI_DB_MAX_CONNS" default:"8"`

	BaseURL             string `envconfig:"BASE_URL" default:"https://skkni.kemnaker.go.id"`
	APIBase             string `envconfig:"API_BASE" default:"https://skkni-api.kemnaker.go.id"`
	APIKey              string `envconfig:"API_KEY" default:""`
	CORSAllowedOrigins  string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
	CacheTTLDays        int    `envconfig:"CACHE_TTL_DAYS" default:"30"`
	MaxConcurrency      int    `envconfig:"MAX_CONCURRENCY" default:"2"`
	FetchTimeoutSeconds int    `envconfig:"FETCH_TIMEOUT_SECONDS" default:"30"`
	EnrichLimit         int    `envconfig:"ENRICH_LIMIT" default:"10"`
	SeedUUIDs           string `envconfig:"SEED_UUIDS" default:""`
	SeedFile            string `envconfig:"SEED_FILE" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("SKKNI_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("SKKNI_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("SKKNI_DB_MIN_CONNS (%d) cannot exceed SKKNI_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("BASE_URL is required")
	}
	if strings.TrimSpace(c.APIBase) == "" {
		return fmt.Errorf("API_BASE is required")
	}
	if c.CacheTTLDays < 1 {
		return fmt.Errorf("CACHE_TTL_DAYS must be >= 1")
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("MAX_CONCURRENCY must be >= 1")
	}
	if c.FetchTimeoutSeconds < 1 {
		return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be >= 1")
	}
	if c.EnrichLimit < 0 {
		return fmt.Errorf("ENRICH_LIMIT must be >= 0")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}

// SeedUUIDList splits SEED_UUIDS into trimmed, de-duplicated entries in
// their original order.
func (c *Config) SeedUUIDList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.SeedUUIDs, ",")
	uuids := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		uuid := strings.TrimSpace(part)
		if uuid == "" {
			continue
		}
		if _, exists := seen[uuid]; exists {
			continue
		}
		seen[uuid] = struct{}{}
		uuids = append(uuids, uuid)
	}
	return uuids
}

package config

import (
	"reflect"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Environment:         "local",
		LogLevel:            "info",
		DatabaseURL:         "sqlite://skkni_cache.db",
		DBMinConns:          1,
		DBMaxConns:          8,
		BaseURL:             "https://skkni.kemnaker.go.id",
		APIBase:             "https://skkni-api.kemnaker.go.id",
		CacheTTLDays:        30,
		MaxConcurrency:      2,
		FetchTimeoutSeconds: 30,
		EnrichLimit:         10,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	t.Parallel()

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database url", func(c *Config) { c.DatabaseURL = "  " }},
		{"min conns above max", func(c *Config) { c.DBMinConns = 9 }},
		{"zero max conns", func(c *Config) { c.DBMaxConns = 0 }},
		{"empty api base", func(c *Config) { c.APIBase = "" }},
		{"zero ttl", func(c *Config) { c.CacheTTLDays = 0 }},
		{"zero concurrency", func(c *Config) { c.MaxConcurrency = 0 }},
		{"negative enrich limit", func(c *Config) { c.EnrichLimit = -1 }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCORSAllowedOriginsList(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.CORSAllowedOrigins = " https://a.example , https://b.example,,https://a.example "
	got := cfg.CORSAllowedOriginsList()
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CORSAllowedOriginsList() = %v, want %v", got, want)
	}
}

func TestSeedUUIDList(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.SeedUUIDs = "doc-a, doc-b,doc-a, ,doc-c"
	got := cfg.SeedUUIDList()
	want := []string{"doc-a", "doc-b", "doc-c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SeedUUIDList() = %v, want %v", got, want)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recommender.HighRatingThreshold != 4.0 {
		t.Errorf("threshold = %v, want 4.0", cfg.Recommender.HighRatingThreshold)
	}
	if cfg.Recommender.MinCandidateShare != 0.10 {
		t.Errorf("min share = %v, want 0.10", cfg.Recommender.MinCandidateShare)
	}
	if cfg.Recommender.DetailSimilar != 6 || cfg.Recommender.DetailFetch != 10 {
		t.Errorf("detail = %d/%d, want 6/10", cfg.Recommender.DetailSimilar, cfg.Recommender.DetailFetch)
	}
	if cfg.Data.Source != "csv" {
		t.Errorf("source = %q, want csv", cfg.Data.Source)
	}
	if cfg.RateLimit.TrustForwardedFor {
		t.Error("X-Forwarded-For must not be trusted by default")
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	yamlDoc := `
server:
  port: 7000
redis:
  enabled: true
  cacheTTL: 30s
recommender:
  maxLimit: 50
rateLimit:
  trustForwardedFor: true
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MR_SERVER_PORT", "7100")
	t.Setenv("MR_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("port = %d, want env override 7100", cfg.Server.Port)
	}
	if !cfg.Redis.Enabled || cfg.Redis.CacheTTL != 30*time.Second {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Recommender.MaxLimit != 50 {
		t.Errorf("maxLimit = %d, want 50", cfg.Recommender.MaxLimit)
	}
	if cfg.Recommender.HighRatingThreshold != 4.0 {
		t.Errorf("unset yaml keys should keep defaults, threshold = %v", cfg.Recommender.HighRatingThreshold)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logging.Level)
	}
	if !cfg.RateLimit.TrustForwardedFor || cfg.RateLimit.RequestsPerWindow != 120 {
		t.Errorf("rateLimit = %+v", cfg.RateLimit)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad source", func(c *Config) { c.Data.Source = "parquet" }},
		{"share too high", func(c *Config) { c.Recommender.MinCandidateShare = 1 }},
		{"fetch below similar", func(c *Config) { c.Recommender.DetailFetch = 3 }},
		{"zero max limit", func(c *Config) { c.Recommender.MaxLimit = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

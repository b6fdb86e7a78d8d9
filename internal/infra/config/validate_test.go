package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidateDefaultsPass(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Defaults should pass validation: %v", err)
	}
}

func TestValidateTable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty base url", func(c *Config) { c.Backend.BaseURL = "" }, "backend.base_url is required"},
		{"relative base url", func(c *Config) { c.Backend.BaseURL = "localhost:8000" }, "must be an absolute http(s) URL"},
		{"zero timeout", func(c *Config) { c.Backend.Timeout = 0 }, "backend.timeout must be > 0"},
		{"burst without rate", func(c *Config) { c.Backend.RateBurst = 0 }, "backend.rate_burst must be > 0"},
		{"breaker failures", func(c *Config) { c.Backend.CircuitBreaker.MaxFailures = 0 }, "max_failures must be > 0"},
		{"literal limit", func(c *Config) { c.Retrieval.LiteralLimit = 21 }, "retrieval.literal_limit must be between 1 and 20"},
		{"literal threshold", func(c *Config) { c.Retrieval.LiteralThreshold = 1.5 }, "retrieval.literal_threshold must be in [0,1]"},
		{"search threshold", func(c *Config) { c.Retrieval.SearchThreshold = -0.1 }, "retrieval.search_threshold must be in [0,1]"},
		{"qa sources", func(c *Config) { c.Retrieval.QAMaxSources = 11 }, "retrieval.qa_max_sources"},
		{"preview", func(c *Config) { c.Retrieval.PreviewChars = 0 }, "retrieval.preview_chars"},
		{"cache ttl", func(c *Config) { c.Retrieval.CacheTTL = -time.Second }, "retrieval.cache_ttl"},
		{"max files", func(c *Config) { c.Upload.MaxFiles = 0 }, "upload.max_files must be > 0"},
		{"extension", func(c *Config) { c.Upload.AllowedExtensions = []string{"PDF"} }, "must be lower case with a leading dot"},
		{"locale", func(c *Config) { c.UI.Locale = "fr" }, `ui.locale "fr" is invalid`},
		{"mode", func(c *Config) { c.UI.DefaultMode = "fuzzy" }, `ui.default_mode "fuzzy" is invalid`},
		{"level", func(c *Config) { c.Logger.Level = "trace" }, `logger.level "trace" is invalid`},
		{"format", func(c *Config) { c.Logger.Format = "xml" }, `logger.format "xml" is invalid`},
		{"otlp endpoint", func(c *Config) { c.Tracer.Enabled = true; c.Tracer.Exporter = "otlp" }, "tracer.endpoint is required"},
		{"exporter", func(c *Config) { c.Tracer.Enabled = true; c.Tracer.Exporter = "jaeger" }, `tracer.exporter "jaeger" is invalid`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			assertContains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateAccumulates(t *testing.T) {
	cfg := Defaults()
	cfg.Backend.BaseURL = ""
	cfg.Upload.MaxFiles = 0
	cfg.UI.Locale = "xx"

	err := Validate(cfg)
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(ve.Errors), ve.Errors)
	}
}

func TestValidateLocaleRegion(t *testing.T) {
	cfg := Defaults()
	cfg.UI.Locale = "es-MX"
	if err := Validate(cfg); err != nil {
		t.Fatalf("es-MX should be accepted: %v", err)
	}
}

func TestValidateTracerDisabledSkipsExporter(t *testing.T) {
	cfg := Defaults()
	cfg.Tracer.Exporter = "jaeger"
	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled tracer should not be validated: %v", err)
	}
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}

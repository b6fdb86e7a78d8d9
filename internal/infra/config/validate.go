package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateBackend(cfg, ve)
	validateRetrieval(cfg, ve)
	validateUpload(cfg, ve)
	validateUI(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateBackend(cfg *Config, ve *ValidationError) {
	b := cfg.Backend
	if b.BaseURL == "" {
		ve.Add("backend.base_url is required")
	} else if u, err := url.Parse(b.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		ve.Add("backend.base_url %q must be an absolute http(s) URL", b.BaseURL)
	}
	if b.Timeout <= 0 {
		ve.Add("backend.timeout must be > 0")
	}
	if b.UploadTimeout <= 0 {
		ve.Add("backend.upload_timeout must be > 0")
	}
	if b.MaxIdleConns < 0 {
		ve.Add("backend.max_idle_conns must be >= 0")
	}
	if b.RateLimit < 0 {
		ve.Add("backend.rate_limit must be >= 0")
	}
	if b.RateLimit > 0 && b.RateBurst <= 0 {
		ve.Add("backend.rate_burst must be > 0 when rate_limit is set")
	}
	if cb := b.CircuitBreaker; cb.Enabled {
		if cb.MaxFailures <= 0 {
			ve.Add("backend.circuit_breaker.max_failures must be > 0")
		}
		if cb.Timeout <= 0 {
			ve.Add("backend.circuit_breaker.timeout must be > 0")
		}
	}
}

func validateRetrieval(cfg *Config, ve *ValidationError) {
	r := cfg.Retrieval
	if r.LiteralLimit < 1 || r.LiteralLimit > 20 {
		ve.Add("retrieval.literal_limit must be between 1 and 20, got %d", r.LiteralLimit)
	}
	if r.SearchLimit < 1 || r.SearchLimit > 20 {
		ve.Add("retrieval.search_limit must be between 1 and 20, got %d", r.SearchLimit)
	}
	if r.LiteralThreshold < 0 || r.LiteralThreshold > 1 {
		ve.Add("retrieval.literal_threshold must be in [0,1], got %v", r.LiteralThreshold)
	}
	if r.SearchThreshold < 0 || r.SearchThreshold > 1 {
		ve.Add("retrieval.search_threshold must be in [0,1], got %v", r.SearchThreshold)
	}
	if r.QAMaxSources < 1 || r.QAMaxSources > 10 {
		ve.Add("retrieval.qa_max_sources must be between 1 and 10, got %d", r.QAMaxSources)
	}
	if r.PreviewChars <= 0 {
		ve.Add("retrieval.preview_chars must be > 0")
	}
	if r.CacheTTL < 0 {
		ve.Add("retrieval.cache_ttl must be >= 0")
	}
}

func validateUpload(cfg *Config, ve *ValidationError) {
	u := cfg.Upload
	if u.MaxFiles <= 0 {
		ve.Add("upload.max_files must be > 0")
	}
	if u.MaxFileSize <= 0 {
		ve.Add("upload.max_file_size must be > 0")
	}
	if len(u.AllowedExtensions) == 0 {
		ve.Add("upload.allowed_extensions must not be empty")
	}
	for i, ext := range u.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") || ext != strings.ToLower(ext) {
			ve.Add("upload.allowed_extensions[%d] %q must be lower case with a leading dot", i, ext)
		}
	}
}

func validateUI(cfg *Config, ve *ValidationError) {
	validLocales := map[string]bool{"en": true, "es": true}
	base, _, _ := strings.Cut(strings.ToLower(cfg.UI.Locale), "-")
	if !validLocales[base] {
		ve.Add("ui.locale %q is invalid (want: en, es)", cfg.UI.Locale)
	}
	validModes := map[string]bool{"literal-search": true, "reasoning-qa": true}
	if !validModes[cfg.UI.DefaultMode] {
		ve.Add("ui.default_mode %q is invalid (want: literal-search, reasoning-qa)", cfg.UI.DefaultMode)
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
	if cfg.Logger.MaxSizeMB < 0 || cfg.Logger.MaxBackups < 0 || cfg.Logger.MaxAgeDays < 0 {
		ve.Add("logger rotation settings must be >= 0")
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "noop", "stdout", "":
	case "otlp":
		if cfg.Tracer.Endpoint == "" {
			ve.Add("tracer.endpoint is required for the otlp exporter")
		}
	default:
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout, otlp)", cfg.Tracer.Exporter)
	}
}

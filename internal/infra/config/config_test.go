package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q, want %q", cfg.Backend.BaseURL, "http://localhost:8000")
	}
	if cfg.Retrieval.LiteralLimit != 5 || cfg.Retrieval.LiteralThreshold != 0.3 {
		t.Errorf("literal defaults = %d/%v, want 5/0.3", cfg.Retrieval.LiteralLimit, cfg.Retrieval.LiteralThreshold)
	}
	if cfg.Retrieval.SearchThreshold != 0.7 {
		t.Errorf("SearchThreshold = %v, want 0.7", cfg.Retrieval.SearchThreshold)
	}
	if cfg.Retrieval.PreviewChars != 200 {
		t.Errorf("PreviewChars = %d, want 200", cfg.Retrieval.PreviewChars)
	}
	if cfg.UI.DefaultMode != "reasoning-qa" {
		t.Errorf("DefaultMode = %q, want reasoning-qa", cfg.UI.DefaultMode)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upload.MaxFiles != 10 {
		t.Errorf("expected defaults, got MaxFiles=%d", cfg.Upload.MaxFiles)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
backend:
  base_url: "https://docs.example.com"
  timeout: 15s
retrieval:
  literal_threshold: 0.45
  literal_limit: 8
upload:
  allowed_extensions: [".pdf"]
ui:
  locale: "es"
  default_mode: "literal-search"
logger:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "https://docs.example.com" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Backend.Timeout)
	}
	if cfg.Backend.UploadTimeout != 5*time.Minute {
		t.Errorf("UploadTimeout = %v, want default 5m", cfg.Backend.UploadTimeout)
	}
	if cfg.Retrieval.LiteralThreshold != 0.45 || cfg.Retrieval.LiteralLimit != 8 {
		t.Errorf("literal = %d/%v", cfg.Retrieval.LiteralLimit, cfg.Retrieval.LiteralThreshold)
	}
	if len(cfg.Upload.AllowedExtensions) != 1 {
		t.Errorf("AllowedExtensions = %v", cfg.Upload.AllowedExtensions)
	}
	if cfg.UI.Locale != "es" || cfg.UI.DefaultMode != "literal-search" {
		t.Errorf("UI = %+v", cfg.UI)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want debug", cfg.Logger.Level)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("backend: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	assertContains(t, err.Error(), "parse config")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("retrieval:\n  literal_threshold: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("expected *ValidationError, got %T", err)
	}
}

func TestLoadInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("ui:\n  locale: en\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0o666); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected permission error")
	}
	assertContains(t, err.Error(), "insecure permissions")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DOCCHAT_BACKEND_URL", "https://override.example.com")
	t.Setenv("DOCCHAT_BACKEND_TIMEOUT", "9s")
	t.Setenv("DOCCHAT_LITERAL_THRESHOLD", "0.5")
	t.Setenv("DOCCHAT_SEARCH_THRESHOLD", "0.8")
	t.Setenv("DOCCHAT_UPLOAD_EXTENSIONS", ".pdf, .txt ,.md")
	t.Setenv("DOCCHAT_LOGGER_LEVEL", "debug")
	t.Setenv("DOCCHAT_CIRCUIT_BREAKER_ENABLED", "false")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Backend.BaseURL != "https://override.example.com" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 9*time.Second {
		t.Errorf("Timeout = %v, want 9s", cfg.Backend.Timeout)
	}
	if cfg.Retrieval.LiteralThreshold != 0.5 {
		t.Errorf("LiteralThreshold = %v, want 0.5", cfg.Retrieval.LiteralThreshold)
	}
	if cfg.Retrieval.SearchThreshold != 0.8 {
		t.Errorf("SearchThreshold = %v, want 0.8", cfg.Retrieval.SearchThreshold)
	}
	if strings.Join(cfg.Upload.AllowedExtensions, "|") != ".pdf|.txt|.md" {
		t.Errorf("AllowedExtensions = %v", cfg.Upload.AllowedExtensions)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want debug", cfg.Logger.Level)
	}
	if cfg.Backend.CircuitBreaker.Enabled {
		t.Error("CircuitBreaker.Enabled should be false")
	}
}

func TestEnvOverridesIgnoreUnparsable(t *testing.T) {
	t.Setenv("DOCCHAT_LITERAL_LIMIT", "many")
	t.Setenv("DOCCHAT_CACHE_TTL", "soon")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Retrieval.LiteralLimit != 5 {
		t.Errorf("LiteralLimit = %d, want 5", cfg.Retrieval.LiteralLimit)
	}
	if cfg.Retrieval.CacheTTL != 2*time.Minute {
		t.Errorf("CacheTTL = %v, want 2m", cfg.Retrieval.CacheTTL)
	}
}

func TestApplyEnvOverridesTracer(t *testing.T) {
	t.Setenv("DOCCHAT_TRACER_ENABLED", "true")
	t.Setenv("DOCCHAT_TRACER_EXPORTER", "otlp")
	t.Setenv("DOCCHAT_TRACER_ENDPOINT", "localhost:4318")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if !cfg.Tracer.Enabled || cfg.Tracer.Exporter != "otlp" || cfg.Tracer.Endpoint != "localhost:4318" {
		t.Errorf("Tracer = %+v", cfg.Tracer)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := EncryptValue("sk-secret", "passphrase")
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}
	if strings.Contains(enc, "sk-secret") {
		t.Fatal("ciphertext leaks plaintext")
	}
	dec, err := DecryptValue(enc, "passphrase")
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}
	if dec != "sk-secret" {
		t.Errorf("decrypted = %q, want %q", dec, "sk-secret")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	enc, err := EncryptValue("sk-secret", "right")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptValue(enc, "wrong"); err == nil {
		t.Fatal("expected error for wrong passphrase")
	}
}

func TestDecryptInvalidFormat(t *testing.T) {
	if _, err := DecryptValue("no-separator", "p"); err == nil {
		t.Fatal("expected format error")
	}
	if _, err := DecryptValue("zz:zz", "p"); err == nil {
		t.Fatal("expected hex error")
	}
}

func TestLoadDecryptsAPIKey(t *testing.T) {
	enc, err := EncryptValue("sk-backend", "letmein")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "backend:\n  api_key: \"enc:" + enc + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCCHAT_CONFIG_KEY", "letmein")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.APIKey != "sk-backend" {
		t.Errorf("APIKey = %q, want sk-backend", cfg.Backend.APIKey)
	}
}

func TestDecryptSecretsNoEncPrefix(t *testing.T) {
	cfg := Defaults()
	cfg.Backend.APIKey = "plain"
	if err := decryptSecrets(cfg, "p"); err != nil {
		t.Fatalf("decryptSecrets: %v", err)
	}
	if cfg.Backend.APIKey != "plain" {
		t.Errorf("APIKey = %q, want plain", cfg.Backend.APIKey)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Defaults()
	cfg.Retrieval.LiteralLimit = 7
	cfg.Backend.Timeout = 42 * time.Second

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Retrieval.LiteralLimit != 7 {
		t.Errorf("LiteralLimit = %d, want 7", loaded.Retrieval.LiteralLimit)
	}
	if loaded.Backend.Timeout != 42*time.Second {
		t.Errorf("Timeout = %v, want 42s", loaded.Backend.Timeout)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" a , b,c ", ",")
	if strings.Join(got, "|") != "a|b|c" {
		t.Errorf("splitAndTrim = %v", got)
	}
}

package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Upload    UploadConfig    `yaml:"upload"`
	UI        UIConfig        `yaml:"ui"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// BackendConfig describes how to reach the document Q&A service.
type BackendConfig struct {
	BaseURL        string               `yaml:"base_url"`
	APIKey         string               `yaml:"api_key"` // supports "enc:" values
	Timeout        time.Duration        `yaml:"timeout"`
	UploadTimeout  time.Duration        `yaml:"upload_timeout"`
	MaxIdleConns   int                  `yaml:"max_idle_conns"`
	RateLimit      float64              `yaml:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst      int                  `yaml:"rate_burst"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig controls the breaker wrapped around backend calls.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures int           `yaml:"max_failures"` // consecutive failures before opening
	Timeout     time.Duration `yaml:"timeout"`      // how long the breaker stays open
	Interval    time.Duration `yaml:"interval"`     // counter reset period while closed
}

// RetrievalConfig holds the per-mode search defaults. The literal-search
// threshold and the plain search threshold are independent settings.
type RetrievalConfig struct {
	LiteralLimit     int           `yaml:"literal_limit"`
	LiteralThreshold float64       `yaml:"literal_threshold"`
	PreviewChars     int           `yaml:"preview_chars"`
	SearchLimit      int           `yaml:"search_limit"`
	SearchThreshold  float64       `yaml:"search_threshold"`
	QAMaxSources     int           `yaml:"qa_max_sources"`
	CacheTTL         time.Duration `yaml:"cache_ttl"` // 0 disables the search cache
}

// UploadConfig holds the client-side upload checks.
type UploadConfig struct {
	MaxFiles          int      `yaml:"max_files"`
	MaxFileSize       int64    `yaml:"max_file_size"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Locale      string `yaml:"locale"`
	DefaultMode string `yaml:"default_mode"`
	Markdown    bool   `yaml:"markdown"`
}

// LoggerConfig holds logging settings. File outputs are rotated.
type LoggerConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // noop, stdout, otlp
	Endpoint string `yaml:"endpoint"` // otlp host:port
	Insecure bool   `yaml:"insecure"`
}

// HomeDir returns $HOME/.docchat, falling back to "./.docchat".
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docchat"
	}
	return filepath.Join(home, ".docchat")
}

// DefaultPath is where the config file is looked up when --config is not given.
func DefaultPath() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:       "http://localhost:8000",
			Timeout:       60 * time.Second,
			UploadTimeout: 5 * time.Minute,
			MaxIdleConns:  10,
			RateLimit:     5,
			RateBurst:     10,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    time.Minute,
			},
		},
		Retrieval: RetrievalConfig{
			LiteralLimit:     5,
			LiteralThreshold: 0.3,
			PreviewChars:     200,
			SearchLimit:      5,
			SearchThreshold:  0.7,
			QAMaxSources:     5,
			CacheTTL:         2 * time.Minute,
		},
		Upload: UploadConfig{
			MaxFiles:          10,
			MaxFileSize:       10 << 20,
			AllowedExtensions: []string{".pdf", ".txt"},
		},
		UI: UIConfig{
			Locale:      "en",
			DefaultMode: "reasoning-qa",
			Markdown:    true,
		},
		Logger: LoggerConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file is not an error: defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := validatePermissions(path); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("DOCCHAT_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps DOCCHAT_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOCCHAT_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("DOCCHAT_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("DOCCHAT_BACKEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backend.Timeout = d
		}
	}
	if v := os.Getenv("DOCCHAT_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Backend.RateLimit = f
		}
	}
	if v := os.Getenv("DOCCHAT_CIRCUIT_BREAKER_ENABLED"); v != "" {
		cfg.Backend.CircuitBreaker.Enabled = v == "true"
	}
	if v := os.Getenv("DOCCHAT_LITERAL_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.LiteralThreshold = f
		}
	}
	if v := os.Getenv("DOCCHAT_LITERAL_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.LiteralLimit = n
		}
	}
	if v := os.Getenv("DOCCHAT_SEARCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.SearchThreshold = f
		}
	}
	if v := os.Getenv("DOCCHAT_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retrieval.CacheTTL = d
		}
	}
	if v := os.Getenv("DOCCHAT_UPLOAD_MAX_FILES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upload.MaxFiles = n
		}
	}
	if v := os.Getenv("DOCCHAT_UPLOAD_EXTENSIONS"); v != "" {
		cfg.Upload.AllowedExtensions = splitAndTrim(v, ",")
	}
	if v := os.Getenv("DOCCHAT_LOCALE"); v != "" {
		cfg.UI.Locale = v
	}
	if v := os.Getenv("DOCCHAT_DEFAULT_MODE"); v != "" {
		cfg.UI.DefaultMode = v
	}
	if v := os.Getenv("DOCCHAT_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("DOCCHAT_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("DOCCHAT_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("DOCCHAT_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("DOCCHAT_TRACER_ENDPOINT"); v != "" {
		cfg.Tracer.Endpoint = v
	}
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// decryptSecrets finds "enc:..." values and decrypts them in place.
func decryptSecrets(cfg *Config, passphrase string) error {
	if strings.HasPrefix(cfg.Backend.APIKey, "enc:") {
		decrypted, err := DecryptValue(strings.TrimPrefix(cfg.Backend.APIKey, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("backend api_key: %w", err)
		}
		cfg.Backend.APIKey = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
// The result has the form hex(salt) ":" hex(nonce+ciphertext).
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(sealed), nil
}

// DecryptValue decrypts a value produced by EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	// Argon2id, 64 MiB, 4 lanes, 32-byte key.
	key := argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// validatePermissions rejects config files writable by group or others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}

// Save writes cfg as YAML with 0600 permissions, creating parent directories.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"docchat/internal/adapter/backend"
	"docchat/internal/infra/config"
	"docchat/internal/usecase"
	"docchat/internal/usecase/eventbus"
	"docchat/internal/usecase/store"
)

// Config holds integration test configuration from environment
type Config struct {
	BackendURL  string
	APIKey      string
	TestTimeout time.Duration
	SkipSlow    bool
}

// LoadConfig loads integration test configuration from environment
func LoadConfig() *Config {
	return &Config{
		BackendURL:  os.Getenv("DOCCHAT_TEST_BACKEND_URL"),
		APIKey:      os.Getenv("DOCCHAT_TEST_API_KEY"),
		TestTimeout: 2 * time.Minute,
		SkipSlow:    os.Getenv("SKIP_SLOW_TESTS") == "1",
	}
}

// SkipIfNoBackend skips the test when no live backend is configured
func SkipIfNoBackend(t *testing.T, cfg *Config) {
	t.Helper()
	if cfg.BackendURL == "" {
		t.Skip("Skipping live backend test: DOCCHAT_TEST_BACKEND_URL not set")
	}
}

// SkipIfShort skips integration tests in short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// NewTestContext creates a context with timeout for integration tests
func NewTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// Stack is the full client wiring used by cmd/docchat, minus the terminal.
type Stack struct {
	Client *backend.Client
	Bus    *eventbus.Bus
	Store  *store.Store
	Orch   *usecase.Orchestrator
	Docs   *usecase.DocumentService
}

// NewStack wires a client against baseURL with default settings.
// Rate limiting is disabled so tests are not throttled.
func NewStack(t *testing.T, baseURL, apiKey string) *Stack {
	t.Helper()

	cfg := config.Defaults()
	cfg.Backend.BaseURL = baseURL
	cfg.Backend.APIKey = apiKey
	cfg.Backend.RateLimit = 0

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.New(log)
	t.Cleanup(bus.Close)

	client := backend.New(cfg.Backend,
		backend.WithLogger(log),
		backend.WithSearchCache(cfg.Retrieval.CacheTTL),
		backend.WithMaxSources(cfg.Retrieval.QAMaxSources),
	)
	st := store.New(usecase.NewSessionID(), store.WithBus(bus), store.WithLogger(log))
	t.Cleanup(st.Close)

	return &Stack{
		Client: client,
		Bus:    bus,
		Store:  st,
		Orch: usecase.NewOrchestrator(usecase.OrchestratorDeps{
			Store:     st,
			Searcher:  client,
			Answerer:  client,
			Explainer: client,
			Bus:       bus,
			Logger:    log,
			Config: usecase.RetrievalConfig{
				LiteralLimit:     cfg.Retrieval.LiteralLimit,
				LiteralThreshold: cfg.Retrieval.LiteralThreshold,
				PreviewChars:     cfg.Retrieval.PreviewChars,
			},
		}),
		Docs: usecase.NewDocumentService(usecase.DocumentServiceDeps{
			Store:     st,
			Repo:      client,
			Inspector: client,
			Bus:       bus,
			Logger:    log,
			Limits: usecase.UploadLimits{
				MaxFiles:          cfg.Upload.MaxFiles,
				MaxFileSize:       cfg.Upload.MaxFileSize,
				AllowedExtensions: cfg.Upload.AllowedExtensions,
			},
		}),
	}
}

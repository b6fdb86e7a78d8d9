package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"docchat/internal/adapter/backend"
	"docchat/internal/domain"
	"docchat/internal/infra/config"
	"docchat/internal/infra/logger"
	"docchat/internal/infra/tracer"
	"docchat/internal/usecase"
	"docchat/internal/usecase/eventbus"
	"docchat/internal/usecase/store"
)

// app holds the wired components shared by all subcommands.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	bus     *eventbus.Bus
	client  *backend.Client
	store   *store.Store
	catalog *usecase.Catalog
	orch    *usecase.Orchestrator
	docs    *usecase.DocumentService
	mode    domain.RequestMode

	closers []func()
}

// newApp loads configuration and wires the client stack. The TUI owns the
// terminal, so interactive runs send terminal log output to a file.
func newApp(ctx context.Context, opts globalOptions, interactive bool) (*app, error) {
	a := &app{}

	// 1. Config
	cfg, err := config.Load(configPath(opts))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg

	mode := cfg.UI.DefaultMode
	if opts.mode != "" {
		mode = opts.mode
	}
	if a.mode, err = domain.ParseRequestMode(mode); err != nil {
		return nil, err
	}

	// 2. Logger & tracer
	logCfg := cfg.Logger
	if interactive && isTerminalOutput(logCfg.Output) {
		logCfg.Output = filepath.Join(config.HomeDir(), "docchat.log")
	}
	log, logCloser, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a.closers = append(a.closers, func() { _ = logCloser() })
	a.log = log

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	a.closers = append(a.closers, func() { _ = tracerShutdown(context.Background()) })

	// 3. Event bus
	a.bus = eventbus.New(log)
	a.closers = append(a.closers, a.bus.Close)
	a.bus.SubscribeAll(func(_ context.Context, ev domain.Event) {
		log.Debug("event", "type", ev.Type, "session", ev.SessionID, "payload", string(ev.Payload))
	})

	// 4. Backend client
	a.client = backend.New(cfg.Backend,
		backend.WithLogger(log),
		backend.WithSearchCache(cfg.Retrieval.CacheTTL),
		backend.WithMaxSources(cfg.Retrieval.QAMaxSources),
	)

	// 5. Conversation state
	a.store = store.New(usecase.NewSessionID(), store.WithBus(a.bus), store.WithLogger(log))
	a.closers = append(a.closers, a.store.Close)
	a.catalog = usecase.NewCatalog(cfg.UI.Locale)

	// 6. Use cases
	a.orch = usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Store:     a.store,
		Searcher:  a.client,
		Answerer:  a.client,
		Explainer: a.client,
		Catalog:   a.catalog,
		Bus:       a.bus,
		Logger:    log,
		Config: usecase.RetrievalConfig{
			LiteralLimit:     cfg.Retrieval.LiteralLimit,
			LiteralThreshold: cfg.Retrieval.LiteralThreshold,
			PreviewChars:     cfg.Retrieval.PreviewChars,
		},
	})
	a.docs = usecase.NewDocumentService(usecase.DocumentServiceDeps{
		Store:     a.store,
		Repo:      a.client,
		Inspector: a.client,
		Catalog:   a.catalog,
		Bus:       a.bus,
		Logger:    log,
		Limits: usecase.UploadLimits{
			MaxFiles:          cfg.Upload.MaxFiles,
			MaxFileSize:       cfg.Upload.MaxFileSize,
			AllowedExtensions: cfg.Upload.AllowedExtensions,
		},
	})

	log.Debug("docchat wired",
		"backend", cfg.Backend.BaseURL,
		"mode", a.mode,
		"locale", a.catalog.Locale(),
		"session", a.store.SessionID(),
	)
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func isTerminalOutput(output string) bool {
	switch output {
	case "", "stdout", "stderr":
		return true
	}
	return false
}

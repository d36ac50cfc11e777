// Package app assembles the service from configuration. Both binaries
// build their components here so the wiring stays identical.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/bull/rag-assistant/internal/answer"
	"github.com/bull/rag-assistant/internal/config"
	"github.com/bull/rag-assistant/internal/embedding"
	"github.com/bull/rag-assistant/internal/extract"
	ghclient "github.com/bull/rag-assistant/internal/github"
	"github.com/bull/rag-assistant/internal/indexer"
	"github.com/bull/rag-assistant/internal/rag"
	"github.com/bull/rag-assistant/internal/retrieval"
	"github.com/bull/rag-assistant/internal/storage"
	"github.com/bull/rag-assistant/internal/telemetry"
)

// App holds the assembled components. Close releases the store.
type App struct {
	Config   *config.Config
	Store    storage.Store
	Metrics  *telemetry.Metrics
	Service  *rag.Service
	Pipeline *indexer.Pipeline
	Logger   *slog.Logger
}

// New opens the configured store and builds every component on top of it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	logger.Info("Store ready", "driver", cfg.Store.Driver, "dimension", cfg.Store.Dimension)

	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	answerer, err := answer.New(cfg.Answer, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create answerer: %w", err)
	}

	metrics := telemetry.NewMetrics()
	extractor := newExtractor(cfg.Extract, logger)
	pipeline := indexer.NewPipeline(extractor, embedder, store,
		indexer.WithMaxWords(cfg.Chunk.MaxWords),
		indexer.WithMetrics(metrics),
		indexer.WithLogger(logger),
	)
	retriever := retrieval.New(store, embedder,
		retrieval.WithMaxScan(cfg.Retrieval.MaxScan),
		retrieval.WithLogger(logger),
	)
	recorder := telemetry.NewRecorder(store,
		telemetry.WithMetrics(metrics),
		telemetry.WithCostPer1K(cfg.Telemetry.CostPer1K),
		telemetry.WithHistoryLimit(cfg.Telemetry.HistoryLimit),
		telemetry.WithLogger(logger),
	)
	svc := rag.NewService(store, retriever, answerer, recorder, pipeline, logger,
		rag.WithDefaultTopK(cfg.Retrieval.TopK),
	)

	return &App{
		Config:   cfg,
		Store:    store,
		Metrics:  metrics,
		Service:  svc,
		Pipeline: pipeline,
		Logger:   logger,
	}, nil
}

// newExtractor attaches tesseract when the binary can be found. Without it,
// image uploads fail and scanned PDFs keep their (short) text layer.
func newExtractor(cfg extract.Config, logger *slog.Logger) *extract.Extractor {
	opts := []extract.Option{
		extract.WithForceOCR(cfg.ForceOCR),
		extract.WithLogger(logger),
	}
	if path, err := exec.LookPath(cfg.TesseractPath); err == nil {
		opts = append(opts, extract.WithOCR(extract.NewTesseractOCR(path, cfg.OCRLanguage)))
	} else {
		logger.Warn("tesseract not found; OCR disabled", "path", cfg.TesseractPath)
	}
	return extract.New(cfg, opts...)
}

// GitHubSource builds a fetcher for the configured repository.
func (a *App) GitHubSource() (*ghclient.Fetcher, error) {
	gh := a.Config.GitHub
	if gh.Owner == "" || gh.Repo == "" {
		return nil, fmt.Errorf("github owner and repo are required")
	}
	client, err := ghclient.NewClient(gh.Token, nil)
	if err != nil {
		return nil, fmt.Errorf("create GitHub client: %w", err)
	}
	return ghclient.NewFetcher(client, gh.Owner, gh.Repo, gh.Path, gh.Ref), nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

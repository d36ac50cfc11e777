// Package main runs the document Q&A service: the REST API, the MCP endpoint
// and the metrics endpoint on one HTTP listener, or MCP over stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bull/rag-assistant/internal/api"
	"github.com/bull/rag-assistant/internal/app"
	"github.com/bull/rag-assistant/internal/config"
	"github.com/bull/rag-assistant/internal/logging"
	mcpserver "github.com/bull/rag-assistant/internal/mcp"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.Options{})
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Log)

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server := mcpserver.NewServer(&mcpserver.Config{
		Service: a.Service,
		Version: version,
	})

	router := api.NewRouter(a.Service, api.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		Metrics:        a.Metrics.Handler(),
		MCP:            mcpserver.NewHTTPHandler(server, &mcpserver.HTTPHandlerOptions{Stateless: true}),
		Health:         mcpserver.NewHealthHandler(a.Store, cfg.Store.Driver),
		Landing:        mcpserver.NewLandingHandler(),
		Logger:         logger,
	})
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	if cfg.Server.Mode == config.ModeStdio {
		// The HTTP side stays up for health checks and local testing.
		go func() {
			logger.Info("Starting HTTP server", "addr", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
			}
		}()
		defer shutdown(httpServer, cfg, logger)

		logger.Info("Starting MCP server (stdio mode)", "version", version)
		if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			"addr", httpServer.Addr,
			"store", cfg.Store.Driver,
			"embedding", cfg.Embedding.Provider,
			"answer", cfg.Answer.Provider)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdown(httpServer, cfg, logger)
		return nil
	}
}

func shutdown(srv *http.Server, cfg *config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}

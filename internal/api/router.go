// Package api serves the REST interface of the assistant over gin.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bull/rag-assistant/internal/rag"
	"github.com/bull/rag-assistant/internal/retrieval"
	"github.com/bull/rag-assistant/internal/storage"
	"github.com/bull/rag-assistant/internal/telemetry"
)

// Service is the subset of rag.Service the handlers use.
type Service interface {
	Query(ctx context.Context, req rag.Request) (*rag.Response, error)
	Search(ctx context.Context, query string, topK int) ([]retrieval.ScoredChunk, error)
	Upload(ctx context.Context, filename string, data []byte) (*storage.Document, error)
	ListDocuments(ctx context.Context) ([]*storage.Document, error)
	DeleteDocument(ctx context.Context, id string) (int, error)
	Stats(ctx context.Context) (*telemetry.Stats, error)
	History(ctx context.Context, limit int) ([]*storage.TelemetryRecord, error)
	Dashboard(ctx context.Context) (*rag.Dashboard, error)
}

// Options configures the router. Nil handlers are not mounted.
type Options struct {
	CORSOrigins    []string
	MaxUploadBytes int64
	Metrics        http.Handler
	MCP            http.Handler
	Health         http.Handler
	Landing        http.Handler
	Logger         *slog.Logger
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(svc Service, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(opts.Logger))
	r.Use(CORSMiddleware(opts.CORSOrigins))

	h := &handlers{svc: svc, maxUpload: opts.MaxUploadBytes, logger: opts.Logger}

	api := r.Group("/api")
	api.GET("/", h.root)
	api.POST("/documents/upload", h.upload)
	api.GET("/documents", h.listDocuments)
	api.DELETE("/documents/:id", h.deleteDocument)
	api.POST("/query", h.query)
	api.POST("/search", h.search)
	api.GET("/telemetry/stats", h.stats)
	api.GET("/telemetry/history", h.history)
	api.GET("/dashboard/stats", h.dashboard)

	if opts.Health != nil {
		r.GET("/health", gin.WrapH(opts.Health))
	}
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	if opts.MCP != nil {
		r.Any("/mcp", gin.WrapH(opts.MCP))
	}
	if opts.Landing != nil {
		r.GET("/", gin.WrapH(opts.Landing))
	}
	return r
}

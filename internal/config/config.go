// Package config loads service configuration from struct defaults, an optional
// .env file and the environment.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/bull/rag-assistant/internal/answer"
	"github.com/bull/rag-assistant/internal/embedding"
	"github.com/bull/rag-assistant/internal/extract"
	"github.com/bull/rag-assistant/internal/logging"
	"github.com/bull/rag-assistant/internal/storage"
)

// Server modes.
const (
	ModeHTTP  = "http"
	ModeStdio = "stdio"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Log       logging.Config   `koanf:"log"`
	Store     storage.Config   `koanf:"store"`
	Extract   extract.Config   `koanf:"extract"`
	Chunk     ChunkConfig      `koanf:"chunk"`
	Embedding embedding.Config `koanf:"embedding"`
	Retrieval RetrievalConfig  `koanf:"retrieval"`
	Answer    answer.Config    `koanf:"answer"`
	Telemetry TelemetryConfig  `koanf:"telemetry"`
	GitHub    GitHubConfig     `koanf:"github"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"             validate:"gt=0,lte=65535"`
	Mode            string        `koanf:"mode"             validate:"oneof=http stdio"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	MaxUploadMB     int64         `koanf:"max_upload_mb"    validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type ChunkConfig struct {
	MaxWords int `koanf:"max_words" validate:"gt=0"`
}

type RetrievalConfig struct {
	TopK    int `koanf:"top_k"    validate:"gt=0"`
	MaxScan int `koanf:"max_scan" validate:"gt=0"`
}

type TelemetryConfig struct {
	CostPer1K    float64 `koanf:"cost_per_1k"   validate:"gte=0"`
	HistoryLimit int     `koanf:"history_limit" validate:"gt=0"`
}

type GitHubConfig struct {
	Token string `koanf:"token"`
	Owner string `koanf:"owner"`
	Repo  string `koanf:"repo"`
	Path  string `koanf:"path"`
	Ref   string `koanf:"ref"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            ModeHTTP,
			CORSOrigins:     []string{"*"},
			MaxUploadMB:     50,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: logging.Config{
			Level: "info",
		},
		Store: storage.Config{
			Driver:     storage.DriverMemory,
			Dimension:  storage.DefaultDimension,
			SQLitePath: "rag.db",
			QdrantHost: "localhost",
			QdrantPort: 6334,
		},
		Extract: extract.DefaultConfig(),
		Chunk: ChunkConfig{
			MaxWords: 500,
		},
		Embedding: embedding.DefaultConfig(),
		Retrieval: RetrievalConfig{
			TopK:    3,
			MaxScan: 1000,
		},
		Answer: answer.DefaultConfig(),
		Telemetry: TelemetryConfig{
			CostPer1K:    0.01,
			HistoryLimit: 50,
		},
		GitHub: GitHubConfig{
			Ref: "main",
		},
	}
}

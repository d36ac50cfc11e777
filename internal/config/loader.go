package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables mapped onto config keys.
const EnvPrefix = "RAG_"

// legacyEnv maps the bare variable names older deployments use onto config keys.
var legacyEnv = map[string][]string{
	"OPENAI_API_KEY": {"embedding.api_key", "answer.api_key"},
	"QDRANT_HOST":    {"store.qdrant_host"},
	"QDRANT_PORT":    {"store.qdrant_port"},
	"DATABASE_URL":   {"store.postgres_dsn"},
	"PORT":           {"server.port"},
	"CORS_ORIGINS":   {"server.cors_origins"},
	"GITHUB_TOKEN":   {"github.token"},
	"LOG_LEVEL":      {"log.level"},
}

// Options tune Load. The zero value reads .env from the working directory and
// the process environment.
type Options struct {
	// EnvFiles are loaded with godotenv before the environment is read. Missing
	// files are ignored.
	EnvFiles []string
	// Environ overrides os.Environ, mainly for tests.
	Environ func() []string
}

// Load builds the configuration: struct defaults, then legacy variables, then
// RAG_-prefixed variables. The result is validated.
func Load(opts Options) (*Config, error) {
	files := opts.EnvFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := loadLegacy(k, environ()); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnvKey,
		EnvironFunc:   environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// The store holds vectors produced by the configured embedder.
	cfg.Store.Dimension = cfg.Embedding.Dimension

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadLegacy(k *koanf.Koanf, environ []string) error {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		if name == "SERVER_MODE" {
			mode := ModeStdio
			if value == "true" {
				mode = ModeHTTP
			}
			if err := k.Set("server.mode", mode); err != nil {
				return fmt.Errorf("failed to set server.mode: %w", err)
			}
			continue
		}
		for _, key := range legacyEnv[name] {
			if err := k.Set(key, value); err != nil {
				return fmt.Errorf("failed to set %s: %w", key, err)
			}
		}
	}
	return nil
}

// transformEnvKey converts RAG_STORE_SQLITE_PATH to store.sqlite_path. The
// first segment after the prefix is the section, the rest is the field name.
func transformEnvKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' })
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], value
	default:
		return parts[0] + "." + strings.Join(parts[1:], "_"), value
	}
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := c.Embedding.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := c.Answer.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	switch c.Store.Driver {
	case "memory", "sqlite", "qdrant":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("configuration validation failed: store.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("configuration validation failed: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

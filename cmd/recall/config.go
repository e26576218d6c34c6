package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/recallkit/recall-go/embedding"
	"github.com/recallkit/recall-go/embedding/cache"
	embmock "github.com/recallkit/recall-go/embedding/mock"
	embopenai "github.com/recallkit/recall-go/embedding/openai"
)

// cliConfig is loaded from ~/.recall/config.yaml and overridable via
// RECALL_* environment variables (e.g. RECALL_EMBEDDING_API_KEY).
type cliConfig struct {
	DBPath    string          `mapstructure:"db_path"`
	Owner     string          `mapstructure:"owner"`
	LogLevel  string          `mapstructure:"log_level"`
	Embedding embeddingConfig `mapstructure:"embedding"`
}

type embeddingConfig struct {
	Provider     string `mapstructure:"provider"` // mock | openai
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	CacheEntries int    `mapstructure:"cache_entries"`
}

func loadConfig(path string) (*cliConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("RECALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	v.SetDefault("db_path", filepath.Join(home, ".recall", "recall.db"))
	v.SetDefault("owner", "default")
	v.SetDefault("log_level", "warn")
	v.SetDefault("embedding.provider", "mock")
	v.SetDefault("embedding.cache_entries", 4096)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(home, ".recall"))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// newEmbedder builds the configured embedding provider behind an LRU
// cache so repeated CLI invocations within a session stay cheap.
func newEmbedder(cfg *cliConfig) (embedding.Embedder, error) {
	var base embedding.Embedder
	switch cfg.Embedding.Provider {
	case "", "mock":
		base = embmock.New()
	case "openai":
		e, err := embopenai.New(&embopenai.Config{
			BaseURL: cfg.Embedding.BaseURL,
			APIKey:  cfg.Embedding.APIKey,
			Model:   cfg.Embedding.Model,
		})
		if err != nil {
			return nil, err
		}
		base = e
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	return cache.New(base, &cache.Config{MaxEntries: int64(cfg.Embedding.CacheEntries)})
}

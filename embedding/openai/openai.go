// Package openai provides an API-backed Embedder using the OpenAI
// embeddings endpoint (or any compatible endpoint via BaseURL).
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/recallkit/recall-go/vec"
)

// Config holds the embedder configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	MaxRetries int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "text-embedding-3-small",
		Dimensions: 384,
		MaxRetries: 3,
	}
}

// Embedder generates embeddings through the OpenAI API.
type Embedder struct {
	client *openai.Client
	config *Config
	logger *slog.Logger
}

// New creates an API-backed embedder.
func New(cfg *Config) (*Embedder, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		logger: slog.Default(),
	}, nil
}

// Embed generates an embedding vector for text. The API response is
// truncated or rejected against the configured dimensions and normalized
// to unit length so cosine comparisons stay consistent across embedders.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := e.doWithRetry(ctx, func() error {
		req := openai.EmbeddingRequest{
			Input:      []string{text},
			Model:      openai.EmbeddingModel(e.config.Model),
			Dimensions: e.config.Dimensions,
		}

		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("empty embedding response")
		}
		result = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if len(result) != e.config.Dimensions {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d",
			len(result), e.config.Dimensions)
	}

	return vec.Normalize(result), nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.config.Dimensions
}

// doWithRetry executes fn with exponential backoff.
func (e *Embedder) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if attempt < e.config.MaxRetries-1 {
				wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				e.logger.Debug("embedding request failed, retrying",
					"attempt", attempt+1,
					"wait_time", wait,
					"error", err)
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}

package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-qa-rag/internal/config"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewEmbedder creates an embedder for the provider in LLMconfig. Documents
// are sent to the provider in batches of batchSize.
func NewEmbedder(ctx context.Context, LLMconfig *config.LLMConfig, batchSize int) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        LLMconfig.Provider,
		"base_url":        LLMconfig.BaseURL,
		"embedding_model": LLMconfig.Model,
	}).Msg("Creating embedder")

	client, err := newClient(ctx, LLMconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	opts := []embeddings.Option{embeddings.WithStripNewLines(false)}
	if batchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(batchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func newClient(ctx context.Context, LLMconfig *config.LLMConfig) (embeddings.EmbedderClient, error) {
	switch LLMconfig.Provider {
	case "googleai", "gemini":
		return googleai.New(ctx,
			googleai.WithAPIKey(LLMconfig.Key),
			googleai.WithDefaultEmbeddingModel(LLMconfig.Model),
		)
	case "openai":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(LLMconfig.Key, "Bearer ")),
			openai.WithEmbeddingModel(LLMconfig.Model),
		}
		if LLMconfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(LLMconfig.BaseURL))
		}
		return openai.New(opts...)
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(LLMconfig.BaseURL),
			ollama.WithModel(LLMconfig.Model),
		)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", LLMconfig.Provider)
	}
}

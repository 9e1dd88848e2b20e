package vectorstore

import (
	"context"
	"fmt"

	"pdf-qa-rag/internal/config"
	"pdf-qa-rag/internal/models"
)

// Record is one chunk together with its embedding.
type Record struct {
	Chunk     models.Chunk
	Embedding []float32
}

// Store holds the embedded chunks of one document build. It is written once
// by Add and then only searched until Close.
type Store interface {
	Add(ctx context.Context, records []Record) error
	// Search returns at most k chunks ordered by descending similarity.
	Search(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error)
	Count() int
	Close() error
}

// Backend creates empty stores.
type Backend interface {
	NewStore(ctx context.Context) (Store, error)
	Close() error
}

// Open returns the backend selected by cfg.VectorStore.Backend.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.VectorStore.Backend {
	case "", "chromem":
		return ChromemBackend{}, nil
	case "pgvector":
		return OpenPGVector(ctx, &cfg.Database, cfg.VectorStore.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported vector store backend: %s", cfg.VectorStore.Backend)
	}
}

// clampK limits k to the number of stored chunks.
func clampK(k, count int) int {
	if k > count {
		return count
	}
	return k
}

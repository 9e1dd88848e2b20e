package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/textsplitter"

	"pdf-qa-rag/internal/models"
	"pdf-qa-rag/internal/vectorstore"
)

const DefaultTopK = 4

// Indexer chunks merged documents, embeds the chunks and serves similarity
// search over the resulting store.
type Indexer struct {
	embedder embeddings.Embedder
	backend  vectorstore.Backend
	splitter textsplitter.TextSplitter
	topK     int
	timeout  time.Duration
}

type Option func(*Indexer)

// WithEmbedTimeout bounds every call to the embedding model.
func WithEmbedTimeout(d time.Duration) Option {
	return func(ix *Indexer) { ix.timeout = d }
}

func New(embedder embeddings.Embedder, backend vectorstore.Backend, splitter textsplitter.TextSplitter, topK int, opts ...Option) *Indexer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	ix := &Indexer{embedder: embedder, backend: backend, splitter: splitter, topK: topK}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

func (ix *Indexer) embedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ix.timeout > 0 {
		return context.WithTimeout(ctx, ix.timeout)
	}
	return ctx, func() {}
}

// Split cuts every document into chunks. Chunk numbers start at 1 within each
// document and the output depends only on the input.
func (ix *Indexer) Split(docs []models.MergedDocument) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, doc := range docs {
		texts, err := ix.splitter.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %s: %w", doc.Page, err)
		}
		for i, text := range texts {
			chunks = append(chunks, models.Chunk{
				ID:         fmt.Sprintf("%s-%d", doc.Page, i+1),
				Page:       doc.Page,
				SourcePath: doc.SourcePath,
				ChunkID:    i + 1,
				Content:    text,
			})
		}
	}
	return chunks, nil
}

// Build returns a new store holding every chunk of docs. On failure nothing
// is left behind.
func (ix *Indexer) Build(ctx context.Context, docs []models.MergedDocument) (vectorstore.Store, error) {
	chunks, err := ix.Split(docs)
	if err != nil {
		return nil, models.NewStageError(models.ErrIndex, err)
	}
	if len(chunks) == 0 {
		return nil, models.NewStageError(models.ErrIndex, errors.New("document has no content to index"))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embedCtx, cancel := ix.embedContext(ctx)
	vectors, err := ix.embedder.EmbedDocuments(embedCtx, texts)
	cancel()
	if err != nil {
		return nil, models.NewStageError(models.ErrEmbedding, fmt.Errorf("failed to embed chunks: %w", err))
	}
	if len(vectors) != len(chunks) {
		return nil, models.NewStageError(models.ErrEmbedding, fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks)))
	}

	store, err := ix.backend.NewStore(ctx)
	if err != nil {
		return nil, models.NewStageError(models.ErrIndex, err)
	}
	records := make([]vectorstore.Record, len(chunks))
	for i := range chunks {
		records[i] = vectorstore.Record{Chunk: chunks[i], Embedding: vectors[i]}
	}
	if err := store.Add(ctx, records); err != nil {
		if cerr := store.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to discard partial vector store")
		}
		return nil, models.NewStageError(models.ErrIndex, err)
	}

	log.Info().Int("documents", len(docs)).Int("chunks", len(chunks)).Msg("Built vector store")
	return store, nil
}

// Search embeds question and returns the k most similar chunks of store.
// A k of zero or less uses the configured default.
func (ix *Indexer) Search(ctx context.Context, store vectorstore.Store, question string, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		k = ix.topK
	}
	embedCtx, cancel := ix.embedContext(ctx)
	vector, err := ix.embedder.EmbedQuery(embedCtx, question)
	cancel()
	if err != nil {
		return nil, models.NewStageError(models.ErrEmbedding, fmt.Errorf("failed to embed question: %w", err))
	}
	chunks, err := store.Search(ctx, vector, k)
	if err != nil {
		return nil, models.NewStageError(models.ErrIndex, err)
	}
	return chunks, nil
}

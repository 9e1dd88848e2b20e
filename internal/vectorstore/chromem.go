package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdf-qa-rag/internal/models"
)

const (
	collectionName = "documents"
	compress       = false
)

// metadata keys
const (
	metaPage    = "page"
	metaSource  = "source_path"
	metaChunkID = "chunk_id"
)

// ChromemBackend creates in-memory chromem-go stores.
type ChromemBackend struct{}

func (ChromemBackend) NewStore(context.Context) (Store, error) {
	return NewChromemStore()
}

func (ChromemBackend) Close() error { return nil }

// ChromemStore is an in-process store backed by one chromem-go collection.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
}

func NewChromemStore() (*ChromemStore, error) {
	db := chromem.NewDB()
	c, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	return &ChromemStore{db: db, collection: c}, nil
}

// ImportChromemStore loads a store written by Export.
func ImportChromemStore(path, encryptionKey string) (*ChromemStore, error) {
	db := chromem.NewDB()
	if err := db.ImportFromFile(path, encryptionKey, collectionName); err != nil {
		return nil, fmt.Errorf("failed to import database: %w", err)
	}
	c := db.GetCollection(collectionName, nil)
	if c == nil {
		return nil, fmt.Errorf("collection %s not found in %s", collectionName, path)
	}
	log.Debug().Str("file", path).Int("chunks", c.Count()).Msg("Imported vector store")
	return &ChromemStore{db: db, collection: c}, nil
}

func (s *ChromemStore) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:      r.Chunk.ID,
			Content: r.Chunk.Content,
			Metadata: map[string]string{
				metaPage:    r.Chunk.Page.String(),
				metaSource:  r.Chunk.SourcePath,
				metaChunkID: strconv.Itoa(r.Chunk.ChunkID),
			},
			Embedding: r.Embedding,
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error) {
	// chromem rejects nResults above the collection size
	n := clampK(k, s.collection.Count())
	if n <= 0 {
		return nil, nil
	}
	results, err := s.collection.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	chunks := make([]models.ScoredChunk, 0, len(results))
	for _, r := range results {
		page, err := models.ParsePageRef(r.Metadata[metaPage])
		if err != nil {
			return nil, fmt.Errorf("invalid page metadata on %s: %w", r.ID, err)
		}
		chunkID, _ := strconv.Atoi(r.Metadata[metaChunkID])
		chunks = append(chunks, models.ScoredChunk{
			Chunk: models.Chunk{
				ID:         r.ID,
				Page:       page,
				SourcePath: r.Metadata[metaSource],
				ChunkID:    chunkID,
				Content:    r.Content,
			},
			Similarity: r.Similarity,
		})
	}
	return chunks, nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// Export writes the collection to path. A non-empty encryptionKey must be 32
// bytes long.
func (s *ChromemStore) Export(path, encryptionKey string) error {
	log.Debug().Str("file", path).Bool("compress", compress).Bool("encrypted", encryptionKey != "").Msg("Exporting vector store")
	if err := s.db.ExportToFile(path, compress, encryptionKey, collectionName); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

func (s *ChromemStore) Close() error {
	if err := s.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

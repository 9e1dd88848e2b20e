package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdf-qa-rag/internal/config"
	"pdf-qa-rag/internal/models"
)

// chunkRow is one embedded chunk. Rows of one store share a generation.
type chunkRow struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	Generation    string          `bun:"generation,pk"`
	ID            string          `bun:"id,pk"`
	Page          string          `bun:"page,notnull"`
	SourcePath    string          `bun:"source_path"`
	ChunkID       int             `bun:"chunk_id,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull"`
	Similarity    float32         `bun:"similarity,scanonly"`
}

// PGVectorBackend stores chunks in a Postgres table with the vector extension.
type PGVectorBackend struct {
	db *bun.DB
}

// OpenPGVector connects to Postgres and creates the chunks table if needed.
func OpenPGVector(ctx context.Context, cfg *config.DatabaseConfig, dimensions int) (*PGVectorBackend, error) {
	sqldb, err := connectDB(cfg)
	if err != nil {
		return nil, err
	}
	db := NewDB(sqldb, cfg.Debug)
	if err := InitDB(ctx, db, dimensions); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	return &PGVectorBackend{db: db}, nil
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func connectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "pq":
		dsn := cfg.DSN
		if cfg.Password != "" {
			u, err := url.Parse(dsn)
			if err != nil {
				return nil, fmt.Errorf("invalid dsn: %w", err)
			}
			if u.User != nil {
				u.User = url.UserPassword(u.User.Username(), cfg.Password)
			}
			dsn = u.String()
		}
		return sql.Open("postgres", dsn)
	default:
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	}
}

// InitDB creates the vector extension and the chunks table.
func InitDB(ctx context.Context, db *bun.DB, dimensions int) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
	generation text NOT NULL,
	id text NOT NULL,
	page text NOT NULL,
	source_path text,
	chunk_id integer NOT NULL,
	content text NOT NULL,
	embedding vector(%d) NOT NULL,
	PRIMARY KEY (generation, id)
)`, dimensions),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (b *PGVectorBackend) NewStore(context.Context) (Store, error) {
	return &PGVectorStore{db: b.db, generation: uuid.NewString()}, nil
}

func (b *PGVectorBackend) Close() error {
	return b.db.Close()
}

// PGVectorStore is the slice of the chunks table belonging to one generation.
type PGVectorStore struct {
	db         *bun.DB
	generation string
	count      atomic.Int64
}

func (s *PGVectorStore) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]chunkRow, len(records))
	for i, r := range records {
		rows[i] = chunkRow{
			ID:         r.Chunk.ID,
			Generation: s.generation,
			Page:       r.Chunk.Page.String(),
			SourcePath: r.Chunk.SourcePath,
			ChunkID:    r.Chunk.ChunkID,
			Content:    r.Chunk.Content,
			Embedding:  pgvector.NewVector(r.Embedding),
		}
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	s.count.Add(int64(len(rows)))
	return nil
}

func (s *PGVectorStore) Search(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error) {
	n := clampK(k, s.Count())
	if n <= 0 {
		return nil, nil
	}
	query := pgvector.NewVector(embedding)

	var rows []chunkRow
	err := s.db.NewSelect().
		Model(&rows).
		Column("id", "page", "source_path", "chunk_id", "content").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", query).
		Where("generation = ?", s.generation).
		OrderExpr("embedding <=> ?", query).
		Limit(n).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	chunks := make([]models.ScoredChunk, 0, len(rows))
	for _, r := range rows {
		page, err := models.ParsePageRef(r.Page)
		if err != nil {
			return nil, fmt.Errorf("invalid page on %s: %w", r.ID, err)
		}
		chunks = append(chunks, models.ScoredChunk{
			Chunk: models.Chunk{
				ID:         r.ID,
				Page:       page,
				SourcePath: r.SourcePath,
				ChunkID:    r.ChunkID,
				Content:    r.Content,
			},
			Similarity: r.Similarity,
		})
	}
	return chunks, nil
}

func (s *PGVectorStore) Count() int {
	return int(s.count.Load())
}

// Close deletes the generation's rows.
func (s *PGVectorStore) Close() error {
	res, err := s.db.NewDelete().
		Model((*chunkRow)(nil)).
		Where("generation = ?", s.generation).
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("failed to delete generation %s: %w", s.generation, err)
	}
	n, _ := res.RowsAffected()
	log.Debug().Str("generation", s.generation).Int64("chunks", n).Msg("Deleted vector store generation")
	return nil
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"genai-auto/internal/config"
	"genai-auto/internal/models"
)

const tableName = "document_embeddings"

type DocumentEmbedding struct {
	bun.BaseModel `bun:"table:document_embeddings,alias:de"`
	ID            uuid.UUID       `bun:"id,pk,type:uuid"`
	Content       string          `bun:"content,notnull"`
	Metadata      map[string]any  `bun:"doc_metadata,type:jsonb"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Source        string          `bun:"source,notnull"`
	DocumentType  string          `bun:"document_type,notnull"`
	CreatedAt     time.Time       `bun:"created_at,notnull"`
	Score         float64         `bun:"score,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with the configured driver.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "pq":
		return sql.Open("postgres", cfg.DSN)
	case "pgdriver", "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// InitDB creates the pgvector extension, the table with a fixed vector
// dimension and the filter indexes.
func InitDB(ctx context.Context, db *bun.DB, dimension int) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	_, err := db.NewRaw(`CREATE TABLE IF NOT EXISTS ? (
	id uuid PRIMARY KEY,
	content text NOT NULL,
	doc_metadata jsonb,
	embedding vector(?) NOT NULL,
	source text NOT NULL,
	document_type text NOT NULL,
	created_at timestamptz NOT NULL
)`, bun.Ident(tableName), bun.Safe(fmt.Sprint(dimension))).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	for _, col := range []string{"source", "document_type"} {
		_, err := db.NewRaw("CREATE INDEX IF NOT EXISTS ? ON ? (?)",
			bun.Ident(tableName+"_"+col+"_idx"), bun.Ident(tableName), bun.Ident(col)).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create %s index: %w", col, err)
		}
	}
	return nil
}

func DropDocuments(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*DocumentEmbedding)(nil)).IfExists().Exec(ctx)
	return err
}

// Backend stores embeddings in Postgres and ranks them with pgvector.
type Backend struct {
	db *bun.DB
}

func NewBackend(db *bun.DB) *Backend {
	return &Backend{db: db}
}

// Insert writes all rows in a single transaction.
func (b *Backend) Insert(ctx context.Context, rows []models.StoredEmbedding) error {
	if len(rows) == 0 {
		return nil
	}
	docs := make([]DocumentEmbedding, len(rows))
	for i, r := range rows {
		docs[i] = DocumentEmbedding{
			ID:           r.ID,
			Content:      r.Content,
			Metadata:     r.Metadata,
			Embedding:    pgvector.NewVector(r.Embedding),
			Source:       r.Source,
			DocumentType: string(r.DocumentType),
			CreatedAt:    r.CreatedAt,
		}
	}
	return b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&docs).Exec(ctx)
		return err
	})
}

// Search orders by cosine distance; ties fall back to insertion order.
func (b *Backend) Search(ctx context.Context, query []float32, opts models.SearchOptions) ([]models.SearchResult, error) {
	vec := pgvector.NewVector(query)
	var docs []DocumentEmbedding
	q := b.db.NewSelect().
		Model(&docs).
		Column("id", "content", "doc_metadata", "source", "document_type", "created_at").
		ColumnExpr("1 - (embedding <=> ?) AS score", vec)
	if opts.DocumentType != "" {
		q = q.Where("document_type = ?", string(opts.DocumentType))
	}
	if opts.Source != "" {
		q = q.Where("source = ?", opts.Source)
	}
	err := q.Where("1 - (embedding <=> ?) >= ?", vec, opts.ScoreFloor()).
		OrderExpr("embedding <=> ?", vec).
		OrderExpr("created_at ASC").
		OrderExpr("(doc_metadata->>'chunk_index')::int ASC").
		Limit(opts.TopK).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, len(docs))
	for i, d := range docs {
		results[i] = models.SearchResult{
			ChunkID:      d.ID.String(),
			DocumentID:   models.MetadataString(d.Metadata, "document_id"),
			Content:      d.Content,
			Score:        d.Score,
			Metadata:     d.Metadata,
			Source:       d.Source,
			DocumentType: models.DocumentType(d.DocumentType),
		}
	}
	return results, nil
}

func (b *Backend) DeleteBySource(ctx context.Context, source string) (int, error) {
	res, err := b.db.NewDelete().Model((*DocumentEmbedding)(nil)).Where("source = ?", source).Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (b *Backend) DeleteByDocumentID(ctx context.Context, documentID string) (int, error) {
	res, err := b.db.NewDelete().Model((*DocumentEmbedding)(nil)).Where("doc_metadata->>'document_id' = ?", documentID).Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (b *Backend) ListSources(ctx context.Context) ([]models.SourceInfo, error) {
	var out []models.SourceInfo
	err := b.db.NewSelect().
		Model((*DocumentEmbedding)(nil)).
		ColumnExpr("source, document_type").
		ColumnExpr("COUNT(*) AS chunk_count").
		ColumnExpr("MIN(created_at) AS first_indexed").
		ColumnExpr("MAX(created_at) AS last_indexed").
		Group("source", "document_type").
		OrderExpr("last_indexed DESC").
		Scan(ctx, &out)
	return out, err
}

func (b *Backend) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	err := b.db.NewSelect().
		Model((*DocumentEmbedding)(nil)).
		ColumnExpr("COUNT(*) AS total_chunks").
		ColumnExpr("COUNT(DISTINCT source) AS total_sources").
		ColumnExpr("COUNT(DISTINCT document_type) AS total_document_types").
		Scan(ctx, &stats)
	return stats, err
}

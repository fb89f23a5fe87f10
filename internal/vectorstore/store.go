package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"genai-auto/internal/embedding"
	"genai-auto/internal/helper"
	"genai-auto/internal/models"
	"genai-auto/internal/telemetry"
)

var (
	ErrInvalidTopK          = errors.New("top_k must be at least 1")
	ErrDimensionMismatch    = errors.New("embedding dimension mismatch")
	ErrInvalidDocumentType  = errors.New("invalid document type")
	ErrNoContent            = errors.New("no content to index")
	ErrMetadataLenMismatch  = errors.New("metadatas and contents differ in length")
	ErrEmbeddingLenMismatch = errors.New("embedder returned a different number of vectors")
)

// Backend persists rows and ranks them by cosine similarity.
// Insert must be all or nothing.
type Backend interface {
	Insert(ctx context.Context, rows []models.StoredEmbedding) error
	Search(ctx context.Context, query []float32, opts models.SearchOptions) ([]models.SearchResult, error)
	DeleteBySource(ctx context.Context, source string) (int, error)
	DeleteByDocumentID(ctx context.Context, documentID string) (int, error)
	ListSources(ctx context.Context) ([]models.SourceInfo, error)
	Stats(ctx context.Context) (models.Stats, error)
}

type Store struct {
	embedder  embedding.Embedder
	backend   Backend
	batchSize int
	metrics   *telemetry.Metrics
	now       func() time.Time
}

type Option func(*Store)

func WithBatchSize(n int) Option {
	return func(s *Store) { s.batchSize = n }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(embedder embedding.Embedder, backend Backend, opts ...Option) *Store {
	s := &Store{
		embedder:  embedder,
		backend:   backend,
		batchSize: 100,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Dimension() int { return s.embedder.Dimension() }

// AddDocuments embeds contents in one batch call and inserts one row per
// content. All rows share a fresh document_id.
func (s *Store) AddDocuments(ctx context.Context, contents []string, metadatas []map[string]any, source string, documentType models.DocumentType) (models.AddResult, error) {
	if !documentType.Valid() {
		return models.AddResult{}, fmt.Errorf("%w: %q", ErrInvalidDocumentType, documentType)
	}
	if len(contents) == 0 {
		return models.AddResult{}, ErrNoContent
	}
	if metadatas != nil && len(metadatas) != len(contents) {
		return models.AddResult{}, ErrMetadataLenMismatch
	}

	res, err := s.embedder.EmbedTexts(ctx, contents, s.batchSize)
	if err != nil {
		return models.AddResult{}, fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(res.Embeddings) != len(contents) {
		return models.AddResult{}, ErrEmbeddingLenMismatch
	}

	documentID, err := helper.GenerateUUID()
	if err != nil {
		return models.AddResult{}, err
	}
	now := s.now().UTC()

	rows := make([]models.StoredEmbedding, len(contents))
	for i, content := range contents {
		if err := s.checkDimension(res.Embeddings[i]); err != nil {
			return models.AddResult{}, err
		}
		var meta map[string]any
		if metadatas != nil {
			meta = models.CopyMetadata(metadatas[i])
		} else {
			meta = models.CopyMetadata(nil)
		}
		meta["document_id"] = documentID
		meta["chunk_index"] = i
		meta["source"] = source
		meta["indexed_at"] = now.Format(time.RFC3339Nano)

		rows[i] = models.StoredEmbedding{
			ID:           uuid.New(),
			Content:      content,
			Metadata:     meta,
			Embedding:    res.Embeddings[i],
			Source:       source,
			DocumentType: documentType,
			CreatedAt:    now,
		}
	}

	if err := s.backend.Insert(ctx, rows); err != nil {
		return models.AddResult{}, fmt.Errorf("failed to store documents: %w", err)
	}
	s.metrics.AddEmbeddingTokens(res.TokensUsed)

	log.Info().
		Str("document_id", documentID).
		Str("source", source).
		Str("document_type", string(documentType)).
		Int("chunks", len(rows)).
		Int("tokens", res.TokensUsed).
		Msg("Indexed document")

	return models.AddResult{
		DocumentID:  documentID,
		ChunksAdded: len(rows),
		TokensUsed:  res.TokensUsed,
	}, nil
}

// Search embeds query and returns at most TopK results with
// score >= MinScore, best first. A nil MinScore keeps every match.
func (s *Store) Search(ctx context.Context, query string, opts models.SearchOptions) ([]models.SearchResult, error) {
	if opts.TopK < 1 {
		return nil, ErrInvalidTopK
	}
	if opts.DocumentType != "" && !opts.DocumentType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDocumentType, opts.DocumentType)
	}

	start := time.Now()
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if err := s.checkDimension(vec); err != nil {
		return nil, err
	}

	results, err := s.backend.Search(ctx, vec, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	results = Rank(results, opts.TopK, opts.ScoreFloor())

	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}
	s.metrics.ObserveRetrieval(time.Since(start), scores)

	log.Debug().
		Int("top_k", opts.TopK).
		Float64("min_score", opts.ScoreFloor()).
		Int("results", len(results)).
		Dur("took", time.Since(start)).
		Msg("Search completed")
	return results, nil
}

func (s *Store) DeleteBySource(ctx context.Context, source string) (int, error) {
	n, err := s.backend.DeleteBySource(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("failed to delete source %s: %w", source, err)
	}
	log.Info().Str("source", source).Int("deleted", n).Msg("Deleted document chunks")
	return n, nil
}

func (s *Store) DeleteByDocumentID(ctx context.Context, documentID string) (int, error) {
	n, err := s.backend.DeleteByDocumentID(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	log.Info().Str("document_id", documentID).Int("deleted", n).Msg("Deleted document chunks")
	return n, nil
}

func (s *Store) ListSources(ctx context.Context) ([]models.SourceInfo, error) {
	return s.backend.ListSources(ctx)
}

func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	return s.backend.Stats(ctx)
}

func (s *Store) checkDimension(vec []float32) error {
	if want := s.embedder.Dimension(); want > 0 && len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}

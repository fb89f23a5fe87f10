package chromemdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"genai-auto/internal/config"
	"genai-auto/internal/models"
	"genai-auto/internal/vectorstore"
)

// metadata keys flattened into chromem's string map
const (
	keyMetadata     = "doc_metadata"
	keySource       = "source"
	keyDocumentType = "document_type"
	keyDocumentID   = "document_id"
	keyChunkIndex   = "chunk_index"
	keyCreatedAt    = "created_at"
)

var ErrEncryptionKey = errors.New("encryption key must be 32 bytes")

// VectorDBManager keeps embeddings in a chromem-go collection, persisted to
// disk unless configured in memory.
type VectorDBManager struct {
	mu            sync.Mutex
	db            *chromem.DB
	collection    *chromem.Collection
	name          string
	dbPath        string
	compress      bool
	encryptionKey string
	dimension     int
}

// NewVectorDBManager opens (or creates) the database and its collection.
func NewVectorDBManager(cfg config.ChromemConfig, dimension int) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		name:          cfg.CollectionName,
		dbPath:        cfg.Path,
		compress:      cfg.Compress,
		encryptionKey: cfg.EncryptionKey,
		dimension:     dimension,
	}
	if _, err := m.GetOrCreateCollection(cfg.CollectionName); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	// embeddings are always precomputed, the embedding func is never called
	c, err := m.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	m.name = collectionName
	return c, nil
}

// Insert adds all rows or none: on failure the ids already written are removed.
func (m *VectorDBManager) Insert(ctx context.Context, rows []models.StoredEmbedding) error {
	if len(rows) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(rows))
	ids := make([]string, len(rows))
	for i, r := range rows {
		if m.dimension > 0 && len(r.Embedding) != m.dimension {
			return fmt.Errorf("row %d has %d dimensions, collection uses %d", i, len(r.Embedding), m.dimension)
		}
		meta, err := flatten(r)
		if err != nil {
			return err
		}
		ids[i] = r.ID.String()
		docs[i] = chromem.Document{
			ID:        ids[i],
			Content:   r.Content,
			Metadata:  meta,
			Embedding: r.Embedding,
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		if rbErr := m.collection.Delete(context.Background(), nil, nil, ids...); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to roll back partial insert")
		}
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search runs an exhaustive query so filters and the score floor apply to
// every stored row.
func (m *VectorDBManager) Search(ctx context.Context, query []float32, opts models.SearchOptions) ([]models.SearchResult, error) {
	where := map[string]string{}
	if opts.DocumentType != "" {
		where[keyDocumentType] = string(opts.DocumentType)
	}
	if opts.Source != "" {
		where[keySource] = opts.Source
	}

	rows, err := m.query(ctx, query, where)
	if err != nil {
		return nil, err
	}

	floor := opts.ScoreFloor()
	var kept []scored
	for _, r := range rows {
		if r.score >= floor {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.row.CreatedAt.Equal(b.row.CreatedAt) {
			return a.row.CreatedAt.Before(b.row.CreatedAt)
		}
		return a.row.ChunkIndex() < b.row.ChunkIndex()
	})
	if opts.TopK > 0 && len(kept) > opts.TopK {
		kept = kept[:opts.TopK]
	}

	results := make([]models.SearchResult, len(kept))
	for i, s := range kept {
		results[i] = models.SearchResult{
			ChunkID:      s.row.ID.String(),
			DocumentID:   s.row.DocumentID(),
			Content:      s.row.Content,
			Score:        s.score,
			Metadata:     s.row.Metadata,
			Source:       s.row.Source,
			DocumentType: s.row.DocumentType,
		}
	}
	return results, nil
}

func (m *VectorDBManager) DeleteBySource(ctx context.Context, source string) (int, error) {
	return m.deleteWhere(ctx, map[string]string{keySource: source})
}

func (m *VectorDBManager) DeleteByDocumentID(ctx context.Context, documentID string) (int, error) {
	return m.deleteWhere(ctx, map[string]string{keyDocumentID: documentID})
}

func (m *VectorDBManager) deleteWhere(ctx context.Context, where map[string]string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := m.collection.Count()
	if before == 0 {
		return 0, nil
	}
	if err := m.collection.Delete(ctx, where, nil); err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	return before - m.collection.Count(), nil
}

func (m *VectorDBManager) ListSources(ctx context.Context) ([]models.SourceInfo, error) {
	rows, err := m.all(ctx)
	if err != nil {
		return nil, err
	}
	return vectorstore.AggregateSources(rows), nil
}

func (m *VectorDBManager) Stats(ctx context.Context) (models.Stats, error) {
	rows, err := m.all(ctx)
	if err != nil {
		return models.Stats{}, err
	}
	return vectorstore.StatsOf(rows), nil
}

// Count returns the number of stored chunks.
func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

func (m *VectorDBManager) DeleteCollection() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.DeleteCollection(m.name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	_, err := m.GetOrCreateCollection(m.name)
	return err
}

// ExportPath is the default export file for the collection.
func (m *VectorDBManager) ExportPath() string {
	ext := ".gob"
	if m.compress {
		ext += ".gz"
	}
	if m.encryptionKey != "" {
		ext += ".enc"
	}
	return filepath.Join(m.dbPath, m.name+ext)
}

// Export writes the collection to path, encrypted when a key is configured.
func (m *VectorDBManager) Export(_ context.Context, path string) error {
	if err := m.checkKey(); err != nil {
		return err
	}
	if path == "" {
		path = m.ExportPath()
	}
	log.Debug().
		Str("collection", m.name).
		Str("file", path).
		Bool("compress", m.compress).
		Msg("Exporting collection")

	if err := m.db.ExportToFile(path, m.compress, m.encryptionKey, m.name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads the collection from a file written by Export.
func (m *VectorDBManager) Import(_ context.Context, path string) error {
	if err := m.checkKey(); err != nil {
		return err
	}
	if path == "" {
		path = m.ExportPath()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.ImportFromFile(path, m.encryptionKey, m.name); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	c := m.db.GetCollection(m.name, nil)
	if c == nil {
		return fmt.Errorf("collection %s not found in %s", m.name, path)
	}
	m.collection = c
	log.Info().Str("collection", m.name).Int("chunks", c.Count()).Msg("Imported collection")
	return nil
}

func (m *VectorDBManager) checkKey() error {
	if m.encryptionKey != "" && len(m.encryptionKey) != 32 {
		return ErrEncryptionKey
	}
	return nil
}

type scored struct {
	row   models.StoredEmbedding
	score float64
}

func (m *VectorDBManager) query(ctx context.Context, vec []float32, where map[string]string) ([]scored, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.collection.Count()
	if n == 0 {
		return nil, nil
	}
	if len(where) == 0 {
		where = nil
	}
	res, err := m.collection.QueryEmbedding(ctx, vec, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	out := make([]scored, 0, len(res))
	for _, r := range res {
		row, err := unflatten(r.ID, r.Content, r.Metadata)
		if err != nil {
			return nil, err
		}
		out = append(out, scored{row: row, score: float64(r.Similarity)})
	}
	return out, nil
}

func (m *VectorDBManager) all(ctx context.Context) ([]models.StoredEmbedding, error) {
	if m.dimension <= 0 {
		return nil, errors.New("collection dimension is unknown")
	}
	unit := make([]float32, m.dimension)
	unit[0] = 1
	res, err := m.query(ctx, unit, nil)
	if err != nil {
		return nil, err
	}
	rows := make([]models.StoredEmbedding, len(res))
	for i, r := range res {
		rows[i] = r.row
	}
	return rows, nil
}

func flatten(r models.StoredEmbedding) (map[string]string, error) {
	raw, err := json.Marshal(r.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return map[string]string{
		keyMetadata:     string(raw),
		keySource:       r.Source,
		keyDocumentType: string(r.DocumentType),
		keyDocumentID:   r.DocumentID(),
		keyChunkIndex:   strconv.Itoa(r.ChunkIndex()),
		keyCreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func unflatten(id, content string, meta map[string]string) (models.StoredEmbedding, error) {
	row := models.StoredEmbedding{
		Content:      content,
		Source:       meta[keySource],
		DocumentType: models.DocumentType(meta[keyDocumentType]),
	}
	var err error
	if row.ID, err = uuid.Parse(id); err != nil {
		return row, fmt.Errorf("invalid chunk id %q: %w", id, err)
	}
	if raw := meta[keyMetadata]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &row.Metadata); err != nil {
			return row, fmt.Errorf("failed to decode metadata of %s: %w", id, err)
		}
	}
	if row.Metadata == nil {
		row.Metadata = map[string]any{}
	}
	if ts := meta[keyCreatedAt]; ts != "" {
		if row.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return row, fmt.Errorf("invalid created_at of %s: %w", id, err)
		}
	}
	return row, nil
}

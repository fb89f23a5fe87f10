package vectorstore

import (
	"context"
	"sync"

	"genai-auto/internal/models"
)

// MemoryBackend is an exact in-process backend. Rows keep insertion order.
type MemoryBackend struct {
	mu   sync.RWMutex
	rows []models.StoredEmbedding
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Insert(_ context.Context, rows []models.StoredEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *MemoryBackend) Search(_ context.Context, query []float32, opts models.SearchOptions) ([]models.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []models.SearchResult
	for _, r := range m.rows {
		if opts.DocumentType != "" && r.DocumentType != opts.DocumentType {
			continue
		}
		if opts.Source != "" && r.Source != opts.Source {
			continue
		}
		results = append(results, ToResult(r, CosineSimilarity(query, r.Embedding)))
	}
	return Rank(results, opts.TopK, opts.ScoreFloor()), nil
}

func (m *MemoryBackend) DeleteBySource(_ context.Context, source string) (int, error) {
	return m.deleteWhere(func(r models.StoredEmbedding) bool { return r.Source == source }), nil
}

func (m *MemoryBackend) DeleteByDocumentID(_ context.Context, documentID string) (int, error) {
	return m.deleteWhere(func(r models.StoredEmbedding) bool { return r.DocumentID() == documentID }), nil
}

func (m *MemoryBackend) deleteWhere(match func(models.StoredEmbedding) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	deleted := 0
	for _, r := range m.rows {
		if match(r) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return deleted
}

func (m *MemoryBackend) ListSources(_ context.Context) ([]models.SourceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return AggregateSources(m.rows), nil
}

func (m *MemoryBackend) Stats(_ context.Context) (models.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return StatsOf(m.rows), nil
}

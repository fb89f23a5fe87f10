package vectorstore

import (
	"math"
	"sort"

	"genai-auto/internal/models"
)

// CosineSimilarity returns 1 - cosine distance, or 0 when either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank drops results under minScore, sorts by score descending keeping the
// incoming order for ties, and keeps at most topK.
func Rank(results []models.SearchResult, topK int, minScore float64) []models.SearchResult {
	kept := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= minScore {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if topK > 0 && len(kept) > topK {
		kept = kept[:topK]
	}
	return kept
}

// ToResult converts a stored row into a search result with score.
func ToResult(row models.StoredEmbedding, score float64) models.SearchResult {
	return models.SearchResult{
		ChunkID:      row.ID.String(),
		DocumentID:   row.DocumentID(),
		Content:      row.Content,
		Score:        score,
		Metadata:     row.Metadata,
		Source:       row.Source,
		DocumentType: row.DocumentType,
	}
}

// AggregateSources groups rows per (source, document type), most recently
// indexed first.
func AggregateSources(rows []models.StoredEmbedding) []models.SourceInfo {
	type key struct {
		source  string
		docType models.DocumentType
	}
	index := map[key]int{}
	var out []models.SourceInfo
	for _, r := range rows {
		k := key{r.Source, r.DocumentType}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, models.SourceInfo{
				Source:       r.Source,
				DocumentType: r.DocumentType,
				FirstIndexed: r.CreatedAt,
				LastIndexed:  r.CreatedAt,
			})
			i = len(out) - 1
		}
		info := &out[i]
		info.ChunkCount++
		if r.CreatedAt.Before(info.FirstIndexed) {
			info.FirstIndexed = r.CreatedAt
		}
		if r.CreatedAt.After(info.LastIndexed) {
			info.LastIndexed = r.CreatedAt
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastIndexed.After(out[j].LastIndexed) })
	return out
}

// StatsOf counts rows, distinct sources and distinct document types.
func StatsOf(rows []models.StoredEmbedding) models.Stats {
	sources := map[string]struct{}{}
	types := map[models.DocumentType]struct{}{}
	for _, r := range rows {
		sources[r.Source] = struct{}{}
		types[r.DocumentType] = struct{}{}
	}
	return models.Stats{
		TotalChunks:        len(rows),
		TotalSources:       len(sources),
		TotalDocumentTypes: len(types),
	}
}

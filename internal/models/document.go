package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentType classifies knowledge base content.
type DocumentType string

const (
	DocumentTypeManual       DocumentType = "manual"
	DocumentTypeSpec         DocumentType = "spec"
	DocumentTypeGuide        DocumentType = "guide"
	DocumentTypeFAQ          DocumentType = "faq"
	DocumentTypeTroubleshoot DocumentType = "troubleshoot"
)

var documentTypes = []DocumentType{
	DocumentTypeManual,
	DocumentTypeSpec,
	DocumentTypeGuide,
	DocumentTypeFAQ,
	DocumentTypeTroubleshoot,
}

func (t DocumentType) Valid() bool {
	for _, dt := range documentTypes {
		if t == dt {
			return true
		}
	}
	return false
}

func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown document type %q", s)
	}
	return t, nil
}

// DocumentChunk is a chunker output, consumed by the store right away.
type DocumentChunk struct {
	Content    string
	Metadata   map[string]any
	ChunkIndex int
}

// StoredEmbedding is one vector store row.
type StoredEmbedding struct {
	ID           uuid.UUID
	Content      string
	Metadata     map[string]any
	Embedding    []float32
	Source       string
	DocumentType DocumentType
	CreatedAt    time.Time
}

// DocumentID returns the parent document id recorded in the row metadata.
func (e StoredEmbedding) DocumentID() string {
	return MetadataString(e.Metadata, "document_id")
}

// ChunkIndex returns the chunk position recorded in the row metadata.
func (e StoredEmbedding) ChunkIndex() int {
	return MetadataInt(e.Metadata, "chunk_index")
}

type SearchOptions struct {
	TopK         int
	DocumentType DocumentType
	Source       string
	// MinScore is the inclusive score floor. Nil means no floor.
	MinScore *float64
}

// ScoreFloor returns the floor to apply, -1 when MinScore is unset.
func (o SearchOptions) ScoreFloor() float64 {
	if o.MinScore == nil {
		return -1
	}
	return *o.MinScore
}

// Floor returns a pointer to v for SearchOptions.MinScore.
func Floor(v float64) *float64 {
	return &v
}

type SearchResult struct {
	ChunkID      string         `json:"chunk_id"`
	DocumentID   string         `json:"document_id"`
	Content      string         `json:"content"`
	Score        float64        `json:"score"`
	Metadata     map[string]any `json:"metadata"`
	Source       string         `json:"source"`
	DocumentType DocumentType   `json:"document_type"`
}

type AddResult struct {
	DocumentID  string `json:"document_id"`
	ChunksAdded int    `json:"chunks_added"`
	TokensUsed  int    `json:"tokens_used"`
}

type SourceInfo struct {
	Source       string       `json:"source" bun:"source"`
	DocumentType DocumentType `json:"document_type" bun:"document_type"`
	ChunkCount   int          `json:"chunk_count" bun:"chunk_count"`
	FirstIndexed time.Time    `json:"first_indexed" bun:"first_indexed"`
	LastIndexed  time.Time    `json:"last_indexed" bun:"last_indexed"`
}

type Stats struct {
	TotalChunks        int `json:"total_chunks" bun:"total_chunks"`
	TotalSources       int `json:"total_sources" bun:"total_sources"`
	TotalDocumentTypes int `json:"total_document_types" bun:"total_document_types"`
}

func MetadataString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// MetadataInt reads an int that may have gone through a JSON round trip.
func MetadataInt(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var n int
		fmt.Sscanf(v, "%d", &n)
		return n
	default:
		return 0
	}
}

// CopyMetadata returns a shallow copy safe to extend.
func CopyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+4)
	for k, v := range m {
		out[k] = v
	}
	return out
}

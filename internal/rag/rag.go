package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"genai-auto/internal/chunker"
	"genai-auto/internal/config"
	"genai-auto/internal/llmservice"
	"genai-auto/internal/models"
	"genai-auto/internal/parser"
	"genai-auto/internal/vectorstore"
)

// IngestRequest describes one document upload. Zero values take the
// configured defaults; an empty Strategy means auto detection.
type IngestRequest struct {
	Content      []byte
	Filename     string
	ContentType  string
	DocumentType models.DocumentType
	Strategy     chunker.Strategy
	ChunkSize    int
	ChunkOverlap int
	Metadata     map[string]any
}

type IngestResult struct {
	DocumentID       string              `json:"document_id"`
	Filename         string              `json:"filename"`
	DocumentType     models.DocumentType `json:"document_type"`
	ChunksCreated    int                 `json:"chunks_created"`
	TokensUsed       int                 `json:"tokens_used"`
	ChunkingStrategy chunker.Strategy    `json:"chunking_strategy"`
	OriginalLength   int                 `json:"original_length"`
}

type Answer struct {
	Text    string                `json:"answer"`
	Context string                `json:"context"`
	Sources []models.SearchResult `json:"sources"`
}

type RAG struct {
	store     *vectorstore.Store
	completer llmservice.Completer
	cfg       *config.Config
}

// NewRAG wires the pipeline. completer may be nil when only ingestion and
// retrieval are used.
func NewRAG(store *vectorstore.Store, completer llmservice.Completer, cfg *config.Config) *RAG {
	return &RAG{store: store, completer: completer, cfg: cfg}
}

// IngestDocument extracts, chunks and indexes one document.
func (r *RAG) IngestDocument(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if req.DocumentType == "" {
		req.DocumentType = models.DocumentTypeManual
	}
	log.Info().
		Str("filename", req.Filename).
		Str("content_type", req.ContentType).
		Str("document_type", string(req.DocumentType)).
		Msg("Starting document ingestion")

	text, err := parser.ExtractText(req.Content, req.Filename, req.ContentType)
	if err != nil {
		return IngestResult{}, err
	}
	if strings.TrimSpace(text) == "" {
		return IngestResult{}, parser.ErrEmptyDocument
	}

	strategy := req.Strategy
	if strategy == chunker.StrategyAuto {
		strategy = chunker.Strategy(r.cfg.RAG.DefaultStrategy)
	}
	if strategy == chunker.StrategyAuto {
		strategy = chunker.DetectStrategy(text, req.Filename)
	}

	opts := chunker.Options{ChunkSize: r.cfg.RAG.ChunkSize, ChunkOverlap: r.cfg.RAG.ChunkOverlap}
	if req.ChunkSize > 0 {
		opts.ChunkSize = req.ChunkSize
		opts.ChunkOverlap = req.ChunkOverlap
	}

	meta := models.CopyMetadata(nil)
	meta["filename"] = req.Filename
	meta["content_type"] = req.ContentType
	meta["document_type"] = string(req.DocumentType)
	meta["original_length"] = len(text)
	for k, v := range req.Metadata {
		meta[k] = v
	}

	chunks, err := chunker.New(opts).Chunk(text, meta, strategy)
	if err != nil {
		return IngestResult{}, err
	}
	if len(chunks) == 0 {
		return IngestResult{}, parser.ErrEmptyDocument
	}

	contents := make([]string, len(chunks))
	metadatas := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
		metadatas[i] = c.Metadata
	}

	added, err := r.store.AddDocuments(ctx, contents, metadatas, req.Filename, req.DocumentType)
	if err != nil {
		return IngestResult{}, err
	}

	log.Info().
		Str("filename", req.Filename).
		Int("chunks_created", added.ChunksAdded).
		Int("tokens_used", added.TokensUsed).
		Str("strategy", string(strategy)).
		Msg("Document ingestion complete")

	return IngestResult{
		DocumentID:       added.DocumentID,
		Filename:         req.Filename,
		DocumentType:     req.DocumentType,
		ChunksCreated:    added.ChunksAdded,
		TokensUsed:       added.TokensUsed,
		ChunkingStrategy: strategy,
		OriginalLength:   len(text),
	}, nil
}

// IngestText indexes raw text as a text/plain document named source.
func (r *RAG) IngestText(ctx context.Context, text, source string, documentType models.DocumentType, strategy chunker.Strategy, metadata map[string]any) (IngestResult, error) {
	return r.IngestDocument(ctx, IngestRequest{
		Content:      []byte(text),
		Filename:     source,
		ContentType:  "text/plain",
		DocumentType: documentType,
		Strategy:     strategy,
		Metadata:     metadata,
	})
}

// Query searches the knowledge base. A zero TopK or a nil MinScore falls
// back to the configured value.
func (r *RAG) Query(ctx context.Context, query string, opts models.SearchOptions) ([]models.SearchResult, error) {
	if opts.TopK == 0 {
		opts.TopK = r.cfg.RAG.TopK
	}
	if opts.MinScore == nil {
		opts.MinScore = r.cfg.RAG.MinScore
	}
	return r.store.Search(ctx, query, opts)
}

// Retrieve returns the top k chunks for query with the default score floor.
func (r *RAG) Retrieve(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	return r.Query(ctx, query, models.SearchOptions{TopK: k})
}

// GetContext builds the prompt context for query. The result never exceeds
// maxTokens*4 bytes; a chunk that does not fit ends the assembly.
func (r *RAG) GetContext(ctx context.Context, query string, topK, maxTokens int, documentType models.DocumentType) (string, error) {
	results, err := r.Query(ctx, query, models.SearchOptions{TopK: topK, DocumentType: documentType})
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return models.NoContextFound, nil
	}
	if maxTokens <= 0 {
		maxTokens = r.cfg.RAG.MaxContextTokens
	}
	return FormatContext(results, maxTokens*models.CharsPerToken), nil
}

// FormatContext renders results best first until maxChars would be exceeded.
func FormatContext(results []models.SearchResult, maxChars int) string {
	var sb strings.Builder
	for _, res := range results {
		entry := fmt.Sprintf(models.ContextEntryTemplate, res.Source, res.Score, res.Content)
		size := len(entry)
		if sb.Len() > 0 {
			size += len(models.ContextEntrySeparator)
		}
		if sb.Len()+size > maxChars {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString(models.ContextEntrySeparator)
		}
		sb.WriteString(entry)
	}
	return sb.String()
}

// Generate answers query from already retrieved results.
func (r *RAG) Generate(ctx context.Context, query string, results []models.SearchResult) (string, error) {
	if r.completer == nil {
		return "", fmt.Errorf("no completion model configured")
	}
	contextText := r.contextFor(results)
	start := time.Now()
	answer, err := r.completer.Complete(ctx, fmt.Sprintf(models.AnswerSystemPrompt, contextText), query, r.cfg.LLM.Temperature)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	log.Debug().Dur("took", time.Since(start)).Int("contexts", len(results)).Msg("Answer generated")
	return answer, nil
}

// Streamer is implemented by completers that can forward partial output.
type Streamer interface {
	Stream(ctx context.Context, system, user string, temperature float64, fn func(chunk string) error) (string, error)
}

// GenerateStream is Generate with chunks passed to fn as they arrive. A
// completer that cannot stream gets the whole answer passed to fn once.
func (r *RAG) GenerateStream(ctx context.Context, query string, results []models.SearchResult, fn func(chunk string) error) (string, error) {
	s, ok := r.completer.(Streamer)
	if !ok {
		answer, err := r.Generate(ctx, query, results)
		if err != nil {
			return "", err
		}
		return answer, fn(answer)
	}
	system := fmt.Sprintf(models.AnswerSystemPrompt, r.contextFor(results))
	answer, err := s.Stream(ctx, system, query, r.cfg.LLM.Temperature, fn)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	return answer, nil
}

// Answer retrieves and generates in one call.
func (r *RAG) Answer(ctx context.Context, query string, topK int) (Answer, error) {
	results, err := r.Query(ctx, query, models.SearchOptions{TopK: topK})
	if err != nil {
		return Answer{}, err
	}
	text, err := r.Generate(ctx, query, results)
	if err != nil {
		return Answer{}, err
	}
	contextText := r.contextFor(results)
	return Answer{Text: text, Context: contextText, Sources: results}, nil
}

func (r *RAG) contextFor(results []models.SearchResult) string {
	if len(results) == 0 {
		return models.NoContextFound
	}
	return FormatContext(results, r.cfg.RAG.MaxContextTokens*models.CharsPerToken)
}

func (r *RAG) DeleteDocument(ctx context.Context, source string) (int, error) {
	return r.store.DeleteBySource(ctx, source)
}

func (r *RAG) DeleteDocumentByID(ctx context.Context, documentID string) (int, error) {
	return r.store.DeleteByDocumentID(ctx, documentID)
}

func (r *RAG) ListDocuments(ctx context.Context) ([]models.SourceInfo, error) {
	return r.store.ListSources(ctx)
}

func (r *RAG) GetStats(ctx context.Context) (models.Stats, error) {
	return r.store.Stats(ctx)
}

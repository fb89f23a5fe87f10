package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"genai-auto/internal/config"
)

// LangchainEmbedder adapts a langchaingo embedder. Providers behind it do
// not report usage, so tokens are estimated locally.
type LangchainEmbedder struct {
	embedder    embeddings.Embedder
	model       string
	dimension   int
	maxChars    int
	countTokens func(string) int
}

// NewLangchainEmbedder creates an ollama or openai backed embedder.
func NewLangchainEmbedder(cfg config.EmbeddingConfig) (*LangchainEmbedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating embedder")

	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama: %w", err)
		}
		client = llm
	case "openai":
		llm, err := openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(cfg.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return NewLangchainEmbedderFrom(embedder, cfg.Model, cfg.Dimension, cfg.MaxChars), nil
}

func NewLangchainEmbedderFrom(e embeddings.Embedder, model string, dimension, maxChars int) *LangchainEmbedder {
	return &LangchainEmbedder{
		embedder:    e,
		model:       model,
		dimension:   dimension,
		maxChars:    maxChars,
		countTokens: CountTokens,
	}
}

func (l *LangchainEmbedder) Model() string  { return l.model }
func (l *LangchainEmbedder) Dimension() int { return l.dimension }

func (l *LangchainEmbedder) EmbedTexts(ctx context.Context, texts []string, batchSize int) (Result, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	out := Result{Model: l.model, Embeddings: make([][]float32, 0, len(texts))}
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batch := make([]string, 0, end-start)
		for _, t := range texts[start:end] {
			prepared := PrepareText(t, l.maxChars)
			batch = append(batch, prepared)
			out.TokensUsed += l.countTokens(prepared)
		}
		vectors, err := l.embedder.EmbedDocuments(ctx, batch)
		if err != nil {
			return Result{}, fmt.Errorf("failed to embed batch [%d:%d]: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return Result{}, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vectors), len(batch))
		}
		out.Embeddings = append(out.Embeddings, vectors...)
	}
	return out, nil
}

func (l *LangchainEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return l.embedder.EmbedQuery(ctx, PrepareText(text, l.maxChars))
}

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"genai-auto/internal/config"
)

// ProviderError is returned for any non-2xx embedding response.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider returned %d: %s", e.StatusCode, e.Body)
}

// HTTPClient calls an OpenAI compatible POST /embeddings endpoint.
type HTTPClient struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	batchSize int
	maxChars  int
	client    *http.Client
}

func NewHTTPClient(cfg config.EmbeddingConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    strings.TrimPrefix(cfg.APIKey, "Bearer "),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
		maxChars:  cfg.MaxChars,
		client:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Model() string  { return c.model }
func (c *HTTPClient) Dimension() int { return c.dimension }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// EmbedTexts sends one request per batch. Any failed batch fails the call.
func (c *HTTPClient) EmbedTexts(ctx context.Context, texts []string, batchSize int) (Result, error) {
	if batchSize <= 0 {
		batchSize = c.batchSize
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	out := Result{Model: c.model, Embeddings: make([][]float32, 0, len(texts))}
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batch := make([]string, 0, end-start)
		for _, t := range texts[start:end] {
			batch = append(batch, PrepareText(t, c.maxChars))
		}

		vectors, tokens, err := c.embedBatch(ctx, batch)
		if err != nil {
			return Result{}, fmt.Errorf("failed to embed batch [%d:%d]: %w", start, end, err)
		}
		out.Embeddings = append(out.Embeddings, vectors...)
		out.TokensUsed += tokens
	}

	log.Debug().Str("model", c.model).Int("texts", len(texts)).Int("tokens", out.TokensUsed).Msg("Generated embeddings")
	return out, nil
}

func (c *HTTPClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	res, err := c.EmbedTexts(ctx, []string{text}, 1)
	if err != nil {
		return nil, err
	}
	return res.Embeddings[0], nil
}

func (c *HTTPClient) embedBatch(ctx context.Context, batch []string) ([][]float32, int, error) {
	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: batch})
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return nil, 0, &ProviderError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(parsed.Data) != len(batch) {
		return nil, 0, fmt.Errorf("embedding response has %d vectors for %d inputs", len(parsed.Data), len(batch))
	}

	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		if d.Index != i {
			return nil, 0, fmt.Errorf("embedding response is missing index %d", i)
		}
		vectors[i] = d.Embedding
	}
	return vectors, parsed.Usage.TotalTokens, nil
}

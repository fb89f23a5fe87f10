package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"genai-auto/internal/config"
)

type recordedRequest struct {
	auth  string
	input []string
}

// fakeProvider answers with vectors [len(text), index] in reverse order.
func fakeProvider(t *testing.T, status int) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		reqs = append(reqs, recordedRequest{auth: r.Header.Get("Authorization"), input: req.Input})
		mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"rate limited"}`))
			return
		}

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		var data []item
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Embedding: []float32{float32(len(req.Input[i])), float32(i)}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":  data,
			"usage": map[string]int{"total_tokens": 3 * len(req.Input)},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func newTestClient(url string) *HTTPClient {
	return NewHTTPClient(config.EmbeddingConfig{
		BaseURL:   url + "/",
		APIKey:    "Bearer secret",
		Model:     "text-embedding-3-small",
		Dimension: 2,
		BatchSize: 2,
		MaxChars:  10,
		Timeout:   5 * time.Second,
	})
}

func TestHTTPClientOrdersAndBatches(t *testing.T) {
	srv, reqs := fakeProvider(t, http.StatusOK)
	c := newTestClient(srv.URL)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	res, err := c.EmbedTexts(context.Background(), texts, 0)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(*reqs) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(*reqs))
	}
	if (*reqs)[0].auth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", (*reqs)[0].auth)
	}
	if len(res.Embeddings) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(res.Embeddings))
	}
	for i, vec := range res.Embeddings {
		if int(vec[0]) != len(texts[i]) {
			t.Fatalf("vector %d out of order: %v", i, vec)
		}
	}
	if res.TokensUsed != 15 {
		t.Fatalf("expected 15 tokens, got %d", res.TokensUsed)
	}
}

func TestHTTPClientNormalizesAndTruncates(t *testing.T) {
	srv, reqs := fakeProvider(t, http.StatusOK)
	c := newTestClient(srv.URL)

	if _, err := c.EmbedQuery(context.Background(), "  oil \n\n change   interval  "); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if got := (*reqs)[0].input[0]; got != "oil change" {
		t.Fatalf("expected normalized and truncated input, got %q", got)
	}
}

func TestHTTPClientProviderError(t *testing.T) {
	srv, _ := fakeProvider(t, http.StatusTooManyRequests)
	c := newTestClient(srv.URL)

	_, err := c.EmbedTexts(context.Background(), []string{"x"}, 10)
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.StatusCode != http.StatusTooManyRequests || !strings.Contains(perr.Body, "rate limited") {
		t.Fatalf("unexpected provider error %+v", perr)
	}
}

func TestHTTPClientCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,2],"index":0}],"usage":{"total_tokens":1}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).EmbedTexts(context.Background(), []string{"a", "b"}, 5)
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestPrepareText(t *testing.T) {
	if got := PrepareText("\tcheck   engine\nlight ", 0); got != "check engine light" {
		t.Fatalf("unexpected %q", got)
	}
	if got := PrepareText("ééééé", 3); got != "ééé" {
		t.Fatalf("truncation must count runes, got %q", got)
	}
}

type fakeLangchain struct {
	calls [][]string
}

func (f *fakeLangchain) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (f *fakeLangchain) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func TestLangchainEmbedder(t *testing.T) {
	fake := &fakeLangchain{}
	e := NewLangchainEmbedderFrom(fake, "nomic-embed-text", 1, 100)
	e.countTokens = func(s string) int { return len(s) }

	res, err := e.EmbedTexts(context.Background(), []string{"one", "two  words", "three"}, 2)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(fake.calls))
	}
	if fake.calls[0][1] != "two words" {
		t.Fatalf("text not normalized: %q", fake.calls[0][1])
	}
	if res.TokensUsed != len("one")+len("two words")+len("three") {
		t.Fatalf("unexpected token estimate %d", res.TokensUsed)
	}
	if e.Model() != "nomic-embed-text" || e.Dimension() != 1 {
		t.Fatalf("unexpected model info")
	}
}

package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"genai-auto/internal/telemetry"
)

// Cache stores vectors by key. Implementations report a miss with ok=false.
type Cache interface {
	Get(ctx context.Context, key string) (vector []float32, ok bool, err error)
	Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error
}

type CacheOptions struct {
	TTL       time.Duration
	KeyPrefix string
	MaxChars  int
	Metrics   *telemetry.Metrics
}

// CachedEmbedder looks vectors up in a Cache before calling the inner
// embedder. Cache failures are logged and count as misses.
type CachedEmbedder struct {
	inner Embedder
	cache Cache
	opts  CacheOptions
}

func NewCachedEmbedder(inner Embedder, cache Cache, opts CacheOptions) *CachedEmbedder {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "genai:embedding"
	}
	return &CachedEmbedder{inner: inner, cache: cache, opts: opts}
}

func (c *CachedEmbedder) Model() string  { return c.inner.Model() }
func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

// CacheKey builds "<prefix>:<model>:<first 16 hex chars of sha256>".
func CacheKey(prefix, model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%s:%s", prefix, model, hex.EncodeToString(sum[:])[:16])
}

func (c *CachedEmbedder) key(text string) string {
	return CacheKey(c.opts.KeyPrefix, c.inner.Model(), PrepareText(text, c.opts.MaxChars))
}

func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string, batchSize int) (Result, error) {
	vectors := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var (
		missIdx   []int
		missTexts []string
	)
	for i, t := range texts {
		keys[i] = c.key(t)
		if vec, ok := c.lookup(ctx, keys[i]); ok {
			vectors[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	out := Result{Model: c.inner.Model(), Embeddings: vectors}
	if len(missTexts) == 0 {
		return out, nil
	}

	res, err := c.inner.EmbedTexts(ctx, missTexts, batchSize)
	if err != nil {
		return Result{}, err
	}
	if len(res.Embeddings) != len(missTexts) {
		return Result{}, fmt.Errorf("embedder returned %d vectors for %d inputs", len(res.Embeddings), len(missTexts))
	}
	for j, i := range missIdx {
		vectors[i] = res.Embeddings[j]
		c.store(ctx, keys[i], vectors[i])
	}
	out.TokensUsed = res.TokensUsed
	return out, nil
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if vec, ok := c.lookup(ctx, key); ok {
		return vec, nil
	}
	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, vec)
	return vec, nil
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	vec, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Embedding cache read failed")
		c.opts.Metrics.CacheError()
		return nil, false
	}
	if !ok {
		c.opts.Metrics.CacheMiss()
		return nil, false
	}
	c.opts.Metrics.CacheHit()
	return vec, true
}

func (c *CachedEmbedder) store(ctx context.Context, key string, vec []float32) {
	if err := c.cache.Set(ctx, key, vec, c.opts.TTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Embedding cache write failed")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"genai-auto/internal/chromemdb"
	"genai-auto/internal/config"
	"genai-auto/internal/db"
	"genai-auto/internal/embedding"
	"genai-auto/internal/helper"
	"genai-auto/internal/llmservice"
	"genai-auto/internal/rag"
	"genai-auto/internal/telemetry"
	"genai-auto/internal/vectorstore"
)

var errNotChromem = errors.New("export and import need the chromem backend")

// app holds everything one command needs. close releases connections in
// reverse order of creation.
type app struct {
	cfg     *config.Config
	rag     *rag.RAG
	llm     *llmservice.Client
	chromem *chromemdb.VectorDBManager
	metrics *telemetry.Metrics
	closers []func() error
}

// newApp wires backend, embedder and (when withLLM is set) the completion
// client from the config.
func newApp(ctx context.Context, cfg *config.Config, withLLM bool) (*app, error) {
	a := &app{cfg: cfg, metrics: telemetry.New()}

	backend, err := a.backend(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	embedder, err := a.embedder(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	store := vectorstore.New(embedder, backend,
		vectorstore.WithBatchSize(cfg.Embedding.BatchSize),
		vectorstore.WithMetrics(a.metrics),
	)

	if withLLM {
		a.llm, err = llmservice.New(&cfg.LLM)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to create llm client: %w", err)
		}
	}
	// completer stays a nil interface without an llm
	var completer llmservice.Completer
	if a.llm != nil {
		completer = a.llm
	}
	a.rag = rag.NewRAG(store, completer, cfg)
	return a, nil
}

func (a *app) backend(ctx context.Context) (vectorstore.Backend, error) {
	dim := a.cfg.Embedding.Dimension
	switch a.cfg.VectorStore.Backend {
	case "pgvector":
		sqldb, err := db.ConnectDB(&a.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("error connecting to database: %w", err)
		}
		bunDB := db.NewDB(sqldb, a.cfg.Database.Debug)
		a.closers = append(a.closers, bunDB.Close)
		if err := db.InitDB(ctx, bunDB, dim); err != nil {
			return nil, fmt.Errorf("error initializing database: %w", err)
		}
		return db.NewBackend(bunDB), nil
	case "chromem":
		if !a.cfg.Chromem.InMemory {
			if err := helper.CreateFolder(a.cfg.Chromem.Path); err != nil {
				return nil, err
			}
		}
		m, err := chromemdb.NewVectorDBManager(a.cfg.Chromem, dim)
		if err != nil {
			return nil, fmt.Errorf("error creating vector database manager: %w", err)
		}
		a.chromem = m
		return m, nil
	default:
		log.Warn().Msg("Using the in-memory backend, nothing is persisted")
		return vectorstore.NewMemoryBackend(), nil
	}
}

func (a *app) embedder(ctx context.Context) (embedding.Embedder, error) {
	var inner embedding.Embedder
	switch a.cfg.Embedding.Provider {
	case "openai":
		inner = embedding.NewHTTPClient(a.cfg.Embedding)
	default:
		le, err := embedding.NewLangchainEmbedder(a.cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("error initializing embedder: %w", err)
		}
		inner = le
	}
	if !a.cfg.Cache.Enabled {
		return inner, nil
	}

	client := embedding.NewRedisClient(a.cfg.Cache)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", a.cfg.Cache.Addr).Msg("Embedding cache unavailable, continuing without it")
		_ = client.Close()
		return inner, nil
	}
	a.closers = append(a.closers, client.Close)
	return embedding.NewCachedEmbedder(inner, embedding.NewRedisCache(client), embedding.CacheOptions{
		TTL:       a.cfg.Cache.TTL,
		KeyPrefix: a.cfg.Cache.KeyPrefix,
		MaxChars:  a.cfg.Embedding.MaxChars,
		Metrics:   a.metrics,
	}), nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Error closing resource")
		}
	}
	a.closers = nil
}

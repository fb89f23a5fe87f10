package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel    string            `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Database    DatabaseConfig    `yaml:"database"`
	Chromem     ChromemConfig     `yaml:"chromem"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Cache       CacheConfig       `yaml:"cache"`
	LLM         LLMConfig         `yaml:"llm"`
	RAG         RAGConfig         `yaml:"rag"`
	Evaluation  EvaluationConfig  `yaml:"evaluation"`
}

type VectorStoreConfig struct {
	Backend string `yaml:"backend" validate:"oneof=pgvector chromem memory"`
}

type DatabaseConfig struct {
	// Driver selects the database/sql driver: "pgdriver" (bun) or "pq".
	Driver   string `yaml:"driver" validate:"oneof=pgdriver pq"`
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type ChromemConfig struct {
	Path           string `yaml:"path"`
	CollectionName string `yaml:"collection_name"`
	InMemory       bool   `yaml:"in_memory"`
	Compress       bool   `yaml:"compress"`
	EncryptionKey  string `yaml:"encryption_key"`
}

type EmbeddingConfig struct {
	Provider  string        `yaml:"provider" validate:"oneof=openai ollama"`
	BaseURL   string        `yaml:"base_url" validate:"required"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model" validate:"required"`
	Dimension int           `yaml:"dimension" validate:"gt=0"`
	BatchSize int           `yaml:"batch_size" validate:"gt=0"`
	MaxChars  int           `yaml:"max_chars" validate:"gt=0"`
	Timeout   time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	TTL       time.Duration `yaml:"ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
}

type LLMConfig struct {
	Provider    string        `yaml:"provider" validate:"oneof=openai ollama"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Key         string        `yaml:"key"`
	Temperature float64       `yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout     time.Duration `yaml:"timeout"`
}

type RAGConfig struct {
	ChunkSize        int      `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap     int      `yaml:"chunk_overlap" validate:"gte=0"`
	DefaultStrategy  string   `yaml:"default_strategy" validate:"omitempty,oneof=recursive semantic markdown fixed"`
	TopK             int      `yaml:"top_k" validate:"gte=1"`
	// MinScore defaults to 0.5; -1 keeps every match.
	MinScore         *float64 `yaml:"min_score" validate:"omitempty,gte=-1,lte=1"`
	MaxContextTokens int      `yaml:"max_context_tokens" validate:"gt=0"`
}

type EvaluationConfig struct {
	K                  int           `yaml:"k" validate:"gte=1"`
	MaxConcurrent      int           `yaml:"max_concurrent" validate:"gte=1"`
	RelevanceThreshold float64       `yaml:"relevance_threshold" validate:"gte=0,lte=1"`
	JudgeTimeout       time.Duration `yaml:"judge_timeout"`
	ReportDir          string        `yaml:"report_dir"`
	Weights            WeightsConfig `yaml:"weights"`
}

// WeightsConfig holds the overall score weighting. Unset weights take the
// defaults; an explicit 0 drops that term.
type WeightsConfig struct {
	Faithfulness     *float64 `yaml:"faithfulness" validate:"omitempty,gte=0"`
	AnswerRelevance  *float64 `yaml:"answer_relevance" validate:"omitempty,gte=0"`
	ContextRelevance *float64 `yaml:"context_relevance" validate:"omitempty,gte=0"`
	Retrieval        *float64 `yaml:"retrieval" validate:"omitempty,gte=0"`
	Precision        *float64 `yaml:"precision" validate:"omitempty,gte=0"`
	MRR              *float64 `yaml:"mrr" validate:"omitempty,gte=0"`
	HitRate          *float64 `yaml:"hit_rate" validate:"omitempty,gte=0"`
}

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// LoadConfig reads a YAML config file. A .env file next to the working
// directory is loaded first so ${VAR} references can be expanded.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes, defaults and validates raw YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config usable without a file (memory backend, local ollama).
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = "memory"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "pgdriver"
	}
	if c.Chromem.Path == "" {
		c.Chromem.Path = "./chromemdb"
	}
	if c.Chromem.CollectionName == "" {
		c.Chromem.CollectionName = "document_embeddings"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = "http://localhost:11434"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "nomic-embed-text"
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = 768
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 100
	}
	if c.Embedding.MaxChars == 0 {
		c.Embedding.MaxChars = 8000
	}
	if c.Embedding.Timeout == 0 {
		c.Embedding.Timeout = 60 * time.Second
	}

	if c.Cache.Addr == "" {
		c.Cache.Addr = "localhost:6379"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 24 * time.Hour
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "genai:embedding"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "ollama"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "http://localhost:11434"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama3.1"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}

	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = defaultChunkSize
		if c.RAG.ChunkOverlap == 0 {
			c.RAG.ChunkOverlap = defaultChunkOverlap
		}
	}
	c.RAG.ChunkOverlap = NormalizeOverlap(c.RAG.ChunkSize, c.RAG.ChunkOverlap)
	if c.RAG.TopK == 0 {
		c.RAG.TopK = 5
	}
	if c.RAG.MinScore == nil {
		minScore := 0.5
		c.RAG.MinScore = &minScore
	}
	if c.RAG.MaxContextTokens == 0 {
		c.RAG.MaxContextTokens = 3000
	}

	if c.Evaluation.K == 0 {
		c.Evaluation.K = 5
	}
	if c.Evaluation.MaxConcurrent == 0 {
		c.Evaluation.MaxConcurrent = 3
	}
	if c.Evaluation.RelevanceThreshold == 0 {
		c.Evaluation.RelevanceThreshold = 0.7
	}
	if c.Evaluation.JudgeTimeout == 0 {
		c.Evaluation.JudgeTimeout = 60 * time.Second
	}
	if c.Evaluation.ReportDir == "" {
		c.Evaluation.ReportDir = "./reports"
	}
}

// NormalizeOverlap keeps the overlap strictly below the chunk size.
func NormalizeOverlap(chunkSize, overlap int) int {
	if overlap < 0 {
		return 0
	}
	if overlap >= chunkSize {
		return chunkSize / 2
	}
	return overlap
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.VectorStore.Backend == "pgvector" && c.Database.DSN == "" {
		return errors.New("invalid config: database.dsn is required for the pgvector backend")
	}
	return nil
}

package chunker

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"genai-auto/internal/config"
	"genai-auto/internal/models"
)

// Strategy names a chunking algorithm.
type Strategy string

const (
	StrategyAuto      Strategy = ""
	StrategyRecursive Strategy = "recursive"
	StrategySemantic  Strategy = "semantic"
	StrategyMarkdown  Strategy = "markdown"
	StrategyFixed     Strategy = "fixed"
)

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyAuto, StrategyRecursive, StrategySemantic, StrategyMarkdown, StrategyFixed:
		return st, nil
	case "auto":
		return StrategyAuto, nil
	default:
		return "", fmt.Errorf("unknown chunking strategy %q", s)
	}
}

// Piece is one chunk body produced by a Splitter.
type Piece struct {
	Content string
	// Headers is the rendered header path, markdown only.
	Headers string
}

// Splitter is implemented once per strategy.
type Splitter interface {
	Name() Strategy
	Split(text string) []Piece
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

func (o Options) normalize() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 1000
	}
	o.ChunkOverlap = config.NormalizeOverlap(o.ChunkSize, o.ChunkOverlap)
	return o
}

// NewSplitter returns the splitter for strategy. StrategyAuto is not accepted here.
func NewSplitter(strategy Strategy, opts Options) (Splitter, error) {
	opts = opts.normalize()
	switch strategy {
	case StrategyRecursive:
		return &recursiveSplitter{size: opts.ChunkSize, overlap: opts.ChunkOverlap, separators: DefaultSeparators}, nil
	case StrategySemantic:
		return &semanticSplitter{size: opts.ChunkSize, overlap: opts.ChunkOverlap}, nil
	case StrategyMarkdown:
		return &markdownSplitter{size: opts.ChunkSize, overlap: opts.ChunkOverlap}, nil
	case StrategyFixed:
		return &fixedSplitter{size: opts.ChunkSize, overlap: opts.ChunkOverlap}, nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q", strategy)
	}
}

type Chunker struct {
	opts Options
}

func New(opts Options) *Chunker {
	return &Chunker{opts: opts.normalize()}
}

func (c *Chunker) Options() Options { return c.opts }

// Chunk splits text with strategy and stamps every chunk with the caller
// metadata plus chunk_strategy, chunk_size and chunk_index. StrategyAuto
// resolves through DetectStrategy using metadata["filename"].
func (c *Chunker) Chunk(text string, metadata map[string]any, strategy Strategy) ([]models.DocumentChunk, error) {
	if strings.TrimSpace(text) == "" {
		return []models.DocumentChunk{}, nil
	}
	if strategy == StrategyAuto {
		strategy = DetectStrategy(text, models.MetadataString(metadata, "filename"))
	}
	splitter, err := NewSplitter(strategy, c.opts)
	if err != nil {
		return nil, err
	}

	pieces := splitter.Split(text)
	chunks := make([]models.DocumentChunk, 0, len(pieces))
	for i, p := range pieces {
		meta := models.CopyMetadata(metadata)
		meta["chunk_strategy"] = string(splitter.Name())
		meta["chunk_size"] = c.opts.ChunkSize
		meta["chunk_index"] = i
		if p.Headers != "" {
			meta["headers"] = p.Headers
		}
		chunks = append(chunks, models.DocumentChunk{
			Content:    p.Content,
			Metadata:   meta,
			ChunkIndex: i,
		})
	}

	log.Debug().
		Str("strategy", string(splitter.Name())).
		Int("chunk_size", c.opts.ChunkSize).
		Int("chunk_overlap", c.opts.ChunkOverlap).
		Int("chunks", len(chunks)).
		Msg("Chunked document")
	return chunks, nil
}

var markdownPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^#{1,6}\s+`),
	regexp.MustCompile(`(?m)^\*\*.*\*\*`),
	regexp.MustCompile(`(?m)^\[.*\]\(.*\)`),
	regexp.MustCompile("(?m)^```"),
}

// DetectStrategy picks markdown for markdown files or text that looks like
// markdown, recursive otherwise.
func DetectStrategy(text, filename string) Strategy {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown", ".mdx":
		return StrategyMarkdown
	}
	for _, re := range markdownPatterns {
		if re.MatchString(text) {
			return StrategyMarkdown
		}
	}
	return StrategyRecursive
}

func tail(r []rune, n int) []rune {
	if n <= 0 {
		return nil
	}
	if len(r) <= n {
		return r
	}
	return r[len(r)-n:]
}

func isBlank(r []rune) bool {
	return strings.TrimSpace(string(r)) == ""
}

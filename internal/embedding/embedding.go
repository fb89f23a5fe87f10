package embedding

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// Result holds the vectors of one EmbedTexts call in input order.
type Result struct {
	Embeddings [][]float32
	Model      string
	TokensUsed int
}

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string, batchSize int) (Result, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

// NormalizeText collapses all whitespace runs to single spaces.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// PrepareText normalizes text and truncates it to maxChars runes.
func PrepareText(text string, maxChars int) string {
	text = NormalizeText(text)
	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		text = string([]rune(text)[:maxChars])
	}
	return text
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
	encodingErr  error
)

// CountTokens estimates tokens with the cl100k_base encoding, falling back
// to four characters per token when the encoding is unavailable.
func CountTokens(text string) int {
	encodingOnce.Do(func() {
		encoding, encodingErr = tiktoken.GetEncoding("cl100k_base")
		if encodingErr != nil {
			log.Warn().Err(encodingErr).Msg("Token encoding unavailable, using character estimate")
		}
	})
	if encodingErr != nil {
		return (utf8.RuneCountInString(text) + 3) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}

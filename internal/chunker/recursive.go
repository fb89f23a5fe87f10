package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order; the empty separator means a hard cut.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

type recursiveSplitter struct {
	size       int
	overlap    int
	separators []string
}

func (s *recursiveSplitter) Name() Strategy { return StrategyRecursive }

func (s *recursiveSplitter) Split(text string) []Piece {
	chunks := splitRunes([]rune(text), s.size, s.overlap, s.separators)
	pieces := make([]Piece, 0, len(chunks))
	for _, c := range chunks {
		pieces = append(pieces, Piece{Content: c})
	}
	return pieces
}

// splitRunes fills chunks greedily up to size runes. Each chunk after the
// first starts with the last overlap runes of the previous chunk, and the
// overlap counts against size. Bodies are contiguous spans of text that end
// right after the best separator found in the available window.
func splitRunes(text []rune, size, overlap int, separators []string) []string {
	var (
		chunks []string
		prefix []rune
		start  int
	)
	n := len(text)
	for start < n {
		budget := size - len(prefix)
		end := n
		if n-start > budget {
			end = start + cutPoint(text[start:start+budget], separators)
		}

		chunk := make([]rune, 0, len(prefix)+end-start)
		chunk = append(chunk, prefix...)
		chunk = append(chunk, text[start:end]...)
		if !isBlank(chunk) {
			chunks = append(chunks, string(chunk))
			prefix = tail(chunk, overlap)
		}
		start = end
	}
	return chunks
}

// cutPoint returns the rune length of the window prefix that ends right
// after the last occurrence of the first separator present in the window.
func cutPoint(window []rune, separators []string) int {
	s := string(window)
	for _, sep := range separators {
		if sep == "" {
			break
		}
		if i := strings.LastIndex(s, sep); i >= 0 {
			return utf8.RuneCountInString(s[:i+len(sep)])
		}
	}
	return len(window)
}

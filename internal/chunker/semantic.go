package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

type semanticSplitter struct {
	size    int
	overlap int
}

func (s *semanticSplitter) Name() Strategy { return StrategySemantic }

func (s *semanticSplitter) Split(text string) []Piece {
	var (
		chunks  []string
		current string
	)
	flush := func() {
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
	}

	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paraLen := utf8.RuneCountInString(para)
		if paraLen > s.size {
			flush()
			chunks = append(chunks, splitRunes([]rune(para), s.size, 0, DefaultSeparators)...)
			continue
		}
		if current == "" {
			current = para
			continue
		}
		if utf8.RuneCountInString(current)+paraLen+2 <= s.size {
			current += "\n\n" + para
		} else {
			flush()
			current = para
		}
	}
	flush()

	pieces := make([]Piece, len(chunks))
	for i, c := range chunks {
		if i > 0 && s.overlap > 0 {
			c = string(tail([]rune(chunks[i-1]), s.overlap)) + "\n\n" + c
		}
		pieces[i] = Piece{Content: c}
	}
	return pieces
}

package chunker

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"genai-auto/internal/config"
)

const maxHeaderLevel = 4

type heading struct {
	level  int
	title  string
	offset int
}

type markdownSplitter struct {
	size    int
	overlap int
}

func (s *markdownSplitter) Name() Strategy { return StrategyMarkdown }

func (s *markdownSplitter) Split(doc string) []Piece {
	heads := atxHeadings([]byte(doc))

	var (
		pieces []Piece
		path   []heading
		prev   int
	)
	emit := func(body string, path []heading) {
		pieces = append(pieces, s.splitSection(body, path)...)
	}
	for _, h := range heads {
		emit(doc[prev:h.offset], path)

		keep := 0
		for keep < len(path) && path[keep].level < h.level {
			keep++
		}
		path = append(path[:keep:keep], h)
		prev = h.offset
	}
	emit(doc[prev:], path)
	return pieces
}

func (s *markdownSplitter) splitSection(body string, path []heading) []Piece {
	content := strings.TrimSpace(body)
	if content == "" {
		return nil
	}
	crumb := renderPath(path)
	if utf8.RuneCountInString(content) <= s.size {
		return []Piece{{Content: content, Headers: crumb}}
	}

	prefix := ""
	if crumb != "" {
		prefix = "[" + crumb + "]\n"
	}
	budget := max(s.size-utf8.RuneCountInString(prefix), s.size/2, 1)
	overlap := config.NormalizeOverlap(budget, s.overlap)

	var pieces []Piece
	for _, c := range splitRunes([]rune(content), budget, overlap, DefaultSeparators) {
		pieces = append(pieces, Piece{Content: prefix + c, Headers: crumb})
	}
	return pieces
}

// renderPath formats a header path as "h1: Engine > h2: Specs".
func renderPath(path []heading) string {
	parts := make([]string, 0, len(path))
	for _, h := range path {
		parts = append(parts, fmt.Sprintf("h%d: %s", h.level, h.title))
	}
	return strings.Join(parts, " > ")
}

// atxHeadings returns the "#" style headings up to level four in document
// order. Headings inside code blocks or other containers are not reported.
func atxHeadings(src []byte) []heading {
	root := goldmark.DefaultParser().Parse(text.NewReader(src))

	var heads []heading
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if h.Level > maxHeaderLevel || h.Lines().Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		seg := h.Lines().At(0)
		lineStart := bytes.LastIndexByte(src[:seg.Start], '\n') + 1
		marker := bytes.TrimLeft(src[lineStart:seg.Start], " ")
		if len(marker) == 0 || marker[0] != '#' {
			// setext heading or heading nested in a container
			return ast.WalkSkipChildren, nil
		}
		heads = append(heads, heading{
			level:  h.Level,
			title:  strings.TrimSpace(string(h.Lines().Value(src))),
			offset: lineStart,
		})
		return ast.WalkSkipChildren, nil
	})
	return heads
}

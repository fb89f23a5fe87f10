package chunker

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

var allStrategies = []Strategy{StrategyRecursive, StrategySemantic, StrategyMarkdown, StrategyFixed}

func longText() string {
	var b strings.Builder
	for p := 0; p < 6; p++ {
		for s := 0; s < 5; s++ {
			fmt.Fprintf(&b, "Paragraph %d sentence %d explains a maintenance step for the vehicle. ", p, s)
		}
		b.WriteString("\n\n")
	}
	b.WriteString("Final line without trailing separator")
	return b.String()
}

func TestChunkEmptyInput(t *testing.T) {
	c := New(Options{ChunkSize: 100, ChunkOverlap: 20})
	for _, st := range allStrategies {
		for _, in := range []string{"", "   \n\n\t"} {
			chunks, err := c.Chunk(in, nil, st)
			if err != nil {
				t.Fatalf("%s: unexpected error %v", st, err)
			}
			if chunks == nil || len(chunks) != 0 {
				t.Fatalf("%s: expected empty non-nil slice for %q, got %v", st, in, chunks)
			}
		}
	}
}

func TestRecursiveCoverageAndOverlap(t *testing.T) {
	text := longText()
	const size, overlap = 120, 25
	c := New(Options{ChunkSize: size, ChunkOverlap: overlap})
	chunks, err := c.Chunk(text, nil, StrategyRecursive)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	var rebuilt strings.Builder
	for i, ch := range chunks {
		if n := utf8.RuneCountInString(ch.Content); n > size {
			t.Fatalf("chunk %d has %d runes, limit %d", i, n, size)
		}
		if i == 0 {
			rebuilt.WriteString(ch.Content)
			continue
		}
		prefix := string(tail([]rune(chunks[i-1].Content), overlap))
		if !strings.HasPrefix(ch.Content, prefix) {
			t.Fatalf("chunk %d does not start with the %d-rune suffix of chunk %d", i, overlap, i-1)
		}
		rebuilt.WriteString(strings.TrimPrefix(ch.Content, prefix))
	}
	if rebuilt.String() != text {
		t.Fatalf("chunks do not cover the input")
	}
}

func TestRecursivePrefersParagraphBreaks(t *testing.T) {
	p1 := "The GenAuto X1 engine delivers 128 hp on gasoline fuel."
	p2 := "Brake pads must be replaced when thickness drops below three millimeters."
	p3 := "Infotainment voice commands start with the phrase Ok GenAuto."
	text := p1 + "\n\n" + p2 + "\n\n" + p3

	c := New(Options{ChunkSize: 100, ChunkOverlap: 20})
	chunks, err := c.Chunk(text, nil, StrategyRecursive)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %q", len(chunks), chunks)
	}
	for i, p := range []string{p1, p2, p3} {
		if !strings.Contains(chunks[i].Content, p) {
			t.Fatalf("chunk %d should hold paragraph %d intact: %q", i, i+1, chunks[i].Content)
		}
		if n := utf8.RuneCountInString(chunks[i].Content); n > 120 {
			t.Fatalf("chunk %d too long: %d", i, n)
		}
	}
}

func TestRecursiveHardCut(t *testing.T) {
	text := strings.Repeat("x", 250)
	c := New(Options{ChunkSize: 100, ChunkOverlap: 0})
	chunks, err := c.Chunk(text, nil, StrategyRecursive)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if len(chunks) != 3 || len(chunks[2].Content) != 50 {
		t.Fatalf("expected 100/100/50 split, got %d chunks", len(chunks))
	}
}

func TestSemanticPacksParagraphs(t *testing.T) {
	a := strings.Repeat("a", 40)
	b := strings.Repeat("b", 40)
	d := strings.Repeat("d", 40)
	text := a + "\n\n" + b + "\n  \n" + d

	c := New(Options{ChunkSize: 90, ChunkOverlap: 10})
	chunks, err := c.Chunk(text, nil, StrategySemantic)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[0].Content != a+"\n\n"+b {
		t.Fatalf("unexpected first chunk %q", chunks[0].Content)
	}
	want := strings.Repeat("b", 10) + "\n\n" + d
	if chunks[1].Content != want {
		t.Fatalf("unexpected second chunk %q", chunks[1].Content)
	}
	if !strings.HasPrefix(chunks[1].Content, string(tail([]rune(chunks[0].Content), 10))) {
		t.Fatalf("overlap prefix missing")
	}
}

func TestSemanticSplitsOversizedParagraph(t *testing.T) {
	long := strings.Repeat("word ", 60)
	c := New(Options{ChunkSize: 90, ChunkOverlap: 0})
	chunks, err := c.Chunk("short intro\n\n"+long, nil, StrategySemantic)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if len(chunks) < 4 {
		t.Fatalf("expected oversized paragraph to be split, got %d chunks", len(chunks))
	}
	if chunks[0].Content != "short intro" {
		t.Fatalf("unexpected first chunk %q", chunks[0].Content)
	}
	for i, ch := range chunks {
		if utf8.RuneCountInString(ch.Content) > 90 {
			t.Fatalf("chunk %d exceeds size", i)
		}
	}
}

const manual = "Welcome to the GenAuto X1 owner's manual.\n\n" +
	"# Engine\n\nThe engine section.\n\n" +
	"## Specs\n\nPower is 128 hp with gasoline and 116 hp with ethanol. Torque peaks at 16.8 kgfm at 4000 rpm. " +
	"The fuel tank holds 50 liters and the towing capacity is 750 kg braked.\n\n" +
	"# Safety\n\n```text\n# not a heading\n```\nSix airbags protect the cabin.\n"

func TestMarkdownHeaderPaths(t *testing.T) {
	c := New(Options{ChunkSize: 120, ChunkOverlap: 10})
	chunks, err := c.Chunk(manual, map[string]any{"filename": "manual.md"}, StrategyAuto)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if got := chunks[0].Metadata["chunk_strategy"]; got != "markdown" {
		t.Fatalf("expected auto detected markdown, got %v", got)
	}
	if _, ok := chunks[0].Metadata["headers"]; ok {
		t.Fatalf("preamble should carry no header path")
	}
	if chunks[1].Metadata["headers"] != "h1: Engine" || !strings.HasPrefix(chunks[1].Content, "# Engine") {
		t.Fatalf("unexpected engine chunk %q %v", chunks[1].Content, chunks[1].Metadata["headers"])
	}

	specs := 0
	for _, ch := range chunks {
		if ch.Metadata["headers"] != "h1: Engine > h2: Specs" {
			continue
		}
		specs++
		if !strings.HasPrefix(ch.Content, "[h1: Engine > h2: Specs]\n") {
			t.Fatalf("sub-chunk missing breadcrumb: %q", ch.Content)
		}
		if utf8.RuneCountInString(ch.Content) > 120 {
			t.Fatalf("sub-chunk exceeds size: %q", ch.Content)
		}
	}
	if specs < 2 {
		t.Fatalf("expected the oversized specs section to be split, got %d pieces", specs)
	}

	last := chunks[len(chunks)-1]
	if last.Metadata["headers"] != "h1: Safety" || !strings.Contains(last.Content, "# not a heading") {
		t.Fatalf("code block line must stay content of the safety section: %q", last.Content)
	}
}

func TestFixedWindows(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxy"
	c := New(Options{ChunkSize: 10, ChunkOverlap: 3})
	chunks, err := c.Chunk(text, nil, StrategyFixed)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	want := []string{"abcdefghij", "hijklmnopq", "opqrstuvwx", "vwxy"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i := range want {
		if chunks[i].Content != want[i] {
			t.Fatalf("chunk %d: want %q got %q", i, want[i], chunks[i].Content)
		}
	}
}

func TestDetectStrategy(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		filename string
		want     Strategy
	}{
		{"md extension", "plain words", "guide.MD", StrategyMarkdown},
		{"header", "intro\n## Brakes\ntext", "notes.txt", StrategyMarkdown},
		{"bold line", "**Warning** hot engine", "", StrategyMarkdown},
		{"link line", "[manual](http://example.com)", "", StrategyMarkdown},
		{"code fence", "text\n```\ncode\n```", "", StrategyMarkdown},
		{"plain", "Check the oil level monthly.\nUse 5W-30.", "oil.txt", StrategyRecursive},
		{"hash mid line", "Part #12 is the filter", "", StrategyRecursive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectStrategy(tt.text, tt.filename); got != tt.want {
				t.Fatalf("want %s got %s", tt.want, got)
			}
		})
	}
}

func TestChunkMetadata(t *testing.T) {
	c := New(Options{ChunkSize: 50, ChunkOverlap: 5})
	meta := map[string]any{"author": "service team", "chunk_strategy": "mine", "chunk_size": 1}
	chunks, err := c.Chunk(strings.Repeat("Rotate tires often. ", 10), meta, StrategyRecursive)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	for i, ch := range chunks {
		if ch.Metadata["author"] != "service team" {
			t.Fatalf("caller metadata lost")
		}
		if ch.Metadata["chunk_strategy"] != "recursive" || ch.Metadata["chunk_size"] != 50 {
			t.Fatalf("chunker controlled keys not applied: %v", ch.Metadata)
		}
		if ch.Metadata["chunk_index"] != i || ch.ChunkIndex != i {
			t.Fatalf("chunk index mismatch at %d", i)
		}
	}
	if meta["chunk_strategy"] != "mine" {
		t.Fatalf("caller map must not be mutated")
	}
}

func TestOverlapNormalized(t *testing.T) {
	c := New(Options{ChunkSize: 100, ChunkOverlap: 150})
	if got := c.Options().ChunkOverlap; got != 50 {
		t.Fatalf("expected overlap 50, got %d", got)
	}
}

func TestUnknownStrategy(t *testing.T) {
	c := New(Options{ChunkSize: 100})
	if _, err := c.Chunk("text", nil, Strategy("sentences")); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
	if _, err := ParseStrategy("Semantic"); err != nil {
		t.Fatalf("parse: %v", err)
	}
}

func TestMarkdownTinyChunkSize(t *testing.T) {
	c := New(Options{ChunkSize: 1})
	done := make(chan []string, 1)
	go func() {
		chunks, err := c.Chunk("# Engine\nbody text here", nil, StrategyMarkdown)
		if err != nil {
			t.Errorf("chunk: %v", err)
		}
		var out []string
		for _, ch := range chunks {
			out = append(out, ch.Content)
		}
		done <- out
	}()

	select {
	case out := <-done:
		if len(out) == 0 {
			t.Fatalf("expected chunks for a non-empty section")
		}
		var body strings.Builder
		for _, content := range out {
			if !strings.HasPrefix(content, "[h1: Engine]\n") {
				t.Fatalf("sub-chunk missing breadcrumb: %q", content)
			}
			body.WriteString(strings.TrimPrefix(content, "[h1: Engine]\n"))
		}
		// single-rune windows of whitespace are not emitted
		if want := "#Enginebodytexthere"; body.String() != want {
			t.Fatalf("section not covered, want %q got %q", want, body.String())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("markdown chunking with chunk size 1 did not return")
	}
}

func TestFixedSkipsBlankWindows(t *testing.T) {
	text := "abcdefghij" + strings.Repeat(" ", 20) + "klmnopqrst"
	c := New(Options{ChunkSize: 10, ChunkOverlap: 3})
	chunks, err := c.Chunk(text, nil, StrategyFixed)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	want := []string{
		"abcdefghij",
		"hij       ",
		"         k",
		"  klmnopqr",
		"pqrst",
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i := range want {
		if chunks[i].Content != want[i] {
			t.Fatalf("chunk %d: want %q got %q", i, want[i], chunks[i].Content)
		}
	}
	for _, i := range []int{1, 3, 4} {
		prev := string(tail([]rune(chunks[i-1].Content), 3))
		if !strings.HasPrefix(chunks[i].Content, prev) {
			t.Fatalf("chunk %d does not start with the overlap %q", i, prev)
		}
	}
}

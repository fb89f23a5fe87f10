package chunker

type fixedSplitter struct {
	size    int
	overlap int
}

func (s *fixedSplitter) Name() Strategy { return StrategyFixed }

// Split windows the text with a stride of size-overlap runes. Windows that
// are only whitespace are dropped, so the chunk after a dropped window does
// not start with the tail of the chunk before it.
func (s *fixedSplitter) Split(text string) []Piece {
	r := []rune(text)
	step := s.size - s.overlap

	var pieces []Piece
	for start := 0; start < len(r); start += step {
		end := min(start+s.size, len(r))
		if !isBlank(r[start:end]) {
			pieces = append(pieces, Piece{Content: string(r[start:end])})
		}
		if end == len(r) {
			break
		}
	}
	return pieces
}

// Package chunker splits documents into overlapping chunks for embedding.
//
// The splitter prefers natural boundaries: paragraph breaks first, then
// line breaks, then word breaks, falling back to a hard character cut.
// Chunks are exact substrings of the input, so joining them with their
// overlaps removed reconstructs the document's content. Whitespace-only
// chunks are dropped rather than embedded, so a separator run longer
// than one window is not reconstructable; everything else is.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Boundary separators in preference order. The empty string means a hard
// character cut.
var separators = []string{"\n\n", "\n", " "}

// Splitter produces overlapping chunks bounded by Size characters.
// Overlap must be smaller than Size.
type Splitter struct {
	Size    int
	Overlap int
}

// New creates a Splitter, clamping out-of-range values to the defaults
// (1000/100). Splitting must always terminate, so an overlap >= size is
// treated as out of range.
func New(size, overlap int) Splitter {
	if size < 1 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	return Splitter{Size: size, Overlap: overlap}
}

// Split breaks text into chunks. Empty or whitespace-only input yields no
// chunks. This operation never fails.
//
// A chunk may exceed Size only when it contains a single token longer
// than Size that no separator can break.
func (s Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + s.Size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}

		// Snap back to the best boundary inside the window; if the window
		// holds one unbreakable token, extend forward to keep it whole.
		if cut := boundaryBefore(text, start, end); cut > start {
			end = cut
		} else {
			end = boundaryAfter(text, end)
		}

		chunks = append(chunks, text[start:end])

		if end >= len(text) {
			break
		}
		// The overlap step counts bytes, so in multibyte text it can land
		// inside a rune; walk back to the rune start so every chunk is
		// valid UTF-8.
		next := end - s.Overlap
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			next = end
		}
		start = next
	}

	// Drop whitespace-only chunks produced by runs of separators.
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// boundaryBefore returns the position just after the last preferred
// separator in text[start:end], or start when none exists. Separators are
// tried in preference order: a paragraph break wins over a line break,
// which wins over a space.
func boundaryBefore(text string, start, end int) int {
	window := text[start:end]
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i > 0 {
			return start + i + len(sep)
		}
	}
	return start
}

// boundaryAfter returns the end of the unbreakable token beginning before
// pos: the next separator position at or after pos, or the end of text.
func boundaryAfter(text string, pos int) int {
	best := len(text)
	for _, sep := range separators {
		if i := strings.Index(text[pos:], sep); i >= 0 && pos+i < best {
			best = pos + i
		}
	}
	return best
}

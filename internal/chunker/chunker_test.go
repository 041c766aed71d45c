package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleText builds a document of numbered words so every substring is
// unique and overlap matching in assertions is unambiguous.
func sampleText(words int) string {
	var b strings.Builder
	for i := 0; i < words; i++ {
		if i > 0 {
			if i%20 == 0 {
				b.WriteString("\n\n")
			} else if i%7 == 0 {
				b.WriteString("\n")
			} else {
				b.WriteString(" ")
			}
		}
		fmt.Fprintf(&b, "word%04d", i)
	}
	return b.String()
}

func TestSplit_EmptyInput(t *testing.T) {
	s := New(1000, 100)

	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("   \n\n  "))
}

func TestSplit_ShortInputIsSingleChunk(t *testing.T) {
	s := New(1000, 100)

	chunks := s.Split("drink plenty of water")
	require.Len(t, chunks, 1)
	assert.Equal(t, "drink plenty of water", chunks[0])
}

func TestSplit_ChunkSizeBound(t *testing.T) {
	s := New(120, 20)
	text := sampleText(400)

	for i, c := range s.Split(text) {
		assert.LessOrEqual(t, len(c), 120, "chunk %d exceeds max size", i)
	}
}

func TestSplit_UnsplittableTokenMayExceedSize(t *testing.T) {
	s := New(10, 2)
	long := strings.Repeat("x", 50)

	chunks := s.Split(long + " tail")
	require.NotEmpty(t, chunks)
	// The long token is emitted whole rather than cut mid-token.
	assert.Equal(t, long, chunks[0])
}

func TestSplit_ZeroOverlapReconstructsDocument(t *testing.T) {
	s := Splitter{Size: 90, Overlap: 0}
	text := sampleText(300)

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplit_OverlapReconstructsDocument(t *testing.T) {
	s := Splitter{Size: 100, Overlap: 25}
	text := sampleText(300)

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	rebuilt := chunks[0]
	for _, c := range chunks[1:] {
		overlap := 0
		for k := min(len(rebuilt), len(c)); k > 0; k-- {
			if strings.HasSuffix(rebuilt, c[:k]) {
				overlap = k
				break
			}
		}
		rebuilt += c[overlap:]
	}
	assert.Equal(t, text, rebuilt)
}

func TestSplit_ConsecutiveChunksShareAtMostOverlap(t *testing.T) {
	s := Splitter{Size: 100, Overlap: 25}
	text := sampleText(300)

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		shared := 0
		for k := min(len(prev), len(cur)); k > 0; k-- {
			if strings.HasSuffix(prev, cur[:k]) {
				shared = k
				break
			}
		}
		assert.LessOrEqual(t, shared, 25, "chunks %d/%d share more than the overlap", i-1, i)
	}
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	s := Splitter{Size: 60, Overlap: 0}
	text := "first paragraph about hydration.\n\nsecond paragraph about rest and recovery."

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0], "\n\n"),
		"first chunk should end at the paragraph break, got %q", chunks[0])
}

func TestSplit_MultibyteChunksAreValidUTF8(t *testing.T) {
	// 36-byte words of 3-byte runes: a byte-counted overlap step lands
	// mid-rune unless the splitter snaps back to a rune start.
	word := strings.Repeat("पानी", 3)
	var b strings.Builder
	b.WriteString(word)
	for i := 0; i < 20; i++ {
		b.WriteString(" ")
		b.WriteString(word)
	}
	text := b.String()

	s := Splitter{Size: 100, Overlap: 26}
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk %d is not valid UTF-8: %q", i, c)
		assert.True(t, strings.Contains(text, c), "chunk %d is not a substring of the input", i)
	}
}

func TestSplit_MixedScriptOverlapNeverSplitsRunes(t *testing.T) {
	text := strings.Repeat("fever बुखार treatment उपचार water पानी ", 30)

	for _, overlap := range []int{1, 7, 13, 26} {
		s := Splitter{Size: 90, Overlap: overlap}
		for i, c := range s.Split(text) {
			assert.True(t, utf8.ValidString(c),
				"overlap %d chunk %d is not valid UTF-8: %q", overlap, i, c)
		}
	}
}

func TestSplit_SeparatorRunDropsWhitespaceOnlyChunks(t *testing.T) {
	text := "alpha" + strings.Repeat("\n", 40) + "beta"

	chunks := Splitter{Size: 10, Overlap: 0}.Split(text)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c), "chunk %d is whitespace-only", i)
	}
	// The non-whitespace content survives even though the separator run
	// itself is not reconstructable.
	joined := strings.Join(chunks, "")
	assert.Contains(t, joined, "alpha")
	assert.Contains(t, joined, "beta")
}

func TestNew_ClampsInvalidParameters(t *testing.T) {
	s := New(0, -5)
	assert.Equal(t, 1000, s.Size)
	assert.Equal(t, 100, s.Overlap)

	s = New(200, 400)
	assert.Equal(t, 200, s.Size)
	assert.Equal(t, 20, s.Overlap)
}

func TestSplit_ApproximateChunkCount(t *testing.T) {
	// For S characters with chunk size C and overlap O the count is on the
	// order of (S-O)/(C-O); boundary snapping perturbs it by a small factor.
	s := Splitter{Size: 100, Overlap: 20}
	text := sampleText(250)

	chunks := s.Split(text)
	expected := (len(text) - s.Overlap) / (s.Size - s.Overlap)
	assert.GreaterOrEqual(t, len(chunks), expected)
	assert.LessOrEqual(t, len(chunks), expected*3)
}

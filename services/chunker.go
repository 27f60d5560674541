package services

import (
	"strings"
	"unicode/utf8"

	"knowledge-base-platform/models"
)

// Chunker splits document text into overlapping passages bounded by a
// target size. Cuts prefer paragraph breaks, then line breaks, then
// spaces, and fall back to a hard character cut only when the window
// contains no separator at all, so sentences are not severed mid-word.
type Chunker struct {
	targetSize   int
	overlap      int
	minChunkSize int
}

// NewChunker creates a chunker. Overlap is clamped below targetSize so
// every pass makes forward progress.
func NewChunker(targetSize, overlap int) *Chunker {
	if targetSize <= 0 {
		targetSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= targetSize {
		overlap = targetSize / 4
	}
	return &Chunker{
		targetSize:   targetSize,
		overlap:      overlap,
		minChunkSize: targetSize / 2,
	}
}

// Split produces the chunk sequence for one indexing pass. Chunks are
// exact substrings of text: concatenating them with each successor's
// overlap prefix removed reconstructs the input byte for byte.
// Empty or whitespace-only input is a caller error.
func (c *Chunker) Split(text string) ([]models.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContent
	}

	var pieces []string
	pos := 0
	for pos < len(text) {
		end := pos + c.targetSize
		if end >= len(text) {
			pieces = append(pieces, text[pos:])
			break
		}

		cut := c.findCut(text, pos, end)
		pieces = append(pieces, text[pos:cut])

		next := runeFloor(text, cut-c.overlap)
		if next <= pos {
			// Overlap would stall the scan; continue without it.
			next = cut
		}
		pos = next
	}

	chunks := make([]models.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = models.Chunk{Text: p, Index: i, Total: len(pieces)}
	}
	return chunks, nil
}

// findCut picks the cut position inside (pos, end], keeping the
// separator with the earlier chunk. A separator is only honored when
// the resulting chunk is not degenerately small.
func (c *Chunker) findCut(text string, pos, end int) int {
	window := text[pos:end]
	min := c.minChunkSize
	if min >= len(window) {
		min = len(window) / 2
	}

	if i := strings.LastIndex(window, "\n\n"); i >= min {
		return pos + i + 2
	}
	if i := strings.LastIndex(window, "\n"); i >= min {
		return pos + i + 1
	}
	if i := strings.LastIndex(window, " "); i >= min {
		return pos + i + 1
	}
	// Hard cut: land on a rune boundary so multibyte text is never
	// severed mid-character.
	if cut := runeFloor(text, end); cut > pos {
		return cut
	}
	return end
}

// runeFloor walks i back to the nearest rune start at or before it.
func runeFloor(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// Overlap is the configured overlap in characters.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// TargetSize is the configured target passage size in characters.
func (c *Chunker) TargetSize() int {
	return c.targetSize
}

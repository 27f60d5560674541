package services

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitEmptyContent(t *testing.T) {
	c := NewChunker(100, 20)
	for _, input := range []string{"", "   ", "\n\n\t"} {
		if _, err := c.Split(input); !errors.Is(err, ErrEmptyContent) {
			t.Fatalf("Split(%q): want ErrEmptyContent, got %v", input, err)
		}
	}
}

func TestSplitShortInputSingleChunk(t *testing.T) {
	c := NewChunker(1000, 200)
	text := "A short note that fits in one chunk."

	chunks, err := c.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("want 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Fatalf("chunk text mismatch: %q", chunks[0].Text)
	}
	if chunks[0].Index != 0 || chunks[0].Total != 1 {
		t.Fatalf("want index 0 of 1, got %d of %d", chunks[0].Index, chunks[0].Total)
	}
}

// Chunks must be exact substrings of the input at predictable offsets:
// each chunk advances by its length minus the overlap, so the original
// text is recoverable from the sequence.
func TestSplitReconstruction(t *testing.T) {
	c := NewChunker(120, 30)
	text := buildCorpus(40)

	chunks, err := c.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("corpus should produce multiple chunks, got %d", len(chunks))
	}

	pos := 0
	for i, ch := range chunks {
		if pos+len(ch.Text) > len(text) {
			t.Fatalf("chunk %d overruns input", i)
		}
		if got := text[pos : pos+len(ch.Text)]; got != ch.Text {
			t.Fatalf("chunk %d is not the substring at offset %d", i, pos)
		}
		adv := len(ch.Text) - c.Overlap()
		if adv <= 0 {
			adv = len(ch.Text)
		}
		pos += adv
	}
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(text, last.Text) {
		t.Fatal("last chunk must end the input")
	}
}

func TestSplitOverlapBetweenNeighbors(t *testing.T) {
	c := NewChunker(120, 30)
	text := buildCorpus(40)

	chunks, err := c.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	for i := 0; i < len(chunks)-1; i++ {
		cur, next := chunks[i].Text, chunks[i+1].Text
		if len(cur) <= c.Overlap() {
			continue // overlap suppressed to keep the scan moving
		}
		tail := cur[len(cur)-c.Overlap():]
		if !strings.HasPrefix(next, tail) {
			t.Fatalf("chunk %d does not start with the previous chunk's tail", i+1)
		}
	}
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	para := strings.Repeat("alpha beta gamma delta ", 4)
	text := para + "\n\n" + para + "\n\n" + para

	c := NewChunker(len(para)+10, 0)
	chunks, err := c.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("want multiple chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, "\n\n") {
		t.Fatalf("first cut should land after the paragraph break, got %q tail", chunks[0].Text[len(chunks[0].Text)-5:])
	}
}

func TestSplitHardCutWithoutSeparators(t *testing.T) {
	text := strings.Repeat("x", 500)
	c := NewChunker(100, 10)

	chunks, err := c.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	for i, ch := range chunks[:len(chunks)-1] {
		if len(ch.Text) != 100 {
			t.Fatalf("chunk %d: separator-free text should hard-cut at target size, got %d", i, len(ch.Text))
		}
	}
}

// Separator-free multibyte prose forces hard cuts and overlap
// re-entries; both must land on rune boundaries so no chunk carries a
// severed character.
func TestSplitKeepsMultibyteRunesIntact(t *testing.T) {
	text := strings.Repeat("知识库平台的检索增强生成管道", 40)
	c := NewChunker(100, 10)

	chunks, err := c.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("want multiple chunks, got %d", len(chunks))
	}

	pos := 0
	for i, ch := range chunks {
		if !utf8.ValidString(ch.Text) {
			t.Fatalf("chunk %d contains invalid UTF-8: %q", i, ch.Text)
		}
		if pos+len(ch.Text) > len(text) {
			t.Fatalf("chunk %d overruns input", i)
		}
		if got := text[pos : pos+len(ch.Text)]; got != ch.Text {
			t.Fatalf("chunk %d is not the substring at offset %d", i, pos)
		}
		next := runeFloor(text, pos+len(ch.Text)-c.Overlap())
		if next <= pos {
			next = pos + len(ch.Text)
		}
		pos = next
	}
	if !strings.HasSuffix(text, chunks[len(chunks)-1].Text) {
		t.Fatal("last chunk must end the input")
	}
}

func TestNewChunkerClampsOverlap(t *testing.T) {
	c := NewChunker(100, 150)
	if c.Overlap() >= c.TargetSize() {
		t.Fatalf("overlap %d not clamped below target %d", c.Overlap(), c.TargetSize())
	}
	if c.TargetSize() != 100 {
		t.Fatalf("target size changed: %d", c.TargetSize())
	}
}

func buildCorpus(sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog near the riverbank.")
		if i%5 == 4 {
			b.WriteString("\n\n")
		} else {
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}

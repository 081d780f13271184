package rag

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bull/ragdex/internal/faults"
)

// TestSplit_LongDocument verifies the core chunking guarantees: multiple
// chunks, all bounded by size, all tagged with the document's source.
func TestSplit_LongDocument(t *testing.T) {
	content := strings.Repeat("Vector databases store embeddings. ", 100) // ~3500 chars
	docs := []Document{{Source: "lecture.txt", Content: content}}

	chunks, err := Split(docs, 1000, 200)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	if len(chunks) < 2 {
		t.Fatalf("Expected at least 2 chunks for content longer than size, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Content) > 1000 {
			t.Errorf("Chunk %d exceeds size: %d chars", i, len(c.Content))
		}
		if c.Source != "lecture.txt" {
			t.Errorf("Chunk %d source: expected 'lecture.txt', got %q", i, c.Source)
		}
		if c.Sequence != i {
			t.Errorf("Chunk %d sequence: expected %d, got %d", i, i, c.Sequence)
		}
	}
}

// TestSplit_OverlapCarryOver verifies each chunk after the first begins
// with the trailing characters of its predecessor.
func TestSplit_OverlapCarryOver(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString(strings.Repeat("x", 90))
		b.WriteString("\n\n")
	}
	docs := []Document{{Source: "a.txt", Content: b.String()}}

	overlap := 50
	chunks, err := Split(docs, 500, overlap)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prefix := chunks[i].Content[:overlap]
		if !strings.HasSuffix(chunks[i-1].Content, prefix) {
			t.Errorf("Chunk %d does not begin with its predecessor's tail", i)
		}
	}
}

func TestSplit_ShortDocument(t *testing.T) {
	docs := []Document{{Source: "note.txt", Content: "This is about cats."}}

	chunks, err := Split(docs, 1000, 200)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Expected exactly 1 chunk for short content, got %d", len(chunks))
	}
	if chunks[0].Content != "This is about cats." {
		t.Errorf("Short content should pass through unchanged, got %q", chunks[0].Content)
	}
	if chunks[0].Sequence != 0 {
		t.Errorf("Single chunk sequence: expected 0, got %d", chunks[0].Sequence)
	}
}

func TestSplit_EmptyInputs(t *testing.T) {
	chunks, err := Split(nil, 1000, 200)
	if err != nil {
		t.Fatalf("Split(nil) failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Expected no chunks for no documents, got %d", len(chunks))
	}

	chunks, err = Split([]Document{{Source: "empty.txt", Content: ""}}, 1000, 200)
	if err != nil {
		t.Fatalf("Split(empty doc) failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Expected no chunks for empty document, got %d", len(chunks))
	}
}

func TestSplit_InvalidOverlap(t *testing.T) {
	for _, tc := range []struct {
		name          string
		size, overlap int
	}{
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
		{"zero size", 0, 0},
		{"negative overlap", 100, -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Split([]Document{{Source: "a", Content: "b"}}, tc.size, tc.overlap)
			if err == nil {
				t.Fatal("Expected configuration error, got nil")
			}
			if !errors.Is(err, faults.ErrConfiguration) {
				t.Errorf("Expected ErrConfiguration, got %v", err)
			}
		})
	}
}

// TestSplit_PrefersParagraphBoundaries verifies the cascade splits on
// paragraph breaks when they fit, rather than cutting mid-paragraph.
func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("a", 300)
	para2 := strings.Repeat("b", 300)
	para3 := strings.Repeat("c", 300)
	docs := []Document{{Source: "p.txt", Content: para1 + "\n\n" + para2 + "\n\n" + para3}}

	chunks, err := Split(docs, 400, 0)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 paragraph-aligned chunks, got %d", len(chunks))
	}
	for i, want := range []string{para1, para2, para3} {
		if !strings.HasPrefix(chunks[i].Content, want[:10]) {
			t.Errorf("Chunk %d not aligned to paragraph %d", i, i)
		}
	}
}

// TestSplit_HardCutFallback verifies content with no separators at all is
// still split at the character limit.
func TestSplit_HardCutFallback(t *testing.T) {
	docs := []Document{{Source: "blob.txt", Content: strings.Repeat("z", 2500)}}

	chunks, err := Split(docs, 1000, 0)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks from hard cut, got %d", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		total += len(c.Content)
	}
	if total != 2500 {
		t.Errorf("Hard cut lost characters: got %d of 2500", total)
	}
}

// TestSplit_MultibyteHardCut verifies the hard-cut fallback lands on rune
// boundaries: 3-byte CJK runes with a limit that is not a multiple of 3
// must never be cut mid-rune.
func TestSplit_MultibyteHardCut(t *testing.T) {
	content := strings.Repeat("猫", 1500) // 4500 bytes, no separators
	docs := []Document{{Source: "cjk.txt", Content: content}}

	chunks, err := Split(docs, 1000, 0)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}

	var rebuilt strings.Builder
	for i, c := range chunks {
		if !utf8.ValidString(c.Content) {
			t.Errorf("Chunk %d is not valid UTF-8", i)
		}
		if len(c.Content) > 1000 {
			t.Errorf("Chunk %d exceeds size: %d bytes", i, len(c.Content))
		}
		rebuilt.WriteString(c.Content)
	}
	if rebuilt.String() != content {
		t.Error("Hard cut lost or corrupted characters")
	}
}

// TestSplit_MultibyteOverlapSeam verifies the overlap tail is trimmed to a
// rune boundary: a 201-byte overlap over 2-byte Cyrillic runes must not
// start a chunk with an orphan continuation byte.
func TestSplit_MultibyteOverlapSeam(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString(strings.Repeat("я", 300)) // 600 bytes per paragraph
		b.WriteString("\n\n")
	}
	docs := []Document{{Source: "ru.txt", Content: b.String()}}

	chunks, err := Split(docs, 1000, 201)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if !utf8.ValidString(c.Content) {
			t.Errorf("Chunk %d is not valid UTF-8", i)
		}
		if len(c.Content) > 1000 {
			t.Errorf("Chunk %d exceeds size: %d bytes", i, len(c.Content))
		}
	}
	// The 201-byte tail backs off one byte to the rune start, so each chunk
	// begins with the last 200 bytes of its predecessor.
	for i := 1; i < len(chunks); i++ {
		if !strings.HasSuffix(chunks[i-1].Content, chunks[i].Content[:200]) {
			t.Errorf("Chunk %d does not begin with its predecessor's tail", i)
		}
	}
}

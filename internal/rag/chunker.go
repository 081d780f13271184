package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bull/ragdex/internal/faults"
)

// Default chunking parameters. 1000/200 balances embedding precision
// against context preserved across chunk boundaries.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// separators is the split cascade, largest structural boundary first.
// The empty string means a hard cut at the size limit.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Split chunks each document's content into size-bounded segments.
//
// Splitting prefers the largest separator that yields pieces within the
// limit: paragraph breaks first, then line breaks, sentence breaks,
// whitespace, and finally raw character boundaries. Each chunk after the
// first carries the trailing overlap characters of its predecessor so
// context spanning a boundary survives retrieval.
//
// Guarantees: chunks are ordered by position in the source, every chunk's
// content is at most size characters, and the source field is copied
// verbatim onto each chunk. An empty document yields no chunks; content
// that already fits in size yields exactly one chunk with no overlap.
func Split(docs []Document, size, overlap int) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", faults.ErrConfiguration, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", faults.ErrConfiguration, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", faults.ErrConfiguration, overlap, size)
	}

	var chunks []Chunk
	for _, doc := range docs {
		for seq, content := range splitContent(doc.Content, size, overlap) {
			chunks = append(chunks, Chunk{
				Source:   doc.Source,
				Content:  content,
				Sequence: seq,
			})
		}
	}
	return chunks, nil
}

// splitContent splits one document's content and applies the overlap.
// Base pieces are capped at size-overlap so that prepending the
// predecessor's tail never pushes a chunk past size.
func splitContent(content string, size, overlap int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= size {
		return []string{content}
	}

	pieces := recursiveSplit(content, size-overlap, separators)

	out := make([]string, 0, len(pieces))
	prev := ""
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if len(out) == 0 || overlap == 0 {
			out = append(out, piece)
		} else {
			tail := prev
			if len(tail) > overlap {
				// Advance to the next rune start so the tail never begins
				// mid-rune; the tail stays at most overlap bytes.
				start := len(tail) - overlap
				for start < len(tail) && !utf8.RuneStart(tail[start]) {
					start++
				}
				tail = tail[start:]
			}
			out = append(out, tail+piece)
		}
		prev = piece
	}
	return out
}

// recursiveSplit breaks text into pieces of at most limit characters.
// It splits on the first separator present in the text, greedily merges
// adjacent parts back up to the limit, and re-splits any part that is
// still too long using the remaining, finer separators.
func recursiveSplit(text string, limit int, seps []string) []string {
	if len(text) <= limit {
		return []string{text}
	}

	sep := ""
	rest := seps
	for i, s := range seps {
		if s == "" {
			sep, rest = "", nil
			break
		}
		if strings.Contains(text, s) {
			sep, rest = s, seps[i+1:]
			break
		}
	}

	if sep == "" {
		// Character-boundary fallback: hard cut at the largest rune start
		// within the limit, so multibyte text is never split mid-rune.
		var out []string
		for len(text) > limit {
			cut := limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				// Limit smaller than the first rune; emit it whole.
				_, cut = utf8.DecodeRuneInString(text)
			}
			out = append(out, text[:cut])
			text = text[cut:]
		}
		if len(text) > 0 {
			out = append(out, text)
		}
		return out
	}

	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, part := range splitAfter(text, sep) {
		if len(part) > limit {
			flush()
			out = append(out, recursiveSplit(part, limit, rest)...)
			continue
		}
		if cur.Len()+len(part) > limit {
			flush()
		}
		cur.WriteString(part)
	}
	flush()
	return out
}

// splitAfter splits text on sep, keeping the separator attached to the
// preceding part so no characters are lost between pieces.
func splitAfter(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	// SplitAfter can leave a trailing empty part when text ends with sep.
	if n := len(parts); n > 0 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	return parts
}

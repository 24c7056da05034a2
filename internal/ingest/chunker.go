package ingest

import (
	"strings"
	"unicode"
)

// Chunker splits normalized text into overlapping windows, the unit of
// embedding. Sizes are characters (runes), not tokens.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker builds a chunker. Overlap is clamped below the chunk size
// so the window always advances.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Split cuts text into chunks of up to chunkSize runes, preferring to
// break at sentence boundaries, with chunkOverlap runes shared between
// consecutive chunks.
func (c *Chunker) Split(text string) []string {
	runes := []rune(cleanText(strings.TrimSpace(text)))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0

	for start < len(runes) {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		// Back up to a sentence boundary, but never below half a window.
		if end < len(runes) {
			for i := end; i > start+c.chunkSize/2; i-- {
				r := runes[i-1]
				if r == '.' || r == '!' || r == '?' || r == '\n' {
					end = i
					break
				}
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}

		next := end - c.chunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// cleanText collapses whitespace runs into single spaces, keeping
// newlines so sentence-boundary detection still sees them.
func cleanText(text string) string {
	var b strings.Builder
	prevSpace := false

	for _, r := range text {
		if unicode.IsSpace(r) && r != '\n' {
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
			continue
		}
		b.WriteRune(r)
		prevSpace = false
	}

	return b.String()
}

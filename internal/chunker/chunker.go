// Package chunker splits extracted text into fixed-size word windows.
package chunker

import (
	"iter"
	"strings"
)

// DefaultMaxWords is the window size used when none is given.
const DefaultMaxWords = 500

// Span is one window of a document.
type Span struct {
	Index int    // Window position (0, 1, 2...); skipped windows leave gaps
	Text  string // Words joined by single spaces
	Words int
}

// Chunk splits text on whitespace into consecutive, non-overlapping windows of
// at most maxWords words. A non-positive maxWords uses DefaultMaxWords.
//
// The sequence is lazy and can be ranged over more than once.
func Chunk(text string, maxWords int) iter.Seq[Span] {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	return func(yield func(Span) bool) {
		words := strings.Fields(text)
		for i, start := 0, 0; start < len(words); i, start = i+1, start+maxWords {
			end := min(start+maxWords, len(words))
			window := strings.Join(words[start:end], " ")
			if strings.TrimSpace(window) == "" {
				continue
			}
			if !yield(Span{Index: i, Text: window, Words: end - start}) {
				return
			}
		}
	}
}

// Collect gathers every span of text into a slice.
func Collect(text string, maxWords int) []Span {
	var spans []Span
	for span := range Chunk(text, maxWords) {
		spans = append(spans, span)
	}
	return spans
}

// CountWords returns the number of whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

package indexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// NewSplitter returns the text splitter named by kind. Sizes are counted in
// characters.
func NewSplitter(kind string, chunkSize, chunkOverlap int) (textsplitter.TextSplitter, error) {
	switch kind {
	case "", "recursive":
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		), nil
	case "window":
		return WindowSplitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}, nil
	default:
		return nil, fmt.Errorf("unsupported splitter: %s", kind)
	}
}

// WindowSplitter cuts text into fixed-size overlapping windows, moving each
// cut back to a nearby space, newline or period when one is close.
type WindowSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

func (s WindowSplitter) SplitText(text string) ([]string, error) {
	return chunkContent(text, s.ChunkSize, s.ChunkOverlap), nil
}

func chunkContent(content string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	runes := []rune(strings.TrimSpace(content))
	contentLen := len(runes)
	if contentLen == 0 {
		return nil
	}
	if contentLen <= maxChars {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < contentLen {
		end := min(start+maxChars, contentLen)

		// look for a break point within the last 10% of the window
		if end < contentLen {
			lookBack := min(maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= contentLen {
			break
		}
		start = max(end-overlapChars, start+1)
	}
	return chunks
}

package models

import (
	"strconv"
	"time"
)

// PageRef identifies the page a piece of content came from. A zero Known
// value is the "unknown" page used when upstream metadata carries no page.
type PageRef struct {
	Number int
	Known  bool
}

// Page returns a known page reference.
func Page(n int) PageRef {
	return PageRef{Number: n, Known: true}
}

// UnknownPage is the reference used when page metadata is missing.
var UnknownPage = PageRef{}

func (p PageRef) String() string {
	if !p.Known {
		return UnknownPageTag
	}
	return strconv.Itoa(p.Number)
}

// Less orders known pages ascending and puts the unknown page last.
func (p PageRef) Less(o PageRef) bool {
	if p.Known != o.Known {
		return p.Known
	}
	return p.Number < o.Number
}

// ParsePageRef is the inverse of String.
func ParsePageRef(s string) (PageRef, error) {
	if s == UnknownPageTag || s == "" {
		return UnknownPage, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return UnknownPage, err
	}
	return Page(n), nil
}

// PageTextBlock is the text of one page as produced by the page-text extractor.
type PageTextBlock struct {
	Page       int    `json:"page"`
	Text       string `json:"text"`
	SourcePath string `json:"source_path"`
}

type ImageRole string

const (
	RoleFigure ImageRole = "figure"
	RoleChart  ImageRole = "chart"
	RoleTable  ImageRole = "table"
)

// EmbeddedImage is a base64 encoded image cropped out of a page.
type EmbeddedImage struct {
	Data string    `json:"data"`
	Role ImageRole `json:"role"`
}

// ParsedDocument is one page as returned by the document parse service.
type ParsedDocument struct {
	Page    PageRef         `json:"page"`
	Content string          `json:"content"`
	Images  []EmbeddedImage `json:"images,omitempty"`
}

// ImageDescription is the model generated text for one embedded image.
type ImageDescription struct {
	Page        PageRef   `json:"page"`
	Description string    `json:"description"`
	Role        ImageRole `json:"role"`
	Index       int       `json:"index"`
}

// MergedDocument holds all text and image descriptions of a single page.
type MergedDocument struct {
	Page       PageRef `json:"page"`
	Content    string  `json:"content"`
	SourcePath string  `json:"source_path"`
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	ID         string  `json:"id"`
	Page       PageRef `json:"page"`
	SourcePath string  `json:"source_path"`
	ChunkID    int     `json:"chunk_id"`
	Content    string  `json:"content"`
}

type ScoredChunk struct {
	Chunk
	Similarity float32 `json:"similarity"`
}

// Answer is the result of one question against a document store.
type Answer struct {
	Question string        `json:"question"`
	Content  string        `json:"content"`
	Sources  []ScoredChunk `json:"sources"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

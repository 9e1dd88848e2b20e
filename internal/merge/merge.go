package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-qa-rag/internal/models"
)

// Policies for image descriptions whose page is unknown.
const (
	UnknownKeep  = "keep"
	UnknownDrop  = "drop"
	UnknownError = "error"
)

type Options struct {
	// FallbackSource is used as the source path of a page that has image
	// descriptions but no text block.
	FallbackSource string
	// UnknownPages is one of UnknownKeep, UnknownDrop or UnknownError.
	// Empty means UnknownKeep.
	UnknownPages string
}

// Merge groups page text and image descriptions by page and joins each group
// into one document. Text comes before image descriptions within a page and
// both keep their input order. Documents are returned in ascending page
// order with the unknown page, if kept, last.
func Merge(blocks []models.PageTextBlock, descriptions []models.ImageDescription, opts Options) ([]models.MergedDocument, error) {
	contents := make(map[models.PageRef][]string)
	sources := make(map[models.PageRef]string)

	for _, b := range blocks {
		page := models.Page(b.Page)
		contents[page] = append(contents[page], b.Text)
		if _, ok := sources[page]; !ok {
			sources[page] = b.SourcePath
		}
	}

	dropped := 0
	for _, d := range descriptions {
		if !d.Page.Known {
			switch opts.UnknownPages {
			case UnknownDrop:
				dropped++
				continue
			case UnknownError:
				return nil, fmt.Errorf("%w: image %d has no page number", models.ErrInvalidInput, d.Index)
			}
		}
		contents[d.Page] = append(contents[d.Page], d.Description)
	}
	if dropped > 0 {
		log.Warn().Int("descriptions", dropped).Msg("Dropped image descriptions without a page number")
	}

	pages := make([]models.PageRef, 0, len(contents))
	for p := range contents {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Less(pages[j]) })

	merged := make([]models.MergedDocument, 0, len(pages))
	for _, p := range pages {
		source, ok := sources[p]
		if !ok {
			source = opts.FallbackSource
		}
		merged = append(merged, models.MergedDocument{
			Page:       p,
			Content:    strings.Join(contents[p], models.ContentSeparator),
			SourcePath: source,
		})
	}
	return merged, nil
}

package parser

import (
	"archive/zip"
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"pdf-qa-rag/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

// Parser extracts one markdown text block per page from a local file.
type Parser struct {
	// PageOffset is added to every page number so the output lines up with
	// the document parse service's numbering.
	PageOffset int
}

func New(pageOffset int) *Parser {
	return &Parser{PageOffset: pageOffset}
}

// SupportedExtensions lists the file extensions Extract accepts.
var SupportedExtensions = []string{".pdf", ".docx", ".pptx", ".xlsx", ".ods", ".txt"}

// Extract reads filePath and returns its pages in order. Any failure is
// reported as an extraction error and no partial output is returned.
func (p *Parser) Extract(ctx context.Context, filePath string) ([]models.PageTextBlock, error) {
	var (
		pages []string
		err   error
	)

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		pages, err = parsePDF(ctx, filePath)
	case ".docx":
		pages, err = parseDOCX(filePath)
	case ".pptx":
		pages, err = parsePPTX(filePath)
	case ".xlsx":
		pages, err = parseXLSX(filePath)
	case ".ods":
		pages, err = parseODS(filePath)
	case ".txt":
		pages, err = parseText(filePath)
	default:
		err = fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, models.NewStageError(models.ErrExtraction, err)
	}

	blocks := make([]models.PageTextBlock, len(pages))
	for i, text := range pages {
		blocks[i] = models.PageTextBlock{
			Page:       i + 1 + p.PageOffset,
			Text:       toMarkdown(text),
			SourcePath: filePath,
		}
	}

	log.Debug().Str("file", filePath).Int("pages", len(blocks)).Msg("Extracted page text")
	return blocks, nil
}

func parsePDF(ctx context.Context, filePath string) (pages []string, err error) {
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read pdf %s: %v", filePath, r)
		}
	}()

	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}
	return pages, nil
}

// DOCX has no page numbers, the whole document is one page
func parseDOCX(filePath string) ([]string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var paragraphs []string
	for _, p := range strings.Split(extractTextFromXML(content, "<w:t", "</w:t>"), "\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return []string{strings.Join(paragraphs, "\n")}, nil
}

var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func parsePPTX(filePath string) ([]string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, file := range f.File {
		m := slideNameRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file.Name, err)
		}
		slides = append(slides, slide{num: num, text: extractTextFromXML(string(data), "<a:t", "</a:t>")})
	}

	// zip order is not slide order
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })
	pages := make([]string, len(slides))
	for i, s := range slides {
		pages[i] = s.text
	}
	return pages, nil
}

func parseXLSX(filePath string) ([]string, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var pages []string
	for _, sheet := range f.Sheets {
		var rows [][]string
		for _, row := range sheet.Rows {
			var cells []string
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			rows = append(rows, cells)
		}
		pages = append(pages, sheetToMarkdown(sheet.Name, rows))
	}
	return pages, nil
}

func parseODS(filePath string) ([]string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
		}
		pages = append(pages, sheetToMarkdown(sheetName, rows))
	}
	return pages, nil
}

func parseText(filePath string) ([]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return []string{string(data)}, nil
}

// sheetToMarkdown renders a sheet as a heading followed by a markdown table.
func sheetToMarkdown(name string, rows [][]string) string {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("## Sheet: %s\n", name))
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	if width == 0 {
		return text.String()
	}
	for i, row := range rows {
		text.WriteString("|")
		for c := 0; c < width; c++ {
			cell := ""
			if c < len(row) {
				cell = strings.ReplaceAll(row[c], "|", `\|`)
			}
			text.WriteString(" " + cell + " |")
		}
		text.WriteString("\n")
		if i == 0 {
			text.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
		}
	}
	return text.String()
}

// extractTextFromXML returns the text of every open...close element,
// starting a new line at each paragraph end.
func extractTextFromXML(xmlContent, open, close string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, open)
	for i, part := range parts {
		if i == 0 {
			continue
		}
		tail := part
		start := strings.Index(part, ">")
		// the prefix also matches <w:tab/>, <a:tbl> and friends
		if attrs := part[:max(start, 0)]; start > 0 && (attrs[0] != ' ' || strings.HasSuffix(attrs, "/")) {
			start = -1
		}
		if start >= 0 {
			if endIdx := strings.Index(part, close); endIdx > start {
				text.WriteString(html.UnescapeString(part[start+1:endIdx]) + " ")
				tail = part[endIdx+len(close):]
			}
		}
		for n := strings.Count(tail, "</w:p>") + strings.Count(tail, "</a:p>"); n > 0; n-- {
			text.WriteString("\n")
		}
	}
	return text.String()
}

var (
	bulletRe     = regexp.MustCompile(`(?m)^[ \t]*[•●▪◦‣∙·][ \t]*`)
	trailingWsRe = regexp.MustCompile(`(?m)[ \t]+$`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
)

// toMarkdown normalizes extracted plain text into markdown friendly text:
// bullet glyphs become list markers, trailing spaces go, blank line runs
// collapse to a single paragraph break.
func toMarkdown(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = bulletRe.ReplaceAllString(text, "- ")
	text = trailingWsRe.ReplaceAllString(text, "")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

package docparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-qa-rag/internal/config"
	"pdf-qa-rag/internal/models"
)

// Client calls the Upstage Document Parse API and splits its output by page.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	OCR        string
	Categories []string
	PageOffset int
	client     *http.Client
}

// NewClient creates a new document parse client. The configured timeout
// bounds the whole request, upload included.
func NewClient(cfg *config.DocParseConfig) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		APIKey:     cfg.Key,
		Model:      cfg.Model,
		OCR:        cfg.OCR,
		Categories: cfg.Categories,
		PageOffset: cfg.PageOffset,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

// Element is one layout element of the parse response.
type Element struct {
	ID             int            `json:"id"`
	Category       string         `json:"category"`
	Page           *int           `json:"page"`
	Content        ElementContent `json:"content"`
	Base64Encoding string         `json:"base64_encoding,omitempty"`
}

type ElementContent struct {
	HTML     string `json:"html"`
	Markdown string `json:"markdown"`
	Text     string `json:"text"`
}

// Response is the document parse API response.
type Response struct {
	API      string    `json:"api"`
	Model    string    `json:"model"`
	Elements []Element `json:"elements"`
	Usage    struct {
		Pages int `json:"pages"`
	} `json:"usage"`
}

// Parse uploads filePath and returns one ParsedDocument per page in page
// order. Errors are reported as parse service errors.
func (c *Client) Parse(ctx context.Context, filePath string) ([]models.ParsedDocument, error) {
	resp, err := c.parse(ctx, filePath)
	if err != nil {
		return nil, models.NewStageError(models.ErrParseService, err)
	}
	docs := c.splitByPage(resp.Elements)

	images := 0
	for _, d := range docs {
		images += len(d.Images)
	}
	log.Debug().Str("file", filePath).Int("pages", len(docs)).Int("images", images).Msg("Parsed document")
	return docs, nil
}

func (c *Client) parse(ctx context.Context, filePath string) (*Response, error) {
	body, contentType, err := c.buildRequestBody(filePath)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/document-digitization", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed Response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &parsed, nil
}

func (c *Client) buildRequestBody(filePath string) (io.Reader, string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("document", filepath.Base(filePath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to read document: %w", err)
	}

	fields := map[string]string{
		"model":           c.Model,
		"ocr":             c.OCR,
		"output_formats":  listField([]string{"markdown"}),
		"base64_encoding": listField(c.Categories),
	}
	for _, k := range []string{"model", "ocr", "output_formats", "base64_encoding"} {
		if err := w.WriteField(k, fields[k]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// listField formats values the way the API expects list form fields:
// ['figure', 'chart'].
func listField(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// splitByPage groups elements into one document per page. Elements without
// a page number end up in a trailing unknown-page document.
func (c *Client) splitByPage(elements []Element) []models.ParsedDocument {
	byPage := make(map[models.PageRef]*models.ParsedDocument)
	contents := make(map[models.PageRef][]string)

	for _, el := range elements {
		page := models.UnknownPage
		if el.Page != nil {
			page = models.Page(*el.Page + c.PageOffset)
		}
		doc, ok := byPage[page]
		if !ok {
			doc = &models.ParsedDocument{Page: page}
			byPage[page] = doc
		}
		if text := el.Content.Markdown; text != "" {
			contents[page] = append(contents[page], text)
		}
		if el.Base64Encoding != "" && slices.Contains(c.Categories, el.Category) {
			doc.Images = append(doc.Images, models.EmbeddedImage{
				Data: el.Base64Encoding,
				Role: models.ImageRole(el.Category),
			})
		}
	}

	pages := make([]models.PageRef, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Less(pages[j]) })

	docs := make([]models.ParsedDocument, 0, len(pages))
	for _, p := range pages {
		doc := byPage[p]
		doc.Content = strings.Join(contents[p], "\n")
		docs = append(docs, *doc)
	}
	return docs
}

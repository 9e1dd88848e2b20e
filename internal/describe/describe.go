package describe

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_model.go -package=mocks pdf-qa-rag/internal/describe Model

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pdf-qa-rag/internal/models"
)

// Model turns one decoded image into text following instruction.
type Model interface {
	Describe(ctx context.Context, image Image, instruction string) (string, error)
}

// Image is a decoded embedded image ready to send to a model.
type Image struct {
	Data     []byte
	MIMEType string
	Role     models.ImageRole
}

// Failure records an image whose description could not be produced.
type Failure struct {
	Page  models.PageRef `json:"page"`
	Index int            `json:"index"`
	Err   string         `json:"error"`
}

// Report summarizes one Describe run.
type Report struct {
	Images    int       `json:"images"`
	Described int       `json:"described"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Observer is notified once per image with the outcome of its model call.
type Observer func(outcome string)

// Describer produces one ImageDescription per embedded image.
type Describer struct {
	model       Model
	instruction string
	concurrency int
	isolate     bool
	observe     Observer
}

type Option func(*Describer)

// WithConcurrency bounds the number of model calls in flight.
func WithConcurrency(n int) Option {
	return func(d *Describer) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithIsolatedFailures makes a failed image count as skipped instead of
// aborting the whole run.
func WithIsolatedFailures(isolate bool) Option {
	return func(d *Describer) { d.isolate = isolate }
}

func WithInstruction(instruction string) Option {
	return func(d *Describer) { d.instruction = instruction }
}

func WithObserver(o Observer) Option {
	return func(d *Describer) { d.observe = o }
}

func New(model Model, opts ...Option) *Describer {
	d := &Describer{
		model:       model,
		instruction: models.ImageDescriptionPrompt,
		concurrency: 1,
		isolate:     true,
		observe:     func(string) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type job struct {
	page  models.PageRef
	index int
	image models.EmbeddedImage
}

type outcome struct {
	text string
	err  error
	done bool
}

// Describe walks docs in order and every image of each document in encounter
// order. The returned descriptions follow that traversal order regardless of
// how the calls were scheduled.
func (d *Describer) Describe(ctx context.Context, docs []models.ParsedDocument) ([]models.ImageDescription, *Report, error) {
	var jobs []job
	for _, doc := range docs {
		for i, img := range doc.Images {
			jobs = append(jobs, job{page: doc.Page, index: i, image: img})
		}
	}
	report := &Report{Images: len(jobs)}
	if len(jobs) == 0 {
		return nil, report, nil
	}

	results := make([]outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i := range jobs {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			text, err := d.describeOne(gctx, jobs[i])
			results[i] = outcome{text: text, err: err, done: true}
			if err != nil {
				d.observe("error")
				if !d.isolate {
					return fmt.Errorf("failed to describe image %d on page %s: %w", jobs[i].index, jobs[i].page, err)
				}
				return nil
			}
			d.observe("ok")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, models.NewStageError(models.ErrDescription, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, models.NewStageError(models.ErrDescription, err)
	}

	descriptions := make([]models.ImageDescription, 0, len(jobs))
	for i, res := range results {
		j := jobs[i]
		if res.err != nil || !res.done {
			msg := "not attempted"
			if res.err != nil {
				msg = res.err.Error()
			}
			report.Failures = append(report.Failures, Failure{Page: j.page, Index: j.index, Err: msg})
			log.Warn().Str("page", j.page.String()).Int("image", j.index).Str("error", msg).Msg("Skipping image description")
			continue
		}
		descriptions = append(descriptions, models.ImageDescription{
			Page:        j.page,
			Description: res.text,
			Role:        j.image.Role,
			Index:       j.index,
		})
	}
	report.Described = len(descriptions)

	log.Info().Int("images", report.Images).Int("described", report.Described).Int("failed", len(report.Failures)).Msg("Described images")
	return descriptions, report, nil
}

func (d *Describer) describeOne(ctx context.Context, j job) (string, error) {
	if strings.TrimSpace(j.image.Data) == "" {
		return models.DecorativeImageSentinel, nil
	}
	img, err := DecodeImage(j.image)
	if err != nil {
		return "", err
	}
	return d.model.Describe(ctx, img, d.instruction)
}

// DecodeImage decodes a base64 payload, with or without a data URL prefix,
// and sniffs its MIME type.
func DecodeImage(e models.EmbeddedImage) (Image, error) {
	payload := e.Data
	if strings.HasPrefix(payload, "data:") {
		if i := strings.Index(payload, ","); i >= 0 {
			payload = payload[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode image payload: %w", err)
	}
	return Image{Data: data, MIMEType: sniffImageType(data), Role: e.Role}, nil
}

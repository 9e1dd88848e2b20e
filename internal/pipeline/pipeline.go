package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pdf-qa-rag/internal/describe"
	"pdf-qa-rag/internal/merge"
	"pdf-qa-rag/internal/metrics"
	"pdf-qa-rag/internal/models"
	"pdf-qa-rag/internal/vectorstore"
)

type Extractor interface {
	Extract(ctx context.Context, path string) ([]models.PageTextBlock, error)
}

type DocumentParser interface {
	Parse(ctx context.Context, path string) ([]models.ParsedDocument, error)
}

type ImageDescriber interface {
	Describe(ctx context.Context, docs []models.ParsedDocument) ([]models.ImageDescription, *describe.Report, error)
}

type Indexer interface {
	Build(ctx context.Context, docs []models.MergedDocument) (vectorstore.Store, error)
}

// Stage names used in logs and metrics.
const (
	StageExtract  = "extract"
	StageParse    = "parse"
	StageDescribe = "describe"
	StageMerge    = "merge"
	StageIndex    = "index"
)

// Pipeline turns an uploaded file into page-keyed documents and, through
// Ingest, into a searchable store.
type Pipeline struct {
	extractor    Extractor
	parser       DocumentParser
	describer    ImageDescriber
	indexer      Indexer
	unknownPages string
	metrics      *metrics.Metrics
}

func New(extractor Extractor, parser DocumentParser, describer ImageDescriber, indexer Indexer, unknownPages string, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		extractor:    extractor,
		parser:       parser,
		describer:    describer,
		indexer:      indexer,
		unknownPages: unknownPages,
		metrics:      m,
	}
}

// Result is the output of one processed file.
type Result struct {
	Documents []models.MergedDocument `json:"documents"`
	Pages     int                     `json:"pages"`
	Report    *describe.Report        `json:"images"`
}

// Process runs text extraction alongside parsing and image description, then
// merges both streams by page. Any stage error aborts the run.
func (p *Pipeline) Process(ctx context.Context, path string) (*Result, error) {
	var (
		blocks       []models.PageTextBlock
		descriptions []models.ImageDescription
		report       *describe.Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer p.observe(StageExtract, time.Now(), &err)
		blocks, err = p.extractor.Extract(gctx, path)
		return err
	})
	g.Go(func() error {
		docs, err := p.parse(gctx, path)
		if err != nil {
			return err
		}
		descriptions, report, err = p.describe(gctx, docs)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Str("file", path).Msg("Document processing failed")
		return nil, err
	}
	if report == nil {
		report = &describe.Report{}
	}

	start := time.Now()
	merged, err := merge.Merge(blocks, descriptions, merge.Options{
		FallbackSource: path,
		UnknownPages:   p.unknownPages,
	})
	p.observe(StageMerge, start, &err)
	if err != nil {
		return nil, err
	}

	log.Info().Str("file", path).Int("pages", len(blocks)).Int("documents", len(merged)).Int("images", report.Images).Int("described", report.Described).Msg("Processed document")
	return &Result{Documents: merged, Pages: len(blocks), Report: report}, nil
}

func (p *Pipeline) parse(ctx context.Context, path string) (docs []models.ParsedDocument, err error) {
	defer p.observe(StageParse, time.Now(), &err)
	return p.parser.Parse(ctx, path)
}

func (p *Pipeline) describe(ctx context.Context, docs []models.ParsedDocument) (descriptions []models.ImageDescription, report *describe.Report, err error) {
	defer p.observe(StageDescribe, time.Now(), &err)
	return p.describer.Describe(ctx, docs)
}

// Ingest processes path and builds a store from the result.
func (p *Pipeline) Ingest(ctx context.Context, path string) (vectorstore.Store, *Result, error) {
	res, err := p.Process(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	store, err := p.indexer.Build(ctx, res.Documents)
	p.observe(StageIndex, start, &err)
	if err != nil {
		return nil, nil, err
	}
	if p.metrics != nil {
		p.metrics.Chunks.Set(float64(store.Count()))
	}
	return store, res, nil
}

func (p *Pipeline) observe(stage string, start time.Time, err *error) {
	p.metrics.ObserveStage(stage, start, *err)
	log.Debug().Str("stage", stage).Dur("took", time.Since(start)).Bool("ok", *err == nil).Msg("Stage finished")
}

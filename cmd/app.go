package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"pdf-qa-rag/internal/config"
	"pdf-qa-rag/internal/describe"
	"pdf-qa-rag/internal/docparse"
	"pdf-qa-rag/internal/embedding"
	"pdf-qa-rag/internal/indexer"
	"pdf-qa-rag/internal/llmservice"
	"pdf-qa-rag/internal/metrics"
	"pdf-qa-rag/internal/parser"
	"pdf-qa-rag/internal/pipeline"
	"pdf-qa-rag/internal/rag"
	"pdf-qa-rag/internal/vectorstore"
)

// app holds the components built from one configuration.
type app struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	backend  vectorstore.Backend
	indexer  *indexer.Indexer
	pipeline *pipeline.Pipeline
	rag      *rag.RAG
	closers  []func() error
}

// newApp wires every component. A nil backend opens the configured one.
func newApp(ctx context.Context, cfg *config.Config, backend vectorstore.Backend) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}
	if err := a.init(ctx, backend); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, backend vectorstore.Backend) error {
	cfg := a.cfg

	if backend == nil {
		var err error
		if backend, err = vectorstore.Open(ctx, cfg); err != nil {
			return fmt.Errorf("failed to open vector store: %w", err)
		}
	}
	a.backend = backend
	a.closers = append(a.closers, backend.Close)

	embedder, err := embedding.NewEmbedder(ctx, &cfg.EmbedLLM, cfg.RAG.EmbedBatchSize)
	if err != nil {
		return err
	}
	splitter, err := indexer.NewSplitter(cfg.RAG.Splitter, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return err
	}
	a.indexer = indexer.New(embedder, backend, splitter, cfg.RAG.TopK, indexer.WithEmbedTimeout(cfg.EmbedLLM.Timeout))

	visionModel, err := describe.NewModel(ctx, &cfg.VisionLLM)
	if err != nil {
		return fmt.Errorf("failed to create vision model: %w", err)
	}
	if c, ok := visionModel.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
	describer := describe.New(visionModel,
		describe.WithConcurrency(cfg.RAG.DescribeConcurrency),
		describe.WithIsolatedFailures(cfg.RAG.IsolateFailures()),
		describe.WithObserver(a.metrics.ImageDescribed),
	)

	a.pipeline = pipeline.New(
		parser.New(cfg.Extract.PageOffset),
		docparse.NewClient(&cfg.DocParse),
		describer,
		a.indexer,
		cfg.RAG.UnknownPages,
		a.metrics,
	)

	answerLLM, err := llmservice.New(ctx, &cfg.AnswerLLM)
	if err != nil {
		return fmt.Errorf("failed to create answer model: %w", err)
	}
	a.rag = rag.NewRAG(a.indexer, answerLLM, cfg.RAG.TopK, cfg.AnswerLLM.Timeout)
	return nil
}

func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn().Err(err).Msg("Failed to release resources")
	}
}

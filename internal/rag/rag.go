package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"pdf-qa-rag/internal/llmservice"
	"pdf-qa-rag/internal/models"
	"pdf-qa-rag/internal/vectorstore"
)

// Retriever finds the chunks of store most similar to question.
type Retriever interface {
	Search(ctx context.Context, store vectorstore.Store, question string, k int) ([]models.ScoredChunk, error)
}

// RAG answers questions from the chunks retrieved out of a document store.
type RAG struct {
	retriever Retriever
	llm       llms.Model
	prompt    prompts.PromptTemplate
	topK      int
	timeout   time.Duration
}

func NewRAG(retriever Retriever, llm llms.Model, topK int, timeout time.Duration) *RAG {
	return &RAG{
		retriever: retriever,
		llm:       llm,
		prompt: prompts.PromptTemplate{
			Template:       models.AnswerPromptTemplate,
			InputVariables: []string{"question", "context"},
			TemplateFormat: prompts.TemplateFormatFString,
		},
		topK:    topK,
		timeout: timeout,
	}
}

// Query retrieves context for question from store and asks the model.
// Model failures are answer errors and no fallback text is produced.
func (r *RAG) Query(ctx context.Context, store vectorstore.Store, question string) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", models.ErrInvalidInput)
	}
	if store == nil {
		return nil, models.ErrNoDocument
	}

	sources, err := r.retriever.Search(ctx, store, question, r.topK)
	if err != nil {
		return nil, err
	}

	prompt, err := r.BuildPrompt(question, sources)
	if err != nil {
		return nil, models.NewStageError(models.ErrAnswer, err)
	}

	content, err := llmservice.GenerateContent(ctx, r.llm, r.timeout, llms.TextPart(prompt))
	if err != nil {
		return nil, models.NewStageError(models.ErrAnswer, fmt.Errorf("failed to generate answer: %w", err))
	}

	log.Debug().Int("sources", len(sources)).Int("prompt_len", len(prompt)).Msg("Answered question")
	return &models.Answer{Question: question, Content: content, Sources: sources}, nil
}

// BuildPrompt renders the answer prompt with the chunk contents joined by a
// blank line as context.
func (r *RAG) BuildPrompt(question string, sources []models.ScoredChunk) (string, error) {
	contents := make([]string, len(sources))
	for i, s := range sources {
		contents[i] = s.Content
	}
	return r.prompt.Format(map[string]any{
		"question": question,
		"context":  strings.Join(contents, models.ContentSeparator),
	})
}

package describe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/api/option"

	"pdf-qa-rag/internal/config"
	"pdf-qa-rag/internal/llmservice"
)

// LangchainModel describes images with any multimodal langchaingo model.
type LangchainModel struct {
	llm     llms.Model
	timeout time.Duration
}

func NewLangchainModel(llm llms.Model, timeout time.Duration) *LangchainModel {
	return &LangchainModel{llm: llm, timeout: timeout}
}

func (m *LangchainModel) Describe(ctx context.Context, image Image, instruction string) (string, error) {
	return llmservice.GenerateContent(ctx, m.llm, m.timeout,
		llms.TextPart(instruction),
		llms.BinaryPart(image.MIMEType, image.Data),
	)
}

// GeminiModel describes images through the Gemini SDK directly.
type GeminiModel struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

func NewGeminiModel(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, errors.New("no API key provided")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiModel{
		client:  client,
		model:   client.GenerativeModel(modelName),
		timeout: timeout,
	}, nil
}

func (m *GeminiModel) Describe(ctx context.Context, image Image, instruction string) (string, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	resp, err := m.model.GenerateContent(ctx,
		genai.Text(instruction),
		genai.Blob{MIMEType: image.MIMEType, Data: image.Data},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("no response generated")
	}

	var content strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				content.WriteString(string(text))
			}
		}
	}
	return content.String(), nil
}

func (m *GeminiModel) Close() error {
	return m.client.Close()
}

// NewModel builds the vision backend named by cfg.Provider. "gemini" uses
// the Gemini SDK, every other provider goes through langchaingo.
func NewModel(ctx context.Context, cfg *config.LLMConfig) (Model, error) {
	if cfg.Provider == "gemini" {
		m, err := NewGeminiModel(ctx, cfg.Key, cfg.Model, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	llm, err := llmservice.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewLangchainModel(llm, cfg.Timeout), nil
}

func sniffImageType(data []byte) string {
	if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}

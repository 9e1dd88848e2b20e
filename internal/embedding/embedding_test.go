package embedding

import (
	"context"
	"testing"

	"pdf-qa-rag/internal/config"
)

func TestNewEmbedder(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr bool
	}{
		{name: "ollama", cfg: config.LLMConfig{Provider: "ollama", BaseURL: "http://localhost:11434", Model: "nomic-embed-text"}},
		{name: "openai", cfg: config.LLMConfig{Provider: "openai", Key: "Bearer sk-test", Model: "text-embedding-3-small"}},
		{name: "unsupported", cfg: config.LLMConfig{Provider: "cohere"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEmbedder(context.Background(), &tt.cfg, 16)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEmbedder() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got == nil {
				t.Error("NewEmbedder() returned nil embedder")
			}
		})
	}
}

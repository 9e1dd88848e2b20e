package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("UPSTAGE_API_KEY", "upstage-key")

	cfg, err := LoadConfig(writeConfig(t, "server:\n  address: \":9000\"\n"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Address != ":9000" {
		t.Errorf("Server.Address = %q, want :9000", cfg.Server.Address)
	}
	if cfg.RAG.ChunkSize != 1000 || cfg.RAG.ChunkOverlap != 200 {
		t.Errorf("chunking = %d/%d, want 1000/200", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.TopK != 4 {
		t.Errorf("RAG.TopK = %d, want 4", cfg.RAG.TopK)
	}
	if !cfg.RAG.IsolateFailures() {
		t.Error("IsolateFailures() should default to true")
	}
	if cfg.DocParse.Key != "upstage-key" {
		t.Errorf("DocParse.Key = %q, want upstage-key", cfg.DocParse.Key)
	}
	if cfg.AnswerLLM.Key != "google-key" || cfg.VisionLLM.Key != "google-key" {
		t.Error("google key should apply to googleai models")
	}
	if cfg.EmbedLLM.Model != "text-embedding-004" {
		t.Errorf("EmbedLLM.Model = %q", cfg.EmbedLLM.Model)
	}
	if got := cfg.DocParse.Categories; len(got) != 3 {
		t.Errorf("DocParse.Categories = %v", got)
	}
	if cfg.VectorStore.Backend != "chromem" {
		t.Errorf("VectorStore.Backend = %q", cfg.VectorStore.Backend)
	}
}

func TestLoadConfig_Values(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	body := `
answer_llm:
  provider: openai
  model: gpt-4o-mini
  timeout: 15s
rag:
  chunk_size: 500
  chunk_overlap: 50
  splitter: window
  isolate_image_failures: false
  unknown_pages: drop
docparse:
  page_offset: -1
session:
  ttl: 30m
`
	cfg, err := LoadConfig(writeConfig(t, body))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.AnswerLLM.Key != "sk-test" {
		t.Errorf("AnswerLLM.Key = %q, want sk-test", cfg.AnswerLLM.Key)
	}
	if cfg.AnswerLLM.Timeout != 15*time.Second {
		t.Errorf("AnswerLLM.Timeout = %v", cfg.AnswerLLM.Timeout)
	}
	if cfg.RAG.ChunkSize != 500 || cfg.RAG.ChunkOverlap != 50 {
		t.Errorf("chunking = %d/%d, want 500/50", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.IsolateFailures() {
		t.Error("IsolateFailures() should be false")
	}
	if cfg.RAG.UnknownPages != "drop" || cfg.RAG.Splitter != "window" {
		t.Errorf("RAG = %+v", cfg.RAG)
	}
	if cfg.DocParse.PageOffset != -1 {
		t.Errorf("DocParse.PageOffset = %d", cfg.DocParse.PageOffset)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("Session.TTL = %v", cfg.Session.TTL)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad splitter", body: "rag:\n  splitter: tokens\n"},
		{name: "bad unknown policy", body: "rag:\n  unknown_pages: nearest\n"},
		{name: "pgvector without dsn", body: "vector_store:\n  backend: pgvector\n"},
		{name: "bad backend", body: "vector_store:\n  backend: faiss\n"},
		{name: "short encryption key", body: "rag:\n  encryption_key: short\n"},
		{name: "malformed yaml", body: "rag: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.body)); err == nil {
				t.Error("LoadConfig() expected error, got nil")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() expected error for missing file")
	}
}

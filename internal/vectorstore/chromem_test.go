package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"pdf-qa-rag/internal/models"
)

func testRecords() []Record {
	return []Record{
		{Chunk: models.Chunk{ID: "a", Page: models.Page(1), SourcePath: "doc.pdf", ChunkID: 1, Content: "revenue grew"}, Embedding: []float32{1, 0, 0}},
		{Chunk: models.Chunk{ID: "b", Page: models.Page(2), SourcePath: "doc.pdf", ChunkID: 1, Content: "costs fell"}, Embedding: []float32{0, 1, 0}},
		{Chunk: models.Chunk{ID: "c", Page: models.UnknownPage, SourcePath: "doc.pdf", ChunkID: 1, Content: "chart"}, Embedding: []float32{0.9, 0.1, 0}},
	}
}

func TestChromemStore_Search(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromemStore()
	if err != nil {
		t.Fatalf("NewChromemStore() error = %v", err)
	}
	if err := s.Add(ctx, testRecords()); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if s.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", s.Count())
	}

	got, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Search() returned %d chunks, want 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("Search() order = %s, %s, want a, c", got[0].ID, got[1].ID)
	}
	if got[0].Page != models.Page(1) || got[0].SourcePath != "doc.pdf" || got[0].ChunkID != 1 {
		t.Errorf("Search() metadata = %+v", got[0].Chunk)
	}
	if got[1].Page != models.UnknownPage {
		t.Errorf("Search() page = %s, want unknown", got[1].Page)
	}
	if got[0].Similarity < got[1].Similarity {
		t.Errorf("similarities not descending: %v, %v", got[0].Similarity, got[1].Similarity)
	}
}

func TestChromemStore_SearchClampsK(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromemStore()
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Search(ctx, []float32{1, 0, 0}, 4)
	if err != nil || len(got) != 0 {
		t.Fatalf("Search() on empty store = %v, %v", got, err)
	}

	if err := s.Add(ctx, testRecords()[:1]); err != nil {
		t.Fatal(err)
	}
	got, err = s.Search(ctx, []float32{1, 0, 0}, 4)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Search() returned %d chunks, want 1", len(got))
	}
}

func TestChromemStore_ExportImport(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromemStore()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Add(ctx, testRecords()); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "store.gob")
	key := "0123456789abcdef0123456789abcdef"
	if err := s.Export(path, key); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	loaded, err := ImportChromemStore(path, key)
	if err != nil {
		t.Fatalf("ImportChromemStore() error = %v", err)
	}
	if loaded.Count() != 3 {
		t.Errorf("Count() = %d, want 3", loaded.Count())
	}
	got, err := loaded.Search(ctx, []float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "costs fell" {
		t.Errorf("Search() after import = %+v", got)
	}

	if _, err := ImportChromemStore(path, "ffffffffffffffffffffffffffffffff"); err == nil {
		t.Error("ImportChromemStore() with wrong key expected error")
	}
}

func TestClampK(t *testing.T) {
	tests := []struct{ k, count, want int }{
		{4, 10, 4},
		{4, 2, 2},
		{4, 0, 0},
	}
	for _, tt := range tests {
		if got := clampK(tt.k, tt.count); got != tt.want {
			t.Errorf("clampK(%d, %d) = %d, want %d", tt.k, tt.count, got, tt.want)
		}
	}
}

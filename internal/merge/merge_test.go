package merge

import (
	"errors"
	"reflect"
	"testing"

	"pdf-qa-rag/internal/models"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name         string
		blocks       []models.PageTextBlock
		descriptions []models.ImageDescription
		opts         Options
		want         []models.MergedDocument
	}{
		{
			name: "text and chart on first page",
			blocks: []models.PageTextBlock{
				{Page: 1, Text: "Intro", SourcePath: "a.pdf"},
				{Page: 2, Text: "Body", SourcePath: "a.pdf"},
			},
			descriptions: []models.ImageDescription{
				{Page: models.Page(1), Description: "Chart: 5,10,15"},
			},
			want: []models.MergedDocument{
				{Page: models.Page(1), Content: "Intro\n\nChart: 5,10,15", SourcePath: "a.pdf"},
				{Page: models.Page(2), Content: "Body", SourcePath: "a.pdf"},
			},
		},
		{
			name: "no images leaves text unchanged",
			blocks: []models.PageTextBlock{
				{Page: 1, Text: "one", SourcePath: "a.pdf"},
				{Page: 2, Text: "two\n\nparagraph", SourcePath: "a.pdf"},
			},
			want: []models.MergedDocument{
				{Page: models.Page(1), Content: "one", SourcePath: "a.pdf"},
				{Page: models.Page(2), Content: "two\n\nparagraph", SourcePath: "a.pdf"},
			},
		},
		{
			name: "unknown page forms its own trailing group",
			blocks: []models.PageTextBlock{
				{Page: 1, Text: "Intro", SourcePath: "a.pdf"},
			},
			descriptions: []models.ImageDescription{
				{Page: models.UnknownPage, Description: "floating figure"},
				{Page: models.Page(1), Description: "Table"},
			},
			opts: Options{FallbackSource: "upload.pdf"},
			want: []models.MergedDocument{
				{Page: models.Page(1), Content: "Intro\n\nTable", SourcePath: "a.pdf"},
				{Page: models.UnknownPage, Content: "floating figure", SourcePath: "upload.pdf"},
			},
		},
		{
			name: "unknown page dropped",
			blocks: []models.PageTextBlock{
				{Page: 1, Text: "Intro", SourcePath: "a.pdf"},
			},
			descriptions: []models.ImageDescription{
				{Page: models.UnknownPage, Description: "floating figure"},
			},
			opts: Options{UnknownPages: UnknownDrop},
			want: []models.MergedDocument{
				{Page: models.Page(1), Content: "Intro", SourcePath: "a.pdf"},
			},
		},
		{
			name: "image only page uses fallback source",
			blocks: []models.PageTextBlock{
				{Page: 3, Text: "three", SourcePath: "a.pdf"},
			},
			descriptions: []models.ImageDescription{
				{Page: models.Page(2), Description: "scan"},
			},
			opts: Options{FallbackSource: "upload.pdf"},
			want: []models.MergedDocument{
				{Page: models.Page(2), Content: "scan", SourcePath: "upload.pdf"},
				{Page: models.Page(3), Content: "three", SourcePath: "a.pdf"},
			},
		},
		{
			name: "out of order input sorted by page with stable suborder",
			blocks: []models.PageTextBlock{
				{Page: 2, Text: "b1", SourcePath: "first.pdf"},
				{Page: 1, Text: "a", SourcePath: "a.pdf"},
				{Page: 2, Text: "b2", SourcePath: "second.pdf"},
			},
			descriptions: []models.ImageDescription{
				{Page: models.Page(2), Description: "img1"},
				{Page: models.Page(2), Description: "img2"},
			},
			want: []models.MergedDocument{
				{Page: models.Page(1), Content: "a", SourcePath: "a.pdf"},
				{Page: models.Page(2), Content: "b1\n\nb2\n\nimg1\n\nimg2", SourcePath: "first.pdf"},
			},
		},
		{
			name: "empty input",
			want: []models.MergedDocument{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Merge(tt.blocks, tt.descriptions, tt.opts)
			if err != nil {
				t.Fatalf("Merge() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Merge() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMerge_UnknownPageError(t *testing.T) {
	_, err := Merge(nil, []models.ImageDescription{{Page: models.UnknownPage, Description: "x"}}, Options{UnknownPages: UnknownError})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Merge() error = %v, want ErrInvalidInput", err)
	}
}

func TestMerge_EveryPageExactlyOnce(t *testing.T) {
	blocks := []models.PageTextBlock{{Page: 1}, {Page: 4}, {Page: 2}, {Page: 4}}
	descriptions := []models.ImageDescription{
		{Page: models.Page(3)}, {Page: models.Page(1)}, {Page: models.UnknownPage}, {Page: models.Page(5)},
	}
	got, err := Merge(blocks, descriptions, Options{})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	want := []models.PageRef{models.Page(1), models.Page(2), models.Page(3), models.Page(4), models.Page(5), models.UnknownPage}
	if len(got) != len(want) {
		t.Fatalf("Merge() returned %d documents, want %d", len(got), len(want))
	}
	for i, p := range want {
		if got[i].Page != p {
			t.Errorf("documents[%d].Page = %s, want %s", i, got[i].Page, p)
		}
	}
}

func TestMerge_Idempotent(t *testing.T) {
	blocks := []models.PageTextBlock{{Page: 2, Text: "b"}, {Page: 1, Text: "a"}}
	descriptions := []models.ImageDescription{{Page: models.Page(2), Description: "d"}}

	first, err := Merge(blocks, descriptions, Options{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Merge(blocks, descriptions, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-merge differs: %+v vs %+v", first, second)
	}
}

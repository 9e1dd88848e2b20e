package describe_test

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"pdf-qa-rag/internal/describe"
	"pdf-qa-rag/internal/describe/mocks"
	"pdf-qa-rag/internal/models"

	"go.uber.org/mock/gomock"
)

func img(payload string, role models.ImageRole) models.EmbeddedImage {
	return models.EmbeddedImage{Data: base64.StdEncoding.EncodeToString([]byte(payload)), Role: role}
}

// echo answers with the decoded payload; payloads starting with "slow"
// finish last so scheduling order differs from traversal order.
func echo(_ context.Context, image describe.Image, _ string) (string, error) {
	if strings.HasPrefix(string(image.Data), "slow") {
		time.Sleep(20 * time.Millisecond)
	}
	if strings.HasPrefix(string(image.Data), "fail") {
		return "", errors.New("model unavailable")
	}
	return "desc:" + string(image.Data), nil
}

func TestDescriber_PreservesTraversalOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := mocks.NewMockModel(ctrl)
	model.EXPECT().Describe(gomock.Any(), gomock.Any(), models.ImageDescriptionPrompt).DoAndReturn(echo).Times(4)

	docs := []models.ParsedDocument{
		{Page: models.Page(1), Images: []models.EmbeddedImage{img("slow-a", models.RoleChart), img("b", models.RoleFigure)}},
		{Page: models.Page(2)},
		{Page: models.Page(3), Images: []models.EmbeddedImage{img("slow-c", models.RoleTable), img("d", models.RoleFigure)}},
	}

	d := describe.New(model, describe.WithConcurrency(4))
	got, report, err := d.Describe(context.Background(), docs)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}

	want := []models.ImageDescription{
		{Page: models.Page(1), Description: "desc:slow-a", Role: models.RoleChart, Index: 0},
		{Page: models.Page(1), Description: "desc:b", Role: models.RoleFigure, Index: 1},
		{Page: models.Page(3), Description: "desc:slow-c", Role: models.RoleTable, Index: 0},
		{Page: models.Page(3), Description: "desc:d", Role: models.RoleFigure, Index: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("Describe() returned %d descriptions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("descriptions[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if report.Images != 4 || report.Described != 4 || len(report.Failures) != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestDescriber_IsolatesFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := mocks.NewMockModel(ctrl)
	model.EXPECT().Describe(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(echo).Times(3)

	docs := []models.ParsedDocument{
		{Page: models.Page(1), Images: []models.EmbeddedImage{img("a", models.RoleFigure)}},
		{Page: models.Page(2), Images: []models.EmbeddedImage{img("fail-b", models.RoleChart), img("c", models.RoleFigure)}},
	}

	var outcomes []string
	d := describe.New(model, describe.WithIsolatedFailures(true), describe.WithObserver(func(o string) {
		outcomes = append(outcomes, o)
	}))
	got, report, err := d.Describe(context.Background(), docs)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}

	if len(got) != 2 || got[0].Description != "desc:a" || got[1].Description != "desc:c" {
		t.Errorf("Describe() = %+v", got)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("report.Failures = %+v, want one failure", report.Failures)
	}
	if f := report.Failures[0]; f.Page != models.Page(2) || f.Index != 0 {
		t.Errorf("failure = %+v, want page 2 image 0", f)
	}
	if len(outcomes) != 3 {
		t.Errorf("observer saw %d outcomes, want 3", len(outcomes))
	}
}

func TestDescriber_AbortsWithoutIsolation(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := mocks.NewMockModel(ctrl)
	model.EXPECT().Describe(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(echo).AnyTimes()

	docs := []models.ParsedDocument{
		{Page: models.Page(1), Images: []models.EmbeddedImage{img("a", models.RoleFigure), img("fail-b", models.RoleFigure)}},
		{Page: models.Page(2), Images: []models.EmbeddedImage{img("c", models.RoleFigure)}},
	}

	d := describe.New(model, describe.WithIsolatedFailures(false))
	got, report, err := d.Describe(context.Background(), docs)
	if err == nil {
		t.Fatal("Describe() expected error")
	}
	if !errors.Is(err, models.ErrDescription) {
		t.Errorf("Describe() error = %v, want ErrDescription", err)
	}
	if got != nil || report != nil {
		t.Error("no partial output expected on abort")
	}
}

func TestDescriber_EmptyPayloadUsesSentinel(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := mocks.NewMockModel(ctrl)

	docs := []models.ParsedDocument{
		{Page: models.Page(4), Images: []models.EmbeddedImage{{Data: "", Role: models.RoleFigure}}},
	}
	got, _, err := describe.New(model).Describe(context.Background(), docs)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if len(got) != 1 || got[0].Description != models.DecorativeImageSentinel {
		t.Errorf("Describe() = %+v, want sentinel description", got)
	}
}

func TestDescriber_UndecodablePayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := mocks.NewMockModel(ctrl)

	docs := []models.ParsedDocument{
		{Page: models.Page(1), Images: []models.EmbeddedImage{{Data: "***not base64***", Role: models.RoleFigure}}},
	}
	got, report, err := describe.New(model).Describe(context.Background(), docs)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if len(got) != 0 || len(report.Failures) != 1 {
		t.Errorf("Describe() = %+v, report = %+v", got, report)
	}
}

func TestDescriber_UnknownPageCarriesSentinelTag(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := mocks.NewMockModel(ctrl)
	model.EXPECT().Describe(gomock.Any(), gomock.Any(), gomock.Any()).Return("Chart: 5,10,15", nil)

	docs := []models.ParsedDocument{
		{Page: models.UnknownPage, Images: []models.EmbeddedImage{img("chart", models.RoleChart)}},
	}
	got, _, err := describe.New(model).Describe(context.Background(), docs)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if len(got) != 1 || got[0].Page.String() != models.UnknownPageTag {
		t.Errorf("Describe() = %+v, want page %q", got, models.UnknownPageTag)
	}
}

func TestDescriber_NoImages(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := mocks.NewMockModel(ctrl)

	got, report, err := describe.New(model).Describe(context.Background(), []models.ParsedDocument{{Page: models.Page(1)}})
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if len(got) != 0 || report.Images != 0 {
		t.Errorf("Describe() = %+v, report = %+v", got, report)
	}
}

func TestDescriber_Cancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := mocks.NewMockModel(ctrl)
	model.EXPECT().Describe(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ describe.Image, _ string) (string, error) {
			return "", ctx.Err()
		}).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs := []models.ParsedDocument{
		{Page: models.Page(1), Images: []models.EmbeddedImage{img("a", models.RoleFigure)}},
	}
	if _, _, err := describe.New(model).Describe(ctx, docs); !errors.Is(err, models.ErrDescription) {
		t.Errorf("Describe() error = %v, want ErrDescription", err)
	}
}

func TestDecodeImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	encoded := base64.StdEncoding.EncodeToString(png)

	tests := []struct {
		name     string
		data     string
		wantMIME string
		wantErr  bool
	}{
		{name: "raw base64 png", data: encoded, wantMIME: "image/png"},
		{name: "data url", data: "data:image/png;base64," + encoded, wantMIME: "image/png"},
		{name: "unknown bytes default to jpeg", data: base64.StdEncoding.EncodeToString([]byte("abc")), wantMIME: "image/jpeg"},
		{name: "invalid", data: "%%%", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := describe.DecodeImage(models.EmbeddedImage{Data: tt.data, Role: models.RoleFigure})
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeImage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.MIMEType != tt.wantMIME {
				t.Errorf("DecodeImage() MIMEType = %q, want %q", got.MIMEType, tt.wantMIME)
			}
		})
	}
}

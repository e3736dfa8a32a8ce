package properties

import (
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-mirror/internal/richtext"
)

func text(value string) []richtext.Span {
	return []richtext.Span{{Kind: richtext.KindText, Text: value}}
}

func fullPage() Page {
	return Page{
		ID:             "page-1",
		LastEditedTime: "2024-03-15T08:30:12.000Z",
		Cover:          &File{Type: "external", URL: " https://img.example.com/cover.jpg "},
		Properties: map[string]Property{
			PropertyTitle:         {Type: TypeTitle, Title: text("Hello")},
			PropertySlug:          {Type: TypeRichText, RichText: text("hello-world")},
			PropertyDescription:   {Type: TypeRichText, RichText: text("An intro")},
			PropertyType:          {Type: TypeSelect, Select: &Option{Name: "Note"}},
			PropertyCategory:      {Type: TypeSelect, Select: &Option{Name: "Go"}},
			PropertyTags:          {Type: TypeMultiSelect, MultiSelect: []Option{{Name: "go"}, {Name: " "}, {Name: " sync "}}},
			PropertyPublishedDate: {Type: TypeDate, Date: &DateValue{Start: "2024-03-01"}},
		},
	}
}

func TestParseFullPage(t *testing.T) {
	meta, err := Parse(fullPage(), time.Now())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if meta.ID != "page-1" || meta.Slug != "hello-world" || meta.Title != "Hello" {
		t.Fatalf("unexpected identity fields %+v", meta)
	}
	if meta.Description != "An intro" || meta.Type != "Note" {
		t.Fatalf("unexpected description/type %+v", meta)
	}
	if meta.Category == nil || *meta.Category != "Go" {
		t.Fatalf("unexpected category %v", meta.Category)
	}
	if len(meta.Tags) != 2 || meta.Tags[0] != "go" || meta.Tags[1] != "sync" {
		t.Fatalf("unexpected tags %v", meta.Tags)
	}
	if meta.PublishedDate != "2024-03-01" {
		t.Fatalf("unexpected published date %q", meta.PublishedDate)
	}
	want := time.Date(2024, 3, 15, 8, 30, 12, 0, time.UTC)
	if meta.LastEdited == nil || !meta.LastEdited.Equal(want) {
		t.Fatalf("unexpected marker %v", meta.LastEdited)
	}
	if meta.CoverURL != "https://img.example.com/cover.jpg" {
		t.Fatalf("unexpected cover %q", meta.CoverURL)
	}
}

func TestParseDefaults(t *testing.T) {
	now := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	page := Page{
		ID: "page-2",
		Properties: map[string]Property{
			PropertySlug: {Type: TypeRichText, RichText: text("bare")},
		},
	}

	meta, err := Parse(page, now)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if meta.Title != DefaultTitle || meta.Type != DefaultType || meta.Description != "" {
		t.Fatalf("unexpected defaults %+v", meta)
	}
	if meta.Category != nil || len(meta.Tags) != 0 || meta.CoverURL != "" {
		t.Fatalf("expected empty optional fields %+v", meta)
	}
	if meta.PublishedDate != "2025-01-02" {
		t.Fatalf("expected today's date, got %q", meta.PublishedDate)
	}
	if meta.LastEdited != nil {
		t.Fatalf("expected nil marker, got %v", meta.LastEdited)
	}
}

func TestParseRequiredFields(t *testing.T) {
	page := fullPage()
	page.ID = " "
	if _, err := Parse(page, time.Now()); !errors.Is(err, ErrIDMissing) {
		t.Fatalf("expected ErrIDMissing, got %v", err)
	}

	page = fullPage()
	delete(page.Properties, PropertySlug)
	if _, err := Parse(page, time.Now()); !errors.Is(err, ErrSlugMissing) {
		t.Fatalf("expected ErrSlugMissing, got %v", err)
	}

	page = fullPage()
	page.Properties[PropertySlug] = Property{Type: TypeRichText, RichText: text("   ")}
	if _, err := Parse(page, time.Now()); !errors.Is(err, ErrSlugMissing) {
		t.Fatalf("expected ErrSlugMissing for blank slug, got %v", err)
	}
}

func TestParseMarker(t *testing.T) {
	cases := map[string]*time.Time{
		"":                          nil,
		"yesterday":                 nil,
		"2024-03-15T08:30:12.987Z":  ptr(time.Date(2024, 3, 15, 8, 30, 12, 0, time.UTC)),
		"2024-03-15T10:30:12+02:00": ptr(time.Date(2024, 3, 15, 8, 30, 12, 0, time.UTC)),
	}
	for input, want := range cases {
		got := ParseMarker(input)
		switch {
		case want == nil && got != nil:
			t.Fatalf("ParseMarker(%q) = %v, want nil", input, got)
		case want != nil && (got == nil || !got.Equal(*want) || got.Location() != time.UTC):
			t.Fatalf("ParseMarker(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestPublishedDateTruncatesDateTimes(t *testing.T) {
	got := publishedDate(&DateValue{Start: "2024-05-06T09:00:00.000+09:00"}, time.Now())
	if got != "2024-05-06" {
		t.Fatalf("publishedDate() = %q", got)
	}
}

func ptr(t time.Time) *time.Time { return &t }

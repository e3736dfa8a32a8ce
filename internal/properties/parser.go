// Package properties turns a remote page's property bag into document metadata.
package properties

import (
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-slug"

	"github.com/goliatone/go-mirror/internal/richtext"
)

// Property names of the source database.
const (
	PropertyTitle         = "Title"
	PropertySlug          = "Slug"
	PropertyDescription   = "Description"
	PropertyType          = "Type"
	PropertyCategory      = "Kategorie"
	PropertyTags          = "Tags"
	PropertyPublishedDate = "PublishedDate"
)

const (
	DefaultTitle = "Untitled"
	DefaultType  = "Post"
	dateLayout   = "2006-01-02"
)

var (
	ErrIDMissing   = errors.New("properties: page id is missing")
	ErrSlugMissing = errors.New("properties: slug is missing")
	ErrSlugInvalid = errors.New("properties: slug is invalid")
)

// Metadata is the structured view of a page.
type Metadata struct {
	ID            string
	Slug          string
	Title         string
	Description   string
	Type          string
	Category      *string
	Tags          []string
	PublishedDate string
	// LastEdited is nil when the remote marker could not be parsed; callers
	// cannot judge staleness and must skip the document.
	LastEdited *time.Time
	CoverURL   string
}

// Parse extracts Metadata from page. now supplies the default published date.
func Parse(page Page, now time.Time) (*Metadata, error) {
	id := strings.TrimSpace(page.ID)
	if id == "" {
		return nil, ErrIDMissing
	}

	rawSlug := strings.TrimSpace(richtext.Plain(page.Properties[PropertySlug].RichText))
	if rawSlug == "" {
		return nil, ErrSlugMissing
	}
	docSlug, err := normalizeSlug(rawSlug)
	if err != nil {
		return nil, err
	}

	meta := &Metadata{
		ID:            id,
		Slug:          docSlug,
		Title:         textOr(page.Properties[PropertyTitle].Title, DefaultTitle),
		Description:   textOr(page.Properties[PropertyDescription].RichText, ""),
		Type:          DefaultType,
		Tags:          tagNames(page.Properties[PropertyTags].MultiSelect),
		PublishedDate: publishedDate(page.Properties[PropertyPublishedDate].Date, now),
		LastEdited:    ParseMarker(page.LastEditedTime),
	}
	if sel := page.Properties[PropertyType].Select; sel != nil && strings.TrimSpace(sel.Name) != "" {
		meta.Type = strings.TrimSpace(sel.Name)
	}
	if sel := page.Properties[PropertyCategory].Select; sel != nil && strings.TrimSpace(sel.Name) != "" {
		category := strings.TrimSpace(sel.Name)
		meta.Category = &category
	}
	if page.Cover != nil {
		meta.CoverURL = strings.TrimSpace(page.Cover.URL)
	}
	return meta, nil
}

// ParseMarker converts a remote RFC 3339 timestamp to UTC at second
// precision. It returns nil when value cannot be parsed.
func ParseMarker(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	ts = ts.UTC().Truncate(time.Second)
	return &ts
}

// normalizeSlug keeps valid slugs untouched and normalises the rest with
// go-slug. Slugs that normalise to nothing are accepted verbatim unless they
// could escape the asset directory.
func normalizeSlug(raw string) (string, error) {
	if slug.IsValid(raw) {
		return raw, nil
	}
	if normalized, err := slug.Normalize(raw); err == nil && normalized != "" {
		return normalized, nil
	}
	if strings.ContainsAny(raw, `/\`) || raw == "." || raw == ".." {
		return "", ErrSlugInvalid
	}
	return raw, nil
}

func textOr(spans []richtext.Span, fallback string) string {
	if text := strings.TrimSpace(richtext.Plain(spans)); text != "" {
		return text
	}
	return fallback
}

func tagNames(options []Option) []string {
	names := make([]string, 0, len(options))
	for _, opt := range options {
		if name := strings.TrimSpace(opt.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func publishedDate(date *DateValue, now time.Time) string {
	if date != nil {
		start := strings.TrimSpace(date.Start)
		if len(start) >= len(dateLayout) {
			if _, err := time.Parse(dateLayout, start[:len(dateLayout)]); err == nil {
				return start[:len(dateLayout)]
			}
		}
	}
	return now.Format(dateLayout)
}

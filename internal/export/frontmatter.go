package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-mirror/pkg/interfaces"
)

const fence = "---\n"

// FrontMatter is the YAML header written above each exported body.
type FrontMatter struct {
	Title       string   `yaml:"title"`
	Date        string   `yaml:"date"`
	Tags        []string `yaml:"tags,omitempty"`
	Slug        string   `yaml:"slug"`
	Description string   `yaml:"description,omitempty"`
	Type        string   `yaml:"type"`
	Category    string   `yaml:"category,omitempty"`
	Cover       string   `yaml:"cover,omitempty"`
	LastEdited  string   `yaml:"last_edited,omitempty"`
}

func frontMatterFor(doc interfaces.DocumentRecord, tags []string) FrontMatter {
	fm := FrontMatter{
		Title:       doc.Title,
		Date:        doc.PublishedDate,
		Tags:        append([]string(nil), tags...),
		Slug:        doc.Slug,
		Description: doc.Description,
		Type:        doc.Type,
	}
	if doc.Category != nil {
		fm.Category = *doc.Category
	}
	if doc.FeaturedImage != nil {
		fm.Cover = *doc.FeaturedImage
	}
	if doc.LastEdited != nil {
		fm.LastEdited = doc.LastEdited.UTC().Format(time.RFC3339)
	}
	return fm
}

// ParseFrontMatter splits an exported file into its header and body.
func ParseFrontMatter(source []byte) (FrontMatter, []byte, error) {
	var meta FrontMatter
	body, err := frontmatter.Parse(bytes.NewReader(source), &meta)
	if err != nil {
		return FrontMatter{}, nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	return meta, body, nil
}

func renderDocument(fm FrontMatter, body string) ([]byte, error) {
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(header) + len(body) + 2*len(fence) + 2)
	buf.WriteString(fence)
	buf.Write(header)
	buf.WriteString(fence)
	buf.WriteString("\n")
	buf.WriteString(body)
	if body != "" && body[len(body)-1] != '\n' {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

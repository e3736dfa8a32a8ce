// Package richtext renders annotated text spans as inline markdown.
package richtext

import "strings"

// Kind identifies the span variant.
type Kind string

const (
	KindText     Kind = "text"
	KindEquation Kind = "equation"
	KindMention  Kind = "mention"
)

// MentionPage is the mention type rendered with a page placeholder.
const MentionPage = "page"

// Annotations are the boolean styles carried by a span.
type Annotations struct {
	Bold          bool `json:"bold"`
	Italic        bool `json:"italic"`
	Strikethrough bool `json:"strikethrough"`
	Underline     bool `json:"underline"`
	Code          bool `json:"code"`
}

// Span is one run of uniformly styled text.
type Span struct {
	Kind        Kind
	Text        string
	Href        string
	Annotations Annotations
	// Expression holds the raw expression of equation spans.
	Expression string
	// MentionType names the mentioned object kind (page, user, date, ...).
	MentionType string
}

// Format concatenates the rendered spans in order.
func Format(spans []Span) string {
	var b strings.Builder
	for _, span := range spans {
		b.WriteString(formatSpan(span))
	}
	return b.String()
}

// Plain concatenates the unstyled span text.
func Plain(spans []Span) string {
	var b strings.Builder
	for _, span := range spans {
		if span.Kind == KindEquation && span.Text == "" {
			b.WriteString(span.Expression)
			continue
		}
		b.WriteString(span.Text)
	}
	return b.String()
}

func formatSpan(span Span) string {
	switch span.Kind {
	case KindEquation:
		expr := span.Expression
		if expr == "" {
			expr = span.Text
		}
		return "$" + expr + "$"
	case KindMention:
		if span.MentionType == MentionPage {
			return "@[Page: " + span.Text + "]"
		}
		return span.Text
	default:
		return styleText(span)
	}
}

// styleText applies code innermost, then bold, italic, strikethrough and
// underline, and finally wraps the result in a link when one is present.
func styleText(span Span) string {
	out := span.Text
	a := span.Annotations
	if a.Code {
		out = "`" + out + "`"
	}
	if a.Bold {
		out = "**" + out + "**"
	}
	if a.Italic {
		out = "*" + out + "*"
	}
	if a.Strikethrough {
		out = "~~" + out + "~~"
	}
	if a.Underline {
		out = "<u>" + out + "</u>"
	}
	if href := strings.TrimSpace(span.Href); href != "" {
		out = "[" + out + "](" + href + ")"
	}
	return out
}

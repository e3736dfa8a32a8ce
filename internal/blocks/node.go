// Package blocks defines the content node variants a document body is built from.
package blocks

import "github.com/goliatone/go-mirror/internal/richtext"

// Node is one element of a document's content tree. The set of variants is
// closed; converters switch over the concrete types below.
type Node interface {
	NodeID() string
	HasChildren() bool
	node()
}

// Base carries the fields every node shares.
type Base struct {
	ID       string
	Children bool
}

func (b Base) NodeID() string    { return b.ID }
func (b Base) HasChildren() bool { return b.Children }
func (Base) node()               {}

type Paragraph struct {
	Base
	Text []richtext.Span
}

// Heading levels are 1 through 3.
type Heading struct {
	Base
	Level int
	Text  []richtext.Span
}

type BulletedListItem struct {
	Base
	Text []richtext.Span
}

type NumberedListItem struct {
	Base
	Text []richtext.Span
}

type ToDo struct {
	Base
	Text    []richtext.Span
	Checked bool
}

type Quote struct {
	Base
	Text []richtext.Span
}

// Code keeps the raw spans; only the first span's plain text is rendered.
type Code struct {
	Base
	Text     []richtext.Span
	Language string
	Caption  []richtext.Span
}

type Divider struct {
	Base
}

// Image references an external or internally hosted file by URL.
type Image struct {
	Base
	URL     string
	Caption []richtext.Span
}

// Unsupported stands in for node types outside the rendered set. It keeps the
// remote type name for logging.
type Unsupported struct {
	Base
	Type string
}

// Page is one page of children returned by a cursor-paginated listing.
type Page struct {
	Nodes      []Node
	NextCursor string
	HasMore    bool
}

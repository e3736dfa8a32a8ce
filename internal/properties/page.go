package properties

import "github.com/goliatone/go-mirror/internal/richtext"

// Property value types understood by the parser.
const (
	TypeTitle       = "title"
	TypeRichText    = "rich_text"
	TypeSelect      = "select"
	TypeMultiSelect = "multi_select"
	TypeDate        = "date"
)

// Page is a remote document as returned by the database query: an id, the
// revision marker, an optional cover and the property bag.
type Page struct {
	ID             string
	LastEditedTime string
	Cover          *File
	Properties     map[string]Property
}

// File is a normalised cover reference. External and hosted variants both
// reduce to a URL.
type File struct {
	Type string
	URL  string
}

// Property is one typed entry in a page's property bag.
type Property struct {
	Type        string
	Title       []richtext.Span
	RichText    []richtext.Span
	Select      *Option
	MultiSelect []Option
	Date        *DateValue
}

type Option struct {
	ID   string
	Name string
}

type DateValue struct {
	Start string
	End   string
}

// Batch is one page of query results.
type Batch struct {
	Pages      []Page
	NextCursor string
	HasMore    bool
}

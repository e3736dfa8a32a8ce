package notion

import (
	"strings"

	"github.com/goliatone/go-mirror/internal/blocks"
	"github.com/goliatone/go-mirror/internal/properties"
	"github.com/goliatone/go-mirror/internal/richtext"
)

type queryRequest struct {
	Filter      *queryFilter `json:"filter,omitempty"`
	Sorts       []querySort  `json:"sorts,omitempty"`
	StartCursor string       `json:"start_cursor,omitempty"`
	PageSize    int          `json:"page_size,omitempty"`
}

type queryFilter struct {
	Property string           `json:"property"`
	Select   *selectCondition `json:"select,omitempty"`
}

type selectCondition struct {
	Equals string `json:"equals"`
}

type querySort struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

type listResponse[T any] struct {
	Results    []T     `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type richTextObject struct {
	Type        string               `json:"type"`
	PlainText   string               `json:"plain_text"`
	Href        *string              `json:"href"`
	Annotations richtext.Annotations `json:"annotations"`
	Text        *struct {
		Content string `json:"content"`
		Link    *struct {
			URL string `json:"url"`
		} `json:"link"`
	} `json:"text"`
	Equation *struct {
		Expression string `json:"expression"`
	} `json:"equation"`
	Mention *struct {
		Type string `json:"type"`
	} `json:"mention"`
}

func spans(objs []richTextObject) []richtext.Span {
	if len(objs) == 0 {
		return nil
	}
	out := make([]richtext.Span, 0, len(objs))
	for _, obj := range objs {
		out = append(out, obj.span())
	}
	return out
}

func (o richTextObject) span() richtext.Span {
	switch o.Type {
	case "equation":
		span := richtext.Span{Kind: richtext.KindEquation, Text: o.PlainText}
		if o.Equation != nil {
			span.Expression = o.Equation.Expression
		}
		return span
	case "mention":
		span := richtext.Span{Kind: richtext.KindMention, Text: o.PlainText}
		if o.Mention != nil {
			span.MentionType = o.Mention.Type
		}
		return span
	default:
		span := richtext.Span{
			Kind:        richtext.KindText,
			Text:        o.PlainText,
			Annotations: o.Annotations,
		}
		if o.Text != nil {
			span.Text = o.Text.Content
			if o.Text.Link != nil {
				span.Href = o.Text.Link.URL
			}
		}
		if span.Href == "" && o.Href != nil {
			span.Href = *o.Href
		}
		return span
	}
}

type fileObject struct {
	Type     string `json:"type"`
	External *struct {
		URL string `json:"url"`
	} `json:"external"`
	File *struct {
		URL string `json:"url"`
	} `json:"file"`
}

func (f *fileObject) url() string {
	if f == nil {
		return ""
	}
	switch {
	case f.Type == "external" && f.External != nil:
		return f.External.URL
	case f.Type == "file" && f.File != nil:
		return f.File.URL
	}
	return ""
}

type selectObject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type propertyObject struct {
	Type        string           `json:"type"`
	Title       []richTextObject `json:"title"`
	RichText    []richTextObject `json:"rich_text"`
	Select      *selectObject    `json:"select"`
	MultiSelect []selectObject   `json:"multi_select"`
	Date        *struct {
		Start string  `json:"start"`
		End   *string `json:"end"`
	} `json:"date"`
}

func (p propertyObject) property() properties.Property {
	prop := properties.Property{
		Type:     p.Type,
		Title:    spans(p.Title),
		RichText: spans(p.RichText),
	}
	if p.Select != nil {
		prop.Select = &properties.Option{ID: p.Select.ID, Name: p.Select.Name}
	}
	for _, opt := range p.MultiSelect {
		prop.MultiSelect = append(prop.MultiSelect, properties.Option{ID: opt.ID, Name: opt.Name})
	}
	if p.Date != nil {
		prop.Date = &properties.DateValue{Start: p.Date.Start}
		if p.Date.End != nil {
			prop.Date.End = *p.Date.End
		}
	}
	return prop
}

type pageObject struct {
	ID             string                    `json:"id"`
	LastEditedTime string                    `json:"last_edited_time"`
	Archived       bool                      `json:"archived"`
	InTrash        bool                      `json:"in_trash"`
	Cover          *fileObject               `json:"cover"`
	Properties     map[string]propertyObject `json:"properties"`
}

func (o pageObject) page() properties.Page {
	page := properties.Page{
		ID:             o.ID,
		LastEditedTime: o.LastEditedTime,
		Properties:     make(map[string]properties.Property, len(o.Properties)),
	}
	if u := o.Cover.url(); u != "" {
		page.Cover = &properties.File{Type: o.Cover.Type, URL: u}
	}
	for name, prop := range o.Properties {
		page.Properties[name] = prop.property()
	}
	return page
}

type textContent struct {
	RichText []richTextObject `json:"rich_text"`
	Checked  bool             `json:"checked"`
	Language string           `json:"language"`
	Caption  []richTextObject `json:"caption"`
}

type imageContent struct {
	fileObject
	Caption []richTextObject `json:"caption"`
}

type blockObject struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children"`
	Archived    bool   `json:"archived"`
	InTrash     bool   `json:"in_trash"`

	Paragraph        *textContent  `json:"paragraph"`
	Heading1         *textContent  `json:"heading_1"`
	Heading2         *textContent  `json:"heading_2"`
	Heading3         *textContent  `json:"heading_3"`
	BulletedListItem *textContent  `json:"bulleted_list_item"`
	NumberedListItem *textContent  `json:"numbered_list_item"`
	ToDo             *textContent  `json:"to_do"`
	Quote            *textContent  `json:"quote"`
	Code             *textContent  `json:"code"`
	Image            *imageContent `json:"image"`
}

func (o blockObject) node() blocks.Node {
	base := blocks.Base{ID: o.ID, Children: o.HasChildren}
	switch o.Type {
	case "paragraph":
		return blocks.Paragraph{Base: base, Text: o.Paragraph.text()}
	case "heading_1":
		return blocks.Heading{Base: base, Level: 1, Text: o.Heading1.text()}
	case "heading_2":
		return blocks.Heading{Base: base, Level: 2, Text: o.Heading2.text()}
	case "heading_3":
		return blocks.Heading{Base: base, Level: 3, Text: o.Heading3.text()}
	case "bulleted_list_item":
		return blocks.BulletedListItem{Base: base, Text: o.BulletedListItem.text()}
	case "numbered_list_item":
		return blocks.NumberedListItem{Base: base, Text: o.NumberedListItem.text()}
	case "to_do":
		node := blocks.ToDo{Base: base, Text: o.ToDo.text()}
		if o.ToDo != nil {
			node.Checked = o.ToDo.Checked
		}
		return node
	case "quote":
		return blocks.Quote{Base: base, Text: o.Quote.text()}
	case "code":
		node := blocks.Code{Base: base, Text: o.Code.text()}
		if o.Code != nil {
			node.Language = strings.TrimSpace(o.Code.Language)
			node.Caption = spans(o.Code.Caption)
		}
		return node
	case "divider":
		return blocks.Divider{Base: base}
	case "image":
		node := blocks.Image{Base: base}
		if o.Image != nil {
			node.URL = o.Image.url()
			node.Caption = spans(o.Image.Caption)
		}
		return node
	default:
		return blocks.Unsupported{Base: base, Type: o.Type}
	}
}

func (t *textContent) text() []richtext.Span {
	if t == nil {
		return nil
	}
	return spans(t.RichText)
}

// Package converter renders a remote block tree as a markdown document body.
package converter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-mirror/internal/assets"
	"github.com/goliatone/go-mirror/internal/blocks"
	"github.com/goliatone/go-mirror/internal/identity"
	"github.com/goliatone/go-mirror/internal/logging"
	"github.com/goliatone/go-mirror/internal/richtext"
	"github.com/goliatone/go-mirror/pkg/interfaces"
)

const (
	indentUnit      = "  "
	defaultLanguage = "plaintext"
	defaultAlt      = "image"
)

// ErrConversionFailed marks a body that could not be fully fetched.
var ErrConversionFailed = errors.New("converter: conversion failed")

// ChildSource lists the children of a node one cursor page at a time.
type ChildSource interface {
	ListChildren(ctx context.Context, nodeID, cursor string) (blocks.Page, error)
}

// AssetResolver materialises image nodes.
type AssetResolver interface {
	Resolve(ctx context.Context, req assets.Request) (string, error)
}

// Owner identifies the document whose body is being converted.
type Owner struct {
	DocumentID string
	Slug       string
}

// Result is the outcome of one conversion. Err is set when the tree could not
// be fetched; Body and Assets are then empty.
type Result struct {
	Body   string
	Assets AssetSet
	Err    error
}

// OK reports whether the conversion succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Converter walks block trees.
type Converter struct {
	source   ChildSource
	resolver AssetResolver
	logger   interfaces.Logger
}

func New(source ChildSource, resolver AssetResolver, logger interfaces.Logger) *Converter {
	return &Converter{
		source:   source,
		resolver: resolver,
		logger:   logging.Ensure(logger),
	}
}

// Convert renders the children of rootID. The returned asset set holds the
// separator-stripped ids of every image that carried a URL.
func (c *Converter) Convert(ctx context.Context, rootID string, owner Owner) Result {
	nodes, err := c.drain(ctx, rootID)
	if err != nil {
		c.logger.Error("converter.root.fetch_failed", "document_id", owner.DocumentID, "error", err)
		return Result{Err: err}
	}

	lines, refs, err := c.render(ctx, nodes, 0, owner)
	if err != nil {
		c.logger.Error("converter.tree.fetch_failed", "document_id", owner.DocumentID, "error", err)
		return Result{Err: err}
	}
	return Result{Body: strings.Join(tidy(lines), "\n"), Assets: refs}
}

// drain collects every page of children for nodeID before any rendering.
func (c *Converter) drain(ctx context.Context, nodeID string) ([]blocks.Node, error) {
	var (
		nodes  []blocks.Node
		cursor string
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConversionFailed, nodeID, err)
		}
		page, err := c.source.ListChildren(ctx, nodeID, cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: list children of %s: %w", ErrConversionFailed, nodeID, err)
		}
		nodes = append(nodes, page.Nodes...)
		if !page.HasMore || page.NextCursor == "" {
			return nodes, nil
		}
		cursor = page.NextCursor
	}
}

// render converts one sibling sequence. The returned lines are not yet tidied;
// nested fragments are tidied before being spliced in.
func (c *Converter) render(ctx context.Context, nodes []blocks.Node, level int, owner Owner) ([]string, AssetSet, error) {
	indent := strings.Repeat(indentUnit, level)
	var (
		lines []string
		refs  AssetSet
	)

	for _, node := range nodes {
		switch n := node.(type) {
		case blocks.Paragraph:
			text := richtext.Format(n.Text)
			if strings.TrimSpace(text) != "" || (len(lines) > 0 && !isBlank(lines[len(lines)-1])) {
				lines = append(lines, indent+text, "")
			}
		case blocks.Heading:
			lines = append(lines, indent+headingPrefix(n.Level)+richtext.Format(n.Text), "")
		case blocks.BulletedListItem:
			child, childRefs, err := c.item(ctx, indent+"- "+richtext.Format(n.Text), n, level, owner)
			if err != nil {
				return nil, AssetSet{}, err
			}
			lines = append(lines, child...)
			refs = refs.Union(childRefs)
		case blocks.NumberedListItem:
			child, childRefs, err := c.item(ctx, indent+"1. "+richtext.Format(n.Text), n, level, owner)
			if err != nil {
				return nil, AssetSet{}, err
			}
			lines = append(lines, child...)
			refs = refs.Union(childRefs)
		case blocks.ToDo:
			mark := "[ ] "
			if n.Checked {
				mark = "[x] "
			}
			child, childRefs, err := c.item(ctx, indent+"- "+mark+richtext.Format(n.Text), n, level, owner)
			if err != nil {
				return nil, AssetSet{}, err
			}
			lines = append(lines, child...)
			refs = refs.Union(childRefs)
		case blocks.Quote:
			for _, line := range strings.Split(richtext.Format(n.Text), "\n") {
				lines = append(lines, indent+"> "+line)
			}
			lines = append(lines, "")
		case blocks.Code:
			lines = append(lines, codeBlock(indent, n)...)
		case blocks.Divider:
			lines = append(lines, indent+"---", "")
		case blocks.Image:
			out, id := c.image(ctx, indent, n, owner)
			lines = append(lines, out...)
			if id != "" {
				refs = refs.Union(NewAssetSet(id))
			}
		case blocks.Unsupported:
			c.logger.Debug("converter.node.unsupported", "node_id", n.ID, "type", n.Type)
		default:
			c.logger.Debug("converter.node.unknown", "node_id", node.NodeID())
		}
	}
	return lines, refs, nil
}

// item renders a list-like line and, when the node has children, the nested
// fragment one level deeper.
func (c *Converter) item(ctx context.Context, line string, node blocks.Node, level int, owner Owner) ([]string, AssetSet, error) {
	out := []string{line}
	if !node.HasChildren() {
		return out, AssetSet{}, nil
	}
	children, err := c.drain(ctx, node.NodeID())
	if err != nil {
		return nil, AssetSet{}, err
	}
	nested, refs, err := c.render(ctx, children, level+1, owner)
	if err != nil {
		return nil, AssetSet{}, err
	}
	return append(out, tidy(nested)...), refs, nil
}

func (c *Converter) image(ctx context.Context, indent string, n blocks.Image, owner Owner) ([]string, string) {
	url := strings.TrimSpace(n.URL)
	if url == "" || strings.TrimSpace(n.ID) == "" {
		c.logger.Warn("converter.image.missing_source", "node_id", n.ID)
		return nil, ""
	}

	caption := richtext.Format(n.Caption)
	alt := caption
	if alt == "" {
		alt = defaultAlt
	}

	target := url
	resolved, err := c.resolver.Resolve(ctx, assets.Request{
		SourceURL:  url,
		Identity:   n.ID,
		DocumentID: owner.DocumentID,
		Slug:       owner.Slug,
		Caption:    caption,
	})
	if err != nil {
		c.logger.Warn("converter.image.degraded", "node_id", n.ID, "url", url, "error", err)
	} else {
		target = resolved
	}

	out := []string{indent + "![" + alt + "](" + target + ")"}
	if caption != "" {
		out = append(out, indent+"*"+caption+"*")
	}
	return append(out, ""), identity.AssetBase(n.ID)
}

func codeBlock(indent string, n blocks.Code) []string {
	language := strings.TrimSpace(n.Language)
	if language == "" {
		language = defaultLanguage
	}
	raw := ""
	if len(n.Text) > 0 {
		raw = n.Text[0].Text
	}
	out := []string{indent + "```" + language, raw, indent + "```"}
	if caption := richtext.Format(n.Caption); caption != "" {
		out = append(out, indent+"*"+caption+"*")
	}
	return append(out, "")
}

func headingPrefix(level int) string {
	switch {
	case level <= 1:
		return "# "
	case level == 2:
		return "## "
	default:
		return "### "
	}
}

// tidy collapses runs of blank lines to one and drops a single trailing blank.
func tidy(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if isBlank(line) {
			if len(out) > 0 && isBlank(out[len(out)-1]) {
				continue
			}
			line = ""
		}
		out = append(out, line)
	}
	if n := len(out); n > 0 && isBlank(out[n-1]) {
		out = out[:n-1]
	}
	return out
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// Package export writes mirrored documents to a directory as markdown files
// with YAML frontmatter.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/goliatone/go-mirror/internal/logging"
	"github.com/goliatone/go-mirror/internal/runtimeconfig"
	"github.com/goliatone/go-mirror/pkg/interfaces"
)

var (
	ErrDirectoryRequired = errors.New("export: directory required")
	ErrSlugInvalid       = errors.New("export: slug is invalid")
)

// Exporter writes <slug>.md (and optionally <slug>.html) files.
type Exporter struct {
	dir    string
	html   bool
	engine goldmark.Markdown
	logger interfaces.Logger
}

func New(cfg runtimeconfig.ExportConfig, logger interfaces.Logger) (*Exporter, error) {
	dir := strings.TrimSpace(cfg.Directory)
	if dir == "" {
		return nil, ErrDirectoryRequired
	}
	e := &Exporter{
		dir:    dir,
		html:   cfg.RenderHTML,
		logger: logging.Ensure(logger),
	}
	if e.html {
		e.engine = newEngine()
	}
	return e, nil
}

// Write exports doc. It reports false when the existing file already carries
// the same revision marker.
func (e *Exporter) Write(doc interfaces.DocumentRecord, tags []string) (bool, error) {
	mdPath, err := e.path(doc.Slug, ".md")
	if err != nil {
		return false, err
	}

	fm := frontMatterFor(doc, tags)
	if fm.LastEdited != "" {
		if existing, err := os.ReadFile(mdPath); err == nil {
			if current, _, err := ParseFrontMatter(existing); err == nil && current.LastEdited == fm.LastEdited {
				e.logger.Debug("export.document.unchanged", "slug", doc.Slug)
				return false, nil
			}
		}
	}

	content, err := renderDocument(fm, doc.Body)
	if err != nil {
		return false, err
	}
	if err := writeFile(mdPath, content); err != nil {
		return false, err
	}

	if e.html {
		htmlPath, _ := e.path(doc.Slug, ".html")
		rendered, err := renderHTML(e.engine, doc.Body)
		if err != nil {
			return true, err
		}
		if err := writeFile(htmlPath, rendered); err != nil {
			return true, err
		}
	}

	e.logger.Info("export.document.written", "slug", doc.Slug, "path", mdPath)
	return true, nil
}

// Remove deletes the exported files for slug. Missing files are ignored.
func (e *Exporter) Remove(slug string) error {
	var errs []error
	for _, ext := range []string{".md", ".html"} {
		path, err := e.path(slug, ext)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Exporter) path(slug, ext string) (string, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" || slug == "." || slug == ".." || strings.ContainsAny(slug, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrSlugInvalid, slug)
	}
	return filepath.Join(e.dir, slug+ext), nil
}

func writeFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("export: chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("export: rename %s: %w", path, err)
	}
	return nil
}

// Package assets downloads document images into a deterministic directory
// layout and records them in the store.
package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-mirror/internal/identity"
	"github.com/goliatone/go-mirror/internal/logging"
	"github.com/goliatone/go-mirror/pkg/interfaces"
)

const (
	primaryBase      = "cover"
	defaultExtension = ".png"
)

var (
	// ErrAssetUnavailable wraps every Resolve failure.
	ErrAssetUnavailable = errors.New("assets: asset unavailable")
	ErrInvalidRequest   = errors.New("assets: invalid resolve request")
)

// Sink is the subset of the store the resolver writes to.
type Sink interface {
	UpsertAsset(ctx context.Context, asset interfaces.AssetRecord) error
	GetAssetLocalPath(ctx context.Context, id string) (string, error)
	DeleteAsset(ctx context.Context, id string) error
}

// Request describes one asset to materialise.
type Request struct {
	SourceURL  string
	Identity   string
	DocumentID string
	Slug       string
	Caption    string
	// Primary marks the document cover, stored as cover<ext>.
	Primary bool
}

// Config tunes the resolver.
type Config struct {
	WebBasePath      string
	DefaultExtension string
	// RefreshPrimary re-downloads existing cover files.
	RefreshPrimary bool
	// RefreshBody re-downloads existing body image files.
	RefreshBody bool
}

// Resolver guarantees that an asset exists locally and is recorded.
type Resolver struct {
	fetcher    Fetcher
	files      *Files
	sink       Sink
	cfg        Config
	logger     interfaces.Logger
	now        func() time.Time
	defaultExt string
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(r *Resolver) {
		r.logger = logging.Ensure(logger)
	}
}

// WithClock overrides the timestamp source for created_at values.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func NewResolver(fetcher Fetcher, files *Files, sink Sink, cfg Config, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:    fetcher,
		files:      files,
		sink:       sink,
		cfg:        cfg,
		logger:     logging.NoOp(),
		now:        time.Now,
		defaultExt: strings.TrimSpace(cfg.DefaultExtension),
	}
	if r.defaultExt == "" {
		r.defaultExt = defaultExtension
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve downloads the asset when needed, upserts its row and returns the
// web path. A stale local file is served when the download fails.
func (r *Resolver) Resolve(ctx context.Context, req Request) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	ext := r.extension(ctx, req.SourceURL)
	name := fileBase(req) + ext
	localPath := r.files.Path(req.Slug, name)
	webPath := r.webPath(req.Slug, name)
	logger := logging.WithFields(r.logger, map[string]any{
		"document_id": req.DocumentID,
		"asset":       name,
		"primary":     req.Primary,
	})

	exists := r.files.Exists(req.Slug, name)
	if !exists || r.refresh(req.Primary) {
		if err := r.download(ctx, req.SourceURL, req.Slug, name); err != nil {
			if !exists {
				logger.Warn("assets.download.failed", "error", err)
				return "", fmt.Errorf("%w: %w", ErrAssetUnavailable, err)
			}
			logger.Warn("assets.download.stale_fallback", "error", err)
		} else {
			logger.Debug("assets.download.completed")
		}
	}

	record := interfaces.AssetRecord{
		ID:         RowID(req),
		DocumentID: req.DocumentID,
		LocalPath:  localPath,
		WebPath:    webPath,
		CreatedAt:  r.now().UTC(),
	}
	if caption := strings.TrimSpace(req.Caption); caption != "" {
		record.Caption = &caption
	}
	if err := r.sink.UpsertAsset(ctx, record); err != nil {
		logger.Error("assets.record.failed", "error", err)
		return "", fmt.Errorf("%w: record %s: %w", ErrAssetUnavailable, record.ID, err)
	}
	return webPath, nil
}

// Discard removes an asset row and, best effort, its file.
func (r *Resolver) Discard(ctx context.Context, id string) error {
	localPath, err := r.sink.GetAssetLocalPath(ctx, id)
	switch {
	case errors.Is(err, interfaces.ErrRecordNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("lookup asset %s: %w", id, err)
	}
	if err := r.files.Remove(localPath); err != nil {
		r.logger.Warn("assets.file.remove_failed", "asset_id", id, "path", localPath, "error", err)
	}
	if err := r.sink.DeleteAsset(ctx, id); err != nil {
		return fmt.Errorf("delete asset %s: %w", id, err)
	}
	return nil
}

// RemoveFile deletes a stored binary that no asset row points at anymore.
func (r *Resolver) RemoveFile(localPath string) error {
	return r.files.Remove(localPath)
}

// PruneDocumentDir drops the slug directory once it is empty.
func (r *Resolver) PruneDocumentDir(slug string) {
	r.files.PruneDir(slug)
}

// RowID is the asset row identity for req: the separator-stripped node id for
// body images and cover-<document id> for covers.
func RowID(req Request) string {
	if req.Primary {
		return identity.CoverAssetID(req.DocumentID)
	}
	return identity.AssetBase(req.Identity)
}

func (r *Resolver) refresh(primary bool) bool {
	if primary {
		return r.cfg.RefreshPrimary
	}
	return r.cfg.RefreshBody
}

func (r *Resolver) download(ctx context.Context, url, slug, name string) error {
	data, _, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return err
	}
	return r.files.Write(slug, name, data)
}

func (r *Resolver) extension(ctx context.Context, url string) string {
	if ext, ok := ExtensionFromURL(url); ok {
		return ext
	}
	contentType, err := r.fetcher.HeadContentType(ctx, url)
	if err != nil {
		r.logger.Debug("assets.probe.failed", "url", url, "error", err)
		return r.defaultExt
	}
	if ext, ok := ExtensionForContentType(contentType); ok {
		return ext
	}
	return r.defaultExt
}

func (r *Resolver) webPath(slug, name string) string {
	return strings.TrimRight(r.cfg.WebBasePath, "/") + "/" + slug + "/" + name
}

func fileBase(req Request) string {
	if req.Primary {
		return primaryBase
	}
	return identity.AssetBase(req.Identity)
}

func (req Request) validate() error {
	switch {
	case strings.TrimSpace(req.SourceURL) == "":
		return fmt.Errorf("%w: %w: source url is required", ErrAssetUnavailable, ErrInvalidRequest)
	case strings.TrimSpace(req.DocumentID) == "":
		return fmt.Errorf("%w: %w: document id is required", ErrAssetUnavailable, ErrInvalidRequest)
	case strings.TrimSpace(req.Slug) == "":
		return fmt.Errorf("%w: %w: slug is required", ErrAssetUnavailable, ErrInvalidRequest)
	case !req.Primary && identity.AssetBase(req.Identity) == "":
		return fmt.Errorf("%w: %w: identity is required", ErrAssetUnavailable, ErrInvalidRequest)
	}
	return nil
}

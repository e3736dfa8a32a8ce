// Package reconcile mirrors the remote document set into the store, one
// sequential pass at a time.
package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-mirror/internal/assets"
	"github.com/goliatone/go-mirror/internal/blocks"
	"github.com/goliatone/go-mirror/internal/converter"
	"github.com/goliatone/go-mirror/internal/identity"
	"github.com/goliatone/go-mirror/internal/logging"
	"github.com/goliatone/go-mirror/internal/properties"
	"github.com/goliatone/go-mirror/pkg/interfaces"
)

const (
	codeSourceUnavailable = "SYNC_SOURCE_UNAVAILABLE"
	codeStoreUnavailable  = "SYNC_STORE_UNAVAILABLE"
	codeInterrupted       = "SYNC_INTERRUPTED"

	// DefaultDocumentTimeout bounds the work on a single document once it has started.
	DefaultDocumentTimeout = 5 * time.Minute
)

// ErrMarkerInvalid marks a remote page whose revision marker could not be parsed.
var ErrMarkerInvalid = errors.New("reconcile: revision marker is invalid")

// DocumentSource enumerates active documents and their content trees.
type DocumentSource interface {
	QueryDocuments(ctx context.Context, cursor string) (properties.Batch, error)
	ListChildren(ctx context.Context, nodeID, cursor string) (blocks.Page, error)
}

// BodyConverter renders a document body.
type BodyConverter interface {
	Convert(ctx context.Context, rootID string, owner converter.Owner) converter.Result
}

// AssetResolver materialises covers and removes orphaned assets.
type AssetResolver interface {
	Resolve(ctx context.Context, req assets.Request) (string, error)
	Discard(ctx context.Context, id string) error
	RemoveFile(localPath string) error
	PruneDocumentDir(slug string)
}

// Exporter mirrors stored documents to files.
type Exporter interface {
	Write(doc interfaces.DocumentRecord, tags []string) (bool, error)
	Remove(slug string) error
}

// Options tune a single pass.
type Options struct {
	// DryRun classifies documents without converting or writing anything.
	DryRun bool
}

// Option customises an Engine.
type Option func(*Engine)

func WithLogger(logger interfaces.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.Ensure(logger)
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithDocumentTimeout overrides DefaultDocumentTimeout. Zero or negative disables it.
func WithDocumentTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.documentTimeout = timeout
	}
}

// WithExporter writes every created or updated document through exporter.
func WithExporter(exporter Exporter) Option {
	return func(e *Engine) {
		e.exporter = exporter
	}
}

// Engine runs reconciliation passes. It holds no state between passes.
type Engine struct {
	source    DocumentSource
	store     interfaces.Store
	converter BodyConverter
	resolver  AssetResolver
	exporter  Exporter
	logger    interfaces.Logger
	now       func() time.Time

	documentTimeout time.Duration
}

func New(source DocumentSource, store interfaces.Store, conv BodyConverter, resolver AssetResolver, opts ...Option) *Engine {
	e := &Engine{
		source:    source,
		store:     store,
		converter: conv,
		resolver:  resolver,
		logger:    logging.NoOp(),
		now:       time.Now,

		documentTimeout: DefaultDocumentTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Run executes one pass. Only enumeration failures and cancellation return an
// error; per-document failures are reported in the Result. Cancelling ctx stops
// the pass between documents: a document already started runs to completion.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	result := &Result{DryRun: opts.DryRun, StartedAt: e.now()}
	e.logger.Info("sync.pass.started", "dry_run", opts.DryRun)

	pages, err := e.enumerate(ctx)
	if err != nil {
		e.logger.Error("sync.pass.source_failed", "error", err)
		return result, goerrors.Wrap(err, goerrors.CategoryCommand, "enumerate remote documents").
			WithTextCode(codeSourceUnavailable)
	}
	persisted, err := e.store.ListDocumentIDs(ctx)
	if err != nil {
		e.logger.Error("sync.pass.store_failed", "error", err)
		return result, goerrors.Wrap(err, goerrors.CategoryCommand, "enumerate stored documents").
			WithTextCode(codeStoreUnavailable)
	}

	active := make(map[string]struct{}, len(pages))
	for _, page := range pages {
		active[strings.TrimSpace(page.ID)] = struct{}{}
	}

	for _, id := range persisted {
		if _, ok := active[id]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return e.interrupted(result, err)
		}
		docCtx, cancel := e.documentContext(ctx)
		e.remove(docCtx, id, opts, result)
		cancel()
	}

	seen := make(map[string]struct{}, len(pages))
	for _, page := range pages {
		id := strings.TrimSpace(page.ID)
		if _, dup := seen[id]; dup && id != "" {
			continue
		}
		seen[id] = struct{}{}
		if err := ctx.Err(); err != nil {
			return e.interrupted(result, err)
		}
		docCtx, cancel := e.documentContext(ctx)
		e.sync(docCtx, page, opts, result)
		cancel()
	}

	result.FinishedAt = e.now()
	e.logger.Info("sync.pass.completed",
		"dry_run", opts.DryRun,
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"deleted", result.Deleted,
		"failed", result.Failed,
		"duration", result.Duration(),
	)
	return result, nil
}

// documentContext detaches per-document work from the pass cancellation.
func (e *Engine) documentContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if e.documentTimeout <= 0 {
		return detached, func() {}
	}
	return context.WithTimeout(detached, e.documentTimeout)
}

func (e *Engine) interrupted(result *Result, err error) (*Result, error) {
	result.FinishedAt = e.now()
	e.logger.Warn("sync.pass.interrupted", "error", err)
	return result, goerrors.Wrap(err, goerrors.CategoryCommand, "sync pass interrupted").
		WithTextCode(codeInterrupted)
}

// enumerate drains every page of the active document query.
func (e *Engine) enumerate(ctx context.Context) ([]properties.Page, error) {
	var (
		pages  []properties.Page
		cursor string
	)
	for {
		batch, err := e.source.QueryDocuments(ctx, cursor)
		if err != nil {
			return nil, err
		}
		pages = append(pages, batch.Pages...)
		if !batch.HasMore || batch.NextCursor == "" || batch.NextCursor == cursor {
			return pages, nil
		}
		cursor = batch.NextCursor
	}
}

// remove deletes a document that is no longer active along with its assets
// and exported files.
func (e *Engine) remove(ctx context.Context, id string, opts Options, result *Result) {
	slug := ""
	if doc, err := e.store.GetDocument(ctx, id); err == nil {
		slug = doc.Slug
	}
	logger := logging.WithDocumentContext(e.logger, id, slug, "delete")

	if opts.DryRun {
		result.Deleted++
		logger.Info("sync.document.would_delete")
		return
	}

	assetIDs, err := e.store.ListAssetIDs(ctx, id)
	if err != nil {
		logger.Warn("sync.document.assets_unlisted", "error", err)
	}
	for _, assetID := range assetIDs {
		if err := e.resolver.Discard(ctx, assetID); err != nil {
			logger.Warn("sync.asset.discard_failed", "asset_id", assetID, "error", err)
		}
	}

	if err := e.store.DeleteDocument(ctx, id); err != nil {
		logger.Error("sync.document.failed", "stage", StageDelete, "error", err)
		result.record(&DocumentError{DocumentID: id, Slug: slug, Stage: StageDelete, Err: err}, true)
		return
	}

	if slug != "" {
		e.resolver.PruneDocumentDir(slug)
		if e.exporter != nil {
			if err := e.exporter.Remove(slug); err != nil {
				logger.Warn("sync.export.remove_failed", "error", err)
				result.record(&DocumentError{DocumentID: id, Slug: slug, Stage: StageExport, Err: err}, false)
			}
		}
	}
	result.Deleted++
	logger.Info("sync.document.deleted", "assets", len(assetIDs))
}

// sync brings one remote document up to date.
func (e *Engine) sync(ctx context.Context, page properties.Page, opts Options, result *Result) {
	meta, err := properties.Parse(page, e.now())
	if err != nil {
		e.logger.Warn("sync.document.failed", "document_id", page.ID, "stage", StageParse, "error", err)
		result.record(&DocumentError{DocumentID: page.ID, Stage: StageParse, Err: err}, true)
		return
	}
	logger := logging.WithDocumentContext(e.logger, meta.ID, meta.Slug, "upsert")
	fail := func(stage Stage, err error, fatal bool) {
		if fatal {
			logger.Error("sync.document.failed", "stage", stage, "error", err)
		} else {
			logger.Warn("sync.document.degraded", "stage", stage, "error", err)
		}
		result.record(&DocumentError{DocumentID: meta.ID, Slug: meta.Slug, Stage: stage, Err: err}, fatal)
	}

	if meta.LastEdited == nil {
		fail(StageParse, ErrMarkerInvalid, true)
		return
	}

	stored, exists, err := e.store.GetDocumentLastEdited(ctx, meta.ID)
	if err != nil {
		fail(StageLookup, err, true)
		return
	}
	if exists && stored != nil && !stored.Before(*meta.LastEdited) {
		result.Skipped++
		logger.Debug("sync.document.skipped", "last_edited", meta.LastEdited)
		return
	}

	if opts.DryRun {
		if exists {
			result.Updated++
			logger.Info("sync.document.would_update", "last_edited", meta.LastEdited)
		} else {
			result.Created++
			logger.Info("sync.document.would_create", "last_edited", meta.LastEdited)
		}
		return
	}

	var (
		previousSlug string
		stale        []interfaces.AssetRecord
	)
	if exists {
		if prev, err := e.store.GetDocument(ctx, meta.ID); err == nil {
			previousSlug = prev.Slug
		}
	}
	moved := previousSlug != "" && previousSlug != meta.Slug
	if moved {
		if stale, err = e.store.ListAssets(ctx, meta.ID); err != nil {
			logger.Warn("sync.assets.unlisted", "error", err)
		}
	}

	body := e.converter.Convert(ctx, meta.ID, converter.Owner{DocumentID: meta.ID, Slug: meta.Slug})
	if !body.OK() {
		fail(StageConvert, body.Err, true)
		return
	}

	referenced := body.Assets
	var featured *string
	if meta.CoverURL != "" {
		webPath, err := e.resolver.Resolve(ctx, assets.Request{
			SourceURL:  meta.CoverURL,
			Identity:   meta.ID,
			DocumentID: meta.ID,
			Slug:       meta.Slug,
			Primary:    true,
		})
		if err != nil {
			logger.Warn("sync.cover.unavailable", "error", err)
		} else {
			featured = &webPath
			referenced = referenced.Union(converter.NewAssetSet(identity.CoverAssetID(meta.ID)))
		}
	}

	record := interfaces.DocumentRecord{
		ID:            meta.ID,
		Slug:          meta.Slug,
		Title:         meta.Title,
		Description:   meta.Description,
		Body:          body.Body,
		Category:      meta.Category,
		Type:          meta.Type,
		PublishedDate: meta.PublishedDate,
		FeaturedImage: featured,
		LastEdited:    meta.LastEdited,
	}
	created, err := e.store.UpsertDocument(ctx, record)
	if err != nil {
		fail(StageUpsert, err, true)
		return
	}

	if err := e.store.ReplaceDocumentTags(ctx, meta.ID, meta.Tags); err != nil {
		fail(StageTags, err, false)
	}

	e.cleanupOrphans(ctx, meta.ID, referenced, logger, fail)
	if moved {
		e.releaseSlugDir(ctx, meta.ID, previousSlug, stale, logger, fail)
	}

	if e.exporter != nil {
		if moved {
			if err := e.exporter.Remove(previousSlug); err != nil {
				fail(StageExport, err, false)
			}
		}
		if _, err := e.exporter.Write(record, meta.Tags); err != nil {
			fail(StageExport, err, false)
		}
	}

	if created {
		result.Created++
		logger.Info("sync.document.created", "assets", referenced.Len())
	} else {
		result.Updated++
		logger.Info("sync.document.updated", "assets", referenced.Len())
	}
}

// cleanupOrphans discards stored assets of documentID that the current body
// and cover no longer reference.
func (e *Engine) cleanupOrphans(ctx context.Context, documentID string, referenced converter.AssetSet, logger interfaces.Logger, fail func(Stage, error, bool)) {
	stored, err := e.store.ListAssetIDs(ctx, documentID)
	if err != nil {
		fail(StageAssets, err, false)
		return
	}
	for _, id := range stored {
		if referenced.Contains(id) {
			continue
		}
		if err := e.resolver.Discard(ctx, id); err != nil {
			fail(StageAssets, err, false)
			continue
		}
		logger.Debug("sync.asset.orphan_removed", "asset_id", id)
	}
}

// releaseSlugDir removes the files a renamed document left under its previous
// slug directory. Files still referenced by an asset row are kept.
func (e *Engine) releaseSlugDir(ctx context.Context, documentID, previousSlug string, stale []interfaces.AssetRecord, logger interfaces.Logger, fail func(Stage, error, bool)) {
	current, err := e.store.ListAssets(ctx, documentID)
	if err != nil {
		fail(StageAssets, err, false)
		return
	}
	inUse := make(map[string]struct{}, len(current))
	for _, asset := range current {
		inUse[asset.LocalPath] = struct{}{}
	}
	for _, asset := range stale {
		if _, ok := inUse[asset.LocalPath]; ok {
			continue
		}
		if err := e.resolver.RemoveFile(asset.LocalPath); err != nil {
			fail(StageAssets, err, false)
		}
	}
	e.resolver.PruneDocumentDir(previousSlug)
	logger.Debug("sync.document.slug_moved", "previous_slug", previousSlug)
}

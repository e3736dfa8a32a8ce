// Package store persists mirrored documents, assets and tags.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-mirror/pkg/interfaces"
	"github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// ErrNotFound aliases the shared not-found sentinel.
var ErrNotFound = interfaces.ErrRecordNotFound

var errDatabaseRequired = errors.New("store: bun store requires a database")

// Option customises a BunStore.
type Option func(*BunStore)

// WithTagCache places tag lookups behind a go-repository-cache service.
func WithTagCache(service cache.CacheService, serializer cache.KeySerializer) Option {
	return func(s *BunStore) {
		s.cacheService = service
		s.keySerializer = serializer
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *BunStore) {
		if now != nil {
			s.now = now
		}
	}
}

// BunStore implements interfaces.Store on top of bun.
type BunStore struct {
	db   *bun.DB
	tags *Tags
	now  func() time.Time

	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
}

var _ interfaces.Store = (*BunStore)(nil)

func NewBunStore(db *bun.DB, opts ...Option) *BunStore {
	s := &BunStore{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if db != nil {
		s.tags = NewTags(db, s.cacheService, s.keySerializer)
		s.tags.now = s.now
	}
	return s
}

// Tags exposes the tag repository.
func (s *BunStore) Tags() *Tags { return s.tags }

func (s *BunStore) UpsertDocument(ctx context.Context, doc interfaces.DocumentRecord) (bool, error) {
	if s.db == nil {
		return false, errDatabaseRequired
	}
	if strings.TrimSpace(doc.ID) == "" {
		return false, errors.New("store: document id required")
	}

	created := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var existing documentModel
		err := tx.NewSelect().Model(&existing).Column("id", "created_at").Where("id = ?", doc.ID).Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			created = true
		case err != nil:
			return err
		}

		now := s.now().UTC()
		model := documentFromRecord(doc)
		model.UpdatedAt = now
		if created {
			model.CreatedAt = now
			_, err = tx.NewInsert().Model(&model).Exec(ctx)
			return err
		}
		model.CreatedAt = existing.CreatedAt
		_, err = tx.NewUpdate().
			Model(&model).
			Column("slug", "title", "description", "body", "category", "type",
				"published_date", "featured_image", "remote_last_edited", "updated_at").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("store: upsert document %s: %w", doc.ID, err)
	}
	return created, nil
}

func (s *BunStore) GetDocumentLastEdited(ctx context.Context, id string) (*time.Time, bool, error) {
	if s.db == nil {
		return nil, false, errDatabaseRequired
	}
	var model documentModel
	err := s.db.NewSelect().Model(&model).Column("id", "remote_last_edited").Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return normalizeMarker(model.RemoteLastEdited), true, nil
}

func (s *BunStore) GetDocument(ctx context.Context, id string) (*interfaces.DocumentRecord, error) {
	if s.db == nil {
		return nil, errDatabaseRequired
	}
	var model documentModel
	if err := s.db.NewSelect().Model(&model).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
		}
		return nil, err
	}
	rec := model.record()
	return &rec, nil
}

func (s *BunStore) ListDocumentIDs(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, errDatabaseRequired
	}
	var ids []string
	if err := s.db.NewSelect().Model((*documentModel)(nil)).Column("id").Order("id ASC").Scan(ctx, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteDocument removes the document with its tag links and asset rows. The
// dependants are deleted explicitly so the result does not depend on the
// driver enforcing foreign keys.
func (s *BunStore) DeleteDocument(ctx context.Context, id string) error {
	if s.db == nil {
		return errDatabaseRequired
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*documentTagModel)(nil)).Where("document_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*assetModel)(nil)).Where("document_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*documentModel)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	})
}

func (s *BunStore) ReplaceDocumentTags(ctx context.Context, documentID string, names []string) error {
	if s.db == nil {
		return errDatabaseRequired
	}
	names = normalizeTagNames(names)
	links := make([]documentTagModel, 0, len(names))
	for _, name := range names {
		tag, err := s.tags.Ensure(ctx, name)
		if err != nil {
			return err
		}
		links = append(links, documentTagModel{DocumentID: documentID, TagID: tag.ID})
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*documentTagModel)(nil)).Where("document_id = ?", documentID).Exec(ctx); err != nil {
			return err
		}
		if len(links) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&links).Exec(ctx)
		return err
	})
}

func (s *BunStore) ListDocumentTags(ctx context.Context, documentID string) ([]string, error) {
	if s.db == nil {
		return nil, errDatabaseRequired
	}
	var names []string
	err := s.db.NewSelect().
		Model((*Tag)(nil)).
		ColumnExpr("t.name").
		Join("JOIN document_tags AS dt ON dt.tag_id = t.id").
		Where("dt.document_id = ?", documentID).
		Order("t.name ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (s *BunStore) UpsertAsset(ctx context.Context, asset interfaces.AssetRecord) error {
	if s.db == nil {
		return errDatabaseRequired
	}
	model := assetFromRecord(asset)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = s.now().UTC()
	}
	_, err := s.db.NewInsert().
		Model(&model).
		On("CONFLICT (id) DO UPDATE").
		Set("document_id = EXCLUDED.document_id").
		Set("local_path = EXCLUDED.local_path").
		Set("web_path = EXCLUDED.web_path").
		Set("caption = EXCLUDED.caption").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store: upsert asset %s: %w", asset.ID, err)
	}
	return nil
}

func (s *BunStore) DeleteAsset(ctx context.Context, id string) error {
	if s.db == nil {
		return errDatabaseRequired
	}
	_, err := s.db.NewDelete().Model((*assetModel)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (s *BunStore) ListAssetIDs(ctx context.Context, documentID string) ([]string, error) {
	if s.db == nil {
		return nil, errDatabaseRequired
	}
	var ids []string
	err := s.db.NewSelect().
		Model((*assetModel)(nil)).
		Column("id").
		Where("document_id = ?", documentID).
		Order("id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *BunStore) ListAssets(ctx context.Context, documentID string) ([]interfaces.AssetRecord, error) {
	if s.db == nil {
		return nil, errDatabaseRequired
	}
	var models []assetModel
	if err := s.db.NewSelect().Model(&models).Where("document_id = ?", documentID).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]interfaces.AssetRecord, len(models))
	for i := range models {
		out[i] = models[i].record()
	}
	return out, nil
}

func (s *BunStore) GetAssetLocalPath(ctx context.Context, id string) (string, error) {
	if s.db == nil {
		return "", errDatabaseRequired
	}
	var model assetModel
	if err := s.db.NewSelect().Model(&model).Column("id", "local_path").Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: asset %s", ErrNotFound, id)
		}
		return "", err
	}
	return model.LocalPath, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-mirror/internal/identity"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	ErrTagNameRequired = errors.New("store: tag name required")
	// ErrTagIdentityConflict reports a derived tag id already owned by another name.
	ErrTagIdentityConflict = errors.New("store: tag id already used by another name")
)

// NewTagRepository builds the generic repository for tags.
func NewTagRepository(db *bun.DB) repository.Repository[*Tag] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Tag]{
		NewRecord: func() *Tag { return &Tag{} },
		GetID: func(t *Tag) uuid.UUID {
			return t.ID
		},
		SetID: func(t *Tag, id uuid.UUID) {
			t.ID = id
		},
		GetIdentifier: func() string {
			return "name"
		},
		GetIdentifierValue: func(t *Tag) string {
			return t.Name
		},
	})
}

// Tags resolves tag names to rows, creating them on first use.
type Tags struct {
	repo repository.Repository[*Tag]
	now  func() time.Time
}

// NewTags wraps the tag repository, optionally behind a read-through cache.
func NewTags(db *bun.DB, cacheService cache.CacheService, keySerializer cache.KeySerializer) *Tags {
	var repo repository.Repository[*Tag] = NewTagRepository(db)
	if cacheService != nil && keySerializer != nil {
		repo = repositorycache.New(repo, cacheService, keySerializer)
	}
	return &Tags{repo: repo, now: time.Now}
}

// Ensure returns the tag named name, inserting it when missing.
func (t *Tags) Ensure(ctx context.Context, name string) (*Tag, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrTagNameRequired
	}
	id := identity.TagUUID(trimmed)

	existing, err := t.repo.GetByID(ctx, id.String())
	if err == nil {
		if existing.Name != trimmed {
			return nil, fmt.Errorf("%w: %q and %q", ErrTagIdentityConflict, existing.Name, trimmed)
		}
		return existing, nil
	}
	if !goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return nil, fmt.Errorf("store: lookup tag %q: %w", trimmed, err)
	}

	created, err := t.repo.Create(ctx, &Tag{
		ID:        id,
		Name:      trimmed,
		CreatedAt: t.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("store: create tag %q: %w", trimmed, err)
	}
	return created, nil
}

// GetByName looks a tag up by its name.
func (t *Tags) GetByName(ctx context.Context, name string) (*Tag, error) {
	tag, err := t.repo.GetByIdentifier(ctx, strings.TrimSpace(name))
	if err != nil {
		if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
			return nil, fmt.Errorf("%w: tag %q", ErrNotFound, name)
		}
		return nil, err
	}
	return tag, nil
}

// List returns every tag ordered by name.
func (t *Tags) List(ctx context.Context) ([]*Tag, error) {
	records, _, err := t.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.name ASC")
		}),
	)
	return records, err
}

// normalizeTagNames trims, drops empties and removes duplicates keeping the
// first occurrence.
func normalizeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-mirror/internal/identity"
	"github.com/goliatone/go-mirror/pkg/interfaces"
	"github.com/google/uuid"
)

// Memory is an in-process Store used by tests and dry runs.
type Memory struct {
	mu        sync.RWMutex
	documents map[string]interfaces.DocumentRecord
	assets    map[string]interfaces.AssetRecord
	tags      map[uuid.UUID]string
	links     map[string][]uuid.UUID
	now       func() time.Time
}

var _ interfaces.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		documents: make(map[string]interfaces.DocumentRecord),
		assets:    make(map[string]interfaces.AssetRecord),
		tags:      make(map[uuid.UUID]string),
		links:     make(map[string][]uuid.UUID),
		now:       time.Now,
	}
}

func (m *Memory) UpsertDocument(_ context.Context, doc interfaces.DocumentRecord) (bool, error) {
	if strings.TrimSpace(doc.ID) == "" {
		return false, errors.New("store: document id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, other := range m.documents {
		if id != doc.ID && other.Slug == doc.Slug {
			return false, fmt.Errorf("store: upsert document %s: slug %q already used by %s", doc.ID, doc.Slug, id)
		}
	}

	now := m.now().UTC()
	existing, ok := m.documents[doc.ID]
	doc.LastEdited = normalizeMarker(doc.LastEdited)
	doc.UpdatedAt = now
	if ok {
		doc.CreatedAt = existing.CreatedAt
	} else {
		doc.CreatedAt = now
	}
	m.documents[doc.ID] = doc
	return !ok, nil
}

func (m *Memory) GetDocumentLastEdited(_ context.Context, id string) (*time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, false, nil
	}
	return normalizeMarker(doc.LastEdited), true, nil
}

func (m *Memory) GetDocument(_ context.Context, id string) (*interfaces.DocumentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	return &doc, nil
}

func (m *Memory) ListDocumentIDs(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.documents)), nil
}

func (m *Memory) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, id)
	delete(m.links, id)
	for assetID, asset := range m.assets {
		if asset.DocumentID == id {
			delete(m.assets, assetID)
		}
	}
	return nil
}

// ReplaceDocumentTags keys tags by identity.TagUUID, like BunStore.
func (m *Memory) ReplaceDocumentTags(_ context.Context, documentID string, names []string) error {
	names = normalizeTagNames(names)
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		id := identity.TagUUID(name)
		if existing, ok := m.tags[id]; ok && existing != name {
			return fmt.Errorf("%w: %q and %q", ErrTagIdentityConflict, existing, name)
		}
		ids = append(ids, id)
	}
	for i, id := range ids {
		m.tags[id] = names[i]
	}
	m.links[documentID] = ids
	return nil
}

func (m *Memory) ListDocumentTags(_ context.Context, documentID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.links[documentID]))
	for _, id := range m.links[documentID] {
		out = append(out, m.tags[id])
	}
	slices.Sort(out)
	return out, nil
}

// TagNames returns every tag ever created.
func (m *Memory) TagNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Values(m.tags))
}

func (m *Memory) UpsertAsset(_ context.Context, asset interfaces.AssetRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.TrimSpace(asset.ID) == "" {
		return errors.New("store: asset id required")
	}
	if existing, ok := m.assets[asset.ID]; ok {
		asset.CreatedAt = existing.CreatedAt
	} else if asset.CreatedAt.IsZero() {
		asset.CreatedAt = m.now().UTC()
	}
	m.assets[asset.ID] = asset
	return nil
}

func (m *Memory) DeleteAsset(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assets, id)
	return nil
}

func (m *Memory) ListAssetIDs(_ context.Context, documentID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, asset := range m.assets {
		if asset.DocumentID == documentID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *Memory) ListAssets(_ context.Context, documentID string) ([]interfaces.AssetRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []interfaces.AssetRecord
	for _, asset := range m.assets {
		if asset.DocumentID == documentID {
			out = append(out, asset)
		}
	}
	slices.SortFunc(out, func(a, b interfaces.AssetRecord) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *Memory) GetAssetLocalPath(_ context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	asset, ok := m.assets[id]
	if !ok {
		return "", fmt.Errorf("%w: asset %s", ErrNotFound, id)
	}
	return asset.LocalPath, nil
}

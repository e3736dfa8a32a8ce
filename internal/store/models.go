package store

import (
	"time"

	"github.com/goliatone/go-mirror/pkg/interfaces"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type documentModel struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID               string     `bun:"id,pk"`
	Slug             string     `bun:"slug,notnull,unique"`
	Title            string     `bun:"title,notnull"`
	Description      string     `bun:"description,notnull"`
	Body             string     `bun:"body,notnull"`
	Category         *string    `bun:"category"`
	Type             string     `bun:"type,notnull"`
	PublishedDate    string     `bun:"published_date,notnull"`
	FeaturedImage    *string    `bun:"featured_image"`
	RemoteLastEdited *time.Time `bun:"remote_last_edited,nullzero"`
	CreatedAt        time.Time  `bun:"created_at,notnull"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull"`
}

type assetModel struct {
	bun.BaseModel `bun:"table:assets,alias:a"`

	ID         string    `bun:"id,pk"`
	DocumentID string    `bun:"document_id,notnull"`
	LocalPath  string    `bun:"local_path,notnull"`
	WebPath    string    `bun:"web_path,notnull,unique"`
	Caption    *string   `bun:"caption"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

// Tag is a label shared across documents. Its id is derived from the name.
type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:t"`

	ID        uuid.UUID `bun:",pk,type:uuid"   json:"id"`
	Name      string    `bun:"name,notnull,unique" json:"name"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

type documentTagModel struct {
	bun.BaseModel `bun:"table:document_tags,alias:dt"`

	DocumentID string    `bun:"document_id,pk"`
	TagID      uuid.UUID `bun:"tag_id,pk,type:uuid"`
}

func documentFromRecord(rec interfaces.DocumentRecord) documentModel {
	return documentModel{
		ID:               rec.ID,
		Slug:             rec.Slug,
		Title:            rec.Title,
		Description:      rec.Description,
		Body:             rec.Body,
		Category:         rec.Category,
		Type:             rec.Type,
		PublishedDate:    rec.PublishedDate,
		FeaturedImage:    rec.FeaturedImage,
		RemoteLastEdited: normalizeMarker(rec.LastEdited),
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
}

func (m *documentModel) record() interfaces.DocumentRecord {
	return interfaces.DocumentRecord{
		ID:            m.ID,
		Slug:          m.Slug,
		Title:         m.Title,
		Description:   m.Description,
		Body:          m.Body,
		Category:      m.Category,
		Type:          m.Type,
		PublishedDate: m.PublishedDate,
		FeaturedImage: m.FeaturedImage,
		LastEdited:    normalizeMarker(m.RemoteLastEdited),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func assetFromRecord(rec interfaces.AssetRecord) assetModel {
	return assetModel{
		ID:         rec.ID,
		DocumentID: rec.DocumentID,
		LocalPath:  rec.LocalPath,
		WebPath:    rec.WebPath,
		Caption:    rec.Caption,
		CreatedAt:  rec.CreatedAt,
	}
}

func (m *assetModel) record() interfaces.AssetRecord {
	return interfaces.AssetRecord{
		ID:         m.ID,
		DocumentID: m.DocumentID,
		LocalPath:  m.LocalPath,
		WebPath:    m.WebPath,
		Caption:    m.Caption,
		CreatedAt:  m.CreatedAt,
	}
}

// normalizeMarker keeps revision markers comparable across drivers.
func normalizeMarker(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC().Truncate(time.Second)
	return &v
}

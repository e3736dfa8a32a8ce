package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrRecordNotFound is returned by Store implementations when the requested row does not exist.
var ErrRecordNotFound = errors.New("store: record not found")

// DocumentRecord is the persisted shape of a mirrored document.
type DocumentRecord struct {
	ID            string
	Slug          string
	Title         string
	Description   string
	Body          string
	Category      *string
	Type          string
	PublishedDate string
	FeaturedImage *string
	// LastEdited is the remote revision marker at second precision (UTC).
	LastEdited *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AssetRecord links a downloaded binary to its owning document.
type AssetRecord struct {
	ID         string
	DocumentID string
	LocalPath  string
	WebPath    string
	Caption    *string
	CreatedAt  time.Time
}

// Store is the relational sink used by the reconciliation pass. Every method
// is a single statement or a short transaction; callers never hold a
// transaction across remote calls.
type Store interface {
	// UpsertDocument inserts or updates by ID and reports whether a row was created.
	UpsertDocument(ctx context.Context, doc DocumentRecord) (bool, error)
	// GetDocumentLastEdited returns the stored marker and whether the document exists.
	GetDocumentLastEdited(ctx context.Context, id string) (*time.Time, bool, error)
	GetDocument(ctx context.Context, id string) (*DocumentRecord, error)
	ListDocumentIDs(ctx context.Context) ([]string, error)
	// DeleteDocument removes the document row; tag links and asset rows cascade.
	DeleteDocument(ctx context.Context, id string) error
	// ReplaceDocumentTags swaps the document's tag links for the supplied names.
	// Tags are created on demand and never removed.
	ReplaceDocumentTags(ctx context.Context, documentID string, names []string) error
	ListDocumentTags(ctx context.Context, documentID string) ([]string, error)

	UpsertAsset(ctx context.Context, asset AssetRecord) error
	DeleteAsset(ctx context.Context, id string) error
	ListAssetIDs(ctx context.Context, documentID string) ([]string, error)
	ListAssets(ctx context.Context, documentID string) ([]AssetRecord, error)
	// GetAssetLocalPath returns ErrRecordNotFound when the asset is unknown.
	GetAssetLocalPath(ctx context.Context, id string) (string, error)
}

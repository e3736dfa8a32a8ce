package identity

import (
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

const coverPrefix = "cover-"

// UUID derives a deterministic UUID from a stable key using go-hashid. The key
// is hashed verbatim after trimming: case and punctuation are significant.
//
// Callers must prefix keys by entity type so identifiers cannot collide.
func UUID(key string) uuid.UUID {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return uuid.Nil
	}
	uid, err := hashid.NewUUID(trimmed, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(false))
	if err != nil || uid == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(trimmed))
	}
	return uid
}

// TagUUID returns the identifier for a tag name. Names are compared exactly
// after trimming, so "Go" and "go" are distinct tags.
func TagUUID(name string) uuid.UUID {
	return UUID("go-mirror:tag:" + strings.TrimSpace(name))
}

// AssetBase strips identifier separators so node ids can be used as file names.
func AssetBase(nodeID string) string {
	return strings.ReplaceAll(strings.TrimSpace(nodeID), "-", "")
}

// CoverAssetID is the asset row identity of a document's primary image.
func CoverAssetID(documentID string) string {
	return coverPrefix + strings.TrimSpace(documentID)
}

// IsCoverAssetID reports whether id names a primary image row.
func IsCoverAssetID(id string) bool {
	return strings.HasPrefix(id, coverPrefix)
}

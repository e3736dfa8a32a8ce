package assets

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

var imageExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".svg": {},
	".bmp": {}, ".avif": {}, ".tif": {}, ".tiff": {}, ".ico": {},
}

var contentTypeExtensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/jpg":     ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
	"image/avif":    ".avif",
	"image/bmp":     ".bmp",
}

// ExtensionFromURL returns the lowercased extension of the URL path when it
// names a known image format. Query strings and fragments are ignored.
func ExtensionFromURL(raw string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	if _, ok := imageExtensions[ext]; !ok {
		return "", false
	}
	return ext, true
}

// ExtensionForContentType maps an image media type to a file extension.
func ExtensionForContentType(contentType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(contentType)
	}
	ext, ok := contentTypeExtensions[strings.ToLower(mediaType)]
	return ext, ok
}

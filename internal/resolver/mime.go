package resolver

import (
	"path/filepath"
	"strings"
)

// DefaultContentType is served for extensions outside the MIME table.
const DefaultContentType = "application/octet-stream"

// mimeTypes is the fixed extension table. Lookups are pure and stateless.
var mimeTypes = map[string]string{
	".html": "text/html",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

// ContentType maps a file name to its MIME type by extension,
// case-insensitively. Unknown extensions fall back to a generic binary type.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if mime, ok := mimeTypes[ext]; ok {
		return mime
	}
	return DefaultContentType
}

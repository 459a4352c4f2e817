package deploy

import (
	"mime"
	"path"
	"strings"
)

// DefaultContentType is the MIME type of files having no known mapping.
const DefaultContentType = "application/octet-stream"

// ContentTypeFunc maps a file path to its MIME type.
type ContentTypeFunc func(path string) string

// Types which static sites commonly serve. Platform MIME tables vary, and
// may lack some of these entirely.
var siteContentTypes = map[string]string{
	".avif":        "image/avif",
	".css":         "text/css",
	".gif":         "image/gif",
	".htm":         "text/html",
	".html":        "text/html",
	".jpeg":        "image/jpeg",
	".jpg":         "image/jpeg",
	".png":         "image/png",
	".svg":         "image/svg+xml",
	".ico":         "image/vnd.microsoft.icon",
	".js":          "application/javascript",
	".json":        "application/json",
	".map":         "application/json",
	".md":          "text/markdown",
	".mjs":         "application/javascript",
	".otf":         "font/otf",
	".ttf":         "font/ttf",
	".txt":         "text/plain",
	".wasm":        "application/wasm",
	".webmanifest": "application/manifest+json",
	".webp":        "image/webp",
	".woff":        "font/woff",
	".woff2":       "font/woff2",
	".xml":         "application/xml",
}

// LookupContentType returns the MIME type of |p| from its extension,
// or DefaultContentType if the extension is unknown.
func LookupContentType(p string) string {
	var ext = strings.ToLower(path.Ext(p))
	if ext == "" {
		return DefaultContentType
	}
	if t, ok := siteContentTypes[ext]; ok {
		return t
	}
	// Drop parameters such as "; charset=utf-8".
	if t, _, _ := strings.Cut(mime.TypeByExtension(ext), ";"); t != "" {
		return strings.TrimSpace(t)
	}
	return DefaultContentType
}

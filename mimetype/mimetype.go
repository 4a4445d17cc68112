// Package mimetype derives MIME type lists from filenames.
//
// The basename is split on "." with leading dots ignored. Zero
// suffixes yield application/octet-stream; multiple suffixes yield one
// type per suffix, outermost first ("file.jpg.txt" is outermost
// text/plain over image/jpeg).
package mimetype

import (
	"mime"
	"path"
	"strings"
	"sync"
)

// Default is the type assigned when no suffix is present or a suffix is
// unknown.
const Default = "application/octet-stream"

var mu sync.RWMutex

// table holds the built-in suffix mappings consulted before the
// platform registry. mime.TypeByExtension picks up /etc/mime.types on
// some systems; pinning the common suffixes keeps derivation portable.
var table = map[string]string{
	"txt":  "text/plain",
	"text": "text/plain",
	"html": "text/html",
	"htm":  "text/html",
	"css":  "text/css",
	"csv":  "text/csv",
	"md":   "text/markdown",
	"xml":  "text/xml",
	"js":   "text/javascript",
	"json": "application/json",
	"pdf":  "application/pdf",
	"zip":  "application/zip",
	"gz":   "application/gzip",
	"zst":  "application/zstd",
	"tar":  "application/x-tar",
	"wasm": "application/wasm",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"wav":  "audio/wav",
	"mp4":  "video/mp4",
	"webm": "video/webm",
}

// Register adds or replaces a suffix mapping. Suffixes are registered
// without the leading dot.
func Register(suffix, mediaType string) {
	mu.Lock()
	defer mu.Unlock()
	table[strings.ToLower(suffix)] = mediaType
}

// BySuffix returns the type for a single suffix (no leading dot),
// falling back to the platform registry, then Default.
func BySuffix(suffix string) string {
	suffix = strings.ToLower(suffix)
	mu.RLock()
	t, ok := table[suffix]
	mu.RUnlock()
	if ok {
		return t
	}
	if t := mime.TypeByExtension("." + suffix); t != "" {
		// Strip parameters: derivation wants the bare media type.
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = strings.TrimSpace(t[:i])
		}
		return t
	}
	return Default
}

// FromPath derives the MIME type list for a path, outermost first.
func FromPath(p string) []string {
	name := path.Base(p)
	// Leading dots are not suffix separators (".bashrc" has none).
	trimmed := strings.TrimLeft(name, ".")
	parts := strings.Split(trimmed, ".")
	if trimmed == "" || len(parts) < 2 {
		return []string{Default}
	}

	suffixes := parts[1:]
	types := make([]string, 0, len(suffixes))
	// Outermost type first: walk the suffixes from the end.
	for i := len(suffixes) - 1; i >= 0; i-- {
		types = append(types, BySuffix(suffixes[i]))
	}
	return types
}

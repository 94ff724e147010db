package staticfile

import (
	"path/filepath"
	"strings"
)

// extToMime mirrors the extension table named as part of the external
// interface (spec §4.5, §6) — grounded on seanrobmerriam-webos's
// pkg/server/static.go MimeTypes table, trimmed to what a static asset
// directory for this kind of embedded server actually serves.
var extToMime = map[string]string{
	".txt":  "text/plain",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".mp3":  "audio/mpeg",
	".wav":  "audio/x-wav",
	".pdf":  "application/pdf",
	".xml":  "application/xml",
}

// MimeType derives Content-Type from the file extension. Unknown
// extensions default to text/html (spec §6, stated verbatim).
func MimeType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ct, ok := extToMime[ext]; ok {
		return ct
	}
	return "text/html"
}

// cacheableExt reports whether ext is exempt from the no-store/no-cache
// headers (spec §4.5: "everything except mp3/wav").
func cacheableExt(ext string) bool {
	ext = strings.ToLower(ext)
	return ext == ".mp3" || ext == ".wav"
}

// Package mime maps file extensions to content types.
package mime

import (
	"path"
	"strings"
)

// DefaultType is returned for extensions without a known mapping.
const DefaultType = "application/octet-stream"

var typesByExtension = map[string]string{
	// text and web
	"html": "text/html; charset=utf-8",
	"htm":  "text/html; charset=utf-8",
	"css":  "text/css; charset=utf-8",
	"js":   "text/javascript; charset=utf-8",
	"mjs":  "text/javascript; charset=utf-8",
	"json": "application/json",
	"xml":  "application/xml",
	"txt":  "text/plain; charset=utf-8",
	"md":   "text/markdown; charset=utf-8",
	"csv":  "text/csv; charset=utf-8",
	"pdf":  "application/pdf",
	"wasm": "application/wasm",

	// archives
	"zip": "application/zip",
	"gz":  "application/gzip",
	"tar": "application/x-tar",

	// images
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"ico":  "image/x-icon",
	"bmp":  "image/bmp",
	"avif": "image/avif",

	// fonts
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"ttf":   "font/ttf",
	"otf":   "font/otf",

	// audio
	"mp3":  "audio/mpeg",
	"m4a":  "audio/mp4",
	"aac":  "audio/aac",
	"flac": "audio/flac",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"oga":  "audio/ogg",
	"opus": "audio/opus",
	"weba": "audio/webm",

	// video
	"mp4":  "video/mp4",
	"m4v":  "video/mp4",
	"mkv":  "video/x-matroska",
	"webm": "video/webm",
	"ogv":  "video/ogg",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"ts":   "video/mp2t",
	"m3u8": "application/vnd.apple.mpegurl",

	// subtitles
	"vtt": "text/vtt; charset=utf-8",
	"srt": "application/x-subrip",
}

// TypeByExtension returns the content type for ext. The lookup is
// case-insensitive and a single leading dot is ignored.
func TypeByExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if contentType, ok := typesByExtension[ext]; ok {
		return contentType
	}
	return DefaultType
}

// ForPath returns the content type for the final element of a
// slash-separated path.
func ForPath(name string) string {
	return TypeByExtension(path.Ext(name))
}

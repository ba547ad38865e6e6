// Package mediatype guesses a file's media type by content signature
// first, falling back to a filename extension table, refusing to trust
// an extension-only guess for types that are normally detected by
// signature.
package mediatype

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// Folder is the literal media type stored on every directory row.
const Folder = "application/directory"

// OctetStream is returned when nothing else matches.
const OctetStream = "application/octet-stream"

// extraExtensions mirrors the custom extension table the source system
// registers on top of the platform's default extension→type map.
var extraExtensions = map[string]string{
	".sql":    "application/sql",
	".zsh":    "application/x-zsh",
	".heif":   "image/heif",
	".hif":    "image/heif",
	".jsx":    "text/jsx",
	".md":     "text/markdown",
	".cfg":    "text/plain",
	".ini":    "text/plain",
	".coffee": "text/x-coffeescript",
	".go":     "text/x-go",
	".nim":    "text/x-nim",
	".yaml":   "text/x-yml",
	".yml":    "text/x-yml",
	".pyi":    "text/x-python",
	".pyx":    "text/x-python",
	".swift":  "text/x-swift",
	".plist":  "text/x-plist",
	".rst":    "text/x-rst",
	".rs":     "text/x-rust",
	".toml":   "text/x-toml",
	".vim":    "text/x-vim",
}

// strict is the set of types that a signature sniff is expected to find
// confidently. When an extension-only guess lands in this set without a
// successful signature match, Guess refuses it and falls back to
// OctetStream, since the file's actual bytes disagree with its name.
var strict = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"image/bmp":       true,
	"image/tiff":      true,
	"image/x-icon":    true,
	"image/heic":      true,
	"image/heif":      true,
	"application/pdf": true,
	"application/zip": true,
	"application/gzip": true,
	"application/x-gzip": true,
	"application/x-tar":  true,
}

// Guess determines a file's media type from its content signature, falling
// back to its name's extension. If the extension-only guess lands in the
// strict set, it is not trusted (the content should have matched by
// signature already) and OctetStream is returned instead.
func Guess(content []byte, name string) string {
	if mt := sniff(content); mt != "" {
		return mt
	}
	if name != "" {
		mt := GuessUnsafe(name)
		if !strict[mt] {
			return mt
		}
	}
	return OctetStream
}

// GuessUnsafe guesses purely from the filename extension, without looking
// at content. Used by Reindex, which walks the object store without
// re-downloading blobs.
func GuessUnsafe(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return OctetStream
	}
	if mt, ok := extraExtensions[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return stripParams(mt)
	}
	return OctetStream
}

// sniff returns a media type only for signatures in the strict set,
// mirroring a magic-number detector that only recognizes well-known binary
// formats and stays silent on anything else (text, unknown binaries).
func sniff(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	ct := stripParams(http.DetectContentType(content))
	if strict[ct] {
		return ct
	}
	return ""
}

func stripParams(mt string) string {
	if idx := strings.IndexByte(mt, ';'); idx >= 0 {
		mt = mt[:idx]
	}
	return strings.TrimSpace(mt)
}

// IsImage reports whether mt is one of the image types the content
// pipeline knows how to fingerprint and thumbnail.
func IsImage(mt string) bool {
	switch mt {
	case "image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp", "image/tiff":
		return true
	default:
		return false
	}
}

// IsPDF reports whether mt is a PDF. The thumbnailer counts PDFs as a
// supported type but does not render them: it returns
// ThumbnailUnavailable for every PDF.
func IsPDF(mt string) bool { return mt == "application/pdf" }

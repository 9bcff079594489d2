package compress

import (
	"path"
	"strings"
)

// SkipFunc returns true when an entry should be stored uncompressed.
// It is called once per entry and should be inexpensive.
type SkipFunc func(name string, size int64) bool

// DefaultSkipCompression returns a SkipFunc that skips small payloads
// and known already-compressed extensions.
func DefaultSkipCompression(minSize int64) SkipFunc {
	return func(name string, size int64) bool {
		if minSize > 0 && size < minSize {
			return true
		}
		ext := strings.ToLower(path.Ext(name))
		_, ok := compressedExts[ext]
		return ok
	}
}

// ShouldSkip checks if any predicate returns true for the given entry.
func ShouldSkip(name string, size int64, predicates []SkipFunc) bool {
	for _, fn := range predicates {
		if fn == nil {
			continue
		}
		if fn(name, size) {
			return true
		}
	}
	return false
}

var compressedExts = map[string]struct{}{
	".7z":    {},
	".aac":   {},
	".apk":   {},
	".avif":  {},
	".br":    {},
	".bz2":   {},
	".docx":  {},
	".flac":  {},
	".gif":   {},
	".gz":    {},
	".heic":  {},
	".jar":   {},
	".jpeg":  {},
	".jpg":   {},
	".lz4":   {},
	".m4a":   {},
	".m4v":   {},
	".mkv":   {},
	".mov":   {},
	".mp3":   {},
	".mp4":   {},
	".ogg":   {},
	".opus":  {},
	".png":   {},
	".rar":   {},
	".tgz":   {},
	".webm":  {},
	".webp":  {},
	".woff2": {},
	".xlsx":  {},
	".xz":    {},
	".zip":   {},
	".zst":   {},
}

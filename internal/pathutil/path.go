// Package pathutil converts between slash-separated archive entry names and
// local filesystem paths.
package pathutil

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/meigma/zipkit/internal/ziptype"
)

// Base returns the last element of a slash-separated entry name, ignoring a
// trailing slash. If name is empty or ".", it returns ".".
func Base(name string) string {
	if name == "" || name == "." {
		return "."
	}
	name = strings.TrimSuffix(name, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// LocalPath resolves an entry name to a path relative to the extraction
// root, using the host separator. A name that could escape the root is
// rejected with ErrUnsafeEntryPath: absolute names, names with a volume or
// drive prefix, names containing backslashes or NUL, and names with ".."
// segments. The root directory itself resolves to ".".
func LocalPath(name string) (string, error) {
	unsafe := func(reason string) (string, error) {
		return "", fmt.Errorf("%w: %q: %s", ziptype.ErrUnsafeEntryPath, name, reason)
	}
	switch {
	case name == "":
		return unsafe("empty name")
	case strings.HasPrefix(name, "/"):
		return unsafe("absolute path")
	case strings.ContainsAny(name, "\\\x00"):
		return unsafe("invalid character")
	case len(name) >= 2 && name[1] == ':':
		return unsafe("volume name")
	}
	for seg := range strings.SplitSeq(name, "/") {
		if seg == ".." {
			return unsafe("parent directory segment")
		}
	}

	clean := path.Clean(name)
	local := filepath.FromSlash(clean)
	if clean != "." && !filepath.IsLocal(local) {
		return unsafe("not a local path")
	}
	return local, nil
}

// EntryName converts a path relative to a packing root to an entry name.
// Directory names get a trailing slash.
func EntryName(rel string, isDir bool) string {
	name := filepath.ToSlash(rel)
	if isDir && !strings.HasSuffix(name, "/") {
		name += "/"
	}
	return name
}

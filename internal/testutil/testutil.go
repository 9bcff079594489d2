// Package testutil provides helpers shared by package tests.
package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTree creates files under dir. Keys are slash-separated relative
// paths; a key ending in "/" creates an empty directory and its value is
// ignored.
func WriteTree(tb testing.TB, dir string, files map[string]string) {
	tb.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if strings.HasSuffix(name, "/") {
			require.NoError(tb, os.MkdirAll(path, 0o750))
			continue
		}
		require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(tb, os.WriteFile(path, []byte(content), 0o600))
	}
}

// ReadTree returns the contents of dir in WriteTree form. Only directories
// without children are listed with a trailing "/".
func ReadTree(tb testing.TB, dir string) map[string]string {
	tb.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)
		if d.IsDir() {
			children, err := os.ReadDir(path)
			if err != nil {
				return err
			}
			if len(children) == 0 {
				out[name+"/"] = ""
			}
			return nil
		}
		data, err := os.ReadFile(path) //nolint:gosec // test helper reads its own temp tree
		if err != nil {
			return err
		}
		out[name] = string(data)
		return nil
	})
	require.NoError(tb, err)
	return out
}

// FlipByte inverts the byte at off in the file at path.
func FlipByte(tb testing.TB, path string, off int64) {
	tb.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test helper
	require.NoError(tb, err)
	require.Less(tb, off, int64(len(data)))
	data[off] ^= 0xff
	require.NoError(tb, os.WriteFile(path, data, 0o600))
}

// Truncate shortens the file at path by n bytes.
func Truncate(tb testing.TB, path string, n int64) {
	tb.Helper()
	info, err := os.Stat(path)
	require.NoError(tb, err)
	require.NoError(tb, os.Truncate(path, info.Size()-n))
}

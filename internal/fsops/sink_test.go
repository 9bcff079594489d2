package fsops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRoot(t *testing.T) (*os.Root, string) {
	t.Helper()
	dir := t.TempDir()
	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	t.Cleanup(func() { root.Close() })
	return root, dir
}

func TestSink_WriteFile(t *testing.T) {
	t.Parallel()

	root, dir := openRoot(t)
	s := NewSink(root)

	name := filepath.Join("a", "b", "c.txt")
	require.NoError(t, s.WriteFile(name, []byte("hello"), 0o600, time.Time{}))

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.True(t, s.Exists(name))
	assert.True(t, s.Exists("a"))

	entries, err := os.ReadDir(filepath.Join(dir, "a", "b"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSink_ShouldWrite(t *testing.T) {
	t.Parallel()

	root, _ := openRoot(t)
	require.NoError(t, NewSink(root).WriteFile("x.txt", []byte("1"), 0, time.Time{}))

	assert.False(t, NewSink(root).ShouldWrite("x.txt"))
	assert.True(t, NewSink(root).ShouldWrite("y.txt"))
	assert.True(t, NewSink(root, WithOverwrite(true)).ShouldWrite("x.txt"))
}

func TestSink_Replace(t *testing.T) {
	t.Parallel()

	root, dir := openRoot(t)
	s := NewSink(root, WithOverwrite(true))
	require.NoError(t, s.WriteFile("f", []byte("first"), 0, time.Time{}))
	require.NoError(t, s.WriteFile("f", []byte("second"), 0, time.Time{}))

	data, err := os.ReadFile(filepath.Join(dir, "f"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestSink_PreserveAttributes(t *testing.T) {
	t.Parallel()

	root, dir := openRoot(t)
	s := NewSink(root, WithPreserveMode(true), WithPreserveTimes(true))
	mtime := time.Date(2020, 5, 6, 7, 8, 10, 0, time.UTC)

	require.NoError(t, s.WriteFile("script.sh", []byte("#!/bin/sh"), 0o750, mtime))
	info, err := os.Stat(filepath.Join(dir, "script.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
	assert.True(t, mtime.Equal(info.ModTime()))

	require.NoError(t, s.MkdirAll("d"))
	require.NoError(t, s.SetAttributes("d", 0o700, mtime))
	info, err = os.Stat(filepath.Join(dir, "d"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	assert.True(t, mtime.Equal(info.ModTime()))
}

func TestSink_MkdirAllRoot(t *testing.T) {
	t.Parallel()

	root, _ := openRoot(t)
	s := NewSink(root)
	require.NoError(t, s.MkdirAll("."))
	require.NoError(t, s.MkdirAll(filepath.Join("x", "y", "z")))
	assert.True(t, s.Exists(filepath.Join("x", "y", "z")))
}

func TestSink_ConfinedToRoot(t *testing.T) {
	t.Parallel()

	root, _ := openRoot(t)
	s := NewSink(root, WithOverwrite(true))
	err := s.WriteFile(filepath.Join("..", "escape.txt"), []byte("x"), 0, time.Time{})
	require.Error(t, err)
}

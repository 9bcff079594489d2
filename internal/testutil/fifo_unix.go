//go:build unix

package testutil

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

// Mkfifo creates a named pipe at path.
func Mkfifo(tb testing.TB, path string) {
	tb.Helper()
	require.NoError(tb, syscall.Mkfifo(path, 0o600))
}

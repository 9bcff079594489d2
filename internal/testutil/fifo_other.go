//go:build !unix

package testutil

import "testing"

// Mkfifo skips the test; named pipes need a unix filesystem.
func Mkfifo(tb testing.TB, _ string) {
	tb.Helper()
	tb.Skip("named pipes not supported on this platform")
}

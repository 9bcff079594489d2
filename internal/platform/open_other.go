//go:build !unix

package platform

import (
	"errors"
	"io/fs"
	"os"
)

// ErrSymlink is returned when attempting to open a symbolic link.
var ErrSymlink = errors.New("symbolic links not supported")

// OpenFileNoFollow opens name under root for reading, refusing symbolic
// links. The check is not atomic on platforms without O_NOFOLLOW.
func OpenFileNoFollow(root *os.Root, name string) (*os.File, error) {
	info, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil, ErrSymlink
	}
	return root.Open(name)
}

// OpenNonBlocking opens path for reading.
func OpenNonBlocking(path string) (*os.File, error) {
	return os.Open(path)
}

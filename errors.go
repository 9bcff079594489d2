package zipkit

import (
	"fmt"

	"github.com/meigma/zipkit/internal/ziptype"
)

// Errors re-exported from the shared type package.
var (
	// ErrContainerUnreadable is returned when the archive is malformed or
	// truncated, typically because the end of central directory record is missing.
	ErrContainerUnreadable = ziptype.ErrContainerUnreadable

	// ErrCannotCreateContainer is returned when the archive file cannot be created.
	ErrCannotCreateContainer = ziptype.ErrCannotCreateContainer

	// ErrInvalidOperationForMode is returned for a read operation on a write
	// session, a write operation on a read session, or any operation after Close.
	ErrInvalidOperationForMode = ziptype.ErrInvalidOperationForMode

	// ErrAuthentication is returned when a password fails verification.
	ErrAuthentication = ziptype.ErrAuthentication

	// ErrCorruptEntry is returned when entry content fails its integrity check.
	ErrCorruptEntry = ziptype.ErrCorruptEntry

	// ErrUnsafeEntryPath is returned when an entry name would resolve outside
	// the extraction root.
	ErrUnsafeEntryPath = ziptype.ErrUnsafeEntryPath

	// ErrUnsupportedFileType is returned for symbolic links and special files.
	ErrUnsupportedFileType = ziptype.ErrUnsupportedFileType

	// ErrInconsistentEntry is reported when an entry's local header disagrees
	// with its central directory record.
	ErrInconsistentEntry = ziptype.ErrInconsistentEntry

	// ErrCancelled is returned when an operation stops on request.
	ErrCancelled = ziptype.ErrCancelled

	// ErrNotFound is returned when a named entry does not exist.
	ErrNotFound = ziptype.ErrNotFound

	// ErrPasswordRequired is returned when an encrypted entry is read without a password.
	ErrPasswordRequired = ziptype.ErrPasswordRequired

	// ErrUnsupportedMethod is returned for unknown compression or encryption methods.
	ErrUnsupportedMethod = ziptype.ErrUnsupportedMethod

	// ErrSizeOverflow is returned when an entry exceeds size limits.
	ErrSizeOverflow = ziptype.ErrSizeOverflow

	// ErrInvalidName is returned when an entry name is empty or malformed.
	ErrInvalidName = ziptype.ErrInvalidName

	// ErrTooManyFiles is returned when packing would exceed the file limit.
	ErrTooManyFiles = ziptype.ErrTooManyFiles
)

// EntryError records the archive entry an operation failed on.
type EntryError struct {
	// Op is the operation, such as "extract" or "pack".
	Op string

	// Name is the entry name, or the filesystem path while packing.
	Name string

	// Index is the zero-based position of the entry within the operation.
	Index int

	Err error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s %s (entry %d): %v", e.Op, e.Name, e.Index, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

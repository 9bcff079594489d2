package ziptype

import "errors"

// Sentinel errors for archive operations.
var (
	// ErrContainerUnreadable is returned when the archive is malformed or truncated,
	// typically because the end of central directory record is missing.
	ErrContainerUnreadable = errors.New("zipkit: container unreadable")

	// ErrCannotCreateContainer is returned when the storage layer refuses to create the archive.
	ErrCannotCreateContainer = errors.New("zipkit: cannot create container")

	// ErrInvalidOperationForMode is returned for a read operation on a write
	// session, a write operation on a read session, or any operation after Close.
	ErrInvalidOperationForMode = errors.New("zipkit: invalid operation for mode")

	// ErrAuthentication is returned when password verification fails.
	ErrAuthentication = errors.New("zipkit: authentication failure")

	// ErrCorruptEntry is returned when entry content fails its integrity check.
	ErrCorruptEntry = errors.New("zipkit: corrupt entry")

	// ErrUnsafeEntryPath is returned when an entry name would resolve outside
	// the extraction root.
	ErrUnsafeEntryPath = errors.New("zipkit: unsafe entry path")

	// ErrUnsupportedFileType is returned when packing meets something that is
	// neither a regular file nor a directory.
	ErrUnsupportedFileType = errors.New("zipkit: unsupported file type")

	// ErrInconsistentEntry is returned when an entry's local header disagrees
	// with its central directory record.
	ErrInconsistentEntry = errors.New("zipkit: inconsistent entry")

	// ErrCancelled is returned when an operation stops because cancellation was requested.
	ErrCancelled = errors.New("zipkit: cancelled")

	// ErrNotFound is returned when a named entry does not exist.
	ErrNotFound = errors.New("zipkit: entry not found")

	// ErrPasswordRequired is returned when an encrypted entry is read without a password.
	ErrPasswordRequired = errors.New("zipkit: password required")

	// ErrUnsupportedMethod is returned for compression or encryption methods the codec cannot handle.
	ErrUnsupportedMethod = errors.New("zipkit: unsupported method")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("zipkit: size overflow")

	// ErrInvalidName is returned when an entry name is empty or malformed.
	ErrInvalidName = errors.New("zipkit: invalid entry name")

	// ErrTooManyFiles is returned when packing would exceed the configured file limit.
	ErrTooManyFiles = errors.New("zipkit: too many files")
)

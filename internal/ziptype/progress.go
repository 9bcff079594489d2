package ziptype

// ProgressEvent represents a progress update during packing or extraction.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the entry currently being processed, if applicable.
	Path string

	// Index is the zero-based position of the entry that just completed.
	Index int

	// BytesDone is the number of uncompressed bytes completed so far.
	BytesDone uint64

	// BytesTotal is the total uncompressed bytes for the operation.
	// Zero indicates the total is unknown.
	BytesTotal uint64

	// FilesDone is the number of entries completed, including skipped ones.
	FilesDone int

	// FilesTotal is the total number of entries.
	// Zero indicates the total is unknown (e.g., during enumeration).
	FilesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

const (
	// StageEnumerating indicates the operation is walking the directory tree.
	StageEnumerating ProgressStage = iota

	// StageCompressing indicates entries are being compressed and written.
	StageCompressing

	// StageExtracting indicates entries are being extracted.
	StageExtracting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageEnumerating:
		return "enumerating"
	case StageCompressing:
		return "compressing"
	case StageExtracting:
		return "extracting"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates. It is called synchronously on the
// goroutine running the operation and should return promptly.
type ProgressFunc func(ProgressEvent)

// CancelFunc reports whether the running operation should stop. It is polled
// between entries, never in the middle of one.
type CancelFunc func() bool

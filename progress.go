package zipkit

import "github.com/meigma/zipkit/internal/ziptype"

// Re-export progress types from the shared type package.
type (
	// ProgressEvent represents a progress update during packing or extraction.
	ProgressEvent = ziptype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = ziptype.ProgressStage

	// ProgressFunc receives progress updates. It is called synchronously
	// between entries and should return promptly.
	ProgressFunc = ziptype.ProgressFunc

	// CancelFunc reports whether an operation should stop. It is polled
	// before each entry.
	CancelFunc = ziptype.CancelFunc
)

// Re-export progress stage constants.
const (
	// StageEnumerating indicates the operation is walking the directory tree.
	StageEnumerating = ziptype.StageEnumerating

	// StageCompressing indicates entries are being compressed and written.
	StageCompressing = ziptype.StageCompressing

	// StageExtracting indicates entries are being extracted.
	StageExtracting = ziptype.StageExtracting
)

// progressReporter forwards events to an optional ProgressFunc.
type progressReporter struct {
	fn ProgressFunc
}

func (p progressReporter) report(ev ProgressEvent) {
	if p.fn != nil {
		p.fn(ev)
	}
}

package zipkit

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/meigma/zipkit/internal/fsops"
	"github.com/meigma/zipkit/internal/pathutil"
)

// ExtractStats contains statistics about an extraction.
type ExtractStats struct {
	// Files is the number of files written.
	Files int

	// Dirs is the number of directory entries created.
	Dirs int

	// Skipped is the number of files left untouched because they already
	// existed and overwrite was disabled.
	Skipped int

	// Filtered is the number of entries excluded by ExtractWithFilter.
	Filtered int

	// TotalBytes is the uncompressed size of the files written.
	TotalBytes uint64
}

// Extract writes every entry of a read session beneath dest, in stored order.
//
// dest is created if missing. Entry names that would resolve outside dest
// fail with ErrUnsafeEntryPath, and all writes go through an os.Root opened
// on dest. Each file is written to a temporary file and renamed into place,
// so cancellation or failure never leaves a partial file.
//
// Extraction stops at the first error. Authentication and corruption
// failures are fatal for the whole operation. Errors that concern a single
// entry are returned as *EntryError. The returned stats describe the work
// completed before any error.
func Extract(ctx context.Context, a *Archive, dest string, opts ...ExtractOption) (*ExtractStats, error) {
	if err := a.require(ModeRead, "extract"); err != nil {
		return nil, err
	}
	cfg := extractConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	x := &extractor{
		a:        a,
		cfg:      cfg,
		logger:   cfg.logger,
		password: a.cfg.password,
		progress: progressReporter{fn: cfg.progress},
	}
	if x.logger == nil {
		x.logger = a.logger
	}
	if cfg.password != "" {
		x.password = cfg.password
	}
	return x.run(ctx, dest)
}

// ExtractFile opens the archive at archivePath and extracts it beneath dest.
func ExtractFile(ctx context.Context, archivePath, dest string, opts ...ExtractOption) (*ExtractStats, error) {
	cfg := extractConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	a, err := Open(archivePath, WithLogger(cfg.logger))
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return Extract(ctx, a, dest, opts...)
}

type extractor struct {
	a        *Archive
	cfg      extractConfig
	logger   *slog.Logger
	password string
	progress progressReporter
}

// log returns the logger, falling back to a discard logger if nil.
func (x *extractor) log() *slog.Logger {
	if x.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return x.logger
}

// pendingDir is a directory whose attributes are applied after all entries,
// since writing its children would update its modification time.
type pendingDir struct {
	local string
	entry Entry
}

func (x *extractor) run(ctx context.Context, dest string) (*ExtractStats, error) {
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}
	root, err := os.OpenRoot(dest)
	if err != nil {
		return nil, fmt.Errorf("open destination: %w", err)
	}
	defer root.Close()

	sink := fsops.NewSink(root,
		fsops.WithOverwrite(x.cfg.overwrite),
		fsops.WithPreserveMode(x.cfg.preserveAttributes),
		fsops.WithPreserveTimes(x.cfg.preserveAttributes),
	)

	stats := &ExtractStats{}
	var entries []Entry
	var order []int
	var bytesTotal uint64
	stored := 0
	for e := range x.a.idx.All() {
		if x.cfg.filter != nil && !x.cfg.filter(e) {
			stats.Filtered++
		} else {
			entries = append(entries, e)
			order = append(order, stored)
			bytesTotal += e.UncompressedSize
		}
		stored++
	}
	x.log().Info("extracting archive",
		"path", x.a.path,
		"dest", dest,
		"entries", len(entries),
		"filtered", stats.Filtered)

	var dirs []pendingDir
	var bytesDone uint64
	for i := range entries {
		e := &entries[i]
		if err := cancelled(ctx, x.cfg.cancel); err != nil {
			x.log().Info("extraction cancelled", "completed", i, "total", len(entries))
			return stats, err
		}

		local, err := x.extractEntry(sink, e, stats)
		if err != nil {
			return stats, &EntryError{Op: "extract", Name: e.Name, Index: order[i], Err: err}
		}
		if e.IsDir() {
			dirs = append(dirs, pendingDir{local: local, entry: *e})
		}

		bytesDone += e.UncompressedSize
		x.progress.report(ProgressEvent{
			Stage:      StageExtracting,
			Path:       e.Name,
			Index:      order[i],
			BytesDone:  bytesDone,
			BytesTotal: bytesTotal,
			FilesDone:  i + 1,
			FilesTotal: len(entries),
		})
	}

	if x.cfg.preserveAttributes {
		// Deepest directories first, so parents keep their own times.
		for i := len(dirs) - 1; i >= 0; i-- {
			d := dirs[i]
			if err := sink.SetAttributes(d.local, d.entry.Mode, d.entry.Modified); err != nil {
				return stats, &EntryError{Op: "extract", Name: d.entry.Name, Err: err}
			}
		}
	}

	x.log().Info("extraction complete",
		"files", stats.Files,
		"dirs", stats.Dirs,
		"skipped", stats.Skipped,
		"bytes", stats.TotalBytes)
	return stats, nil
}

// extractEntry materializes one entry and returns its local path.
func (x *extractor) extractEntry(sink *fsops.Sink, e *Entry, stats *ExtractStats) (string, error) {
	local, err := pathutil.LocalPath(e.Name)
	if err != nil {
		return "", err
	}

	if e.IsDir() {
		if err := sink.MkdirAll(local); err != nil {
			return "", err
		}
		stats.Dirs++
		x.log().Debug("created directory", "name", e.Name)
		return local, nil
	}
	if e.Mode.Type() != 0 {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, e.Mode.Type())
	}

	if !sink.ShouldWrite(local) {
		stats.Skipped++
		x.log().Debug("skipped existing file", "name", e.Name)
		return local, nil
	}

	data, err := x.a.readEntry(e, x.password)
	if err != nil {
		return "", err
	}
	if err := sink.WriteFile(local, data, e.Mode, e.Modified); err != nil {
		return "", err
	}
	stats.Files++
	stats.TotalBytes += uint64(len(data))
	x.log().Debug("extracted file", "name", e.Name, "size", len(data))
	return local, nil
}

// cancelled returns ErrCancelled if ctx is done or hook asks to stop.
func cancelled(ctx context.Context, hook CancelFunc) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if hook != nil && hook() {
		return ErrCancelled
	}
	return nil
}

package zipkit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/meigma/zipkit/internal/pathutil"
)

// PackStats contains statistics about a packing operation.
type PackStats struct {
	// Files is the number of file entries written.
	Files int

	// Dirs is the number of directory entries written.
	Dirs int

	// Skipped is the number of unsupported files skipped.
	Skipped int

	// TotalBytes is the uncompressed size of the files written.
	TotalBytes uint64
}

// packer holds state for a single packing operation.
type packer struct {
	a        *Archive
	cfg      packConfig
	logger   *slog.Logger
	password string
	progress progressReporter
}

func newPacker(a *Archive, opts []PackOption) *packer {
	cfg := packConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &packer{
		a:        a,
		cfg:      cfg,
		logger:   cfg.logger,
		password: a.cfg.password,
		progress: progressReporter{fn: cfg.progress},
	}
	if p.logger == nil {
		p.logger = a.logger
	}
	if cfg.password != "" {
		p.password = cfg.password
	}
	return p
}

// log returns the logger, falling back to a discard logger if nil.
func (p *packer) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// PackFiles adds each regular file in paths to a write session, named by its
// base name. Two paths with the same base name produce two entries; the
// later one wins when the archive is read.
//
// Symbolic links and special files fail with ErrUnsupportedFileType unless
// PackWithSkipUnsupported is set.
func PackFiles(ctx context.Context, a *Archive, paths []string, opts ...PackOption) (*PackStats, error) {
	if err := a.require(ModeWrite, "pack files"); err != nil {
		return nil, err
	}
	p := newPacker(a, opts)
	p.log().Info("packing files", "archive", a.path, "count", len(paths))

	stats := &PackStats{}
	for i, fsPath := range paths {
		if err := cancelled(ctx, p.cfg.cancel); err != nil {
			return stats, err
		}
		name := filepath.Base(fsPath)
		data, info, err := readRegularFile(fsPath, a.cfg.maxEntrySize)
		if err != nil {
			if p.skippable(err) {
				stats.Skipped++
				p.log().Debug("skipped unsupported file", "path", fsPath)
				continue
			}
			return stats, &EntryError{Op: "pack", Name: name, Index: i, Err: err}
		}
		if err := p.addFile(name, data, info, stats); err != nil {
			return stats, &EntryError{Op: "pack", Name: name, Index: i, Err: err}
		}
		p.progress.report(ProgressEvent{
			Stage:      StageCompressing,
			Path:       name,
			Index:      i,
			BytesDone:  stats.TotalBytes,
			FilesDone:  i + 1,
			FilesTotal: len(paths),
		})
	}
	return stats, nil
}

// PackDirectory adds the tree beneath root to a write session.
//
// Entry names are relative to root, or prefixed with root's base name when
// PackWithKeepParentDirectory is set. Directories that contain no packed
// entries are stored as "name/" entries so they survive a round trip.
// Symbolic links are never followed.
//
// The tree is enumerated before anything is written, so a tree that exceeds
// the file limit or holds an unsupported file fails without writing.
func PackDirectory(ctx context.Context, a *Archive, root string, opts ...PackOption) (*PackStats, error) {
	if err := a.require(ModeWrite, "pack directory"); err != nil {
		return nil, err
	}
	p := newPacker(a, opts)

	r, err := os.OpenRoot(root)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	prefix := ""
	if p.cfg.keepParent {
		prefix, err = parentPrefix(root)
		if err != nil {
			return nil, err
		}
	}
	p.log().Info("packing directory", "archive", a.path, "root", root, "prefix", prefix)

	stats := &PackStats{}
	items, bytesTotal, err := p.enumerate(ctx, r, stats)
	if err != nil {
		return stats, err
	}
	p.log().Debug("directory enumerated", "entries", len(items), "bytes", bytesTotal)

	for i, it := range items {
		if err := cancelled(ctx, p.cfg.cancel); err != nil {
			return stats, err
		}
		name := prefix + pathutil.EntryName(it.rel, it.isDir)
		if it.isDir {
			_, err = p.a.writeEntry(name, nil, p.password, entryConfig{modTime: it.modTime, mode: it.mode})
			if err == nil {
				stats.Dirs++
			}
		} else {
			err = p.packRootFile(r, name, it, stats)
		}
		if err != nil {
			return stats, &EntryError{Op: "pack", Name: name, Index: i, Err: err}
		}
		p.progress.report(ProgressEvent{
			Stage:      StageCompressing,
			Path:       name,
			Index:      i,
			BytesDone:  stats.TotalBytes,
			BytesTotal: bytesTotal,
			FilesDone:  i + 1,
			FilesTotal: len(items),
		})
	}

	p.log().Info("directory packed",
		"files", stats.Files,
		"dirs", stats.Dirs,
		"skipped", stats.Skipped,
		"bytes", stats.TotalBytes)
	return stats, nil
}

// packItem is a file or empty directory found during enumeration.
type packItem struct {
	rel     string // slash-separated, relative to the packing root
	isDir   bool
	mode    fs.FileMode
	modTime time.Time
}

// enumerate walks r depth-first in lexical order and returns the entries to
// write. Directories are kept only if nothing beneath them is packed.
func (p *packer) enumerate(ctx context.Context, r *os.Root, stats *PackStats) ([]packItem, uint64, error) {
	maxFiles := p.cfg.maxFiles
	if maxFiles == 0 {
		maxFiles = DefaultMaxFiles
	}

	p.progress.report(ProgressEvent{Stage: StageEnumerating})

	var items []packItem
	var bytesTotal uint64
	nonEmpty := make(map[string]bool)
	files := 0
	err := fs.WalkDir(r.FS(), ".", func(rel string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		if rel == "." {
			return nil
		}
		switch {
		case d.IsDir():
		case d.Type().IsRegular():
			files++
			if maxFiles > 0 && files > maxFiles {
				return fmt.Errorf("%w: more than %d files", ErrTooManyFiles, maxFiles)
			}
		case p.cfg.skipUnsupported:
			stats.Skipped++
			p.log().Debug("skipped unsupported file", "path", rel, "type", d.Type().String())
			return nil
		default:
			return fmt.Errorf("%w: %s (%s)", ErrUnsupportedFileType, rel, d.Type())
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		nonEmpty[path.Dir(rel)] = true
		items = append(items, packItem{
			rel:     rel,
			isDir:   d.IsDir(),
			mode:    info.Mode().Perm(),
			modTime: info.ModTime(),
		})
		if !d.IsDir() && info.Size() > 0 {
			bytesTotal += uint64(info.Size())
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	kept := items[:0]
	for _, it := range items {
		if it.isDir && nonEmpty[it.rel] {
			continue
		}
		kept = append(kept, it)
	}
	if maxFiles > 0 && len(kept) > maxFiles {
		return nil, 0, fmt.Errorf("%w: %d entries exceeds limit %d", ErrTooManyFiles, len(kept), maxFiles)
	}
	return kept, bytesTotal, nil
}

// packRootFile reads a regular file beneath r and writes it as name. A file
// replaced by a symlink since enumeration is treated as unsupported.
func (p *packer) packRootFile(r *os.Root, name string, it packItem, stats *PackStats) error {
	data, info, err := readFromRoot(r, filepath.FromSlash(it.rel), p.a.cfg.maxEntrySize)
	if err != nil {
		if p.skippable(err) {
			stats.Skipped++
			p.log().Debug("skipped unsupported file", "path", it.rel)
			return nil
		}
		return err
	}
	return p.addFile(name, data, info, stats)
}

func (p *packer) addFile(name string, data []byte, info fs.FileInfo, stats *PackStats) error {
	_, err := p.a.writeEntry(name, data, p.password, entryConfig{
		modTime: info.ModTime(),
		mode:    info.Mode().Perm(),
	})
	if err != nil {
		return err
	}
	stats.Files++
	stats.TotalBytes += uint64(len(data))
	return nil
}

func (p *packer) skippable(err error) bool {
	return p.cfg.skipUnsupported && errors.Is(err, ErrUnsupportedFileType)
}

// parentPrefix returns the base name of dir as an entry name prefix.
func parentPrefix(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	base := filepath.Base(abs)
	if base == string(filepath.Separator) || base == "." {
		return "", nil
	}
	return filepath.ToSlash(base) + "/", nil
}

// CreateFromFiles creates the archive at archivePath from paths and closes it.
// Session options are passed with PackWithArchiveOptions.
func CreateFromFiles(ctx context.Context, archivePath string, paths []string, opts ...PackOption) (*PackStats, error) {
	return createWith(archivePath, opts, func(a *Archive) (*PackStats, error) {
		return PackFiles(ctx, a, paths, opts...)
	})
}

// CreateFromDirectory creates the archive at archivePath from the tree
// beneath root and closes it. Session options are passed with
// PackWithArchiveOptions.
func CreateFromDirectory(ctx context.Context, archivePath, root string, opts ...PackOption) (*PackStats, error) {
	return createWith(archivePath, opts, func(a *Archive) (*PackStats, error) {
		return PackDirectory(ctx, a, root, opts...)
	})
}

// createWith runs pack on a new archive. On failure the partial archive is
// removed.
func createWith(archivePath string, opts []PackOption, pack func(*Archive) (*PackStats, error)) (*PackStats, error) {
	cfg := packConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	archiveOpts := cfg.archiveOpts
	if cfg.logger != nil {
		archiveOpts = append([]Option{WithLogger(cfg.logger)}, archiveOpts...)
	}
	a, err := Create(archivePath, archiveOpts...)
	if err != nil {
		return nil, err
	}
	stats, err := pack(a)
	if cerr := a.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(archivePath) //nolint:errcheck // best-effort cleanup
		return stats, err
	}
	return stats, nil
}

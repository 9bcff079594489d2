// Package index maintains the directory of an archive: the ordered entry
// records that make up the central directory, with name lookup.
package index

import (
	"fmt"
	"io"
	"iter"
	"slices"

	"github.com/meigma/zipkit/internal/format"
	"github.com/meigma/zipkit/internal/sizing"
	"github.com/meigma/zipkit/internal/ziptype"
)

// Index provides access to archive entries.
//
// Records are kept in insertion order, which for a parsed archive is central
// directory order. When a name occurs more than once, the last record wins:
// Lookup and All expose only that record, while Records still returns every
// record so the central directory can be written back faithfully.
type Index struct {
	records []ziptype.Entry
	byName  map[string]int
	comment string
}

// New returns an empty Index.
func New() *Index {
	return &Index{byName: make(map[string]int)}
}

// Append adds a record, superseding any earlier record with the same name.
func (idx *Index) Append(e ziptype.Entry) {
	idx.byName[e.Name] = len(idx.records)
	idx.records = append(idx.records, e)
}

// Lookup returns the current record for name.
func (idx *Index) Lookup(name string) (ziptype.Entry, bool) {
	i, ok := idx.byName[name]
	if !ok {
		return ziptype.Entry{}, false
	}
	return idx.records[i], true
}

// Len returns the number of distinct entry names.
func (idx *Index) Len() int {
	return len(idx.byName)
}

// All returns an iterator over the current record of each name, in
// insertion order. Superseded duplicates are skipped.
func (idx *Index) All() iter.Seq[ziptype.Entry] {
	return func(yield func(ziptype.Entry) bool) {
		for i, e := range idx.records {
			if idx.byName[e.Name] != i {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// Records returns every record, duplicates included, in insertion order.
func (idx *Index) Records() []ziptype.Entry {
	return slices.Clone(idx.records)
}

// Comment returns the archive comment read by Parse.
func (idx *Index) Comment() string {
	return idx.comment
}

// MarkInconsistent flags the current record for name as disagreeing with its
// local header. It reports whether the name exists.
func (idx *Index) MarkInconsistent(name string) bool {
	i, ok := idx.byName[name]
	if !ok {
		return false
	}
	idx.records[i].Inconsistent = true
	return true
}

// Inconsistent returns the names of records flagged by MarkInconsistent.
func (idx *Index) Inconsistent() []string {
	var names []string
	for e := range idx.All() {
		if e.Inconsistent {
			names = append(names, e.Name)
		}
	}
	return names
}

// Parse reads the central directory of an archive of the given size.
//
// Only the end records and the central directory are read; local headers
// are not visited. A missing or truncated end record or directory is
// reported as ErrContainerUnreadable.
func Parse(r io.ReaderAt, size int64) (*Index, error) {
	end, err := format.FindEnd(r, size)
	if err != nil {
		return nil, err
	}
	dirSize, err := sizing.ToInt(end.DirSize, ziptype.ErrContainerUnreadable)
	if err != nil {
		return nil, fmt.Errorf("%w: central directory too large", err)
	}
	// Each record needs at least its fixed header.
	if end.Entries > uint64(dirSize/format.CentralHeaderLen) {
		return nil, fmt.Errorf("%w: %d entries do not fit in a %d byte central directory",
			ziptype.ErrContainerUnreadable, end.Entries, dirSize)
	}

	dirOffset, err := sizing.ToInt64(end.DirOffset, ziptype.ErrContainerUnreadable)
	if err != nil {
		return nil, err
	}
	dir := make([]byte, dirSize)
	if n, err := r.ReadAt(dir, dirOffset); n < dirSize {
		return nil, fmt.Errorf("%w: read central directory: %w", ziptype.ErrContainerUnreadable, err)
	}

	idx := New()
	idx.comment = string(end.Comment)
	idx.records = make([]ziptype.Entry, 0, end.Entries)
	for i := range end.Entries {
		e, n, err := format.DecodeCentral(dir)
		if err != nil {
			return nil, fmt.Errorf("central directory record %d: %w", i, err)
		}
		idx.Append(e)
		dir = dir[n:]
	}
	return idx, nil
}

// WriteCentralDirectory writes the central directory for every record,
// followed by the end records, to w. offset is the position of w within the
// archive. It returns the number of bytes written.
func (idx *Index) WriteCentralDirectory(w io.Writer, offset uint64, comment string) (uint64, error) {
	var written uint64
	for i := range idx.records {
		rec := format.EncodeCentral(&idx.records[i])
		if _, err := w.Write(rec); err != nil {
			return written, fmt.Errorf("write central directory: %w", err)
		}
		written += uint64(len(rec))
	}

	end, err := format.End{
		Entries:   uint64(len(idx.records)),
		DirSize:   written,
		DirOffset: offset,
		Comment:   []byte(comment),
	}.Encode()
	if err != nil {
		return written, fmt.Errorf("encode end of central directory: %w", err)
	}
	if _, err := w.Write(end); err != nil {
		return written, fmt.Errorf("write end of central directory: %w", err)
	}
	return written + uint64(len(end)), nil
}

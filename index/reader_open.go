package index

import (
	"errors"
	"fmt"
)

// ErrEmptyIndex is returned by OpenReader when cfg's directory has never
// been committed to (spec §7's EmptyIndex).
var ErrEmptyIndex = errors.New("index: no committed generation")

// OpenReader opens a read-only Reader over cfg's directory's current
// generation without acquiring the single-writer advisory lock (spec §5:
// "Readers do not lock"). Its Refresh re-reads the latest TOC from disk
// on every call rather than reusing an in-process Writer's snapshot,
// since a pure-reader caller may never open a Writer at all, matching
// spec §6's Index.reader() being independent of Index.writer().
func OpenReader(cfg Config) (*Reader, error) {
	dir, err := cfg.DirectoryFunc()
	if err != nil {
		return nil, fmt.Errorf("index: opening directory: %w", err)
	}
	snap, err := loadLatestSnapshot(dir)
	if err != nil {
		return nil, err
	}
	return NewReader(snap, func() *IndexSnapshot {
		s, err := loadLatestSnapshot(dir)
		if err != nil {
			return nil
		}
		return s
	}), nil
}

// loadLatestSnapshot reads dir's highest-generation TOC and opens every
// segment it references, read-only.
func loadLatestSnapshot(dir Directory) (*IndexSnapshot, error) {
	gen, exists, err := latestGeneration(dir)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrEmptyIndex
	}
	toc, err := readTOC(dir, gen)
	if err != nil {
		return nil, err
	}
	segs, err := openTOCSegments(dir, toc)
	if err != nil {
		return nil, err
	}
	return newIndexSnapshot(toc.Generation, segs, toc.Schema), nil
}

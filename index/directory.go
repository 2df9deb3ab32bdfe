// Package index implements the on-disk segmented index: storage (C1),
// segment codec (C2), segment snapshots (C3), multi-segment readers (C4),
// and the single-writer commit pipeline (C5). It is consumed by the root
// weft package, which presents the public Index/Writer/Reader API.
package index

import (
	"errors"
	"io"
)

// ErrFileNotFound is returned by Directory.Open for a name that has no
// current file.
var ErrFileNotFound = errors.New("index: file not found")

// ErrLocked is returned by Directory.Lock when the advisory write lock is
// already held.
var ErrLocked = errors.New("index: directory already locked")

// ItemKind distinguishes the handful of file kinds a Directory stores,
// mirroring bluge's DirectoryFunc split between segment data and the TOC.
type ItemKind int

const (
	ItemKindSegment ItemKind = iota
	ItemKindTOC
	ItemKindLock
)

// IndexReaderAt is the random-access read handle returned by Directory.Open.
// It is closed independently of the Directory.
type IndexReaderAt interface {
	io.ReaderAt
	io.Closer
	// Size returns the total length of the underlying file.
	Size() int64
}

// IndexWriter is the append-then-close handle returned by Directory.Create
// for writing one new immutable file. The caller writes every byte, calls
// Sync, then Close; the file becomes visible only when Directory.Rename
// promotes it.
type IndexWriter interface {
	io.Writer
	io.Closer
	Sync() error
}

// Lock is an advisory handle representing the single-writer lock (spec §5:
// "at most one Writer open against a given index at a time").
type Lock interface {
	Unlock() error
}

// Directory abstracts the storage backend (C1): a real filesystem
// directory or an in-memory map, selected by Config.DirectoryFunc exactly
// as bluge's Config.DirectoryFunc selects a directory implementation
// (index/config.go in the teacher).
type Directory interface {
	// Open returns a read handle for an existing file of the given kind
	// and generation. Generation 0 is reserved for the lock file.
	Open(kind ItemKind, id uint64) (IndexReaderAt, error)
	// Create returns a write handle for a brand new file; the file is not
	// visible to Open/List until Rename promotes a temp name, matching
	// the atomic-rename commit protocol (spec §5).
	Create(kind ItemKind, id uint64) (IndexWriter, error)
	// Rename atomically promotes a just-written file into visibility,
	// and is also used to swap the "current" TOC pointer.
	Rename(kind ItemKind, id uint64) error
	// Remove deletes a file that is no longer referenced by any live
	// snapshot, used by the deletion policy (spec §4.5/§9).
	Remove(kind ItemKind, id uint64) error
	// List returns every generation present for a kind, used at open time
	// to find the highest surviving TOC.
	List(kind ItemKind) ([]uint64, error)
	// Lock acquires the advisory single-writer lock.
	Lock() (Lock, error)
	// Stats reports the number of files and their aggregate size.
	Stats() (fileCount int, totalBytes int64)
}

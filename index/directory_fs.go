package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	mmap "github.com/blevesearch/mmap-go"
)

// FSDirectory is a filesystem-backed Directory. Every file Open returns,
// segment or TOC, is mapped with mmap.Map for zero-copy random access, as
// bluge's file directory does for segment data; the lock file is only
// created and removed, through os.File.
type FSDirectory struct {
	path string

	mu    sync.Mutex
	lockF *os.File
}

// NewFSDirectory returns a Directory rooted at path, creating it if
// necessary.
func NewFSDirectory(path string) (*FSDirectory, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("index: creating directory %s: %w", path, err)
	}
	return &FSDirectory{path: path}, nil
}

func (d *FSDirectory) filename(kind ItemKind, id uint64) string {
	var prefix string
	switch kind {
	case ItemKindSegment:
		prefix = "seg"
	case ItemKindTOC:
		prefix = "toc"
	case ItemKindLock:
		return filepath.Join(d.path, "write.lock")
	}
	return filepath.Join(d.path, fmt.Sprintf("%s_%020d.wft", prefix, id))
}

type mmapReaderAt struct {
	f *os.File
	m mmap.MMap
}

func (r *mmapReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(r.m)) {
		return 0, fmt.Errorf("index: read offset %d out of range", off)
	}
	n := copy(p, r.m[off:])
	if n < len(p) {
		return n, fmt.Errorf("index: short read at offset %d", off)
	}
	return n, nil
}

func (r *mmapReaderAt) Size() int64 { return int64(len(r.m)) }

func (r *mmapReaderAt) Close() error {
	if err := r.m.Unmap(); err != nil {
		r.f.Close()
		return fmt.Errorf("index: unmapping: %w", err)
	}
	return r.f.Close()
}

func (d *FSDirectory) Open(kind ItemKind, id uint64) (IndexReaderAt, error) {
	name := d.filename(kind, id)
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("index: opening %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("index: stat %s: %w", name, err)
	}
	if info.Size() == 0 {
		f.Close()
		return &mmapReaderAt{f: nil, m: mmap.MMap{}}, nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("index: mmap %s: %w", name, err)
	}
	return &mmapReaderAt{f: f, m: m}, nil
}

type fsWriter struct {
	f    *os.File
	name string
}

func (w *fsWriter) Write(p []byte) (int, error) { return w.f.Write(p) }
func (w *fsWriter) Sync() error                 { return w.f.Sync() }
func (w *fsWriter) Close() error                { return w.f.Close() }

func (d *FSDirectory) Create(kind ItemKind, id uint64) (IndexWriter, error) {
	name := d.filename(kind, id) + ".tmp"
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("index: creating %s: %w", name, err)
	}
	return &fsWriter{f: f, name: name}, nil
}

func (d *FSDirectory) Rename(kind ItemKind, id uint64) error {
	name := d.filename(kind, id)
	if err := os.Rename(name+".tmp", name); err != nil {
		return fmt.Errorf("index: promoting %s: %w", name, err)
	}
	return nil
}

func (d *FSDirectory) Remove(kind ItemKind, id uint64) error {
	name := d.filename(kind, id)
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("index: removing %s: %w", name, err)
	}
	return nil
}

func (d *FSDirectory) List(kind ItemKind) ([]uint64, error) {
	var prefix string
	switch kind {
	case ItemKindSegment:
		prefix = "seg_"
	case ItemKindTOC:
		prefix = "toc_"
	default:
		return nil, nil
	}
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("index: listing %s: %w", d.path, err)
	}
	var ids []uint64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".wft") {
			continue
		}
		numStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".wft")
		id, err := strconv.ParseUint(numStr, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (d *FSDirectory) Lock() (Lock, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lockF != nil {
		return nil, ErrLocked
	}
	name := d.filename(ItemKindLock, 0)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("index: acquiring lock %s: %w", name, err)
	}
	d.lockF = f
	return &fsLock{dir: d}, nil
}

type fsLock struct{ dir *FSDirectory }

func (l *fsLock) Unlock() error {
	l.dir.mu.Lock()
	defer l.dir.mu.Unlock()
	if l.dir.lockF == nil {
		return nil
	}
	name := l.dir.filename(ItemKindLock, 0)
	l.dir.lockF.Close()
	l.dir.lockF = nil
	return os.Remove(name)
}

func (d *FSDirectory) Stats() (int, int64) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return 0, 0
	}
	var total int64
	for _, e := range entries {
		if info, err := e.Info(); err == nil {
			total += info.Size()
		}
	}
	return len(entries), total
}

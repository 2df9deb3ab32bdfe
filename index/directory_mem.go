package index

import (
	"bytes"
	"fmt"
	"sync"
)

// MemoryDirectory is an in-memory Directory, used for InMemoryOnlyConfig
// (spec §6: "a minimal file/RAM backing store") and in tests that would
// otherwise pay filesystem setup cost.
type MemoryDirectory struct {
	mu      sync.RWMutex
	files   map[string][]byte
	locked  bool
}

// NewMemoryDirectory returns an empty MemoryDirectory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{files: make(map[string][]byte)}
}

func memKey(kind ItemKind, id uint64) string {
	return fmt.Sprintf("%d/%d", kind, id)
}

type memReaderAt struct {
	data []byte
}

func (r *memReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(r.data)) {
		return 0, fmt.Errorf("index: read offset %d out of range", off)
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, fmt.Errorf("index: short read at offset %d", off)
	}
	return n, nil
}

func (r *memReaderAt) Close() error   { return nil }
func (r *memReaderAt) Size() int64    { return int64(len(r.data)) }

func (d *MemoryDirectory) Open(kind ItemKind, id uint64) (IndexReaderAt, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	data, ok := d.files[memKey(kind, id)]
	if !ok {
		return nil, ErrFileNotFound
	}
	return &memReaderAt{data: data}, nil
}

type memWriter struct {
	dir  *MemoryDirectory
	key  string
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *memWriter) Sync() error                 { return nil }
func (w *memWriter) Close() error {
	w.dir.mu.Lock()
	defer w.dir.mu.Unlock()
	w.dir.files[w.key+".tmp"] = w.buf.Bytes()
	return nil
}

func (d *MemoryDirectory) Create(kind ItemKind, id uint64) (IndexWriter, error) {
	return &memWriter{dir: d, key: memKey(kind, id)}, nil
}

func (d *MemoryDirectory) Rename(kind ItemKind, id uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := memKey(kind, id)
	data, ok := d.files[key+".tmp"]
	if !ok {
		return ErrFileNotFound
	}
	d.files[key] = data
	delete(d.files, key+".tmp")
	return nil
}

func (d *MemoryDirectory) Remove(kind ItemKind, id uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.files, memKey(kind, id))
	return nil
}

func (d *MemoryDirectory) List(kind ItemKind) ([]uint64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var ids []uint64
	prefix := fmt.Sprintf("%d/", kind)
	for k := range d.files {
		var id uint64
		if _, err := fmt.Sscanf(k, prefix+"%d", &id); err == nil && k == memKey(kind, id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type memLock struct{ dir *MemoryDirectory }

func (l *memLock) Unlock() error {
	l.dir.mu.Lock()
	defer l.dir.mu.Unlock()
	l.dir.locked = false
	return nil
}

func (d *MemoryDirectory) Lock() (Lock, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.locked {
		return nil, ErrLocked
	}
	d.locked = true
	return &memLock{dir: d}, nil
}

func (d *MemoryDirectory) Stats() (int, int64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var total int64
	for _, v := range d.files {
		total += int64(len(v))
	}
	return len(d.files), total
}

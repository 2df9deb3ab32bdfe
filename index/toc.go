package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring"
	"github.com/cespare/xxhash/v2"
)

// ErrIncompatibleFormat is returned when a TOC's format version differs
// from the one this build writes (spec §7's IncompatibleFormat).
var ErrIncompatibleFormat = errors.New("index: incompatible TOC format version")

// tocMagic tags a TOC file, mirroring codec.MagicNumber's role for segment
// files (spec §7's IncompatibleFormat check happens before any other byte
// is interpreted).
const tocMagic = 0x57465443 // "WFTC"

// tocFormatVersion is bumped whenever the TOC layout changes in a way an
// older reader cannot interpret; version 2 added the trailing xxhash
// checksum and dropped the monotonic NextSegmentID counter in favor of
// randomly-generated segment IDs (see Writer.newSegmentID).
const tocFormatVersion = 2

// SchemaField is one field's persisted configuration (spec §3's "Schema is
// fixed at segment write time and persisted"). The index package keeps its
// own copy of this shape rather than importing the root weft package's
// FieldOptions, since Go would otherwise need a dependency cycle
// (weft -> index -> weft).
type SchemaField struct {
	Name    string
	Options uint8
	Boost   float64
}

// TOCSegment is one segment's entry in a table of contents: its ID, the
// document count it was built with, and its live-docs bitmap carried
// inline rather than as the separate <seg>.del file spec §6 sketches,
// because our Directory's atomic (kind,id) rename already
// gives copy-on-write semantics for a TOC generation as a whole, so a
// second per-segment deletion file adds a round trip without changing any
// reader-visible guarantee.
type TOCSegment struct {
	ID       uint64
	NumDocs  uint64
	Deleted  []byte // serialized roaring bitmap; nil/empty means no deletions
	Creator  string
}

// TOC is the generation's manifest (spec §3's Table of contents): the
// schema in force, the ordered list of live segments, and the generation
// number that names this TOC file.
type TOC struct {
	Generation uint64
	Schema     []SchemaField
	Segments   []TOCSegment
}

func putUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func putString(buf []byte, s string) []byte {
	buf = putUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func putBytes(buf []byte, b []byte) []byte {
	buf = putUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// ErrTOCChecksum is returned when a TOC file's trailing xxhash checksum
// does not match its body, signalling a truncated write or on-disk
// corruption rather than a mere format mismatch (spec §7's IndexingError
// family: a TOC that fails its own integrity check is never treated as the
// current generation).
var ErrTOCChecksum = errors.New("index: TOC checksum mismatch")

// encodeTOC serializes a TOC to its on-disk byte representation, trailed by
// an xxhash64 checksum of everything preceding it (mirroring the teacher's
// own CRC-trailed segment/snapshot files; SPEC_FULL.md's DOMAIN STACK says
// why this module uses xxhash here instead of CRC32).
func encodeTOC(t TOC) []byte {
	var out []byte
	hdr := make([]byte, 12)
	binary.LittleEndian.PutUint32(hdr[0:], tocMagic)
	binary.LittleEndian.PutUint32(hdr[4:], tocFormatVersion)
	binary.LittleEndian.PutUint32(hdr[8:], 0) // reserved
	out = append(out, hdr...)
	out = putUvarint(out, t.Generation)

	out = putUvarint(out, uint64(len(t.Schema)))
	for _, f := range t.Schema {
		out = putString(out, f.Name)
		out = append(out, f.Options)
		bits := make([]byte, 8)
		binary.LittleEndian.PutUint64(bits, math.Float64bits(f.Boost))
		out = append(out, bits...)
	}

	out = putUvarint(out, uint64(len(t.Segments)))
	for _, s := range t.Segments {
		out = putUvarint(out, s.ID)
		out = putUvarint(out, s.NumDocs)
		out = putBytes(out, s.Deleted)
		out = putString(out, s.Creator)
	}

	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], xxhash.Sum64(out))
	return append(out, sum[:]...)
}

// decodeTOC parses a TOC previously written by encodeTOC.
func decodeTOC(data []byte) (TOC, error) {
	if len(data) < 20 {
		return TOC{}, fmt.Errorf("index: TOC truncated")
	}
	magic := binary.LittleEndian.Uint32(data[0:])
	if magic != tocMagic {
		return TOC{}, fmt.Errorf("index: bad TOC magic %x", magic)
	}
	version := binary.LittleEndian.Uint32(data[4:])
	if version != tocFormatVersion {
		return TOC{}, fmt.Errorf("%w: TOC format version %d", ErrIncompatibleFormat, version)
	}

	body, wantSum := data[:len(data)-8], binary.LittleEndian.Uint64(data[len(data)-8:])
	if xxhash.Sum64(body) != wantSum {
		return TOC{}, ErrTOCChecksum
	}
	data = body

	pos := 12
	gen, n := binary.Uvarint(data[pos:])
	pos += n

	numFields, n := binary.Uvarint(data[pos:])
	pos += n
	schema := make([]SchemaField, 0, numFields)
	for i := uint64(0); i < numFields; i++ {
		nameLen, n := binary.Uvarint(data[pos:])
		pos += n
		name := string(data[pos : pos+int(nameLen)])
		pos += int(nameLen)
		opts := data[pos]
		pos++
		boost := math.Float64frombits(binary.LittleEndian.Uint64(data[pos:]))
		pos += 8
		schema = append(schema, SchemaField{Name: name, Options: opts, Boost: boost})
	}

	numSegs, n := binary.Uvarint(data[pos:])
	pos += n
	segs := make([]TOCSegment, 0, numSegs)
	for i := uint64(0); i < numSegs; i++ {
		id, n := binary.Uvarint(data[pos:])
		pos += n
		numDocs, n := binary.Uvarint(data[pos:])
		pos += n
		delLen, n := binary.Uvarint(data[pos:])
		pos += n
		var deleted []byte
		if delLen > 0 {
			deleted = data[pos : pos+int(delLen)]
			pos += int(delLen)
		}
		creatorLen, n := binary.Uvarint(data[pos:])
		pos += n
		creator := string(data[pos : pos+int(creatorLen)])
		pos += int(creatorLen)
		segs = append(segs, TOCSegment{ID: id, NumDocs: numDocs, Deleted: deleted, Creator: creator})
	}

	return TOC{Generation: gen, Schema: schema, Segments: segs}, nil
}

// writeTOC writes toc to a temp name and atomically renames it into place
// as generation toc.Generation (spec §4.5(d): "write a new TOC file to a
// temp name, fsync, atomically rename").
func writeTOC(dir Directory, toc TOC) error {
	w, err := dir.Create(ItemKindTOC, toc.Generation)
	if err != nil {
		return fmt.Errorf("index: creating TOC %d: %w", toc.Generation, err)
	}
	if _, err := w.Write(encodeTOC(toc)); err != nil {
		w.Close()
		return fmt.Errorf("index: writing TOC %d: %w", toc.Generation, err)
	}
	if err := w.Sync(); err != nil {
		w.Close()
		return fmt.Errorf("index: syncing TOC %d: %w", toc.Generation, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("index: closing TOC %d: %w", toc.Generation, err)
	}
	if err := dir.Rename(ItemKindTOC, toc.Generation); err != nil {
		return fmt.Errorf("index: promoting TOC %d: %w", toc.Generation, err)
	}
	return nil
}

// readTOC opens and decodes the TOC at generation.
func readTOC(dir Directory, generation uint64) (TOC, error) {
	r, err := dir.Open(ItemKindTOC, generation)
	if err != nil {
		return TOC{}, err
	}
	defer r.Close()
	buf := make([]byte, r.Size())
	if _, err := r.ReadAt(buf, 0); err != nil {
		return TOC{}, fmt.Errorf("index: reading TOC %d: %w", generation, err)
	}
	return decodeTOC(buf)
}

// latestGeneration returns the highest TOC generation present, and false
// if none exists (spec §7's EmptyIndex).
func latestGeneration(dir Directory) (uint64, bool, error) {
	gens, err := dir.List(ItemKindTOC)
	if err != nil {
		return 0, false, err
	}
	if len(gens) == 0 {
		return 0, false, nil
	}
	max := gens[0]
	for _, g := range gens[1:] {
		if g > max {
			max = g
		}
	}
	return max, true, nil
}

// decodeDeletedBitmap parses a TOCSegment's inline deletion bytes into a
// roaring.Bitmap, or nil if there were none.
func decodeDeletedBitmap(b []byte) (*roaring.Bitmap, error) {
	if len(b) == 0 {
		return nil, nil
	}
	bm := roaring.New()
	if _, err := bm.FromBuffer(b); err != nil {
		return nil, fmt.Errorf("index: decoding deletion bitmap: %w", err)
	}
	return bm, nil
}

// encodeDeletedBitmap serializes a live-docs deletion bitmap for inline
// TOC storage, or nil when bm is nil or empty.
func encodeDeletedBitmap(bm *roaring.Bitmap) []byte {
	if bm == nil || bm.IsEmpty() {
		return nil
	}
	bm.RunOptimize()
	b, _ := bm.ToBytes()
	return b
}

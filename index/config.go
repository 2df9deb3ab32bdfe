package index

import (
	"time"

	"go.uber.org/zap"

	"github.com/weftsearch/weft/index/mergeplan"
)

// DirectoryFunc constructs the Directory a Config should use, matching
// bluge's Config.DirectoryFunc field (index/config.go in the teacher).
type DirectoryFunc func() (Directory, error)

// DeletionPolicyFunc decides which historical TOC generations a writer may
// remove once a newer generation has been durably committed. The default,
// KeepNLatest, keeps a small trailing window so in-flight readers opened
// against an older generation do not lose their segments out from under
// them.
type DeletionPolicyFunc func(generations []uint64) (keep []uint64)

// KeepNLatest returns a DeletionPolicyFunc that retains the n most recent
// TOC generations.
func KeepNLatest(n int) DeletionPolicyFunc {
	return func(generations []uint64) []uint64 {
		if len(generations) <= n {
			return generations
		}
		return generations[len(generations)-n:]
	}
}

// Config governs a Writer/Reader pair opened against one Directory. It
// follows the teacher's value-receiver "With*" builder pattern
// (bluge/index/config.go) rather than mutation, so a base Config can be
// shared and specialized without aliasing surprises.
type Config struct {
	DirectoryFunc DirectoryFunc

	// AnalysisWorkers sizes the pool of goroutines the root package's
	// Writer.convertDocument fans a multi-field document's analysis out
	// across (grounded on bluge's Config.NumAnalysisWorkers, read via
	// Writer.AnalysisWorkers() since analysis itself happens one layer up,
	// in the root weft package, not here).
	AnalysisWorkers int

	// SegmentsPerCommit shards buffered documents round-robin across this
	// many independent segment builders, each flushed into its own segment
	// and introduced together in one TOC generation at Commit
	// (SPEC_FULL.md's supplemented multi-segment commit feature).
	SegmentsPerCommit int

	MergePlanOptions mergeplan.Options

	DeletionPolicy DeletionPolicyFunc

	// MinSegmentsForInMemoryMerge mirrors the teacher's field of the same
	// name. Nothing in this package reads it: every flushed segment is
	// written to the Directory, and no merge happens in memory.
	MinSegmentsForInMemoryMerge int

	// PersisterNapTime mirrors the teacher's field of the same name.
	// Nothing in this package reads it; there is no persister goroutine.
	PersisterNapTime time.Duration

	Logger *zap.Logger
}

// DefaultConfig returns the configuration used by NewFSDirectory-backed
// indexes: a real filesystem directory at path, four analysis workers, a
// single segment per commit, and the standard tiered merge plan.
func DefaultConfig(path string) Config {
	return Config{
		DirectoryFunc: func() (Directory, error) {
			return NewFSDirectory(path)
		},
		AnalysisWorkers:             4,
		SegmentsPerCommit:           1,
		MergePlanOptions:            mergeplan.DefaultOptions(),
		DeletionPolicy:              KeepNLatest(1),
		MinSegmentsForInMemoryMerge: 2,
		PersisterNapTime:            time.Millisecond * 200,
		Logger:                      zap.NewNop(),
	}
}

// InMemoryOnlyConfig returns a configuration backed entirely by one shared
// MemoryDirectory, for ephemeral or test indexes (spec §6). DirectoryFunc
// always returns the same instance, the way DefaultConfig's FSDirectory
// always resolves to the same on-disk path: a Writer and a later Reader
// opened from this Config must see the same storage.
func InMemoryOnlyConfig() Config {
	c := DefaultConfig("")
	dir := NewMemoryDirectory()
	c.DirectoryFunc = func() (Directory, error) {
		return dir, nil
	}
	return c
}

func (c Config) WithAnalysisWorkers(n int) Config {
	c.AnalysisWorkers = n
	return c
}

func (c Config) WithSegmentsPerCommit(n int) Config {
	c.SegmentsPerCommit = n
	return c
}

func (c Config) WithMergePlanOptions(o mergeplan.Options) Config {
	c.MergePlanOptions = o
	return c
}

func (c Config) WithDeletionPolicy(fn DeletionPolicyFunc) Config {
	c.DeletionPolicy = fn
	return c
}

func (c Config) WithLogger(l *zap.Logger) Config {
	c.Logger = l
	return c
}

func (c Config) WithPersisterNapTime(d time.Duration) Config {
	c.PersisterNapTime = d
	return c
}

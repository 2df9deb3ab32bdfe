package weft

import "errors"

// Sentinel errors forming the taxonomy of failures an application embedding
// weft needs to distinguish. Wrap with fmt.Errorf("...: %w", err) when
// adding context; compare with errors.Is.
var (
	// ErrEmptyIndex is returned when opening a directory that has never
	// been committed to (no TOC file present).
	ErrEmptyIndex = errors.New("weft: index is empty")

	// ErrIncompatibleFormat is returned when a TOC's format version
	// differs from the one this build writes.
	ErrIncompatibleFormat = errors.New("weft: incompatible index format version")

	// ErrOutOfDate names a writer committing against a generation that is
	// no longer the latest on disk. No function in this module returns it.
	ErrOutOfDate = errors.New("weft: writer snapshot is out of date")

	// ErrLocked is returned when a second writer attempts to open an
	// index that already holds the advisory write lock.
	ErrLocked = errors.New("weft: index is locked by another writer")

	// ErrNoSuchField names a query or sort that references a field absent
	// from every segment in the searched snapshot. No function in this
	// module returns it.
	ErrNoSuchField = errors.New("weft: no such field")

	// ErrQueryError wraps a malformed query (an empty boolean or phrase,
	// an invalid wildcard or regex pattern, and similar programmer errors
	// surfaced at Searcher-build time rather than at parse time).
	ErrQueryError = errors.New("weft: invalid query")

	// ErrTooManyTerms is returned when a Wildcard/FuzzyTerm/Range query
	// would expand past a configured term-expansion ceiling.
	ErrTooManyTerms = errors.New("weft: query expands to too many terms")

	// ErrReadTooFar names a Matcher advanced past the end of its posting
	// list. No function in this module returns it: a Matcher past its end
	// returns a nil DocumentMatch from Next and Advance.
	ErrReadTooFar = errors.New("weft: read past end of posting list")

	// ErrTimeLimit names a search whose time limit elapsed before
	// collection finished. No function in this module returns it: such a
	// search returns its partial Results with TimedOut set and a nil error.
	ErrTimeLimit = errors.New("weft: search time limit exceeded")

	// ErrIndexing wraps any failure encountered while analyzing or
	// flushing a batch of documents.
	ErrIndexing = errors.New("weft: indexing failure")

	// ErrClosed names an operation attempted against a closed Index,
	// Writer, or Reader. No function in this module returns it.
	ErrClosed = errors.New("weft: use of closed resource")
)

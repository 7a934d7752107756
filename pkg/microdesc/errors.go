package microdesc

import "errors"

// Sentinel errors returned by microdesc operations.
//
// Callers should use [errors.Is] to check error types.
var (
	// ErrClosed indicates the Cache has already been closed.
	ErrClosed = errors.New("microdesc: closed")

	// ErrInvalidInput indicates invalid input: Options without a Dir or a
	// Parser, or data the Parser rejected.
	ErrInvalidInput = errors.New("microdesc: invalid input")

	// ErrIO indicates a filesystem operation failed: opening the journal
	// for append, reading the journal or mapping the cache file during a
	// reload, replacing the cache file, or truncating the journal after a
	// rebuild. A failed journal open leaves the in-memory state unchanged,
	// and a failed cache-file replace leaves the current mapping and the
	// record bodies as they were. A failed reload keeps whatever it had
	// loaded before the failure; a failed journal truncation comes after
	// the records were re-pointed into the new cache file. A failed append
	// of a single record is not reported as ErrIO: that record is skipped.
	ErrIO = errors.New("microdesc: io")

	// ErrRebuildDangling indicates a rebuild replaced the cache file on
	// disk but could not map the replacement, even after one retry. The
	// previous mapping is left bound, so record bodies stay readable, but
	// the file on disk no longer matches it, the journal has not been
	// truncated, and the written records' offsets refer to the new file.
	// The Cache must not be used further; callers should discard it and
	// reload from scratch.
	ErrRebuildDangling = errors.New("microdesc: rebuild left dangling records")
)

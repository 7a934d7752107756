// Package microdesc implements a persistent, memory-mapped cache of
// microdescriptors: small, immutable, digest-identified records describing
// network relays.
//
// The cache is a two-file design: a sealed "cache file" that is
// memory-mapped read-only, plus an append-only "journal" holding additions
// since the last rebuild. Ingest appends to the journal and a growing
// in-memory index; a rebuild periodically re-serializes every live record
// into a fresh cache file, re-maps it, and truncates the journal.
//
// # Basic usage
//
//	c, err := microdesc.Open(microdesc.Options{
//	    Dir:    "/var/lib/tor",
//	    Parser: mdparse.New(),
//	})
//	if err != nil {
//	    // handle
//	}
//	defer c.Close()
//
//	added, err := c.AddFromBytes(raw, false)
//	rec, ok := c.Lookup(digest)
//
// # Concurrency
//
// microdesc is single-threaded cooperative: callers serialize access
// externally. A [Cache]'s exported methods take an internal mutex so that
// accidental concurrent calls from two goroutines are serialized rather
// than racing, but there is no multi-writer or overlapping-reader support
// — one writer assembles a consistent view and hands it to the next.
//
// # Error handling
//
// Failures that affect a single record are absorbed locally: an entry the
// parser cannot decode is dropped, a record whose journal append fails is
// not added, and a record whose rebuild write fails is left out of the new
// cache file. Failures of a whole operation (opening the journal, reading
// or mapping the files, replacing the cache file) are returned as [ErrIO].
// Only rebuild catastrophes ([ErrRebuildDangling]) are hard errors that
// make the [Cache] unusable.
package microdesc

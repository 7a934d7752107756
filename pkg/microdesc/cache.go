package microdesc

import (
	"bytes"
	"fmt"
	"os"
	"sync"
)

// Cache is the engine (C5): the digest index, the live mmap, and the
// bookkeeping needed to decide when to rebuild. A Cache is single-writer
// only (§5) — the mutex here guards against accidental concurrent calls
// from the same process, not against multiple cooperating writers, which
// this design does not support.
type Cache struct {
	mu sync.Mutex

	opts  Options
	store *store
	idx   *digestIndex

	mmap       []byte
	journalLen int64

	nSeen        uint64
	totalLenSeen uint64

	closed bool
}

// Open creates a Cache over opts.Dir and performs an initial [Cache.Reload]
// (§4.5): map whatever sealed cache file exists, then replay the journal on
// top of it.
func Open(opts Options) (*Cache, error) {
	if err := opts.setDefaults(); err != nil {
		return nil, err
	}

	c := &Cache{
		opts:  opts,
		store: newStore(opts.Dir, opts.CacheFileName, opts.JournalFileName),
		idx:   newDigestIndex(),
	}

	if err := c.reloadLocked(); err != nil {
		return nil, err
	}

	return c, nil
}

// Close releases the live mmap and marks the Cache unusable. It does not
// touch the journal or cache files on disk.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.clearLocked()
	c.closed = true

	return nil
}

// Lookup returns the record for digest, if any (§4.5's index.find
// delegate). A closed or empty Cache simply reports no match; Lookup never
// errors (§3).
func (c *Cache) Lookup(digest Digest) (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.idx.find(digest)
}

// AverageBodySize returns the mean body length of the records added since
// the last Clear or Reload (Open performs a Reload; duplicates merged into
// an existing record are not counted), or defaultAverageBodySize if none
// have been added since (§4.5, grounded on microdesc_average_size in
// original_source).
func (c *Cache) AverageBodySize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nSeen == 0 {
		return defaultAverageBodySize
	}

	return int(c.totalLenSeen / c.nSeen)
}

// Clear drops every record from the index and releases the live mmap,
// without touching either file on disk.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.clearLocked()

	return nil
}

func (c *Cache) clearLocked() {
	c.idx.each(func(r *Record) { r.destroy() })
	c.idx = newDigestIndex()

	if c.mmap != nil {
		_ = c.store.unmap(c.mmap)
		c.mmap = nil
	}

	c.nSeen = 0
	c.totalLenSeen = 0
}

// Reload discards all in-memory state and rebuilds it from the two files
// on disk: map the sealed cache file fresh, then replay the journal on top
// of it (§4.5). Torn trailing journal content is discarded silently (§1
// non-goals, §8 scenario 3) since the parser never reports a truncated final
// entry as an error.
func (c *Cache) Reload() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrClosed
	}

	if err := c.reloadLocked(); err != nil {
		return 0, err
	}

	return c.idx.len(), nil
}

func (c *Cache) reloadLocked() error {
	c.clearLocked()

	mmap, err := c.store.mapCache()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	c.mmap = mmap

	if c.mmap != nil {
		if _, err := c.addFromBytesLocked(c.mmap, ProvenanceCache, false, false); err != nil {
			return err
		}
	}

	journal, err := c.store.readJournal()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	if journal != nil {
		if _, err := c.addFromBytesLocked(journal, ProvenanceJournal, false, false); err != nil {
			return err
		}
	}

	// journal_len is the on-disk journal's byte length (invariant 4), not
	// whatever this process happened to append through its own handle —
	// it must be set here explicitly rather than left to accumulate only
	// from future AddRecords calls, or a process restart would forget how
	// large the journal already is and never trigger a rebuild.
	c.journalLen = int64(len(journal))

	return nil
}

// AddFromBytes parses data and adds every decoded record to the index
// (§4.1, §4.5) as freshly learned records (hint ProvenanceNowhere): each
// is appended to the journal and becomes ProvenanceJournal, unless noSave
// is set, in which case it stays ProvenanceNowhere. The journal and cache
// provenances are used only by the internal reload path; this method
// offers no way to request them.
func (c *Cache) AddFromBytes(data []byte, noSave bool) ([]*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	return c.addFromBytesLocked(data, ProvenanceNowhere, noSave, true)
}

func (c *Cache) addFromBytesLocked(data []byte, hint Provenance, noSave, checkRebuild bool) ([]*Record, error) {
	allowAnnotations := hint != ProvenanceNowhere
	copyBody := hint != ProvenanceCache

	parsed, err := c.opts.Parser.Parse(data, allowAnnotations, copyBody)
	if err != nil {
		return nil, fmt.Errorf("%w: parse: %w", ErrInvalidInput, err)
	}

	records := make([]*Record, len(parsed))
	for i, p := range parsed {
		records[i] = newRecordFromParsed(p)
	}

	return c.addRecordsLocked(records, hint, noSave, checkRebuild)
}

// AddRecords adds already-parsed records to the index (§4.5's add_records,
// for callers that assembled Records some other way than [Cache.AddFromBytes]).
func (c *Cache) AddRecords(records []*Record, noSave bool) ([]*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	return c.addRecordsLocked(records, ProvenanceNowhere, noSave, true)
}

func (c *Cache) addRecordsLocked(records []*Record, hint Provenance, noSave, checkRebuild bool) ([]*Record, error) {
	var (
		journal *journalHandle
		err     error
	)

	if hint == ProvenanceNowhere && !noSave {
		journal, err = c.openJournal()
		if err != nil {
			// Kind 1 (§7): the whole batch is refused, in-memory state
			// unchanged.
			c.opts.Warnf("microdesc: open journal for append: %v", err)

			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}

		defer journal.Close()
	}

	added := make([]*Record, 0, len(records))

	for _, r := range records {
		if existing, ok := c.idx.find(r.Digest); ok {
			existing.mergeLastListed(r)
			r.destroy()

			continue
		}

		if journal != nil {
			total, derr := journal.dump(r)
			if derr != nil {
				// Kind 2 (§7): skip just this record.
				c.opts.Warnf("microdesc: journal append: skipping digest %x: %v", r.Digest, derr)
				r.destroy()

				continue
			}

			r.provenance = ProvenanceJournal
			c.journalLen += int64(total)
		} else {
			r.provenance = hint
		}

		r.noSave = noSave

		c.idx.insert(r)

		added = append(added, r)
		c.nSeen++
		c.totalLenSeen += uint64(r.BodyLen())
	}

	if checkRebuild && c.shouldRebuild() {
		if _, err := c.rebuildLocked(); err != nil {
			// Kind 3 (§7): only rebuild catastrophes are surfaced to the
			// caller; records already added remain added.
			return added, err
		}
	}

	return added, nil
}

// journalHandle threads the running write position across every dump in
// one append session, and closes the file once the caller is done with it.
type journalHandle struct {
	f   *os.File
	pos int64
}

func (c *Cache) openJournal() (*journalHandle, error) {
	f, err := c.store.openJournalAppend()
	if err != nil {
		return nil, err
	}

	return &journalHandle{f: f, pos: c.journalLen}, nil
}

func (h *journalHandle) dump(r *Record) (int, error) {
	_, total, err := dumpRecord(h.f, &h.pos, r)
	return total, err
}

func (h *journalHandle) Close() error {
	return h.f.Close()
}

// shouldRebuild implements the boundary condition from §4.5: the journal
// is rewritten into the sealed cache once it has grown past both an
// absolute floor and a multiple of the current cache size.
func (c *Cache) shouldRebuild() bool {
	cacheSize := int64(len(c.mmap))

	return c.journalLen > rebuildThresholdBase+cacheSize &&
		c.journalLen > rebuildThresholdFactor*cacheSize
}

// RebuildStats reports what a [Cache.Rebuild] did.
type RebuildStats struct {
	BeforeBytes    int64
	AfterBytes     int64
	RecordsWritten int
	RecordsSkipped int
}

// Rebuild forces a rebuild regardless of the journal-size trigger (§4.5
// step 6-9, exposed directly per the supplemented CLI/ops use case).
func (c *Cache) Rebuild() (RebuildStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return RebuildStats{}, ErrClosed
	}

	return c.rebuildLocked()
}

func (c *Cache) rebuildLocked() (RebuildStats, error) {
	before := int64(len(c.mmap)) + c.journalLen

	buf := &bytes.Buffer{}

	var (
		pos     int64
		wrote   []*Record
		skipped int
	)

	// Every surviving record is re-dumped and will end up pointing into
	// the new mmap generation — including ones that were already
	// ProvenanceCache, since the mmap they alias today is about to be
	// unmapped wholesale. Only records not already backed by the cache
	// need their old heap body dropped; all of them need re-pointing, or
	// stale entries from the previous generation would dangle the moment
	// the old mapping is released (invariant 5).
	c.idx.each(func(r *Record) {
		if r.noSave {
			return
		}

		_, _, err := dumpRecord(buf, &pos, r)
		if err != nil {
			c.opts.Warnf("microdesc: rebuild: skipping digest %x: %v", r.Digest, err)
			skipped++

			return
		}

		wrote = append(wrote, r)
	})

	if err := c.store.replaceCacheFile(buf.Bytes()); err != nil {
		// The old cache file and mmap are untouched (§7 kind 3): nothing
		// has been remapped yet, so the live Cache stays exactly as
		// usable as before the call.
		return RebuildStats{}, fmt.Errorf("%w: %w", ErrIO, err)
	}

	oldMmap := c.mmap
	newMmap, err := c.store.mapCache()

	if err != nil || (newMmap == nil && len(wrote) > 0) {
		// The replace already committed: retry mapping the same
		// (now-correct) path once before giving up, per the design's
		// recommended recovery for a remap that transiently fails right
		// after an atomic replace.
		newMmap, err = c.store.mapCache()
		if err != nil || (newMmap == nil && len(wrote) > 0) {
			return RebuildStats{}, ErrRebuildDangling
		}
	}

	_ = c.store.unmap(oldMmap)
	c.mmap = newMmap

	for _, r := range wrote {
		length := r.BodyLen()

		r.becomeCacheBody(c.mmap, r.offset, length)

		if !bytes.HasPrefix(r.body, []byte(onionKeyMarker)) {
			panic("microdesc: rebuilt record does not start with onion-key marker")
		}
	}

	if err := c.store.truncateJournal(); err != nil {
		return RebuildStats{}, fmt.Errorf("%w: %w", ErrIO, err)
	}

	c.journalLen = 0

	return RebuildStats{
		BeforeBytes:    before,
		AfterBytes:     int64(len(c.mmap)),
		RecordsWritten: len(wrote),
		RecordsSkipped: skipped,
	}, nil
}

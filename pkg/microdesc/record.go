package microdesc

import (
	"time"

	"github.com/flupzor/microdesc-cache/pkg/microdesc/mdcrypto"
)

// Record is an immutable value object representing one microdescriptor:
// body bytes plus parsed metadata (C1).
//
// A Record's body bytes live either in a heap allocation the Record owns
// exclusively, or as an alias into the Cache's current memory map — see
// [Record.Provenance]. Callers must never retain [Record.Body] past the
// next call that mutates the owning Cache (AddRecords, Clear, Reload,
// Rebuild, Close): a rebuild may re-point or free it.
type Record struct {
	// Digest is the 32-byte content identifier and the digest index's key.
	Digest Digest

	body       []byte
	offset     int64
	lastListed time.Time
	provenance Provenance
	noSave     bool

	onionPKey   *mdcrypto.PublicKey
	family      []string
	exitSummary string
}

// Body returns the record's canonical text bytes. Do not retain past the
// Cache operation that produced it; see the provenance note on [Record].
func (r *Record) Body() []byte { return r.body }

// BodyLen returns len(r.Body()).
func (r *Record) BodyLen() int { return len(r.body) }

// Offset is the byte offset into the current sealed cache file where Body
// begins. Meaningful only when Provenance() == ProvenanceCache.
func (r *Record) Offset() int64 { return r.offset }

// LastListed is the optional timestamp annotation carried from the
// journal. The zero Time means "unset".
func (r *Record) LastListed() time.Time { return r.lastListed }

// Provenance reports where the record's body bytes currently live.
func (r *Record) Provenance() Provenance { return r.provenance }

// NoSave reports whether the record is excluded from the next rebuild and
// was not written to the journal.
func (r *Record) NoSave() bool { return r.noSave }

// OnionPKey is the record's parsed relay public key, or nil if the parser
// could not decode one.
func (r *Record) OnionPKey() *mdcrypto.PublicKey { return r.onionPKey }

// Family is the record's parsed family fingerprint list, possibly empty.
func (r *Record) Family() []string { return r.family }

// ExitSummary is the record's parsed exit-policy summary line, or "" if
// absent.
func (r *Record) ExitSummary() string { return r.exitSummary }

// newRecordFromParsed builds a Record from a parser result. Provenance is
// left at its zero value (ProvenanceNowhere); the caller (AddRecords) sets
// the real provenance once it knows whether a journal handle is open.
func newRecordFromParsed(p ParsedRecord) *Record {
	return &Record{
		Digest:      p.Digest,
		body:        p.Body,
		offset:      p.Offset,
		lastListed:  p.LastListed,
		onionPKey:   p.OnionPKey,
		family:      p.Family,
		exitSummary: p.ExitSummary,
	}
}

// mergeLastListed implements the §4.5 duplicate-merge rule: last_listed is
// taken as the max of the existing and incoming record's value.
func (r *Record) mergeLastListed(other *Record) {
	if other.lastListed.After(r.lastListed) {
		r.lastListed = other.lastListed
	}
}

// becomeCacheBody re-points the record at its region of a freshly rebuilt
// mmap, dropping any previously owned heap body. Rebuild uses it to move
// records into ProvenanceCache (C6, §4.1, §4.5 step 8); records loaded
// from the cache file by a reload get ProvenanceCache from
// addRecordsLocked instead.
//
// The caller is responsible for the ordering invariant in §3 invariant 5:
// this must only be invoked once the new mmap is bound, never in the
// window between unmapping the old one and binding the new one.
func (r *Record) becomeCacheBody(mmap []byte, offset int64, length int) {
	r.body = mmap[offset : offset+int64(length)]
	r.offset = offset
	r.provenance = ProvenanceCache
}

// destroy releases everything a Record owns. Per §4.1: the heap body is
// freed only if provenance != ProvenanceCache, since otherwise the mmap
// owns those bytes. The crypto collaborator's key-release hook is invoked
// exactly once.
func (r *Record) destroy() {
	if r.provenance != ProvenanceCache {
		r.body = nil
	}

	mdcrypto.Release(r.onionPKey)

	r.onionPKey = nil
	r.family = nil
	r.exitSummary = ""
}

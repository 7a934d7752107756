package microdesc

// DigestSize is the length in bytes of a microdescriptor's content digest
// (SHA-256).
const DigestSize = 32

// Digest is a 256-bit content identifier. It is the primary key of the
// digest index (C2) and is assumed unique.
type Digest [DigestSize]byte

// Provenance records where a Record's body bytes currently live.
//
// See §3 invariants 1-2 and §4.1: ProvenanceCache bodies alias the live
// mmap and must never be freed by the Record; any other provenance means
// the body is a heap allocation exclusively owned by the Record.
type Provenance uint8

const (
	// ProvenanceNowhere means the body is an owned heap copy that has not
	// been written to the journal (e.g. no_save records, or records added
	// before the journal handle was known to be droppable).
	ProvenanceNowhere Provenance = iota

	// ProvenanceJournal means the body is an owned heap copy whose bytes
	// are also durably appended to the journal file.
	ProvenanceJournal

	// ProvenanceCache means the body aliases bytes [Offset, Offset+len)
	// of the Cache's current memory map. Record.Offset is meaningful only
	// in this state.
	ProvenanceCache
)

// String implements fmt.Stringer for debugging and test failure output.
func (p Provenance) String() string {
	switch p {
	case ProvenanceNowhere:
		return "NOWHERE"
	case ProvenanceJournal:
		return "IN_JOURNAL"
	case ProvenanceCache:
		return "IN_CACHE"
	default:
		return "UNKNOWN"
	}
}

// onionKeyMarker is the literal prefix every microdescriptor body begins
// with. Rebuild asserts the re-pointed body still starts with this marker
// (§4.5 step 8).
const onionKeyMarker = "onion-key"

// DefaultCacheFileName and DefaultJournalFileName are the file names used
// when Options does not override them (§6).
const (
	DefaultCacheFileName   = "cached-microdescs"
	DefaultJournalFileName = "cached-microdescs.new"
)

// rebuildThresholdBase and rebuildThresholdFactor implement the rebuild
// trigger from §4.5 step 4 / §8: rebuild fires iff
// journal_len > 16KiB+mmap_size AND journal_len > 2*mmap_size.
const (
	rebuildThresholdBase   = 16 * 1024
	rebuildThresholdFactor = 2
)

// defaultAverageBodySize is returned by AverageBodySize when no record has
// ever been seen (§4.5, §8).
const defaultAverageBodySize = 512

// filePerm is the permission mode both the cache file and journal are
// created with (§6).
const filePerm = 0o600

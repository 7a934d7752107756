package microdesc

// digestIndex is the mapping from 256-bit digest to Record handle (C2).
// Keys are unique; iteration order is unspecified but stable across a
// single uninterrupted traversal, matching Go's own map iteration
// semantics closely enough that we lean on a plain map rather than
// reimplementing open addressing by hand — unlike the on-disk slot hash
// table this index never needs to survive a process restart, so there is
// no format to keep compatible.
type digestIndex struct {
	m map[Digest]*Record
}

func newDigestIndex() *digestIndex {
	return &digestIndex{m: make(map[Digest]*Record)}
}

// insert adds r keyed by r.Digest. The caller must ensure no entry for
// that digest already exists.
func (idx *digestIndex) insert(r *Record) {
	idx.m[r.Digest] = r
}

// find returns the record for digest, or (nil, false) if absent.
func (idx *digestIndex) find(digest Digest) (*Record, bool) {
	r, ok := idx.m[digest]
	return r, ok
}

// remove deletes and returns the record for digest, or (nil, false).
func (idx *digestIndex) remove(digest Digest) (*Record, bool) {
	r, ok := idx.m[digest]
	if !ok {
		return nil, false
	}

	delete(idx.m, digest)

	return r, true
}

// len returns the number of records currently indexed.
func (idx *digestIndex) len() int {
	return len(idx.m)
}

// each calls fn once per record. fn must not insert or remove entries.
func (idx *digestIndex) each(fn func(*Record)) {
	for _, r := range idx.m {
		fn(r)
	}
}

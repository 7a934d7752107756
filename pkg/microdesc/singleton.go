package microdesc

import "sync"

var (
	defaultMu    sync.Mutex
	defaultCache *Cache
)

// Default returns the process-wide Cache rooted at dir, opening it on
// first use and reusing the same instance on subsequent calls regardless
// of dir. Most programs want a single instance per directory passed to
// [Open] instead; Default exists for callers that treat the
// microdescriptor cache as process-global state, the way a directory
// authority client typically does.
func Default(dir string, opts Options) (*Cache, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCache != nil {
		return defaultCache, nil
	}

	opts.Dir = dir

	c, err := Open(opts)
	if err != nil {
		return nil, err
	}

	defaultCache = c

	return c, nil
}

// FreeAll closes and forgets the process-wide Cache created by [Default],
// if any. Subsequent calls to Default open a fresh instance.
func FreeAll() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCache == nil {
		return nil
	}

	err := defaultCache.Close()
	defaultCache = nil

	return err
}

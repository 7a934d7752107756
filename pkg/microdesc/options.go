package microdesc

import "fmt"

// Options configures [Open]. Dir and Parser are required; the file names
// default to the conventional pair used throughout this package.
type Options struct {
	// Dir is the data directory holding the cache and journal files. It
	// must already exist.
	Dir string

	// CacheFileName and JournalFileName default to DefaultCacheFileName
	// and DefaultJournalFileName.
	CacheFileName   string
	JournalFileName string

	// Parser decodes the on-disk entry format (§6). There is no built-in
	// default here: microdesc/mdparse implements it, but this package
	// cannot import mdparse without an import cycle (mdparse imports
	// microdesc for the Parser/ParsedRecord types it satisfies), so
	// callers wire in mdparse.New() (or their own parser) explicitly. See
	// cmd/mdcached for the wiring.
	Parser Parser

	// Warnf, if set, receives a printf-style message for conditions this
	// package tolerates but that a caller may still want surfaced (e.g. a
	// record skipped because its journal append or rebuild write failed).
	Warnf func(format string, args ...any)
}

func (o *Options) setDefaults() error {
	if o.Dir == "" {
		return fmt.Errorf("%w: Dir is required", ErrInvalidInput)
	}

	if o.Parser == nil {
		return fmt.Errorf("%w: Parser is required", ErrInvalidInput)
	}

	if o.CacheFileName == "" {
		o.CacheFileName = DefaultCacheFileName
	}

	if o.JournalFileName == "" {
		o.JournalFileName = DefaultJournalFileName
	}

	if o.Warnf == nil {
		o.Warnf = func(string, ...any) {}
	}

	return nil
}

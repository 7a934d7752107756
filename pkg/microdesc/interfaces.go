package microdesc

import (
	"time"

	"github.com/flupzor/microdesc-cache/pkg/microdesc/mdcrypto"
)

// Parser is the external collaborator (§6, out of scope per §1) that turns
// raw text into parsed records. [github.com/flupzor/microdesc-cache/pkg/microdesc/mdparse]
// provides the default implementation; callers may substitute their own
// (e.g. to reuse an existing directory-protocol parser).
type Parser interface {
	// Parse decodes every microdescriptor entry in data.
	//
	// allowAnnotations must be false when provenanceHint is
	// ProvenanceNowhere (§4.5 step 1: "Annotations are permitted iff
	// provenance_hint != NOWHERE").
	//
	// copyBody controls whether each ParsedRecord.Body is a heap copy or
	// an alias into data (§4.1: copy_body is false only when parsing
	// directly out of the live mmap during reload).
	Parse(data []byte, allowAnnotations, copyBody bool) ([]ParsedRecord, error)
}

// ParsedRecord is one microdescriptor as produced by a [Parser]. Its
// Provenance is left for the Cache engine to set (§6).
type ParsedRecord struct {
	Digest Digest

	// Body is the record's canonical bytes: a heap copy if the parser was
	// asked to copy, or a subslice of the input data otherwise.
	Body []byte

	// Offset is the byte offset of Body within the input data that was
	// parsed. Meaningful only when the caller goes on to treat this as an
	// IN_CACHE record (i.e. data was the live mmap).
	Offset int64

	// LastListed is the optional @last-listed annotation; zero means
	// unset.
	LastListed time.Time

	OnionPKey   *mdcrypto.PublicKey
	Family      []string
	ExitSummary string
}

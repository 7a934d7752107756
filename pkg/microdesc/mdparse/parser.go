// Package mdparse implements the parser collaborator for the
// microdescriptor cache: turning a raw byte range (the contents of a cache
// file or journal file) into a list of parsed records.
//
// The cache engine treats parsing as an external collaborator; this
// package supplies a concrete implementation of the on-disk entry format
// so the module builds and runs end-to-end. Callers that already have
// their own directory-protocol parser can satisfy
// [github.com/flupzor/microdesc-cache/pkg/microdesc.Parser] directly
// instead.
package mdparse

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/flupzor/microdesc-cache/pkg/microdesc"
	"github.com/flupzor/microdesc-cache/pkg/microdesc/mdcrypto"
)

const (
	annotationPrefix = "@last-listed "
	onionKeyLine     = "onion-key"
	pemBeginLine     = "-----BEGIN RSA PUBLIC KEY-----"
	pemEndLine       = "-----END RSA PUBLIC KEY-----"

	// timeLayout matches §4.4's "YYYY-MM-DD HH:MM:SS" ISO-8601-ish UTC
	// format (no "T" separator, no zone suffix — the zone is always UTC).
	timeLayout = "2006-01-02 15:04:05"
)

// trailingFieldPrefixes are the optional per-entry fields that may follow
// the mandatory onion-key/RSA-key block. Any line that doesn't match one
// of these (and isn't the start of the next entry) ends the current
// entry; everything from there until the next recognized boundary is
// stray and is silently discarded, which is how a torn trailing write
// survives reload without error (§1 non-goals, §9 open questions).
var trailingFieldPrefixes = []string{"family ", "p ", "p6 ", "ntor-onion-key "}

// Parser is the default [microdesc.Parser] implementation.
type Parser struct{}

// New returns a ready-to-use Parser. It holds no state.
func New() *Parser { return &Parser{} }

// Parse implements [microdesc.Parser].
func (Parser) Parse(data []byte, allowAnnotations, copyBody bool) ([]microdesc.ParsedRecord, error) {
	var records []microdesc.ParsedRecord

	var pendingLastListed time.Time

	pos := 0
	for pos < len(data) {
		start, end, next, ok := nextLine(data, pos)
		if !ok {
			break
		}

		line := data[start:end]

		if allowAnnotations && bytes.HasPrefix(line, []byte(annotationPrefix)) {
			if t, err := parseAnnotation(line); err == nil {
				pendingLastListed = t
			}

			pos = next

			continue
		}

		if !bytes.Equal(line, []byte(onionKeyLine)) {
			// Stray content outside any entry: discard and keep scanning.
			pos = next

			continue
		}

		entryStart := start

		rec, entryEnd, resumeAt, complete := parseEntry(data, next)
		if !complete {
			pendingLastListed = time.Time{}
			pos = resumeAt

			continue
		}

		body := data[entryStart:entryEnd]
		if copyBody {
			owned := make([]byte, len(body))
			copy(owned, body)
			body = owned
		}

		rec.Body = body
		rec.Offset = int64(entryStart)
		rec.Digest = sha256.Sum256(data[entryStart:entryEnd])
		rec.LastListed = pendingLastListed

		records = append(records, rec)

		pendingLastListed = time.Time{}
		pos = entryEnd
	}

	return records, nil
}

// parseEntry scans one microdescriptor entry starting right after its
// "onion-key" line (bodyAfterMarker points at the mandatory PEM block). It
// returns the populated record (Body/Offset/Digest/LastListed left unset -
// the caller fills those in once it knows the full entry span), the byte
// offset the entry ends at, where to resume scanning if the entry turns
// out to be incomplete, and whether a complete entry was found at all.
func parseEntry(data []byte, bodyAfterMarker int) (rec microdesc.ParsedRecord, entryEnd, resumeAt int, complete bool) {
	bstart, bend, bnext, bok := nextLine(data, bodyAfterMarker)
	if !bok || !bytes.Equal(data[bstart:bend], []byte(pemBeginLine)) {
		return microdesc.ParsedRecord{}, 0, bodyAfterMarker, false
	}

	pemStart := bstart
	pos := bnext

	var pemEnd int

	found := false

	for pos < len(data) {
		ls, le, ln, lok := nextLine(data, pos)
		if !lok {
			break
		}

		line := data[ls:le]

		if bytes.Equal(line, []byte(pemEndLine)) {
			pemEnd = ln
			pos = ln
			found = true

			break
		}

		if bytes.Equal(line, []byte(onionKeyLine)) {
			// Next entry starts before we ever saw an END marker: this
			// entry is torn. Resume scanning at the next entry's start.
			return microdesc.ParsedRecord{}, 0, ls, false
		}

		pos = ln
	}

	if !found {
		return microdesc.ParsedRecord{}, 0, len(data), false
	}

	entryEnd = pemEnd

	// Consume recognized trailing fields (family, exit policy summary,
	// ntor-onion-key) so the digest span covers exactly the bytes a
	// conforming producer would have written for this entry.
	for pos < len(data) {
		ls, le, ln, lok := nextLine(data, pos)
		if !lok {
			break
		}

		line := data[ls:le]
		if bytes.Equal(line, []byte(onionKeyLine)) {
			break
		}

		if !hasAnyPrefix(line, trailingFieldPrefixes) {
			break
		}

		if bytes.HasPrefix(line, []byte("family ")) {
			rec.Family = strings.Fields(strings.TrimPrefix(string(line), "family "))
		} else if bytes.HasPrefix(line, []byte("p ")) || bytes.HasPrefix(line, []byte("p6 ")) {
			rec.ExitSummary = string(line)
		}

		pos = ln
		entryEnd = ln
	}

	if key, err := mdcrypto.DecodeOnionKey(data[pemStart:pemEnd]); err == nil {
		rec.OnionPKey = key
	}

	return rec, entryEnd, 0, true
}

// nextLine returns the [start,end) span of the line beginning at pos
// (excluding its trailing '\n'), and the offset the following line starts
// at. ok is false once pos is at or past len(data).
func nextLine(data []byte, pos int) (start, end, next int, ok bool) {
	if pos >= len(data) {
		return 0, 0, 0, false
	}

	idx := bytes.IndexByte(data[pos:], '\n')
	if idx < 0 {
		return pos, len(data), len(data), true
	}

	return pos, pos + idx, pos + idx + 1, true
}

func hasAnyPrefix(line []byte, prefixes []string) bool {
	for _, p := range prefixes {
		if bytes.HasPrefix(line, []byte(p)) {
			return true
		}
	}

	return false
}

func parseAnnotation(line []byte) (time.Time, error) {
	ts := strings.TrimPrefix(string(line), annotationPrefix)

	t, err := time.ParseInLocation(timeLayout, ts, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("mdparse: parse @last-listed: %w", err)
	}

	return t, nil
}

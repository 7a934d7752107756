package microdesc

import (
	"fmt"
	"io"
)

// annotationTimeLayout is "YYYY-MM-DD HH:MM:SS", the ISO-8601-ish UTC
// format §4.4 mandates for the @last-listed annotation.
const annotationTimeLayout = "2006-01-02 15:04:05"

// dumpRecord serializes one Record to w (C4).
//
// If r.LastListed is set, a "@last-listed <timestamp>\n" line is written
// first and its length returned as annotationLen. The stream position
// *pos (tracked by the caller across however many records it writes in
// one session — a journal-append session or a whole rebuild) is captured
// into r.offset right before the body is written, so offset always points
// at the body's "onion-key" marker and never at the annotation.
//
// On any partial/failed write, dumpRecord returns an error and the caller
// must skip this record (§7 kind 2) rather than insert a half-written one.
func dumpRecord(w io.Writer, pos *int64, r *Record) (annotationLen, total int, err error) {
	if !r.lastListed.IsZero() {
		line := fmt.Sprintf("@last-listed %s\n", r.lastListed.UTC().Format(annotationTimeLayout))

		n, werr := writeAll(w, []byte(line))
		if werr != nil {
			return 0, 0, fmt.Errorf("microdesc: write annotation: %w", werr)
		}

		annotationLen = n
		*pos += int64(n)
	}

	r.offset = *pos

	n, werr := writeAll(w, r.body)
	if werr != nil {
		return annotationLen, annotationLen, fmt.Errorf("microdesc: write body: %w", werr)
	}

	*pos += int64(n)
	total = annotationLen + n

	return annotationLen, total, nil
}

// writeAll writes all of p to w, treating a short write (possible on a
// real file descriptor, though never on an in-memory buffer) as an error
// rather than silently truncating.
func writeAll(w io.Writer, p []byte) (int, error) {
	n, err := w.Write(p)
	if err != nil {
		return n, err
	}

	if n != len(p) {
		return n, fmt.Errorf("short write: wrote %d of %d bytes", n, len(p))
	}

	return n, nil
}

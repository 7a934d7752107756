package mdparse_test

import (
	"strings"
	"testing"

	"github.com/flupzor/microdesc-cache/pkg/microdesc/mdparse"
)

const pemKey = "-----BEGIN RSA PUBLIC KEY-----\n" +
	"MBgCEQC1sCR/XoSPWAC5yDkyJZCDAgMBAAE=\n" +
	"-----END RSA PUBLIC KEY-----\n"

func oneEntry(extra string) string {
	return "onion-key\n" + pemKey + extra
}

func Test_Parser_DecodesOneCompleteEntry(t *testing.T) {
	t.Parallel()

	p := mdparse.New()

	recs, err := p.Parse([]byte(oneEntry("")), false, true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}

	if !strings.HasPrefix(string(recs[0].Body), "onion-key") {
		t.Fatalf("body does not start with onion-key marker: %q", recs[0].Body)
	}
}

func Test_Parser_DiscardsTornTrailingEntry_WithoutError(t *testing.T) {
	t.Parallel()

	p := mdparse.New()

	data := oneEntry("") + "onion-key\n-----BEGIN RSA PUBLIC KEY-----\nMBg"

	recs, err := p.Parse([]byte(data), false, true)
	if err != nil {
		t.Fatalf("Parse returned error for torn trailing entry: %v", err)
	}

	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1 (torn entry must be silently dropped)", len(recs))
	}
}

func Test_Parser_IgnoresAnnotation_When_NotAllowed(t *testing.T) {
	t.Parallel()

	p := mdparse.New()

	data := "@last-listed 2024-01-02 03:04:05\n" + oneEntry("")

	recs, err := p.Parse([]byte(data), false, true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}

	if !recs[0].LastListed.IsZero() {
		t.Fatalf("LastListed = %v, want zero (annotations disallowed)", recs[0].LastListed)
	}
}

func Test_Parser_ParsesAnnotation_When_Allowed(t *testing.T) {
	t.Parallel()

	p := mdparse.New()

	data := "@last-listed 2024-01-02 03:04:05\n" + oneEntry("")

	recs, err := p.Parse([]byte(data), true, true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}

	if recs[0].LastListed.IsZero() {
		t.Fatal("LastListed is zero, want parsed timestamp")
	}
}

func Test_Parser_ParsesFamilyAndExitSummary(t *testing.T) {
	t.Parallel()

	p := mdparse.New()

	data := oneEntry("family $AAAA $BBBB\np accept 80,443\n")

	recs, err := p.Parse([]byte(data), false, true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}

	if got, want := recs[0].Family, []string{"$AAAA", "$BBBB"}; len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Family = %v, want %v", got, want)
	}

	if recs[0].ExitSummary != "p accept 80,443" {
		t.Fatalf("ExitSummary = %q, want %q", recs[0].ExitSummary, "p accept 80,443")
	}
}

func Test_Parser_MultipleEntries_ProduceDistinctDigests(t *testing.T) {
	t.Parallel()

	p := mdparse.New()

	data := oneEntry("family $AAAA\n") + oneEntry("family $BBBB\n")

	recs, err := p.Parse([]byte(data), false, true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}

	if recs[0].Digest == recs[1].Digest {
		t.Fatal("distinct entries hashed to the same digest")
	}
}

func Test_Parser_CopyBodyFalse_AliasesInput(t *testing.T) {
	t.Parallel()

	p := mdparse.New()

	input := []byte(oneEntry(""))

	recs, err := p.Parse(input, false, false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}

	// Mutate the input after the fact: an aliased body observes the
	// change, a copy would not.
	original := recs[0].Body[0]
	input[0] = 'X'

	if recs[0].Body[0] == original {
		t.Fatal("Body does not alias input even though copyBody was false")
	}
}

// mdcached is a small CLI over a microdescriptor cache directory.
//
// Usage:
//
//	mdcached --datadir DIR --seed file.hujson   Bulk-load records from a seed file
//	mdcached --datadir DIR --rebuild            Force a rebuild, print stats
//	mdcached --datadir DIR lookup               Start an interactive digest lookup shell
package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/flupzor/microdesc-cache/pkg/microdesc"
	"github.com/flupzor/microdesc-cache/pkg/microdesc/mdparse"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mdcached: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("mdcached", flag.ContinueOnError)

	datadir := fs.String("datadir", "", "cache data directory (required)")
	rebuild := fs.Bool("rebuild", false, "force a rebuild and print stats")
	seed := fs.String("seed", "", "seed file (JSON-with-comments array of {\"body\": raw microdescriptor text} objects) to load")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: mdcached --datadir DIR [options] [lookup]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *datadir == "" {
		fs.Usage()
		return errors.New("--datadir is required")
	}

	if err := os.MkdirAll(*datadir, 0o700); err != nil {
		return fmt.Errorf("create datadir: %w", err)
	}

	cache, err := microdesc.Open(microdesc.Options{
		Dir:    *datadir,
		Parser: mdparse.New(),
		Warnf: func(format string, a ...any) {
			fmt.Fprintf(os.Stderr, "warn: "+format+"\n", a...)
		},
	})
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer cache.Close()

	if *seed != "" {
		if err := loadSeed(cache, *seed); err != nil {
			return err
		}
	}

	if *rebuild {
		stats, err := cache.Rebuild()
		if err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}

		fmt.Printf("rebuilt: %d written, %d skipped, %d -> %d bytes\n",
			stats.RecordsWritten, stats.RecordsSkipped, stats.BeforeBytes, stats.AfterBytes)
	}

	if fs.NArg() > 0 && fs.Arg(0) == "lookup" {
		return runLookupShell(cache)
	}

	return nil
}

// seedEntry is one element of a --seed file, which is a JSON-with-comments
// array of objects whose "body" field holds raw microdescriptor text; each
// body is fed through AddFromBytes.
type seedEntry struct {
	Body string `json:"body"`
}

func loadSeed(cache *microdesc.Cache, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("invalid JSONC seed file: %w", err)
	}

	var entries []seedEntry
	if err := json.Unmarshal(standardized, &entries); err != nil {
		return fmt.Errorf("invalid seed file: %w", err)
	}

	total := 0

	for i, e := range entries {
		added, err := cache.AddFromBytes([]byte(e.Body), false)
		if err != nil {
			return fmt.Errorf("seed entry %d: %w", i, err)
		}

		total += len(added)
	}

	fmt.Printf("loaded %d records from %s\n", total, path)

	return nil
}

// runLookupShell starts a liner-backed REPL for digest lookups against the
// already-open cache.
func runLookupShell(cache *microdesc.Cache) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	fmt.Println("mdcached lookup shell. Enter a hex digest, or 'avg'/'rebuild'/'quit'.")

	for {
		input, err := line.Prompt("mdcached> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		switch input {
		case "quit", "exit", "q":
			return nil
		case "avg":
			fmt.Printf("average body size: %d\n", cache.AverageBodySize())

			continue
		case "rebuild":
			stats, err := cache.Rebuild()
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}

			fmt.Printf("rebuilt: %d written, %d skipped, %d -> %d bytes\n",
				stats.RecordsWritten, stats.RecordsSkipped, stats.BeforeBytes, stats.AfterBytes)

			continue
		}

		digest, err := parseDigest(input)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}

		rec, ok := cache.Lookup(digest)
		if !ok {
			fmt.Println("(not found)")
			continue
		}

		fmt.Printf("digest:      %s\n", input)
		fmt.Printf("provenance:  %s\n", rec.Provenance())
		fmt.Printf("body length: %d\n", rec.BodyLen())
		fmt.Printf("last-listed: %s\n", rec.LastListed())

		if fam := rec.Family(); len(fam) > 0 {
			fmt.Printf("family:      %s\n", strings.Join(fam, " "))
		}
	}
}

func parseDigest(s string) (microdesc.Digest, error) {
	var d microdesc.Digest

	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("invalid hex digest: %w", err)
	}

	if len(raw) != microdesc.DigestSize {
		return d, fmt.Errorf("digest must be %d bytes, got %d", microdesc.DigestSize, len(raw))
	}

	copy(d[:], raw)

	return d, nil
}

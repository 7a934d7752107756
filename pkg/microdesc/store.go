package microdesc

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/natefinch/atomic"
)

// store is the backing store and memory map (C3): two named files in a
// data directory, plus whatever mapping is currently live over the sealed
// cache file.
//
// store itself holds no mapping state — Cache owns the current []byte
// returned by mapCache, because the mapping's lifetime is tied to the
// digest index's records, not to the store.
type store struct {
	dir         string
	cacheName   string
	journalName string
}

func newStore(dir, cacheName, journalName string) *store {
	return &store{dir: dir, cacheName: cacheName, journalName: journalName}
}

func (s *store) cachePath() string   { return filepath.Join(s.dir, s.cacheName) }
func (s *store) journalPath() string { return filepath.Join(s.dir, s.journalName) }

// openJournalAppend opens the journal for appending, creating it with
// mode 0600 if absent (§4.3).
func (s *store) openJournalAppend() (*os.File, error) {
	f, err := os.OpenFile(s.journalPath(), os.O_WRONLY|os.O_CREATE|os.O_APPEND, filePerm)
	if err != nil {
		return nil, fmt.Errorf("open journal for append: %w", err)
	}

	return f, nil
}

// readJournal reads the whole journal file, returning (nil, nil) if it
// does not exist (§4.5 reload step 3: "ignore if missing").
func (s *store) readJournal() ([]byte, error) {
	b, err := os.ReadFile(s.journalPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	return b, nil
}

// truncateJournal replaces the journal with empty contents (§4.3, §4.5
// rebuild step 9).
func (s *store) truncateJournal() error {
	if err := os.WriteFile(s.journalPath(), nil, filePerm); err != nil {
		return fmt.Errorf("truncate journal: %w", err)
	}

	return nil
}

// mapCache maps the cache file read-only, returning (nil, nil) if the
// file is absent or empty (§4.3).
func (s *store) mapCache() ([]byte, error) {
	f, err := os.Open(s.cachePath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("open cache file: %w", err)
	}

	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat cache file: %w", err)
	}

	if fi.Size() == 0 {
		return nil, nil
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap cache file: %w", err)
	}

	return data, nil
}

// unmap releases a mapping previously returned by mapCache. Safe to call
// with nil (§4.3: "returns none if absent or empty").
func (s *store) unmap(data []byte) error {
	if data == nil {
		return nil
	}

	if err := syscall.Munmap(data); err != nil {
		return fmt.Errorf("munmap cache file: %w", err)
	}

	return nil
}

// replaceCacheFile atomically replaces the cache file's contents with buf:
// write to a temporary sibling, rename on success, so a crash mid-rebuild
// never leaves a half-written cache file in place.
func (s *store) replaceCacheFile(buf []byte) error {
	if err := atomic.WriteFile(s.cachePath(), bytes.NewReader(buf)); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}

	return nil
}

package microdesc

import (
	"os"
	"path/filepath"
	"testing"
)

func Test_Store_MapCache_ReturnsNilWhenAbsentOrEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newStore(dir, DefaultCacheFileName, DefaultJournalFileName)

	mmap, err := s.mapCache()
	if err != nil || mmap != nil {
		t.Fatalf("expected (nil, nil) for absent cache file, got (%v, %v)", mmap, err)
	}

	if err := os.WriteFile(s.cachePath(), nil, filePerm); err != nil {
		t.Fatalf("write empty cache file: %v", err)
	}

	mmap, err = s.mapCache()
	if err != nil || mmap != nil {
		t.Fatalf("expected (nil, nil) for empty cache file, got (%v, %v)", mmap, err)
	}
}

func Test_Store_MapCache_MapsNonEmptyFileReadOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newStore(dir, DefaultCacheFileName, DefaultJournalFileName)

	want := "onion-key\nsome body bytes"
	if err := os.WriteFile(s.cachePath(), []byte(want), filePerm); err != nil {
		t.Fatalf("write cache file: %v", err)
	}

	mmap, err := s.mapCache()
	if err != nil {
		t.Fatalf("mapCache: %v", err)
	}

	defer func() { _ = s.unmap(mmap) }()

	if string(mmap) != want {
		t.Fatalf("mapped content = %q, want %q", mmap, want)
	}
}

func Test_Store_Unmap_IsSafeOnNil(t *testing.T) {
	t.Parallel()

	s := newStore(t.TempDir(), DefaultCacheFileName, DefaultJournalFileName)

	if err := s.unmap(nil); err != nil {
		t.Fatalf("unmap(nil): %v", err)
	}
}

func Test_Store_OpenJournalAppend_CreatesFileWithMode0600(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newStore(dir, DefaultCacheFileName, DefaultJournalFileName)

	f, err := s.openJournalAppend()
	if err != nil {
		t.Fatalf("openJournalAppend: %v", err)
	}

	defer f.Close()

	fi, err := os.Stat(filepath.Join(dir, DefaultJournalFileName))
	if err != nil {
		t.Fatalf("stat journal: %v", err)
	}

	if fi.Mode().Perm() != filePerm {
		t.Errorf("expected mode %o, got %o", filePerm, fi.Mode().Perm())
	}
}

func Test_Store_ReadJournal_ReturnsNilWhenMissing(t *testing.T) {
	t.Parallel()

	s := newStore(t.TempDir(), DefaultCacheFileName, DefaultJournalFileName)

	b, err := s.readJournal()
	if err != nil || b != nil {
		t.Fatalf("expected (nil, nil) for missing journal, got (%v, %v)", b, err)
	}
}

func Test_Store_TruncateJournal_EmptiesExistingContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newStore(dir, DefaultCacheFileName, DefaultJournalFileName)

	if err := os.WriteFile(s.journalPath(), []byte("some bytes"), filePerm); err != nil {
		t.Fatalf("seed journal: %v", err)
	}

	if err := s.truncateJournal(); err != nil {
		t.Fatalf("truncateJournal: %v", err)
	}

	b, err := s.readJournal()
	if err != nil {
		t.Fatalf("readJournal: %v", err)
	}

	if len(b) != 0 {
		t.Fatalf("expected empty journal, got %d bytes", len(b))
	}
}

func Test_Store_ReplaceCacheFile_AtomicallyReplacesContents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newStore(dir, DefaultCacheFileName, DefaultJournalFileName)

	if err := s.replaceCacheFile([]byte("generation one")); err != nil {
		t.Fatalf("replaceCacheFile (1): %v", err)
	}

	if err := s.replaceCacheFile([]byte("generation two, longer")); err != nil {
		t.Fatalf("replaceCacheFile (2): %v", err)
	}

	got, err := os.ReadFile(s.cachePath())
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}

	if string(got) != "generation two, longer" {
		t.Fatalf("cache file content = %q, want %q", got, "generation two, longer")
	}
}

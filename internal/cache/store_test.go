package cache

import (
	"path/filepath"
	"testing"
)

func TestStorePutLookupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	sig, _ := Compute(Input{Args: []string{"x"}})
	s.Put("job-a", sig, []byte("result-a"))

	got, ok, err := s.Lookup("job-a", sig)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit for a pending write")
	}
	if string(got) != "result-a" {
		t.Errorf("result = %q, want result-a", got)
	}
}

func TestStoreLookupMissSignatureMismatch(t *testing.T) {
	dir := t.TempDir()
	s, _ := Open(filepath.Join(dir, "cache.db"))
	defer s.Close()

	sig1, _ := Compute(Input{Args: []string{"x"}})
	sig2, _ := Compute(Input{Args: []string{"y"}})
	s.Put("job-a", sig1, []byte("result-a"))

	_, ok, err := s.Lookup("job-a", sig2)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected a miss when the recomputed signature differs")
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	sig, _ := Compute(Input{Args: []string{"x"}})
	s1.Put("job-a", sig, []byte("result-a"))
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, ok, err := s2.Lookup("job-a", sig)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(got) != "result-a" {
		t.Fatalf("Lookup after reopen = %q, %v; want result-a, true", got, ok)
	}
}

func TestStoreCompactsDuplicateWritesWithinRun(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}

	sigOld, _ := Compute(Input{Args: []string{"v1"}})
	sigNew, _ := Compute(Input{Args: []string{"v2"}})
	s.Put("job-a", sigOld, []byte("stale"))
	s.Put("job-a", sigNew, []byte("fresh"))

	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (most recent writer wins)", s.Len())
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, ok, err := s2.Lookup("job-a", sigNew)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(got) != "fresh" {
		t.Fatalf("expected the compacted entry to keep only the latest write, got %q, %v", got, ok)
	}
}

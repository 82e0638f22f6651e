// Package cache is the pipeline's content-addressed job-result store:
// one authoritative entry per job name, most-recent-writer-wins, persisted
// to a single SQLite file at the task root. Grounded on the teacher's
// internal/state.Tracker (single authoritative on-disk file, atomic
// persistence) but backed by modernc.org/sqlite instead of a bespoke JSON
// blob — the natural fit for "one row per job name, compact on close."
package cache

import (
	"bytes"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	job_name   TEXT PRIMARY KEY,
	signature  BLOB NOT NULL,
	result     BLOB NOT NULL,
	written_at INTEGER NOT NULL
);`

type pendingEntry struct {
	signature Signature
	result    []byte
}

// Store is a single task's job-result cache. It batches writes in memory
// during a run and compacts them into the backing file in one transaction
// on Close, satisfying "append-only within a run, compacted on writer
// close": a job written twice in the same run keeps only the latest entry.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	pending map[string]pendingEntry
}

// Open creates or reuses the sqlite file at path and ensures its schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &Store{db: db, pending: make(map[string]pendingEntry)}, nil
}

// Lookup recomputes nothing itself: given a job name and its freshly
// computed signature, it reports whether a stored (or this-run pending)
// entry with a matching signature exists, and if so, the result bytes.
func (s *Store) Lookup(jobName string, sig Signature) (result []byte, ok bool, err error) {
	s.mu.Lock()
	if pe, found := s.pending[jobName]; found {
		s.mu.Unlock()
		if pe.signature == sig {
			return pe.result, true, nil
		}
		return nil, false, nil
	}
	s.mu.Unlock()

	var storedSig, storedResult []byte
	row := s.db.QueryRow(`SELECT signature, result FROM entries WHERE job_name = ?`, jobName)
	switch err := row.Scan(&storedSig, &storedResult); err {
	case nil:
	case sql.ErrNoRows:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("lookup %q: %w", jobName, err)
	}

	if !bytes.Equal(storedSig, sig[:]) {
		return nil, false, nil
	}
	return storedResult, true, nil
}

// Put records jobName's result under sig, superseding any earlier write
// for the same job name within this run. It is not persisted until Close.
func (s *Store) Put(jobName string, sig Signature, result []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[jobName] = pendingEntry{signature: sig, result: result}
}

// Close flushes every pending write in a single transaction and closes the
// backing database. It is safe to call even when nothing was written.
func (s *Store) Close() error {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]pendingEntry)
	s.mu.Unlock()

	if len(pending) > 0 {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin cache flush: %w", err)
		}
		stmt, err := tx.Prepare(`
			INSERT INTO entries (job_name, signature, result, written_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(job_name) DO UPDATE SET
				signature = excluded.signature,
				result = excluded.result,
				written_at = excluded.written_at`)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("prepare cache flush: %w", err)
		}
		now := time.Now().Unix()
		for jobName, pe := range pending {
			if _, err := stmt.Exec(jobName, pe.signature[:], pe.result, now); err != nil {
				_ = stmt.Close()
				_ = tx.Rollback()
				return fmt.Errorf("flush entry %q: %w", jobName, err)
			}
		}
		_ = stmt.Close()
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit cache flush: %w", err)
		}
	}

	return s.db.Close()
}

// Len reports how many distinct job names are currently staged for the
// next Close, mainly useful in tests asserting the compaction property.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

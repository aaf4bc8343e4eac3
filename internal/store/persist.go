package store

import (
	"encoding/json"
	"fmt"
	"os"
)

// persist.go persists the cache document. The aggregation node doesn't
// need crash replay of individual mutations: it only ever needs the
// LATEST record per station, so the whole document is rewritten on every
// sync instead of being replayed entry-by-entry. The write discipline
// (write to a temp file, then atomically swap it into place) carries
// over from append-only log designs, applied to one JSON array.
//
// Algorithm:
//
//  1. If there are no pending writes, return.
//  2. Read the current on-disk document (a missing file reads as empty).
//  3. Apply pending upserts and deletions to the merged in-memory map.
//  4. Serialize the merged map's values to "<path>.tmp".
//  5. Rename "<path>" -> "<path>.bak" if it exists.
//  6. Rename "<path>.tmp" -> "<path>".
//  7. Delete "<path>.bak".
//
// At every instant at most one of "<path>" / "<path>.bak" needs be
// present; "<path>" is never a partial write.
func (s *Store) SyncToFile(path string) error {
	upserts, deletes := s.DrainPendingWrites()
	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}

	if err := s.syncMerged(path, upserts, deletes); err != nil {
		// Pending writes are NOT cleared on failure; put them back so
		// the next sweep retries.
		s.RestorePendingWrites(upserts, deletes)
		return &FileSyncError{Op: "sync", Err: err}
	}
	return nil
}

func (s *Store) syncMerged(path string, upserts map[string]Record, deletes map[string]bool) error {
	merged, err := readDocument(path)
	if err != nil {
		return fmt.Errorf("read current document: %w", err)
	}

	for id, rec := range upserts {
		merged[id] = rec
	}
	for id := range deletes {
		delete(merged, id)
	}

	records := make([]Record, 0, len(merged))
	for _, rec := range merged {
		records = append(records, rec)
	}

	tmp := path + ".tmp"
	if err := writeDocument(tmp, records); err != nil {
		return fmt.Errorf("write temp document: %w", err)
	}

	bak := path + ".bak"
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, bak); err != nil {
			return fmt.Errorf("rotate to backup: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat current document: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("promote temp document: %w", err)
	}

	if err := os.Remove(bak); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove backup: %w", err)
	}
	return nil
}

// LoadFromFile populates the store from path on boot. Best-effort: a
// missing, empty, or invalid file just starts the store empty.
func (s *Store) LoadFromFile(path string) {
	merged, err := readDocument(path)
	if err != nil {
		return
	}
	for id, rec := range merged {
		s.Put(id, rec)
	}
	// Loading from disk isn't a pending write; the document already
	// reflects this state.
	s.mu.Lock()
	s.pendingUpserts = make(map[string]Record)
	s.pendingDeletes = make(map[string]bool)
	s.mu.Unlock()
}

// readDocument reads path as a JSON array of records keyed by id. A
// missing file reads as an empty document; any other I/O or parse error
// is returned.
func readDocument(path string) (map[string]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Record{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return map[string]Record{}, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	out := make(map[string]Record, len(records))
	for _, rec := range records {
		if rec.Id != "" {
			out[rec.Id] = rec
		}
	}
	return out, nil
}

func writeDocument(path string, records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

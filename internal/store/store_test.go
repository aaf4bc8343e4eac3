package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func rec(t *testing.T, js string) Record {
	t.Helper()
	var r Record
	if err := json.Unmarshal([]byte(js), &r); err != nil {
		t.Fatalf("unmarshal %q: %v", js, err)
	}
	return r
}

func TestPutGetRoundTrip(t *testing.T) {
	s := New()
	r := rec(t, `{"id":"IDS60901","air_temp":13.3}`)
	s.Put(r.Id, r)

	got, ok := s.Get("IDS60901")
	if !ok {
		t.Fatal("expected record to be present")
	}
	gotJSON, _ := json.Marshal(got)
	wantJSON, _ := json.Marshal(r)
	if string(gotJSON) != string(wantJSON) {
		t.Fatalf("round trip mismatch: got %s want %s", gotJSON, wantJSON)
	}
}

func TestSecondPushWins(t *testing.T) {
	s := New()
	s.Put("A", rec(t, `{"id":"A","v":1}`))
	s.Put("A", rec(t, `{"id":"A","v":2}`))

	got, ok := s.Get("A")
	if !ok {
		t.Fatal("expected record")
	}
	if string(got.Fields) != `{"id":"A","v":2}` {
		t.Fatalf("got %s, want the second push", got.Fields)
	}
}

func TestCapacityEviction(t *testing.T) {
	s := New()
	for i := 0; i < Capacity+5; i++ {
		id := string(rune('A' + i))
		s.Put(id, rec(t, `{"id":"`+id+`"}`))
	}
	if got := s.Len(); got != Capacity {
		t.Fatalf("Len() = %d, want %d", got, Capacity)
	}

	// The first 5 inserted should have been evicted (never touched again).
	if _, ok := s.Get("A"); ok {
		t.Fatal("expected A to have been evicted")
	}
}

func TestGetBumpsRecency(t *testing.T) {
	s := New()
	for i := 0; i < Capacity; i++ {
		id := string(rune('A' + i))
		s.Put(id, rec(t, `{"id":"`+id+`"}`))
	}
	// Touch "A" so it's no longer the least recently used.
	s.Get("A")

	s.Put("OVERFLOW", rec(t, `{"id":"OVERFLOW"}`))

	if _, ok := s.Get("A"); !ok {
		t.Fatal("A should have survived eviction after being touched")
	}
	if _, ok := s.Get("B"); ok {
		t.Fatal("B should have been evicted as the new least recently used")
	}
}

func TestSnapshotOrdersMostRecentFirst(t *testing.T) {
	s := New()
	s.Put("A", rec(t, `{"id":"A"}`))
	s.Put("B", rec(t, `{"id":"B"}`))
	s.Get("A") // bump A ahead of B

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() returned %d records, want 2", len(snap))
	}
	if snap[0].Id != "A" || snap[1].Id != "B" {
		t.Fatalf("Snapshot order = [%s %s], want [A B]", snap[0].Id, snap[1].Id)
	}
}

func TestRemoveQueuesDeletion(t *testing.T) {
	s := New()
	s.Put("A", rec(t, `{"id":"A"}`))
	s.DrainPendingWrites() // flush the initial put

	s.Remove("A")
	if !s.HasPendingWrites() {
		t.Fatal("expected a pending delete after Remove")
	}
	_, deletes := s.DrainPendingWrites()
	if !deletes["A"] {
		t.Fatal("expected A in the drained deletes")
	}
	if _, ok := s.Get("A"); ok {
		t.Fatal("A should be gone from the store")
	}
}

func TestSyncToFileAtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	s := New()
	s.Put("IDS60901", rec(t, `{"id":"IDS60901","air_temp":13.3}`))
	s.Put("IDS60902", rec(t, `{"id":"IDS60902","air_temp":9.1}`))

	if err := s.SyncToFile(path); err != nil {
		t.Fatalf("SyncToFile: %v", err)
	}
	if s.HasPendingWrites() {
		t.Fatal("pending writes should be cleared after a successful sync")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read synced file: %v", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("synced file isn't a valid JSON array: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	if _, err := os.Stat(path + ".bak"); !os.IsNotExist(err) {
		t.Fatalf(".bak should not survive a successful sync, stat err = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf(".tmp should not survive a successful sync, stat err = %v", err)
	}
}

func TestSyncToFileNoopWhenClean(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	s := New()
	if err := s.SyncToFile(path); err != nil {
		t.Fatalf("SyncToFile on empty store: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("no file should be created when there are no pending writes")
	}
}

func TestLoadFromFileMissingStartsEmpty(t *testing.T) {
	s := New()
	s.LoadFromFile(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
}

func TestLoadFromFileInvalidStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	s := New()
	s.LoadFromFile(path)
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
}

func TestSyncThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	first := New()
	first.Put("A", rec(t, `{"id":"A","v":1}`))
	if err := first.SyncToFile(path); err != nil {
		t.Fatal(err)
	}

	second := New()
	second.LoadFromFile(path)
	got, ok := second.Get("A")
	if !ok {
		t.Fatal("expected A to be loaded from file")
	}
	if string(got.Fields) != `{"id":"A","v":1}` {
		t.Fatalf("got %s", got.Fields)
	}
}

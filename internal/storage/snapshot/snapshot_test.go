package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingReturnsNil(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "save.json"))

	data, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if data != nil {
		t.Errorf("expected nil data for missing snapshot, got %d bytes", len(data))
	}
}

func TestSaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.json")
	store := NewFileStore(path)

	want := []byte(`{"version":1}`)
	if err := store.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("expected %s, got %s", want, got)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected snapshot file removed")
	}

	// Clearing twice is fine.
	if err := store.Clear(); err != nil {
		t.Errorf("expected second Clear to succeed, got %v", err)
	}
}

func TestSaveOverwrites(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "save.json"))

	store.Save([]byte("one"))
	store.Save([]byte("two"))

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got) != "two" {
		t.Errorf("expected latest save to win, got %s", got)
	}
}

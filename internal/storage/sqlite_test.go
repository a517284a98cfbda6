package storage

import (
	"path/filepath"
	"testing"
)

func TestSQLiteStoragePersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStorage failed: %v", err)
	}
	if err := SavePreferences(store, Preferences{ReadNotification: true}); err != nil {
		t.Fatalf("SavePreferences failed: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	p, err := LoadPreferences(reopened)
	if err != nil {
		t.Fatal(err)
	}
	if !p.ReadNotification {
		t.Error("preference lost after reopen")
	}
}

func TestSQLiteStorageInvalidPath(t *testing.T) {
	_, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	if err == nil {
		t.Error("expected error for a path in a missing directory")
	}
}

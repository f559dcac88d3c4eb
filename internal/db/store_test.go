package db

import (
	"errors"
	"os"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "badger-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_GetSet(t *testing.T) {
	store := newTestStore(t)

	if err := store.Set("leads/", "jobs/a", []byte("value-a")); err != nil {
		t.Fatalf("set value: %v", err)
	}

	got, err := store.Get("leads/", "jobs/a")
	if err != nil {
		t.Fatalf("get value: %v", err)
	}
	if string(got) != "value-a" {
		t.Errorf("expected value-a, got %s", got)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("leads/", "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)

	store.Set("leads/", "k", []byte("v"))
	if err := store.Delete("leads/", "k"); err != nil {
		t.Fatalf("delete value: %v", err)
	}
	if _, err := store.Get("leads/", "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_ScanRespectsNamespace(t *testing.T) {
	store, err := NewInMemoryStore()
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer store.Close()

	store.Set("a/", "jobs/1", []byte("1"))
	store.Set("a/", "jobs/2", []byte("2"))
	store.Set("a/", "lists/x", []byte("x"))
	store.Set("b/", "jobs/3", []byte("3"))

	var order []string
	seen := map[string]string{}
	err = store.Scan("a/", "jobs/", func(key string, value []byte) error {
		order = append(order, key)
		seen[key] = string(value)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(seen) != 2 || seen["jobs/2"] != "2" {
		t.Errorf("unexpected scan result: %v", seen)
	}
	if len(order) != 2 || order[0] != "jobs/1" {
		t.Errorf("expected key order, got %v", order)
	}

	if err := store.DeleteMany("a/", []string{"jobs/1", "jobs/2"}); err != nil {
		t.Fatalf("delete many: %v", err)
	}
	n := 0
	store.Scan("a/", "jobs/", func(string, []byte) error {
		n++
		return nil
	})
	if n != 0 {
		t.Errorf("expected no keys, got %d", n)
	}
}

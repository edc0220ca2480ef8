package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	bs, err := NewBadgerStore("") // in-memory
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { bs.Close() })
	return bs
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	bs := newTestBadgerStore(t)
	ctx := context.Background()

	if err := bs.Save(ctx, "conv_1", fixtureDoc("badger chat")); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := bs.Load(ctx, "conv_1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Name != "badger chat" || len(loaded.Nodes) != 2 {
		t.Fatalf("expected stored document back, got name %q nodes %d", loaded.Name, len(loaded.Nodes))
	}
}

func TestBadgerStoreMissing(t *testing.T) {
	bs := newTestBadgerStore(t)
	ctx := context.Background()
	if _, err := bs.Load(ctx, "conv_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on load, got %v", err)
	}
	if err := bs.Delete(ctx, "conv_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestBadgerStoreListAndDelete(t *testing.T) {
	bs := newTestBadgerStore(t)
	ctx := context.Background()

	older := fixtureDoc("older")
	older.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	if err := bs.Save(ctx, "conv_older", older); err != nil {
		t.Fatalf("save older: %v", err)
	}
	if err := bs.Save(ctx, "conv_newer", fixtureDoc("newer")); err != nil {
		t.Fatalf("save newer: %v", err)
	}

	entries, err := bs.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "conv_newer" {
		t.Fatalf("expected 2 entries newest first, got %v", entries)
	}

	if err := bs.Delete(ctx, "conv_newer"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	entries, err = bs.List(ctx)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "conv_older" {
		t.Fatalf("expected only conv_older left, got %v", entries)
	}
}

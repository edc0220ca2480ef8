package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	t.Cleanup(func() { rs.Close() })
	return rs
}

func TestRedisStoreRoundTrip(t *testing.T) {
	rs := newTestRedisStore(t)
	ctx := context.Background()

	if err := rs.Save(ctx, "conv_1", fixtureDoc("redis chat")); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := rs.Load(ctx, "conv_1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Name != "redis chat" || loaded.Nodes["u1"].Content != "hi" {
		t.Fatalf("expected stored document back, got %+v", loaded)
	}
}

func TestRedisStoreMissing(t *testing.T) {
	rs := newTestRedisStore(t)
	ctx := context.Background()
	if _, err := rs.Load(ctx, "conv_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on load, got %v", err)
	}
	if err := rs.Delete(ctx, "conv_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestRedisStoreListAndDelete(t *testing.T) {
	rs := newTestRedisStore(t)
	ctx := context.Background()

	if err := rs.Save(ctx, "conv_a", fixtureDoc("a")); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := rs.Save(ctx, "conv_b", fixtureDoc("b")); err != nil {
		t.Fatalf("save b: %v", err)
	}

	entries, err := rs.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if err := rs.Delete(ctx, "conv_a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	entries, err = rs.List(ctx)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "conv_b" {
		t.Fatalf("expected only conv_b left, got %v", entries)
	}
}

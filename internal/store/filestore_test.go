package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"loom/internal/tree"
)

func fixtureDoc(name string) *tree.Document {
	d := tree.New(name, "a test conversation")
	d.Nodes["r1"] = &tree.Node{ID: "r1", Role: tree.RoleAssistant, Content: "hello", UpdatedAt: time.Now().UTC()}
	d.Nodes["u1"] = &tree.Node{ID: "u1", ParentID: "r1", Role: tree.RoleUser, Content: "hi", UpdatedAt: time.Now().UTC()}
	d.Roots = []string{"r1"}
	d.Children = map[string][]string{"r1": {"u1"}}
	d.ActivePath = []string{"r1", "u1"}
	return d
}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	t.Cleanup(func() { fs.Close() })
	return fs
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()
	doc := fixtureDoc("round trip")

	if err := fs.Save(ctx, "conv_1", doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := fs.Load(ctx, "conv_1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Name != "round trip" {
		t.Fatalf("expected name kept, got %q", loaded.Name)
	}
	if !reflect.DeepEqual(loaded.ActivePath, []string{"r1", "u1"}) {
		t.Fatalf("expected active path kept, got %v", loaded.ActivePath)
	}
	if loaded.Nodes["u1"].Content != "hi" {
		t.Fatalf("expected node content kept, got %q", loaded.Nodes["u1"].Content)
	}
	if loaded.Nodes["r1"].ParentID != "" {
		t.Fatalf("expected root parent empty, got %q", loaded.Nodes["r1"].ParentID)
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	fs := newTestFileStore(t)
	if _, err := fs.Load(context.Background(), "conv_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreRejectsEscapingIDs(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()
	for _, id := range []string{"", "..", "../evil", "a/b", `a\b`, "nested/../../etc/passwd"} {
		if _, err := fs.Load(ctx, id); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("expected ErrInvalidID for load %q, got %v", id, err)
		}
		if err := fs.Save(ctx, id, fixtureDoc("x")); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("expected ErrInvalidID for save %q, got %v", id, err)
		}
		if err := fs.Delete(ctx, id); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("expected ErrInvalidID for delete %q, got %v", id, err)
		}
	}
}

func TestFileStoreSaveReplacesWholeDocument(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()

	first := fixtureDoc("first")
	if err := fs.Save(ctx, "conv_1", first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	second := fixtureDoc("second")
	second.Nodes["u1"].Content = "edited"
	if err := fs.Save(ctx, "conv_1", second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	loaded, err := fs.Load(ctx, "conv_1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Name != "second" || loaded.Nodes["u1"].Content != "edited" {
		t.Fatalf("expected latest save visible, got name %q content %q", loaded.Name, loaded.Nodes["u1"].Content)
	}

	dirEntries, err := os.ReadDir(fs.Root())
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	for _, de := range dirEntries {
		if strings.HasSuffix(de.Name(), ".tmp") {
			t.Fatalf("expected no temp files left behind, found %s", de.Name())
		}
	}
}

func TestFileStoreListAndDelete(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()

	older := fixtureDoc("older")
	older.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	newer := fixtureDoc("newer")
	newer.UpdatedAt = time.Now().UTC()
	if err := fs.Save(ctx, "conv_older", older); err != nil {
		t.Fatalf("save older: %v", err)
	}
	if err := fs.Save(ctx, "conv_newer", newer); err != nil {
		t.Fatalf("save newer: %v", err)
	}

	entries, err := fs.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "conv_newer" {
		t.Fatalf("expected most recent first, got %s", entries[0].ID)
	}
	if entries[0].NodeCount != 2 || entries[0].RootCount != 1 {
		t.Fatalf("expected counts 2/1, got %d/%d", entries[0].NodeCount, entries[0].RootCount)
	}

	if err := fs.Delete(ctx, "conv_older"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := fs.Delete(ctx, "conv_older"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	entries, err = fs.List(ctx)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after delete, got %d", len(entries))
	}
}

func TestFileStoreSkipsUnreadableFilesInListing(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()
	if err := fs.Save(ctx, "conv_good", fixtureDoc("good")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(fs.Root(), "broken.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write broken file: %v", err)
	}

	entries, err := fs.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "conv_good" {
		t.Fatalf("expected broken file skipped, got %v", entries)
	}
	if _, err := fs.Load(ctx, "broken"); !errors.Is(err, tree.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument for broken file, got %v", err)
	}
}

func TestFileStoreSeesExternalEdits(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()
	if err := fs.Save(ctx, "conv_1", fixtureDoc("original")); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := json.Marshal(fixtureDoc("edited outside"))
	if err != nil {
		t.Fatalf("marshal edited doc: %v", err)
	}
	if err := os.WriteFile(filepath.Join(fs.Root(), "conv_1.json"), raw, 0o600); err != nil {
		t.Fatalf("simulate external edit: %v", err)
	}

	loaded, err := fs.Load(ctx, "conv_1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Name != "edited outside" {
		t.Fatalf("expected external edit visible, got %q", loaded.Name)
	}
}

func TestFileStoreWatchDropsStaleCache(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()
	if err := fs.Save(ctx, "conv_1", fixtureDoc("original")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := fs.EnableWatch(); err != nil {
		t.Skipf("filesystem watching unavailable: %v", err)
	}
	if _, err := fs.Load(ctx, "conv_1"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	raw, err := json.Marshal(fixtureDoc("edited outside"))
	if err != nil {
		t.Fatalf("marshal edited doc: %v", err)
	}
	if err := os.WriteFile(filepath.Join(fs.Root(), "conv_1.json"), raw, 0o600); err != nil {
		t.Fatalf("simulate external edit: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		loaded, err := fs.Load(ctx, "conv_1")
		if err == nil && loaded.Name == "edited outside" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("cache never dropped after external edit")
		}
		time.Sleep(25 * time.Millisecond)
	}
}

package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"loom/internal/store"
	"loom/internal/tree"
)

type fakeSource struct {
	entries []store.Entry
	docs    map[string]*tree.Document
}

func (f *fakeSource) List(ctx context.Context) ([]store.Entry, error) {
	return f.entries, nil
}

func (f *fakeSource) Load(ctx context.Context, id string) (*tree.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, errors.New("missing")
	}
	return doc, nil
}

func scanFixture() *fakeSource {
	now := time.Now().UTC()
	packing := &tree.Document{
		Name: "Trip planning",
		Nodes: map[string]*tree.Node{
			"m1": {ID: "m1", Role: tree.RoleUser, Content: "What should I pack for Reykjavik in March?", UpdatedAt: now},
			"m2": {ID: "m2", ParentID: "m1", Role: tree.RoleAssistant, Content: "Pack thermal layers and a windproof shell.", UpdatedAt: now},
		},
	}
	recipes := &tree.Document{
		Name: "Dinner ideas",
		Nodes: map[string]*tree.Node{
			"m3": {ID: "m3", Role: tree.RoleUser, Content: "Suggest a quick weeknight pasta.", UpdatedAt: now},
		},
	}
	return &fakeSource{
		entries: []store.Entry{
			{ID: "conv-1", Name: "Trip planning", UpdatedAt: now},
			{ID: "conv-2", Name: "Dinner ideas", UpdatedAt: now},
		},
		docs: map[string]*tree.Document{"conv-1": packing, "conv-2": recipes},
	}
}

func TestScanMatchesCaseInsensitive(t *testing.T) {
	scan := NewScan(scanFixture())

	results, total, err := scan.Search(context.Background(), Query{Text: "REYKJAVIK"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 1 || len(results) != 1 {
		t.Fatalf("expected 1 hit, got total=%d len=%d", total, len(results))
	}
	hit := results[0]
	if hit.ConversationID != "conv-1" || hit.NodeID != "m1" || hit.Role != "user" {
		t.Fatalf("unexpected hit: %+v", hit)
	}
	if !strings.Contains(hit.Snippet, "<mark>Reykjavik</mark>") {
		t.Fatalf("snippet missing highlight: %q", hit.Snippet)
	}
}

func TestScanFiltersByRoleAndConversation(t *testing.T) {
	scan := NewScan(scanFixture())

	results, _, err := scan.Search(context.Background(), Query{Text: "pack", FilterRole: "assistant"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].NodeID != "m2" {
		t.Fatalf("expected only the assistant node, got %+v", results)
	}

	results, _, err = scan.Search(context.Background(), Query{Text: "pack", FilterConversationID: "conv-2"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no hits in conv-2, got %+v", results)
	}
}

func TestScanPagination(t *testing.T) {
	scan := NewScan(scanFixture())

	results, total, err := scan.Search(context.Background(), Query{Text: "pack", Limit: 1})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 2 || len(results) != 1 {
		t.Fatalf("expected total=2 page=1, got total=%d len=%d", total, len(results))
	}
	first := results[0].NodeID

	results, _, err = scan.Search(context.Background(), Query{Text: "pack", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].NodeID == first {
		t.Fatalf("expected the second page to differ, got %+v", results)
	}
}

func TestScanEmptyQuery(t *testing.T) {
	scan := NewScan(scanFixture())

	results, total, err := scan.Search(context.Background(), Query{Text: "  "})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 0 || len(results) != 0 {
		t.Fatalf("expected no hits for blank query, got total=%d len=%d", total, len(results))
	}
}

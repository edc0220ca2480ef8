package tree

import (
	"reflect"
	"testing"
)

func TestExportMessagesElidesTrailingPlaceholder(t *testing.T) {
	d := branchy()
	if _, _, err := d.Append("a2", RoleUser, "one more thing"); err != nil {
		t.Fatalf("append: %v", err)
	}
	messages, err := d.ExportMessages()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	want := []Message{
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "hi there"},
		{Role: RoleAssistant, Content: "second reply"},
		{Role: RoleUser, Content: "one more thing"},
	}
	if !reflect.DeepEqual(messages, want) {
		t.Fatalf("expected placeholder elided, got %v", messages)
	}
}

func TestExportMessagesKeepsOrdinaryEmptyAssistant(t *testing.T) {
	d := branchy()
	d.Nodes["a2"].Content = "" // empty but not a marked placeholder
	messages, err := d.ExportMessages()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(messages) != 3 || messages[2].Content != "" {
		t.Fatalf("expected unmarked empty assistant kept, got %v", messages)
	}
}

func TestExportMessagesKeepsFilledPlaceholder(t *testing.T) {
	d := branchy()
	node, _, err := d.Append("a2", RoleUser, "one more thing")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	placeholderID := d.Children[node.ID][0]
	if _, err := d.UpdateContent(placeholderID, "generated reply"); err != nil {
		t.Fatalf("update content: %v", err)
	}
	messages, err := d.ExportMessages()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(messages) != 5 || messages[4].Content != "generated reply" {
		t.Fatalf("expected filled placeholder exported, got %v", messages)
	}
}

func TestLatestSummary(t *testing.T) {
	d := branchy()
	latest, err := d.LatestSummary()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	want := Summary{Depth: 3, NodeID: "a2", Index: 2, Count: 2}
	if latest != want {
		t.Fatalf("expected %+v, got %+v", want, latest)
	}
}

func TestBranchTable(t *testing.T) {
	d := branchy()
	rows, err := d.BranchTable()
	if err != nil {
		t.Fatalf("branch table: %v", err)
	}
	want := []Summary{
		{Depth: 1, NodeID: "r1", Index: 1, Count: 2},
		{Depth: 2, NodeID: "u1", Index: 1, Count: 1},
		{Depth: 3, NodeID: "a2", Index: 2, Count: 2},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("expected %v, got %v", want, rows)
	}
}

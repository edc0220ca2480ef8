package search

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"loom/internal/store"
	"loom/internal/tree"
)

// documentSource is the slice of the store the scanner needs.
type documentSource interface {
	List(ctx context.Context) ([]store.Entry, error)
	Load(ctx context.Context, id string) (*tree.Document, error)
}

// Scan is the fallback searcher used when Meilisearch is not available.
// It walks every stored conversation and matches message content by
// case-insensitive substring, so it works against any store backend.
type Scan struct {
	source documentSource
}

// NewScan creates a store-scanning searcher.
func NewScan(source documentSource) *Scan {
	return &Scan{source: source}
}

// Healthy always returns true — if the store is down, the whole app is down.
func (s *Scan) Healthy() bool {
	return true
}

// Search walks conversations newest-first and collects matching nodes.
func (s *Scan) Search(ctx context.Context, q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	entries, err := s.source.List(ctx)
	if err != nil {
		return nil, 0, err
	}

	var matches []Result
	for _, entry := range entries {
		if q.FilterConversationID != "" && entry.ID != q.FilterConversationID {
			continue
		}
		doc, err := s.source.Load(ctx, entry.ID)
		if err != nil {
			continue
		}
		ids := make([]string, 0, len(doc.Nodes))
		for id := range doc.Nodes {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			node := doc.Nodes[id]
			if q.FilterRole != "" && string(node.Role) != q.FilterRole {
				continue
			}
			if !strings.Contains(strings.ToLower(node.Content), needle) {
				continue
			}
			matches = append(matches, Result{
				ConversationID: entry.ID,
				Conversation:   entry.Name,
				NodeID:         node.ID,
				Role:           string(node.Role),
				Snippet:        makeSnippet(node.Content, needle),
			})
		}
	}

	total := len(matches)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

// makeSnippet cuts a window around the first match and wraps the matched
// region in <mark> tags, mirroring the Meilisearch highlight format.
func makeSnippet(content, lowerNeedle string) string {
	const window = 60

	lower := strings.ToLower(content)
	at := strings.Index(lower, lowerNeedle)
	if at < 0 {
		if len(content) > 2*window {
			return content[:2*window] + "…"
		}
		return content
	}
	end := at + len(lowerNeedle)

	start := at - window
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	prefix := ""
	if start > 0 {
		prefix = "…"
	}
	stop := end + window
	if stop > len(content) {
		stop = len(content)
	}
	for stop < len(content) && !utf8.RuneStart(content[stop]) {
		stop++
	}
	suffix := ""
	if stop < len(content) {
		suffix = "…"
	}

	return prefix + content[start:at] + "<mark>" + content[at:end] + "</mark>" + content[end:stop] + suffix
}

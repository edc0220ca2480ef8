package search

import (
	"context"
	"log"

	"loom/internal/tree"
)

// Service is the facade that tries Meilisearch first and falls back to
// scanning the store.
type Service struct {
	meili *Meili
	scan  *Scan
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, scan *Scan) *Service {
	return &Service{meili: meili, scan: scan}
}

// Search tries Meilisearch if healthy, otherwise falls back to the store scan.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to store scan: %v", err)
	}

	results, total, err := s.scan.Search(ctx, q)
	if err != nil {
		log.Printf("search: store scan error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexConversation pushes every node of a conversation into the index
// (fire-and-forget to Meilisearch). removedIDs names nodes a mutation
// deleted so their index entries go too.
func (s *Service) IndexConversation(id string, doc *tree.Document, removedIDs []string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	records := RecordsFor(id, doc)
	go func() {
		if err := s.meili.IndexMessages(records); err != nil {
			log.Printf("search: index conversation %s: %v", id, err)
			return
		}
		if err := s.meili.DeleteMessages(removedIDs); err != nil {
			log.Printf("search: prune conversation %s: %v", id, err)
		}
	}()
}

// DeleteConversation removes every listed node of a conversation from the
// index (fire-and-forget).
func (s *Service) DeleteConversation(id string, nodeIDs []string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteMessages(nodeIDs); err != nil {
			log.Printf("search: delete conversation %s: %v", id, err)
		}
	}()
}

// RecordsFor builds the index records for every node in a conversation.
func RecordsFor(id string, doc *tree.Document) []MessageRecord {
	records := make([]MessageRecord, 0, len(doc.Nodes))
	for _, node := range doc.Nodes {
		records = append(records, MessageRecord{
			ID:             node.ID,
			ConversationID: id,
			Conversation:   doc.Name,
			Role:           string(node.Role),
			Content:        node.Content,
			UpdatedAt:      node.UpdatedAt.Unix(),
		})
	}
	return records
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

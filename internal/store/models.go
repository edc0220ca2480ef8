package store

import (
	"time"

	"loom/internal/tree"
)

// Entry is the listing row for one stored conversation.
type Entry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	RootCount   int       `json:"root_count"`
	NodeCount   int       `json:"node_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func entryFor(id string, doc *tree.Document) Entry {
	return Entry{
		ID:          id,
		Name:        doc.Name,
		Description: doc.Description,
		RootCount:   len(doc.Roots),
		NodeCount:   len(doc.Nodes),
		UpdatedAt:   doc.UpdatedAt,
	}
}

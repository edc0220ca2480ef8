// Package tree implements the branching-conversation document model: a
// forest of message nodes where sibling branches are alternative
// versions of the same turn and a single root-to-leaf active path is
// the conversation currently shown and exported.
package tree

import (
	"sort"
	"strings"
	"time"

	"loom/internal/util"
)

// Role classifies who produced a message node.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Node is a single message in the conversation forest. ParentID is
// empty for root nodes; JSON null on input decodes to empty as well.
type Node struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is the whole conversation: every branch ever written plus
// the active path. It is the unit of persistence; stores load and save
// it as one JSON value.
type Document struct {
	Name        string              `json:"name,omitempty"`
	Description string              `json:"description,omitempty"`
	Roots       []string            `json:"roots"`
	Nodes       map[string]*Node    `json:"nodes"`
	Children    map[string][]string `json:"children,omitempty"`
	ActivePath  []string            `json:"active_path"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// New returns an empty document with initialized containers.
func New(name, description string) *Document {
	return &Document{
		Name:        name,
		Description: description,
		Roots:       []string{},
		Nodes:       map[string]*Node{},
		Children:    map[string][]string{},
		ActivePath:  []string{},
		UpdatedAt:   time.Now().UTC(),
	}
}

const placeholderPrefix = "pending"

// IsPlaceholder reports whether id tags a synthetic assistant node
// created to hold the spot for a reply that has not been generated yet.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, placeholderPrefix+"_")
}

func newMessageID() string     { return util.NewID("msg") }
func newPlaceholderID() string { return util.NewID(placeholderPrefix) }

// repair restores structural invariants after load or external edit:
// map keys win over stale node ids, ghost roots are dropped, and the
// children index is rebuilt from parent_id edges.
func (d *Document) repair() {
	if d.Nodes == nil {
		d.Nodes = map[string]*Node{}
	}
	for id, n := range d.Nodes {
		if n == nil {
			delete(d.Nodes, id)
			continue
		}
		n.ID = id
	}
	d.rebuildChildren()

	roots := make([]string, 0, len(d.Roots))
	seen := make(map[string]bool, len(d.Roots))
	for _, id := range d.Roots {
		if seen[id] {
			continue
		}
		if _, ok := d.Nodes[id]; !ok {
			continue
		}
		seen[id] = true
		roots = append(roots, id)
	}
	d.Roots = roots
}

// rebuildChildren derives the children index from parent_id edges.
// Explicit orderings already present are authoritative where they
// agree with parent_id; any edge implied only by parent_id is appended
// after them, in node-id order so rebuilds are deterministic. Nodes
// whose parent is missing stay in Nodes but join no list.
func (d *Document) rebuildChildren() {
	idx := make(map[string][]string, len(d.Children))
	indexed := make(map[string]bool, len(d.Nodes))
	for parent, kids := range d.Children {
		if _, ok := d.Nodes[parent]; !ok {
			continue
		}
		var keep []string
		for _, id := range kids {
			n, ok := d.Nodes[id]
			if !ok || id == parent || n.ParentID != parent || indexed[id] {
				continue
			}
			indexed[id] = true
			keep = append(keep, id)
		}
		if len(keep) > 0 {
			idx[parent] = keep
		}
	}
	implied := make([]string, 0)
	for id, n := range d.Nodes {
		if n.ParentID == "" || n.ParentID == id || indexed[id] {
			continue
		}
		if _, ok := d.Nodes[n.ParentID]; !ok {
			continue
		}
		implied = append(implied, id)
	}
	sort.Strings(implied)
	for _, id := range implied {
		parent := d.Nodes[id].ParentID
		idx[parent] = append(idx[parent], id)
	}
	d.Children = idx
}

func (d *Document) tail() string {
	if len(d.ActivePath) == 0 {
		return ""
	}
	return d.ActivePath[len(d.ActivePath)-1]
}

func (d *Document) touch(t time.Time) {
	d.UpdatedAt = t
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

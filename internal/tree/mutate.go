package tree

import (
	"fmt"
	"time"
)

// Mutations share a discipline: normalize first, validate every
// precondition before touching anything, then apply. A mutation that
// returns an error has not changed the document beyond the load-time
// repairs Normalize itself performs.

// Append adds a message under parentID and a placeholder assistant
// child under the new message, so the conversation always has a slot
// for the next reply to generate into. When parentID is the active
// tail the path extends through both, growing by exactly two.
func (d *Document) Append(parentID string, role Role, content string) (*Node, *Node, error) {
	if _, err := d.Normalize(); err != nil {
		return nil, nil, err
	}
	if !role.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if _, ok := d.Nodes[parentID]; !ok {
		return nil, nil, fmt.Errorf("%w: parent %s", ErrNotFound, parentID)
	}
	id := newMessageID()
	if _, ok := d.Nodes[id]; ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	placeholderID := newPlaceholderID()
	if _, ok := d.Nodes[placeholderID]; ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateID, placeholderID)
	}

	now := time.Now().UTC()
	node := &Node{ID: id, ParentID: parentID, Role: role, Content: content, UpdatedAt: now}
	d.Nodes[id] = node
	d.Children[parentID] = append(d.Children[parentID], id)
	if d.tail() == parentID {
		d.ActivePath = append(d.ActivePath, id)
	}

	placeholder := &Node{ID: placeholderID, ParentID: id, Role: RoleAssistant, UpdatedAt: now}
	d.Nodes[placeholderID] = placeholder
	d.Children[id] = []string{placeholderID}
	if d.tail() == id {
		d.ActivePath = append(d.ActivePath, placeholderID)
	}

	d.touch(now)
	return node, placeholder, nil
}

// AddRoot starts an alternate opening: a new parentless node appended
// to the roots list, with the active path switched to it. Unlike
// Append it works on an empty document and creates no placeholder.
func (d *Document) AddRoot(role Role, content string) (*Node, error) {
	if len(d.Roots) > 0 {
		if _, err := d.Normalize(); err != nil {
			return nil, err
		}
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	id := newMessageID()
	if _, ok := d.Nodes[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	now := time.Now().UTC()
	node := &Node{ID: id, Role: role, Content: content, UpdatedAt: now}
	d.Nodes[id] = node
	d.Roots = append(d.Roots, id)
	d.ActivePath = []string{id}
	d.touch(now)
	return node, nil
}

// Retry adds newID as an alternative version of targetID, appended
// last among its parent's children. Retrying a node on the active path
// truncates the path at that node and makes the retry the new tip.
func (d *Document) Retry(newID, targetID string, role Role, content string) (*Node, error) {
	if _, err := d.Normalize(); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	target, ok := d.Nodes[targetID]
	if !ok {
		return nil, fmt.Errorf("%w: target %s", ErrNotFound, targetID)
	}
	if target.ParentID == "" {
		return nil, fmt.Errorf("%w: cannot retry root %s", ErrInvalidOperation, targetID)
	}
	if newID == "" {
		return nil, fmt.Errorf("%w: empty retry id", ErrInvalidOperation)
	}
	if _, ok := d.Nodes[newID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, newID)
	}

	now := time.Now().UTC()
	node := &Node{ID: newID, ParentID: target.ParentID, Role: role, Content: content, UpdatedAt: now}
	d.Nodes[newID] = node
	d.Children[target.ParentID] = append(d.Children[target.ParentID], newID)

	if i := indexOf(d.ActivePath, targetID); i >= 0 {
		d.ActivePath = append(d.ActivePath[:i], newID)
	} else if d.tail() == target.ParentID {
		d.ActivePath = append(d.ActivePath, newID)
	}

	d.touch(now)
	return node, nil
}

// RetryUserMessage finds the assistant node to regenerate for a user
// message: the assistant successor on the active path if there is one,
// else the user node's first assistant child, else a freshly created
// placeholder. The returned flag reports whether a node was created;
// only that case mutates the document.
func (d *Document) RetryUserMessage(userID string) (*Node, bool, error) {
	if _, err := d.Normalize(); err != nil {
		return nil, false, err
	}
	user, ok := d.Nodes[userID]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	if user.Role != RoleUser {
		return nil, false, fmt.Errorf("%w: %s has role %s, want user", ErrInvalidOperation, userID, user.Role)
	}

	if i := indexOf(d.ActivePath, userID); i >= 0 && i+1 < len(d.ActivePath) {
		if next := d.Nodes[d.ActivePath[i+1]]; next != nil && next.Role == RoleAssistant {
			return next, false, nil
		}
	}
	for _, childID := range d.Children[userID] {
		if child := d.Nodes[childID]; child != nil && child.Role == RoleAssistant {
			return child, false, nil
		}
	}

	placeholderID := newPlaceholderID()
	if _, ok := d.Nodes[placeholderID]; ok {
		return nil, false, fmt.Errorf("%w: %s", ErrDuplicateID, placeholderID)
	}
	now := time.Now().UTC()
	placeholder := &Node{ID: placeholderID, ParentID: userID, Role: RoleAssistant, UpdatedAt: now}
	d.Nodes[placeholderID] = placeholder
	d.Children[userID] = append(d.Children[userID], placeholderID)
	if d.tail() == userID {
		d.ActivePath = append(d.ActivePath, placeholderID)
	}
	d.touch(now)
	return placeholder, true, nil
}

// TruncateAfter removes nodeID and its entire subtree. When the
// subtree overlapped the active path, the path ends just before the
// first removed node, possibly empty until the next Normalize repairs
// it.
func (d *Document) TruncateAfter(nodeID string) error {
	if _, err := d.Normalize(); err != nil {
		return err
	}
	if _, ok := d.Nodes[nodeID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, nodeID)
	}
	d.removeSubtree(nodeID)
	d.touch(time.Now().UTC())
	return nil
}

// DeleteBranch removes nodeID and its subtree like TruncateAfter, then
// re-anchors the active path onto a surviving sibling when the deleted
// node itself was on the path: the sibling now occupying the deleted
// node's old position, or the new last sibling when it was last. For a
// deleted root the sibling set is the roots list.
func (d *Document) DeleteBranch(nodeID string) error {
	if _, err := d.Normalize(); err != nil {
		return err
	}
	node, ok := d.Nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, nodeID)
	}
	parentID := node.ParentID
	siblings := d.Roots
	if parentID != "" {
		siblings = d.Children[parentID]
	}
	origIndex := indexOf(siblings, nodeID)
	wasOnPath := indexOf(d.ActivePath, nodeID) >= 0

	d.removeSubtree(nodeID)

	if wasOnPath && origIndex >= 0 {
		remaining := d.Roots
		if parentID != "" {
			remaining = d.Children[parentID]
		}
		if len(remaining) > 0 {
			anchor := remaining[len(remaining)-1]
			if origIndex < len(remaining) {
				anchor = remaining[origIndex]
			}
			d.ActivePath = append(d.ActivePath, anchor)
		}
	}

	d.touch(time.Now().UTC())
	return nil
}

// SwitchBranch replaces the active-path tail with its targetJ-th
// sibling, 1-based. Roots are the sibling set when the tail is a root.
// The path never deepens on a switch. The returned flag reports
// whether the path actually changed; switching to the current position
// succeeds without mutating.
func (d *Document) SwitchBranch(targetJ int) (*Node, bool, error) {
	path, err := d.Normalize()
	if err != nil {
		return nil, false, err
	}
	tailID := path[len(path)-1]
	siblings := d.Roots
	if parentID := d.Nodes[tailID].ParentID; parentID != "" {
		siblings = d.Children[parentID]
	}
	if targetJ < 1 || targetJ > len(siblings) {
		return nil, false, fmt.Errorf("%w: branch %d of %d", ErrOutOfRange, targetJ, len(siblings))
	}
	pick := siblings[targetJ-1]
	if pick == tailID {
		return d.Nodes[pick], false, nil
	}
	d.ActivePath[len(d.ActivePath)-1] = pick
	d.touch(time.Now().UTC())
	return d.Nodes[pick], true, nil
}

// UpdateContent replaces a node's content verbatim; empty content is
// allowed. Structure and path are untouched.
func (d *Document) UpdateContent(nodeID, content string) (*Node, error) {
	if _, err := d.Normalize(); err != nil {
		return nil, err
	}
	node, ok := d.Nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, nodeID)
	}
	now := time.Now().UTC()
	node.Content = content
	node.UpdatedAt = now
	d.touch(now)
	return node, nil
}

// removeSubtree deletes nodeID and every descendant from nodes,
// children, roots, and the active path (cut at the first removed id).
// The visited set keeps malformed cyclic input from hanging the walk.
func (d *Document) removeSubtree(nodeID string) {
	collected := map[string]bool{}
	stack := []string{nodeID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if collected[id] {
			continue
		}
		collected[id] = true
		stack = append(stack, d.Children[id]...)
	}

	for id := range collected {
		delete(d.Nodes, id)
		delete(d.Children, id)
	}
	for parent, kids := range d.Children {
		keep := kids[:0]
		for _, id := range kids {
			if !collected[id] {
				keep = append(keep, id)
			}
		}
		if len(keep) == 0 {
			delete(d.Children, parent)
		} else {
			d.Children[parent] = keep
		}
	}
	roots := d.Roots[:0]
	for _, id := range d.Roots {
		if !collected[id] {
			roots = append(roots, id)
		}
	}
	d.Roots = roots
	for i, id := range d.ActivePath {
		if collected[id] {
			d.ActivePath = d.ActivePath[:i]
			break
		}
	}
}

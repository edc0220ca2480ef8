package tree

// Message is one entry of the linear conversation view handed to
// prompt assembly and exports.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Summary locates one active-path element among its siblings: depth is
// the 1-based position on the path, Index/Count the 1-based branch
// position and sibling count at that depth.
type Summary struct {
	Depth  int    `json:"depth"`
	NodeID string `json:"node_id"`
	Index  int    `json:"index"`
	Count  int    `json:"count"`
}

// ExportMessages projects the active path to (role, content) pairs.
// A trailing assistant placeholder that is still empty is elided, so
// half-finished turns never leak into prompts or transcripts.
func (d *Document) ExportMessages() ([]Message, error) {
	path, err := d.Normalize()
	if err != nil {
		return nil, err
	}
	messages := make([]Message, 0, len(path))
	for i, id := range path {
		node := d.Nodes[id]
		if i == len(path)-1 && node.Role == RoleAssistant && node.Content == "" && IsPlaceholder(node.ID) {
			break
		}
		messages = append(messages, Message{Role: node.Role, Content: node.Content})
	}
	return messages, nil
}

// LatestSummary reports where the active-path tail sits among its
// siblings.
func (d *Document) LatestSummary() (Summary, error) {
	path, err := d.Normalize()
	if err != nil {
		return Summary{}, err
	}
	depth := len(path)
	j, n := d.siblingPosition(path, depth)
	return Summary{Depth: depth, NodeID: path[depth-1], Index: j, Count: n}, nil
}

// BranchTable reports one Summary per active-path element, depth
// ascending, for branch navigation displays.
func (d *Document) BranchTable() ([]Summary, error) {
	path, err := d.Normalize()
	if err != nil {
		return nil, err
	}
	rows := make([]Summary, len(path))
	for depth := 1; depth <= len(path); depth++ {
		j, n := d.siblingPosition(path, depth)
		rows[depth-1] = Summary{Depth: depth, NodeID: path[depth-1], Index: j, Count: n}
	}
	return rows, nil
}

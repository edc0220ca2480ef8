package tree

import "fmt"

// Normalize repairs a document and cuts the active path back to its
// longest connected rooted prefix. It runs as the first step of every
// engine operation, so documents edited externally between operations
// self-heal on the next touch.
//
// The current root is active_path[0] when that node still exists; it
// must then also be listed in roots. An empty path, or a head that no
// longer exists, falls back to roots[0]. From the root, each stored
// path element survives only while it remains a child of the element
// before it.
//
// Normalize is idempotent and never fails on a document it has already
// repaired. Repair alone is not a mutation; callers decide whether the
// result needs persisting.
func (d *Document) Normalize() ([]string, error) {
	d.repair()

	if len(d.ActivePath) > 0 {
		if _, ok := d.Nodes[d.ActivePath[0]]; ok {
			root := d.ActivePath[0]
			if indexOf(d.Roots, root) < 0 {
				return nil, fmt.Errorf("%w: active path head %s is not a root", ErrInvalidDocument, root)
			}
			path := []string{root}
			for _, next := range d.ActivePath[1:] {
				if indexOf(d.Children[path[len(path)-1]], next) < 0 {
					break
				}
				path = append(path, next)
			}
			d.ActivePath = path
			return d.ActivePath, nil
		}
	}

	if len(d.Roots) == 0 {
		return nil, fmt.Errorf("%w: document has no roots", ErrInvalidDocument)
	}
	d.ActivePath = []string{d.Roots[0]}
	return d.ActivePath, nil
}

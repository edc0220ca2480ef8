package tree

import "fmt"

// SiblingPosition reports the 1-based position of the active-path
// element at depth among its siblings, and the sibling count. Depth 1
// positions the path head among roots; deeper elements are positioned
// among their parent's children. Depth outside 1..len(path) fails with
// ErrOutOfRange.
func (d *Document) SiblingPosition(depth int) (int, int, error) {
	path, err := d.Normalize()
	if err != nil {
		return 0, 0, err
	}
	if depth < 1 || depth > len(path) {
		return 0, 0, fmt.Errorf("%w: depth %d of path length %d", ErrOutOfRange, depth, len(path))
	}
	j, n := d.siblingPosition(path, depth)
	return j, n, nil
}

// siblingPosition assumes a normalized path and a valid depth. A
// position of 0 means the element was not found in its sibling set,
// which only happens on malformed input; projections pass the zero
// through rather than failing a read.
func (d *Document) siblingPosition(path []string, depth int) (j, n int) {
	siblings := d.Roots
	if depth >= 2 {
		siblings = d.Children[path[depth-2]]
	}
	return indexOf(siblings, path[depth-1]) + 1, len(siblings)
}

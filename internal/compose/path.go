package compose

import "strings"

// PathSeparator joins property names into a field path, e.g. "address#street".
const PathSeparator = "#"

func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + PathSeparator + name
}

// Lookup returns the first value found at path. Arrays on the way are
// searched element by element.
func Lookup(root *Node, path string) (*Node, bool) {
	return lookup(root, strings.Split(path, PathSeparator))
}

func lookup(n *Node, parts []string) (*Node, bool) {
	if len(parts) == 0 {
		return n, true
	}
	switch n.kind {
	case KindObject:
		child := n.Get(parts[0])
		if child == nil {
			return nil, false
		}
		return lookup(child, parts[1:])
	case KindArray:
		for _, it := range n.items {
			if v, ok := lookup(it, parts); ok {
				return v, true
			}
		}
	}
	return nil, false
}

// Replace sets every value found at path to the result of fn applied to the
// current value and reports how many values changed. Arrays on the way
// are updated element by element.
func Replace(root *Node, path string, fn func(current *Node) *Node) int {
	return replace(root, strings.Split(path, PathSeparator), fn)
}

func replace(n *Node, parts []string, fn func(*Node) *Node) int {
	switch n.kind {
	case KindObject:
		for i := range n.members {
			if n.members[i].Key != parts[0] {
				continue
			}
			if len(parts) == 1 {
				n.members[i].Value = fn(n.members[i].Value)
				return 1
			}
			return replace(n.members[i].Value, parts[1:], fn)
		}
	case KindArray:
		changed := 0
		for _, it := range n.items {
			changed += replace(it, parts, fn)
		}
		return changed
	}
	return 0
}

// WithField returns payload with every value at path replaced by fn. ok is
// false when the payload is not JSON or the path does not exist.
func WithField(payload, path string, fn func(current *Node) *Node) (string, bool) {
	root, err := Parse(payload)
	if err != nil {
		return payload, false
	}
	if Replace(root, path, fn) == 0 {
		return payload, false
	}
	return root.String(), true
}

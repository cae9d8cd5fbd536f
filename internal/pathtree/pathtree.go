// Package pathtree implements the hierarchical name index used by the
// metaserver's publisher registry. A Node owns its children through
// its children slice and keeps a plain pointer back to its parent, so
// parent and child reference each other; Go's garbage collector
// reclaims such cycles, so unlinking a subtree from its parent's
// children slice is enough for it to be freed once nothing else holds
// it.
package pathtree

import (
	"fmt"
	"strings"
	"sync"

	"github.com/nlyu1/agora/internal/agoraerr"
)

const component = "pathtree::Node"

// Node is a thread-safe tree node. Children and the parent pointer are
// each guarded by their own mutex so a traversal never needs to hold
// more than one lock at a time.
type Node struct {
	name string

	childMu  sync.Mutex
	children []*Node

	parentMu sync.Mutex
	parent   *Node
}

// New creates a root node. name must not contain '/'.
func New(name string) *Node {
	if strings.Contains(name, "/") {
		panic("pathtree: node name cannot contain slashes")
	}
	return &Node{name: name}
}

func (n *Node) Name() string {
	return n.name
}

// IsRoot reports whether n has no parent.
func (n *Node) IsRoot() bool {
	n.parentMu.Lock()
	defer n.parentMu.Unlock()
	return n.parent == nil
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	n.childMu.Lock()
	defer n.childMu.Unlock()
	return len(n.children) == 0
}

// Children returns a snapshot slice of n's children in insertion order.
func (n *Node) Children() []*Node {
	n.childMu.Lock()
	defer n.childMu.Unlock()
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Parent returns n's parent, or a NotFoundError if n is the root.
func (n *Node) Parent() (*Node, error) {
	n.parentMu.Lock()
	defer n.parentMu.Unlock()
	if n.parent == nil {
		return nil, agoraerr.NotFound(component, "Parent", "parent not found for %q", n.name)
	}
	return n.parent, nil
}

func (n *Node) setParent(p *Node) {
	n.parentMu.Lock()
	n.parent = p
	n.parentMu.Unlock()
}

// Root walks up to the tree's root.
func (n *Node) Root() *Node {
	cur := n
	for {
		p, err := cur.Parent()
		if err != nil {
			return cur
		}
		cur = p
	}
}

// Path renders the full slash-separated path from the root to n.
func (n *Node) Path() string {
	p, err := n.Parent()
	if err != nil {
		return "/" + n.name
	}
	return p.Path() + "/" + n.name
}

// AddChild appends child to n's children and sets child's parent to n.
// No uniqueness check is performed; callers must avoid duplicate
// sibling names themselves.
func (n *Node) AddChild(child *Node) {
	child.setParent(n)
	n.childMu.Lock()
	n.children = append(n.children, child)
	n.childMu.Unlock()
}

// AddChildren creates and appends one leaf child per name.
func (n *Node) AddChildren(names ...string) {
	for _, name := range names {
		n.AddChild(New(name))
	}
}

func (n *Node) immediateChild(name string) (*Node, error) {
	n.childMu.Lock()
	defer n.childMu.Unlock()
	for _, c := range n.children {
		if c.name == name {
			return c, nil
		}
	}
	return nil, agoraerr.NotFound(component, "GetChild", "child %q not found under %q", name, n.name)
}

func (n *Node) removeImmediateChild(name string) error {
	n.childMu.Lock()
	defer n.childMu.Unlock()
	for i, c := range n.children {
		if c.name == name {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return nil
		}
	}
	return agoraerr.NotFound(component, "RemoveChild", "child %q not found under %q", name, n.name)
}

// GetChild walks a slash-delimited path from n. Empty segments (from a
// leading, trailing or doubled slash) are skipped.
func (n *Node) GetChild(path string) (*Node, error) {
	if path == "" {
		return n, nil
	}
	cur := n
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		next, err := cur.immediateChild(part)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// RemoveChild resolves path under n and unlinks that single node from
// its immediate parent.
func (n *Node) RemoveChild(path string) error {
	child, err := n.GetChild(path)
	if err != nil {
		return err
	}
	parent, err := child.Parent()
	if err != nil {
		return err
	}
	return parent.removeImmediateChild(child.name)
}

// branchingAncestor walks up from n until it finds the first ancestor
// with more than one child, or the root, returning that ancestor and
// the name of the child chain to unlink there.
func (n *Node) branchingAncestor() (*Node, string, error) {
	if n.IsRoot() {
		return nil, "", agoraerr.Internal(component, "branchingAncestor", "called on root")
	}
	parent, _ := n.Parent()
	if parent.IsRoot() {
		return parent, n.name, nil
	}
	if len(parent.Children()) > 1 {
		return parent, n.name, nil
	}
	return parent.branchingAncestor()
}

// RemoveChildAndBranch removes path's leaf node and every ancestor
// chain above it that has no other children, stopping at the first
// branching ancestor (or the root). Fails if the target is the root or
// is not a leaf.
func (n *Node) RemoveChildAndBranch(path string) error {
	child, err := n.GetChild(path)
	if err != nil {
		return err
	}
	if child.IsRoot() {
		return agoraerr.Internal(component, "RemoveChildAndBranch", "cannot remove root node")
	}
	if !child.IsLeaf() {
		return agoraerr.Internal(component, "RemoveChildAndBranch", "cannot remove non-leaf node")
	}
	ancestor, name, err := child.branchingAncestor()
	if err != nil {
		return err
	}
	return ancestor.removeImmediateChild(name)
}

// DisplayTree renders an ASCII box-drawing representation of the
// subtree rooted at n, for operator output.
func (n *Node) DisplayTree() string {
	var b strings.Builder
	n.writeTree(&b, "", true)
	return strings.TrimRight(b.String(), "\n")
}

func (n *Node) writeTree(b *strings.Builder, prefix string, isLast bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	fmt.Fprintf(b, "%s%s%s\n", prefix, connector, n.name)

	childPrefix := prefix + "│   "
	if isLast {
		childPrefix = prefix + "    "
	}
	children := n.Children()
	for i, c := range children {
		c.writeTree(b, childPrefix, i == len(children)-1)
	}
}

// ToRepr serialises n using the custom grammar: a leaf is "name"; an
// internal node is {"name":[child,child,...]}.
func (n *Node) ToRepr() string {
	children := n.Children()
	if len(children) == 0 {
		return fmt.Sprintf("%q", n.name)
	}
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.ToRepr()
	}
	return fmt.Sprintf("{%q:[%s]}", n.name, strings.Join(parts, ","))
}

// FromRepr parses the ToRepr grammar back into a detached tree.
func FromRepr(repr string) (*Node, error) {
	repr = strings.TrimSpace(repr)

	if strings.HasPrefix(repr, `"`) && strings.HasSuffix(repr, `"`) && !strings.Contains(repr, "[") {
		return New(repr[1 : len(repr)-1]), nil
	}

	if !strings.HasPrefix(repr, "{") || !strings.HasSuffix(repr, "}") {
		return nil, agoraerr.Serialisation(component, "FromRepr", fmt.Errorf("invalid format: expected {...} or \"...\", got: %s", repr))
	}
	inner := repr[1 : len(repr)-1]

	colon := strings.IndexByte(inner, ':')
	if colon < 0 {
		return nil, agoraerr.Serialisation(component, "FromRepr", fmt.Errorf("no colon found in %s", inner))
	}
	namePart := strings.TrimSpace(inner[:colon])
	if !strings.HasPrefix(namePart, `"`) || !strings.HasSuffix(namePart, `"`) {
		return nil, agoraerr.Serialisation(component, "FromRepr", fmt.Errorf("invalid name format: %s", namePart))
	}
	name := namePart[1 : len(namePart)-1]

	childrenPart := strings.TrimSpace(inner[colon+1:])
	if !strings.HasPrefix(childrenPart, "[") || !strings.HasSuffix(childrenPart, "]") {
		return nil, agoraerr.Serialisation(component, "FromRepr", fmt.Errorf("invalid children format: %s", childrenPart))
	}

	node := New(name)
	childrenInner := strings.TrimSpace(childrenPart[1 : len(childrenPart)-1])
	if childrenInner != "" {
		reprs, err := splitReprArray(childrenInner)
		if err != nil {
			return nil, err
		}
		for _, r := range reprs {
			child, err := FromRepr(r)
			if err != nil {
				return nil, err
			}
			node.AddChild(child)
		}
	}
	return node, nil
}

// splitReprArray splits a comma-joined array of reprs, respecting
// quotes and brace/bracket nesting depth so that commas inside nested
// children arrays never cause a premature split.
func splitReprArray(s string) ([]string, error) {
	var result []string
	var current strings.Builder
	depth := 0
	inQuotes := false
	escapeNext := false

	for _, ch := range s {
		if escapeNext {
			current.WriteRune(ch)
			escapeNext = false
			continue
		}
		switch ch {
		case '\\':
			escapeNext = true
			current.WriteRune(ch)
		case '"':
			inQuotes = !inQuotes
			current.WriteRune(ch)
		case '{', '[':
			if !inQuotes {
				depth++
			}
			current.WriteRune(ch)
		case '}', ']':
			if !inQuotes {
				depth--
			}
			current.WriteRune(ch)
		case ',':
			if !inQuotes && depth == 0 {
				result = append(result, strings.TrimSpace(current.String()))
				current.Reset()
				continue
			}
			current.WriteRune(ch)
		default:
			current.WriteRune(ch)
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		result = append(result, strings.TrimSpace(current.String()))
	}
	return result, nil
}

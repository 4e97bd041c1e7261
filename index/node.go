package index

import (
	"github.com/dendrascience/archivefs/archive"
)

// Node is one file or directory in the tree.
type Node struct {
	Name   string
	Inode  uint64
	Record archive.Record

	parent   *Node
	children map[string]*Node
	ordered  []*Node
}

// Kind returns the kind of the node's record.
func (n *Node) Kind() archive.Kind {
	return n.Record.Kind
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool {
	return n.Record.Kind == archive.KindDirectory
}

// Parent returns the containing directory. The root is its own parent.
func (n *Node) Parent() *Node {
	if n.parent == nil {
		return n
	}
	return n.parent
}

// Children returns the node's children in first-seen order. The slice is
// shared with the index and must not be modified.
func (n *Node) Children() []*Node {
	return n.ordered
}

// Child returns the direct child called name.
func (n *Node) Child(name string) (*Node, bool) {
	c, ok := n.children[name]
	return c, ok
}

func (n *Node) addChild(c *Node) {
	if n.children == nil {
		n.children = make(map[string]*Node)
	}
	c.parent = n
	n.children[c.Name] = c
	n.ordered = append(n.ordered, c)
}

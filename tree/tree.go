// Package tree implements phylogenetic trees, their Newick
// representation and topology rearrangements.
package tree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Mode int

const (
	NORMAL Mode = iota
	LENGTH
)

// Tree is a rooted tree. Unrooted trees are stored with a root of
// degree three. Node ids are always 0..NNodes()-1.
type Tree struct {
	*Node
	nNodes    int
	nodes     []*Node
	nodeOrder []*Node
}

// ClearCache should be called after any change of the topology.
func (tree *Tree) ClearCache() {
	tree.nNodes = 0
	tree.nodes = nil
	tree.nodeOrder = nil
}

func (tree *Tree) NNodes() int {
	if tree.nNodes == 0 {
		tree.nNodes = tree.NSubNodes()
	}
	return tree.nNodes
}

// Nodes returns nodes indexed by their id.
func (tree *Tree) Nodes() []*Node {
	if tree.nodes == nil {
		tree.nodes = make([]*Node, tree.NNodes())
		for node := range tree.Walker(nil) {
			tree.nodes[node.Id] = node
		}
	}
	return tree.nodes
}

func (tree *Tree) Terminals() <-chan *Node {
	return tree.Walker(func(n *Node) bool {
		return n.IsTerminal()
	})
}

func (tree *Tree) NLeaves() (i int) {
	for range tree.Terminals() {
		i++
	}
	return
}

// LeafNames returns sorted names of the leaves.
func (tree *Tree) LeafNames() []string {
	var names []string
	for node := range tree.Terminals() {
		names = append(names, node.Name)
	}
	sort.Strings(names)
	return names
}

// InternalEdges returns internal nodes except the root. Every such
// node defines an internal edge to its parent.
func (tree *Tree) InternalEdges() (res []*Node) {
	for node := range tree.Walker(func(n *Node) bool {
		return !n.IsRoot() && !n.IsTerminal()
	}) {
		res = append(res, node)
	}
	return
}

func (tree *Tree) Walker(filter func(*Node) bool) <-chan *Node {
	ch := make(chan *Node, tree.NNodes())
	tree.Walk(ch, filter)
	close(ch)
	return ch
}

// Copy creates independent copy of the tree.
func (tree *Tree) Copy() (newTree *Tree) {
	nNodes := tree.NNodes()
	newTree = &Tree{
		nNodes: nNodes,
		nodes:  make([]*Node, nNodes),
	}

	// Create node list.
	for i, node := range tree.Nodes() {
		if i != node.Id {
			panic("node id mismatch")
		}
		newTree.nodes[i] = node.Copy()
	}

	// Rewire node/parent connections.
	for i, node := range tree.Nodes() {
		newNode := newTree.nodes[i]
		for _, child := range node.childNodes {
			newNode.AddChild(newTree.nodes[child.Id])
		}
	}

	newTree.Node = newTree.nodes[tree.Node.Id]

	return
}

// NodeOrder returns internal nodes in postorder, i.e. every node
// comes after all of its children.
func (tree *Tree) NodeOrder() []*Node {
	if tree.nodeOrder == nil {
		tree.nodeOrder = make([]*Node, 0, tree.NNodes())
		var visit func(*Node)
		visit = func(node *Node) {
			if node.IsTerminal() {
				return
			}
			for _, child := range node.childNodes {
				visit(child)
			}
			tree.nodeOrder = append(tree.nodeOrder, node)
		}
		visit(tree.Node)
	}
	return tree.nodeOrder
}

// Renumber assigns node ids in preorder and leaf ids in the order of
// appearance.
func (tree *Tree) Renumber() {
	nodeId, leafId := 0, 0
	var visit func(*Node)
	visit = func(node *Node) {
		node.Id = nodeId
		nodeId++
		if node.IsTerminal() {
			node.LeafId = leafId
			leafId++
		}
		for _, child := range node.childNodes {
			visit(child)
		}
	}
	visit(tree.Node)
	tree.ClearCache()
}

// Unroot converts a bifurcating root into a trifurcation by merging
// one of the root children (an internal one) into the root. The root
// branch lengths are summed.
func (tree *Tree) Unroot() error {
	root := tree.Node
	if len(root.childNodes) != 2 {
		return nil
	}
	c0, c1 := root.childNodes[0], root.childNodes[1]
	if c0.IsTerminal() {
		c0, c1 = c1, c0
	}
	if c0.IsTerminal() {
		return errors.New("cannot unroot a tree with two leaves")
	}
	c1.BranchLength += c0.BranchLength
	root.childNodes = nil
	for _, child := range c0.childNodes {
		root.AddChild(child)
	}
	root.AddChild(c1)
	tree.Renumber()
	return nil
}

// NNI performs a nearest neighbour interchange around the edge
// between node and its parent: the child with the given index is
// swapped with the first sibling of node. Repeating the same call
// reverts the change.
func (tree *Tree) NNI(node *Node, child int) error {
	parent := node.Parent
	if parent == nil || node.IsTerminal() {
		return errors.New("NNI requires an internal edge")
	}
	if child < 0 || child >= len(node.childNodes) {
		return fmt.Errorf("node %d has no child %d", node.Id, child)
	}
	si := -1
	for i, s := range parent.childNodes {
		if s != node {
			si = i
			break
		}
	}
	if si < 0 {
		return fmt.Errorf("node %d has no sibling", node.Id)
	}
	a, s := node.childNodes[child], parent.childNodes[si]
	node.childNodes[child] = s
	s.Parent = node
	parent.childNodes[si] = a
	a.Parent = parent
	tree.nodeOrder = nil
	return nil
}

// InsertLeaf splits the branch above edge and attaches a new leaf to
// the new node. The branch length is split in halves and the leaf gets
// length brlen.
func (tree *Tree) InsertLeaf(edge *Node, name string, brlen float64) (*Node, error) {
	parent := edge.Parent
	if parent == nil {
		return nil, errors.New("cannot insert above the root")
	}
	n := tree.NNodes()
	nLeaves := tree.NLeaves()
	mid := NewNode(nil, n)
	mid.BranchLength = edge.BranchLength / 2
	edge.BranchLength /= 2
	for i, c := range parent.childNodes {
		if c == edge {
			parent.childNodes[i] = mid
			mid.Parent = parent
			break
		}
	}
	mid.AddChild(edge)
	leaf := NewNode(nil, n+1)
	leaf.Name = name
	leaf.LeafId = nLeaves
	leaf.BranchLength = brlen
	mid.AddChild(leaf)
	tree.ClearCache()
	return leaf, nil
}

// NewStar creates a tree with a single internal node (the root) and
// the given leaves.
func NewStar(names []string, brlen float64) *Tree {
	root := NewNode(nil, 0)
	for i, name := range names {
		leaf := NewNode(nil, i+1)
		leaf.Name = name
		leaf.LeafId = i
		leaf.BranchLength = brlen
		root.AddChild(leaf)
	}
	return &Tree{Node: root}
}

type Node struct {
	Name         string
	BranchLength float64
	Parent       *Node
	childNodes   []*Node
	Id           int
	LeafId       int
}

func NewNode(parent *Node, nodeId int) (node *Node) {
	node = &Node{Parent: parent, Id: nodeId}
	return
}

// Copy creates copy of node with empty parent and children.
func (node *Node) Copy() *Node {
	return &Node{
		Name:         node.Name,
		BranchLength: node.BranchLength,
		childNodes:   make([]*Node, 0, len(node.childNodes)),
		Id:           node.Id,
		LeafId:       node.LeafId,
	}
}

func (node *Node) AddChild(subNode *Node) {
	subNode.Parent = node
	node.childNodes = append(node.childNodes, subNode)
}

func (node *Node) String() string {
	var b strings.Builder
	node.write(&b)
	return b.String()
}

func (node *Node) write(b *strings.Builder) {
	if node.IsTerminal() {
		fmt.Fprintf(b, "%s:%0.6f", node.Name, node.BranchLength)
		return
	}
	b.WriteByte('(')
	for i, child := range node.childNodes {
		if i != 0 {
			b.WriteByte(',')
		}
		child.write(b)
	}
	if node.IsRoot() {
		b.WriteString(");")
		return
	}
	fmt.Fprintf(b, "):%0.6f", node.BranchLength)
}

func (node *Node) ChildNodes() []*Node {
	return node.childNodes
}

func (node *Node) Walk(ch chan *Node, filter func(*Node) bool) {
	if filter == nil || filter(node) {
		ch <- node
	}
	for _, node := range node.childNodes {
		node.Walk(ch, filter)
	}
}

func (node *Node) NSubNodes() (size int) {
	for _, node := range node.childNodes {
		size += node.NSubNodes()
	}
	return size + 1
}

func (node *Node) IsRoot() bool {
	return node.Parent == nil
}

func (node *Node) IsTerminal() bool {
	return len(node.childNodes) == 0
}

func IsSpecial(c rune) bool {
	switch c {
	case '(', ')', ':', ';', ',':
		return true
	}
	return false

}

func NewickSplit(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	// Skip leading spaces; and return 1-char tokens.
	for width := 0; start < len(data); start += width {
		var r rune
		r, width = utf8.DecodeRune(data[start:])
		if IsSpecial(r) {
			return start + width, data[start : start+width], nil
		}
		if !unicode.IsSpace(r) {
			break
		}
	}
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// Scan until space or special character.
	for width, i := 0, start; i < len(data); i += width {
		var r rune
		r, width = utf8.DecodeRune(data[i:])
		if unicode.IsSpace(r) || IsSpecial(r) {
			return i, data[start:i], nil
		}
	}
	// If we're at EOF, we have a final, non-empty, non-terminated word. Return it.
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	// Request more data.
	return 0, nil, nil
}

// ParseNewick parses a tree in the Newick format. Labels of internal
// nodes (e.g. support values) are kept as names.
func ParseNewick(rd io.Reader) (tree *Tree, err error) {
	scanner := bufio.NewScanner(rd)

	scanner.Split(NewickSplit)

	nodeId := 0
	leafId := 0

	node := NewNode(nil, nodeId)
	tree = &Tree{Node: node}
	nodeId++

	mode := NORMAL
	complete := false

	for scanner.Scan() {
		text := scanner.Text()
		switch text {
		case "(":
			subNode := NewNode(nil, nodeId)
			nodeId++
			node.AddChild(subNode)
			node = subNode

		case ",":
			if node.Parent == nil {
				return nil, errors.New("top level comma mismatch")
			}
			subNode := NewNode(nil, nodeId)
			nodeId++

			node.Parent.AddChild(subNode)
			node = subNode

		case ")":
			if node.Parent == nil {
				return nil, errors.New("brackets mismatch")
			}
			node = node.Parent
		case ":":
			mode = LENGTH
		case ";":
			complete = true
		default:
			switch mode {
			case LENGTH:
				l, err := strconv.ParseFloat(text, 64)
				if err != nil {
					return nil, err
				}
				node.BranchLength = l
				mode = NORMAL
			default:
				node.Name = text
				if node.IsTerminal() {
					node.LeafId = leafId
					leafId++
				}
			}
		}
		if complete {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !complete {
		return nil, errors.New("tree is not terminated by ';'")
	}
	if node != tree.Node {
		return nil, errors.New("brackets mismatch")
	}

	for leaf := range tree.Terminals() {
		if leaf.Name == "" {
			return nil, errors.New("unnamed leaf")
		}
	}

	return
}

// Package merkle implements the note commitment tree and incremental
// witnesses.
//
// The tree is kept as its frontier: the two most recent leaves and one
// optional node per level above them. That is enough to append and to
// compute the current root without retaining history. A witness snapshots
// the frontier when its note is appended and then records every node that
// fills in to its right, so it can produce an authentication path for the
// tree's current root as long as it sees every subsequent append in order.
package merkle

import (
	"errors"

	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
)

// Depth of the note commitment tree.
const Depth = 32

var (
	ErrTreeFull  = errors.New("merkle: tree is full")
	ErrEmptyTree = errors.New("merkle: cannot witness an empty tree")
	ErrMalformed = errors.New("merkle: malformed checkpoint")
)

// Node is a tree node: a little-endian base-field element.
type Node [32]byte

func combine(layer int, left, right Node) Node {
	return Node(sapling.MerkleHash(uint8(layer), left, right))
}

var emptyRoots = func() [Depth + 1]Node {
	var roots [Depth + 1]Node
	roots[0] = Node(sapling.UncommittedLeaf())
	for i := 1; i <= Depth; i++ {
		roots[i] = combine(i-1, roots[i-1], roots[i-1])
	}
	return roots
}()

// EmptyRoot returns the root of an empty subtree of the given height.
func EmptyRoot(height int) Node {
	return emptyRoots[height]
}

// pathFiller yields queued nodes first and empty roots afterwards.
type pathFiller struct {
	queue []Node
}

func (f *pathFiller) next(depth int) Node {
	if len(f.queue) > 0 {
		n := f.queue[0]
		f.queue = f.queue[1:]
		return n
	}
	return emptyRoots[depth]
}

// CommitmentTree is the frontier of the note commitment tree.
type CommitmentTree struct {
	Left    *Node
	Right   *Node
	Parents []*Node
}

// NewCommitmentTree returns an empty tree.
func NewCommitmentTree() *CommitmentTree {
	return &CommitmentTree{}
}

// Clone returns a deep copy of t.
func (t *CommitmentTree) Clone() *CommitmentTree {
	c := &CommitmentTree{
		Left:    cloneNode(t.Left),
		Right:   cloneNode(t.Right),
		Parents: make([]*Node, len(t.Parents)),
	}
	for i, p := range t.Parents {
		c.Parents[i] = cloneNode(p)
	}
	return c
}

func cloneNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

// Size returns the number of leaves appended so far.
func (t *CommitmentTree) Size() uint64 {
	var size uint64
	if t.Left != nil {
		size++
	}
	if t.Right != nil {
		size++
	}
	for i, p := range t.Parents {
		if p != nil {
			size += 1 << uint(i+1)
		}
	}
	return size
}

// isComplete reports whether the subtree of the given depth is full.
func (t *CommitmentTree) isComplete(depth int) bool {
	if t.Left == nil || t.Right == nil || len(t.Parents) != depth-1 {
		return false
	}
	for _, p := range t.Parents {
		if p == nil {
			return false
		}
	}
	return true
}

// Append adds node as the next leaf.
func (t *CommitmentTree) Append(node Node) error {
	return t.appendInner(node, Depth)
}

func (t *CommitmentTree) appendInner(node Node, depth int) error {
	if t.isComplete(depth) {
		return ErrTreeFull
	}

	switch {
	case t.Left == nil:
		t.Left = &node
	case t.Right == nil:
		t.Right = &node
	default:
		combined := combine(0, *t.Left, *t.Right)
		t.Left = &node
		t.Right = nil

		for i := 0; i < depth; i++ {
			if i < len(t.Parents) {
				if p := t.Parents[i]; p != nil {
					combined = combine(i+1, *p, combined)
					t.Parents[i] = nil
					continue
				}
				c := combined
				t.Parents[i] = &c
				break
			}
			c := combined
			t.Parents = append(t.Parents, &c)
			break
		}
	}
	return nil
}

// Root returns the current anchor.
func (t *CommitmentTree) Root() Node {
	return t.rootInner(Depth, &pathFiller{})
}

func (t *CommitmentTree) rootInner(depth int, filler *pathFiller) Node {
	var left, right Node
	if t.Left != nil {
		left = *t.Left
	} else {
		left = filler.next(0)
	}
	if t.Right != nil {
		right = *t.Right
	} else {
		right = filler.next(0)
	}
	root := combine(0, left, right)

	for i, p := range t.Parents {
		if i >= depth-1 {
			break
		}
		if p != nil {
			root = combine(i+1, *p, root)
		} else {
			root = combine(i+1, root, filler.next(i+1))
		}
	}
	for d := len(t.Parents) + 1; d < depth; d++ {
		root = combine(d, root, filler.next(d))
	}
	return root
}

// last returns the most recently appended leaf.
func (t *CommitmentTree) last() (Node, bool) {
	if t.Right != nil {
		return *t.Right, true
	}
	if t.Left != nil {
		return *t.Left, true
	}
	return Node{}, false
}

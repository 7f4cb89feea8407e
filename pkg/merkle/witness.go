package merkle

// IncrementalWitness tracks the authentication path of one leaf.
type IncrementalWitness struct {
	tree        *CommitmentTree
	filled      []Node
	cursorDepth int
	cursor      *CommitmentTree
}

// NewWitness starts witnessing the most recently appended leaf of tree.
// The tree is copied; the witness must then receive every later append.
func NewWitness(tree *CommitmentTree) *IncrementalWitness {
	return &IncrementalWitness{tree: tree.Clone()}
}

// Clone returns a deep copy of w.
func (w *IncrementalWitness) Clone() *IncrementalWitness {
	c := &IncrementalWitness{
		tree:        w.tree.Clone(),
		filled:      append([]Node(nil), w.filled...),
		cursorDepth: w.cursorDepth,
	}
	if w.cursor != nil {
		c.cursor = w.cursor.Clone()
	}
	return c
}

// Position returns the leaf index being witnessed.
func (w *IncrementalWitness) Position() uint64 {
	return w.tree.Size() - 1
}

// Leaf returns the witnessed leaf.
func (w *IncrementalWitness) Leaf() Node {
	n, _ := w.tree.last()
	return n
}

func (w *IncrementalWitness) filler() *pathFiller {
	queue := append([]Node(nil), w.filled...)
	if w.cursor != nil {
		queue = append(queue, w.cursor.rootInner(w.cursorDepth, &pathFiller{}))
	}
	return &pathFiller{queue: queue}
}

// nextDepth is the height of the next subtree to the right of the
// witnessed leaf that is not yet filled.
func (w *IncrementalWitness) nextDepth() int {
	skip := len(w.filled)

	if w.tree.Left == nil {
		if skip == 0 {
			return 0
		}
		skip--
	}
	if w.tree.Right == nil {
		if skip == 0 {
			return 0
		}
		skip--
	}

	d := 1
	for _, p := range w.tree.Parents {
		if p == nil {
			if skip == 0 {
				return d
			}
			skip--
		}
		d++
	}
	return d + skip
}

// Append advances the witness by the tree's next leaf.
func (w *IncrementalWitness) Append(node Node) error {
	if w.cursor != nil {
		if err := w.cursor.appendInner(node, w.cursorDepth); err != nil {
			return err
		}
		if w.cursor.isComplete(w.cursorDepth) {
			w.filled = append(w.filled, w.cursor.rootInner(w.cursorDepth, &pathFiller{}))
			w.cursor = nil
		}
		return nil
	}

	w.cursorDepth = w.nextDepth()
	if w.cursorDepth >= Depth {
		return ErrTreeFull
	}
	if w.cursorDepth == 0 {
		w.filled = append(w.filled, node)
	} else {
		w.cursor = NewCommitmentTree()
		if err := w.cursor.appendInner(node, w.cursorDepth); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the anchor the witness currently authenticates against. It
// equals the tree's root while the witness is in step with the tree.
func (w *IncrementalWitness) Root() Node {
	return w.tree.rootInner(Depth, w.filler())
}

// Path returns the authentication path for the witnessed leaf.
func (w *IncrementalWitness) Path() (*MerklePath, error) {
	if w.tree.Left == nil {
		return nil, ErrEmptyTree
	}
	filler := w.filler()
	path := &MerklePath{Position: w.Position()}

	if w.tree.Right != nil {
		path.AuthPath = append(path.AuthPath, PathElem{Node: *w.tree.Left, IsRight: true})
	} else {
		path.AuthPath = append(path.AuthPath, PathElem{Node: filler.next(0)})
	}
	for i, p := range w.tree.Parents {
		if p != nil {
			path.AuthPath = append(path.AuthPath, PathElem{Node: *p, IsRight: true})
		} else {
			path.AuthPath = append(path.AuthPath, PathElem{Node: filler.next(i + 1)})
		}
	}
	for i := len(w.tree.Parents); i < Depth-1; i++ {
		path.AuthPath = append(path.AuthPath, PathElem{Node: filler.next(i + 1)})
	}
	return path, nil
}

// PathElem is one sibling on an authentication path. IsRight is set when
// the path node sits to the right of its sibling.
type PathElem struct {
	Node    Node
	IsRight bool
}

// MerklePath authenticates a leaf at Position.
type MerklePath struct {
	AuthPath []PathElem
	Position uint64
}

// Root recomputes the anchor from leaf.
func (p *MerklePath) Root(leaf Node) Node {
	cur := leaf
	for i, e := range p.AuthPath {
		if e.IsRight {
			cur = combine(i, e.Node, cur)
		} else {
			cur = combine(i, cur, e.Node)
		}
	}
	return cur
}

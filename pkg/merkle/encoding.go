package merkle

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
)

// Checkpoint encoding, compatible with zcashd's tree serialization:
//
//	tree    = Optional(left) Optional(right) CompactSize(n) Optional(parent)^n
//	witness = tree CompactSize(m) node^m Optional(cursor tree)
//
// Optional(x) is 0x00, or 0x01 followed by x.

// Write serializes the tree.
func (t *CommitmentTree) Write(w io.Writer) error {
	if err := writeOptional(w, t.Left); err != nil {
		return err
	}
	if err := writeOptional(w, t.Right); err != nil {
		return err
	}
	if err := writeCompactSize(w, uint64(len(t.Parents))); err != nil {
		return err
	}
	for _, p := range t.Parents {
		if err := writeOptional(w, p); err != nil {
			return err
		}
	}
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (t *CommitmentTree) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadCommitmentTree decodes a tree written by Write. Readers that are
// not io.ByteReaders are buffered and may be read past the tree.
func ReadCommitmentTree(r io.Reader) (*CommitmentTree, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	t, err := readTree(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return t, nil
}

// ParseCommitmentTree decodes a serialized tree and rejects trailing data.
func ParseCommitmentTree(b []byte) (*CommitmentTree, error) {
	r := bytes.NewReader(b)
	t, err := readTree(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, r.Len())
	}
	return t, nil
}

func readTree(r io.ByteReader) (*CommitmentTree, error) {
	t := &CommitmentTree{}
	var err error
	if t.Left, err = readOptional(r); err != nil {
		return nil, err
	}
	if t.Right, err = readOptional(r); err != nil {
		return nil, err
	}
	n, err := readCompactSize(r)
	if err != nil {
		return nil, err
	}
	if n >= Depth {
		return nil, fmt.Errorf("%d parents exceeds tree depth", n)
	}
	t.Parents = make([]*Node, n)
	for i := range t.Parents {
		if t.Parents[i], err = readOptional(r); err != nil {
			return nil, err
		}
	}
	if t.Left == nil && t.Right != nil {
		return nil, fmt.Errorf("right leaf without left leaf")
	}
	return t, nil
}

// Write serializes the witness.
func (w *IncrementalWitness) Write(wr io.Writer) error {
	if err := w.tree.Write(wr); err != nil {
		return err
	}
	if err := writeCompactSize(wr, uint64(len(w.filled))); err != nil {
		return err
	}
	for _, n := range w.filled {
		if _, err := wr.Write(n[:]); err != nil {
			return err
		}
	}
	if w.cursor == nil {
		_, err := wr.Write([]byte{0})
		return err
	}
	if _, err := wr.Write([]byte{1}); err != nil {
		return err
	}
	return w.cursor.Write(wr)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (w *IncrementalWitness) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseIncrementalWitness decodes a serialized witness and rejects
// trailing data.
func ParseIncrementalWitness(b []byte) (*IncrementalWitness, error) {
	r := bytes.NewReader(b)
	w, err := readWitness(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, r.Len())
	}
	return w, nil
}

func readWitness(r io.ByteReader) (*IncrementalWitness, error) {
	tree, err := readTree(r)
	if err != nil {
		return nil, err
	}
	if tree.Left == nil {
		return nil, ErrEmptyTree
	}
	n, err := readCompactSize(r)
	if err != nil {
		return nil, err
	}
	if n > Depth {
		return nil, fmt.Errorf("%d filled nodes exceeds tree depth", n)
	}
	w := &IncrementalWitness{tree: tree, filled: make([]Node, n)}
	for i := range w.filled {
		if w.filled[i], err = readNode(r); err != nil {
			return nil, err
		}
	}

	flag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch flag {
	case 0:
	case 1:
		if w.cursor, err = readTree(r); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid cursor flag %#x", flag)
	}
	w.cursorDepth = w.nextDepth()
	return w, nil
}

func writeOptional(w io.Writer, n *Node) error {
	if n == nil {
		_, err := w.Write([]byte{0})
		return err
	}
	if _, err := w.Write([]byte{1}); err != nil {
		return err
	}
	_, err := w.Write(n[:])
	return err
}

func readOptional(r io.ByteReader) (*Node, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch flag {
	case 0:
		return nil, nil
	case 1:
		n, err := readNode(r)
		if err != nil {
			return nil, err
		}
		return &n, nil
	default:
		return nil, fmt.Errorf("invalid optional flag %#x", flag)
	}
}

func readNode(r io.ByteReader) (Node, error) {
	var n Node
	for i := range n {
		b, err := r.ReadByte()
		if err != nil {
			return Node{}, err
		}
		n[i] = b
	}
	if !sapling.IsCanonicalNode(n) {
		return Node{}, fmt.Errorf("node %x is not a field element", n[:])
	}
	return n, nil
}

func writeCompactSize(w io.Writer, n uint64) error {
	var buf [9]byte
	switch {
	case n < 0xfd:
		buf[0] = byte(n)
		_, err := w.Write(buf[:1])
		return err
	case n <= 0xffff:
		buf[0] = 0xfd
		binary.LittleEndian.PutUint16(buf[1:], uint16(n))
		_, err := w.Write(buf[:3])
		return err
	case n <= 0xffffffff:
		buf[0] = 0xfe
		binary.LittleEndian.PutUint32(buf[1:], uint32(n))
		_, err := w.Write(buf[:5])
		return err
	default:
		buf[0] = 0xff
		binary.LittleEndian.PutUint64(buf[1:], n)
		_, err := w.Write(buf[:9])
		return err
	}
}

func readCompactSize(r io.ByteReader) (uint64, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	width := 0
	switch flag {
	case 0xfd:
		width = 2
	case 0xfe:
		width = 4
	case 0xff:
		width = 8
	default:
		return uint64(flag), nil
	}
	var n uint64
	for i := 0; i < width; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		n |= uint64(b) << (8 * uint(i))
	}
	floor := map[int]uint64{2: 0xfd, 4: 0x10000, 8: 0x100000000}[width]
	if n < floor {
		return 0, fmt.Errorf("non-canonical compact size %d", n)
	}
	return n, nil
}

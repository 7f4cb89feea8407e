package merkle

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
)

func testLeaf(i int) Node {
	var seed [32]byte
	seed[0], seed[1] = byte(i), byte(i>>8)
	return Node(sapling.MerkleHash(255, seed, seed))
}

func TestEmptyTree(t *testing.T) {
	tree := NewCommitmentTree()
	assert.Equal(t, uint64(0), tree.Size())
	assert.Equal(t, EmptyRoot(Depth), tree.Root())

	_, err := NewWitness(tree).Path()
	assert.ErrorIs(t, err, ErrEmptyTree)
}

func TestTreeSize(t *testing.T) {
	tree := NewCommitmentTree()
	for i := 0; i < 37; i++ {
		require.NoError(t, tree.Append(testLeaf(i)))
		assert.Equal(t, uint64(i+1), tree.Size())
	}
}

func TestRootIsFunctionOfLeaves(t *testing.T) {
	a, b := NewCommitmentTree(), NewCommitmentTree()
	for i := 0; i < 9; i++ {
		require.NoError(t, a.Append(testLeaf(i)))
		require.NoError(t, b.Append(testLeaf(i)))
	}
	assert.Equal(t, a.Root(), b.Root())

	c := NewCommitmentTree()
	for i := 8; i >= 0; i-- {
		require.NoError(t, c.Append(testLeaf(i)))
	}
	assert.NotEqual(t, a.Root(), c.Root())
}

func TestSingleLeafRoot(t *testing.T) {
	tree := NewCommitmentTree()
	require.NoError(t, tree.Append(testLeaf(0)))

	want := combine(0, testLeaf(0), EmptyRoot(0))
	for d := 1; d < Depth; d++ {
		want = combine(d, want, EmptyRoot(d))
	}
	assert.Equal(t, want, tree.Root())
}

// Every witness created after k appends and advanced through the remaining
// appends must authenticate against the tree's root at every step.
func TestWitnessTracksTree(t *testing.T) {
	const n = 40

	for k := 1; k <= n; k++ {
		tree := NewCommitmentTree()
		for i := 0; i < k; i++ {
			require.NoError(t, tree.Append(testLeaf(i)))
		}
		w := NewWitness(tree)
		assert.Equal(t, uint64(k-1), w.Position())
		assert.Equal(t, testLeaf(k-1), w.Leaf())

		for i := k; i <= n; i++ {
			if i > k {
				leaf := testLeaf(i - 1)
				require.NoError(t, tree.Append(leaf))
				require.NoError(t, w.Append(leaf))
			}
			root := tree.Root()
			require.Equal(t, root, w.Root(), "k=%d size=%d", k, tree.Size())

			path, err := w.Path()
			require.NoError(t, err)
			require.Len(t, path.AuthPath, Depth)
			require.Equal(t, root, path.Root(testLeaf(k-1)), "k=%d size=%d", k, tree.Size())
		}
	}
}

func TestPathEncodesPosition(t *testing.T) {
	tree := NewCommitmentTree()
	for i := 0; i < 6; i++ {
		require.NoError(t, tree.Append(testLeaf(i)))
	}
	w := NewWitness(tree)
	require.NoError(t, tree.Append(testLeaf(6)))
	require.NoError(t, w.Append(testLeaf(6)))

	path, err := w.Path()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), path.Position)

	var pos uint64
	for i, e := range path.AuthPath {
		if e.IsRight {
			pos |= 1 << uint(i)
		}
	}
	assert.Equal(t, uint64(5), pos)
}

func TestSkippedAppendDesynchronizes(t *testing.T) {
	tree := NewCommitmentTree()
	require.NoError(t, tree.Append(testLeaf(0)))
	w := NewWitness(tree)

	require.NoError(t, tree.Append(testLeaf(1)))
	require.NoError(t, tree.Append(testLeaf(2)))
	require.NoError(t, w.Append(testLeaf(2)))

	assert.NotEqual(t, tree.Root(), w.Root())
}

func TestTreeFull(t *testing.T) {
	tree := NewCommitmentTree()
	for i := 0; i < 4; i++ {
		require.NoError(t, tree.appendInner(testLeaf(i), 2))
	}
	assert.ErrorIs(t, tree.appendInner(testLeaf(4), 2), ErrTreeFull)
}

func TestCheckpointRoundTrip(t *testing.T) {
	tree := NewCommitmentTree()
	for i := 0; i < 11; i++ {
		require.NoError(t, tree.Append(testLeaf(i)))
	}
	w := NewWitness(tree)
	for i := 11; i < 14; i++ {
		require.NoError(t, tree.Append(testLeaf(i)))
		require.NoError(t, w.Append(testLeaf(i)))
	}

	treeBytes, err := tree.MarshalBinary()
	require.NoError(t, err)
	parsedTree, err := ParseCommitmentTree(treeBytes)
	require.NoError(t, err)
	again, err := parsedTree.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, treeBytes, again)
	assert.Equal(t, tree.Root(), parsedTree.Root())

	witnessBytes, err := w.MarshalBinary()
	require.NoError(t, err)
	parsedWitness, err := ParseIncrementalWitness(witnessBytes)
	require.NoError(t, err)
	assert.Equal(t, w.Root(), parsedWitness.Root())

	// The restored pair keeps advancing in step.
	for i := 14; i < 20; i++ {
		require.NoError(t, parsedTree.Append(testLeaf(i)))
		require.NoError(t, parsedWitness.Append(testLeaf(i)))
	}
	assert.Equal(t, parsedTree.Root(), parsedWitness.Root())

	viaReader, err := ReadCommitmentTree(bytes.NewReader(treeBytes))
	require.NoError(t, err)
	assert.Equal(t, tree.Root(), viaReader.Root())
}

func TestParseMalformedCheckpoint(t *testing.T) {
	tree := NewCommitmentTree()
	for i := 0; i < 3; i++ {
		require.NoError(t, tree.Append(testLeaf(i)))
	}
	good, err := tree.MarshalBinary()
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":          {},
		"truncated":      good[:len(good)-4],
		"bad flag":       append([]byte{0x02}, good[1:]...),
		"trailing bytes": append(append([]byte{}, good...), 0x00),
		"right only":     {0x00, 0x01},
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCommitmentTree(b)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}

	_, err = ParseIncrementalWitness([]byte{0x00, 0x00, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCompactSize(t *testing.T) {
	for _, n := range []uint64{0, 1, 0xfc, 0xfd, 0xffff, 0x10000, 0xffffffff, 0x100000000} {
		var buf bytes.Buffer
		require.NoError(t, writeCompactSize(&buf, n))
		got, err := readCompactSize(&buf)
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}

	_, err := readCompactSize(bytes.NewReader([]byte{0xfd, 0x01, 0x00}))
	assert.Error(t, err)
}

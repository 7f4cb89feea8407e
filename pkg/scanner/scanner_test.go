package scanner

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/zcash-lightwallet/pkg/compact"
	"github.com/suffix-labs/zcash-lightwallet/pkg/merkle"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
)

var (
	testParams = sapling.NewParams()
	testProver = sapling.NewOutputProver(testParams)
)

type account struct {
	ivk  sapling.IncomingViewingKey
	addr sapling.PaymentAddress
}

func newAccount(t *testing.T, seedByte byte) account {
	t.Helper()
	master, err := sapling.MasterKey(bytes.Repeat([]byte{seedByte}, 32))
	require.NoError(t, err)
	xsk := master.DerivePath(testParams, sapling.AccountPath(1, 0))
	fvk := xsk.Expsk.FullViewingKey(testParams)
	_, addr := xsk.DefaultAddress(testParams)
	return account{ivk: fvk.IncomingViewingKey(), addr: addr}
}

func outputTo(t *testing.T, to sapling.PaymentAddress, value uint64) compact.Output {
	t.Helper()
	desc, err := testProver.BuildOutput([32]byte{}, to, value, nil, rand.Reader)
	require.NoError(t, err)
	return compact.Output{
		Cmu:        desc.Cmu[:],
		Epk:        desc.Epk[:],
		Ciphertext: desc.EncCiphertext[:sapling.CompactNoteSize],
	}
}

func txHash(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func newScanner(reg prometheus.Registerer) (*Scanner, *Metrics) {
	m := NewMetrics(reg)
	return New(sapling.NewDecryptor(testParams), WithMetrics(m)), m
}

func TestScanBlockFindsOwnOutput(t *testing.T) {
	alice, bob := newAccount(t, 1), newAccount(t, 2)
	block := &compact.Block{
		Height: 500,
		Vtx: []compact.Tx{
			{Hash: txHash(1), Outputs: []compact.Output{outputTo(t, bob.addr, 10), outputTo(t, alice.addr, 42_000)}},
			{Hash: txHash(2), Outputs: []compact.Output{outputTo(t, bob.addr, 7)}},
		},
	}

	s, m := newScanner(prometheus.NewRegistry())
	tree := merkle.NewCommitmentTree()
	got, err := s.ScanBlock(block, []sapling.IncomingViewingKey{alice.ivk}, nil, tree, nil)
	require.NoError(t, err)

	require.Len(t, got, 1)
	wtx := got[0].Tx
	assert.Equal(t, [32]byte(txHash(1)), wtx.TxID)
	assert.Equal(t, 2, wtx.NumOutputs)
	assert.Equal(t, 0, wtx.NumSpends)
	require.Len(t, wtx.ShieldedOutputs, 1)

	out := wtx.ShieldedOutputs[0]
	assert.Equal(t, 1, out.Index)
	assert.Equal(t, uint32(0), out.Account)
	assert.Equal(t, uint64(42_000), out.Note.Value)
	assert.True(t, out.To.Equal(&alice.addr))
	assert.False(t, out.IsChange)

	// The witness was created mid-block and must still track the tree
	// after the second transaction's output.
	assert.Equal(t, uint64(3), tree.Size())
	require.Len(t, got[0].Witnesses, 1)
	w := got[0].Witnesses[0]
	assert.Equal(t, uint64(1), w.Position())
	assert.Equal(t, tree.Root(), w.Root())
	path, err := w.Path()
	require.NoError(t, err)
	assert.Equal(t, tree.Root(), path.Root(merkle.Node(out.Cmu)))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.blocks))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.outputs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.matchedNotes))
}

func TestScanBlockNoMatch(t *testing.T) {
	alice, bob := newAccount(t, 1), newAccount(t, 2)
	block := &compact.Block{Height: 1, Vtx: []compact.Tx{
		{Hash: txHash(1), Outputs: []compact.Output{outputTo(t, bob.addr, 1)}},
	}}

	s, _ := newScanner(nil)
	tree := merkle.NewCommitmentTree()
	got, err := s.ScanBlock(block, []sapling.IncomingViewingKey{alice.ivk}, nil, tree, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, uint64(1), tree.Size())
}

func TestScanBlockAttributesAccount(t *testing.T) {
	alice, bob := newAccount(t, 1), newAccount(t, 2)
	block := &compact.Block{Height: 1, Vtx: []compact.Tx{
		{Hash: txHash(1), Outputs: []compact.Output{outputTo(t, bob.addr, 5), outputTo(t, alice.addr, 6)}},
	}}

	s, _ := newScanner(nil)
	ivks := []sapling.IncomingViewingKey{alice.ivk, bob.ivk}
	got, err := s.ScanBlock(block, ivks, nil, merkle.NewCommitmentTree(), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	outs := got[0].Tx.ShieldedOutputs
	require.Len(t, outs, 2)
	assert.Equal(t, uint32(1), outs[0].Account)
	assert.Equal(t, uint64(5), outs[0].Note.Value)
	assert.Equal(t, uint32(0), outs[1].Account)
	assert.Equal(t, uint64(6), outs[1].Note.Value)

	// Both witnesses see the whole block.
	assert.Equal(t, got[0].Witnesses[0].Root(), got[0].Witnesses[1].Root())
}

func TestScanBlockSpendsAndChange(t *testing.T) {
	alice, bob := newAccount(t, 1), newAccount(t, 2)
	nf := [32]byte{0xab}
	nullifiers := map[[32]byte]uint32{nf: 0}

	block := &compact.Block{Height: 9, Vtx: []compact.Tx{
		{
			Hash:    txHash(1),
			Spends:  []compact.Spend{{Nf: bytes.Repeat([]byte{0x01}, 32)}, {Nf: nf[:]}},
			Outputs: []compact.Output{outputTo(t, bob.addr, 100), outputTo(t, alice.addr, 900)},
		},
		{
			Hash:    txHash(2),
			Outputs: []compact.Output{outputTo(t, alice.addr, 3)},
		},
		{
			Hash:   txHash(3),
			Spends: []compact.Spend{{Nf: nf[:]}},
		},
	}}

	s, m := newScanner(prometheus.NewRegistry())
	got, err := s.ScanBlock(block, []sapling.IncomingViewingKey{alice.ivk}, nullifiers, merkle.NewCommitmentTree(), nil)
	require.NoError(t, err)
	require.Len(t, got, 3)

	first := got[0].Tx
	require.Len(t, first.ShieldedSpends, 1)
	assert.Equal(t, 1, first.ShieldedSpends[0].Index)
	assert.Equal(t, nf, first.ShieldedSpends[0].Nf)
	require.Len(t, first.ShieldedOutputs, 1)
	assert.True(t, first.ShieldedOutputs[0].IsChange)

	second := got[1].Tx
	require.Len(t, second.ShieldedOutputs, 1)
	assert.False(t, second.ShieldedOutputs[0].IsChange)

	third := got[2].Tx
	assert.Len(t, third.ShieldedSpends, 1)
	assert.Empty(t, third.ShieldedOutputs)
	assert.Empty(t, got[2].Witnesses)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.matchedSpends))
}

func TestScanBlockSkipsMalformed(t *testing.T) {
	alice := newAccount(t, 1)
	good := outputTo(t, alice.addr, 77)

	shortCmu := good
	shortCmu.Cmu = good.Cmu[:31]
	badCmu := good
	badCmu.Cmu = bytes.Repeat([]byte{0xff}, 32)
	shortEpk := good
	shortEpk.Epk = good.Epk[:31]
	shortCiphertext := outputTo(t, alice.addr, 1)
	shortCiphertext.Ciphertext = shortCiphertext.Ciphertext[:10]

	block := &compact.Block{Height: 1, Vtx: []compact.Tx{{
		Hash:    txHash(1),
		Spends:  []compact.Spend{{Nf: []byte{1, 2, 3}}},
		Outputs: []compact.Output{shortCmu, badCmu, shortEpk, shortCiphertext, good},
	}}}

	s, m := newScanner(prometheus.NewRegistry())
	tree := merkle.NewCommitmentTree()
	got, err := s.ScanBlock(block, []sapling.IncomingViewingKey{alice.ivk}, nil, tree, nil)
	require.NoError(t, err)

	// The short-ciphertext output is still committed; the three undecodable
	// ones are not.
	assert.Equal(t, uint64(2), tree.Size())
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Tx.NumOutputs)
	require.Len(t, got[0].Tx.ShieldedOutputs, 1)
	assert.Equal(t, 4, got[0].Tx.ShieldedOutputs[0].Index)
	assert.Equal(t, uint64(1), got[0].Witnesses[0].Position())

	assert.Equal(t, 3.0, testutil.ToFloat64(m.skipped.WithLabelValues("output")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skipped.WithLabelValues("ciphertext")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skipped.WithLabelValues("nullifier")))
}

func TestScanBlockAdvancesExistingWitnesses(t *testing.T) {
	alice, bob := newAccount(t, 1), newAccount(t, 2)
	s, _ := newScanner(nil)
	tree := merkle.NewCommitmentTree()

	first := &compact.Block{Height: 1, Vtx: []compact.Tx{
		{Hash: txHash(1), Outputs: []compact.Output{outputTo(t, alice.addr, 1)}},
	}}
	got, err := s.ScanBlock(first, []sapling.IncomingViewingKey{alice.ivk}, nil, tree, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	witnesses := got[0].Witnesses

	for h := uint64(2); h < 5; h++ {
		block := &compact.Block{Height: h, Vtx: []compact.Tx{
			{Hash: txHash(byte(h)), Outputs: []compact.Output{outputTo(t, bob.addr, h), outputTo(t, bob.addr, h)}},
		}}
		got, err := s.ScanBlock(block, []sapling.IncomingViewingKey{alice.ivk}, nil, tree, witnesses)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Equal(t, tree.Root(), witnesses[0].Root())
	}
	assert.Equal(t, uint64(7), tree.Size())
	assert.Equal(t, uint64(0), witnesses[0].Position())
}

func TestScanBlockBytes(t *testing.T) {
	alice := newAccount(t, 1)
	block := &compact.Block{Height: 3, Vtx: []compact.Tx{
		{Hash: txHash(1), Outputs: []compact.Output{outputTo(t, alice.addr, 8)}},
	}}
	s, _ := newScanner(nil)

	got, err := s.ScanBlockBytes(block.Marshal(), []sapling.IncomingViewingKey{alice.ivk}, nil, merkle.NewCommitmentTree(), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(8), got[0].Tx.ShieldedOutputs[0].Note.Value)

	_, err = s.ScanBlockBytes([]byte{0x0a, 0x05, 0x01}, nil, nil, merkle.NewCommitmentTree(), nil)
	assert.Error(t, err)
}

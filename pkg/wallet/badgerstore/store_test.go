package badgerstore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/zcash-lightwallet/pkg/merkle"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
	"github.com/suffix-labs/zcash-lightwallet/pkg/wallet"
)

var testParams = sapling.NewParams()

func testAddress(t *testing.T) sapling.PaymentAddress {
	t.Helper()
	master, err := sapling.MasterKey(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	_, addr := master.DerivePath(testParams, sapling.AccountPath(1, 0)).DefaultAddress(testParams)
	return addr
}

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testNote(addr sapling.PaymentAddress, tx byte, value, position uint64) *wallet.ReceivedNote {
	memo := sapling.EmptyMemo()
	return &wallet.ReceivedNote{
		ID:        wallet.NoteID{TxID: [32]byte{tx}, Index: 2},
		Note:      sapling.Note{Value: value, Recipient: addr, Rcm: [32]byte{tx, 9}},
		Position:  position,
		Nullifier: [32]byte{tx, 0xee},
		Height:    1000 + position,
		IsChange:  tx%2 == 0,
		Memo:      &memo,
	}
}

func TestNoteRecordRoundTrip(t *testing.T) {
	addr := testAddress(t)
	n := testNote(addr, 4, 12_345, 77)
	spent := [32]byte{0x55}
	n.SpentIn = &spent
	n.Locked = true

	got, err := decodeNote(encodeNote(n))
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, n.Note.Value, got.Note.Value)
	assert.True(t, got.Note.Recipient.Equal(&addr))
	assert.Equal(t, n.Note.Rcm, got.Note.Rcm)
	assert.Equal(t, n.Nullifier, got.Nullifier)
	assert.Equal(t, n.Position, got.Position)
	assert.Equal(t, n.Height, got.Height)
	assert.True(t, got.IsChange)
	assert.True(t, got.Locked)
	assert.Equal(t, *n.Memo, *got.Memo)
	assert.Equal(t, spent, *got.SpentIn)

	_, err = decodeNote([]byte{0x0a, 0x01, 0x00})
	assert.Error(t, err)
}

func TestStoreNotes(t *testing.T) {
	addr := testAddress(t)
	s := openStore(t, "")

	require.NoError(t, s.PutAddress(0, addr))
	got, err := s.GetAddress(0)
	require.NoError(t, err)
	assert.True(t, got.Equal(&addr))
	_, err = s.GetAddress(1)
	assert.ErrorIs(t, err, wallet.ErrNotFound)

	require.NoError(t, s.PutNote(testNote(addr, 1, 100, 5)))
	require.NoError(t, s.PutNote(testNote(addr, 2, 200, 3)))

	unspent, err := s.GetUnspentNotes(0)
	require.NoError(t, err)
	require.Len(t, unspent, 2)
	assert.Equal(t, uint64(3), unspent[0].Position)

	require.NoError(t, s.MarkSpent([32]byte{1, 0xee}, [32]byte{0x99}))
	bal, err := wallet.Balance(s, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), bal)
	assert.ErrorIs(t, s.MarkSpent([32]byte{0x42}, [32]byte{}), wallet.ErrNotFound)

	id := wallet.NoteID{TxID: [32]byte{2}, Index: 2}
	require.NoError(t, s.LockNotes([]wallet.NoteID{id}))
	assert.ErrorIs(t, s.LockNotes([]wallet.NoteID{id}), wallet.ErrNoteLocked)
	assert.ErrorIs(t, s.LockNotes([]wallet.NoteID{{TxID: [32]byte{1}, Index: 2}}), wallet.ErrNoteSpent)

	n, err := s.GetNote(id)
	require.NoError(t, err)
	assert.True(t, n.Locked)

	missing := wallet.NoteID{TxID: [32]byte{9}}
	assert.ErrorIs(t, s.UnlockNotes([]wallet.NoteID{id, missing}), wallet.ErrNotFound)
	n, err = s.GetNote(id)
	require.NoError(t, err)
	assert.True(t, n.Locked)

	require.NoError(t, s.UnlockNotes([]wallet.NoteID{id}))
	n, err = s.GetNote(id)
	require.NoError(t, err)
	assert.False(t, n.Locked)
	require.NoError(t, s.LockNotes([]wallet.NoteID{id}))
}

func TestStoreCheckpointPersists(t *testing.T) {
	dir := t.TempDir()
	tree := merkle.NewCommitmentTree()
	var witness *merkle.IncrementalWitness
	for i := 0; i < 6; i++ {
		require.NoError(t, tree.Append(merkle.Node{byte(i + 1)}))
		if witness != nil {
			require.NoError(t, witness.Append(merkle.Node{byte(i + 1)}))
		}
		if i == 2 {
			witness = merkle.NewWitness(tree)
		}
	}
	id := wallet.NoteID{TxID: [32]byte{3}, Index: 0}

	s, err := Open(dir, nil)
	require.NoError(t, err)
	_, err = s.LoadCheckpoint()
	assert.ErrorIs(t, err, wallet.ErrNotFound)

	stale := wallet.NoteID{TxID: [32]byte{8}}
	require.NoError(t, s.SaveCheckpoint(&wallet.Checkpoint{
		Height:    1,
		Tree:      merkle.NewCommitmentTree(),
		Witnesses: map[wallet.NoteID]*merkle.IncrementalWitness{stale: witness},
	}))
	require.NoError(t, s.SaveCheckpoint(&wallet.Checkpoint{
		Height:    42,
		Tree:      tree,
		Witnesses: map[wallet.NoteID]*merkle.IncrementalWitness{id: witness},
	}))
	require.NoError(t, s.Close())

	reopened := openStore(t, dir)
	cp, err := reopened.LoadCheckpoint()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cp.Height)
	assert.Equal(t, tree.Root(), cp.Tree.Root())
	require.Len(t, cp.Witnesses, 1)
	assert.Equal(t, tree.Root(), cp.Witnesses[id].Root())
	assert.Equal(t, uint64(2), cp.Witnesses[id].Position())
}

package wallet

import (
	"errors"

	"github.com/suffix-labs/zcash-lightwallet/pkg/merkle"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
)

var (
	ErrNotFound          = errors.New("wallet: not found")
	ErrNoteSpent         = errors.New("wallet: note already spent")
	ErrNoteLocked        = errors.New("wallet: note already locked")
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")
)

// Store is the persistence port of the wallet. Core code depends only on
// this interface; adapters live outside the core.
type Store interface {
	// GetAddress returns the default address of an account.
	GetAddress(account uint32) (sapling.PaymentAddress, error)
	// GetNote returns a received note.
	GetNote(id NoteID) (*ReceivedNote, error)
	// GetUnspentNotes returns the account's unspent notes, locked or not.
	GetUnspentNotes(account uint32) ([]*ReceivedNote, error)
	// LockNotes reserves notes for a pending transaction. Either all notes
	// are locked or none is.
	LockNotes(ids []NoteID) error
}

// Checkpoint is everything needed to resume scanning after Height.
type Checkpoint struct {
	Height    uint64
	Tree      *merkle.CommitmentTree
	Witnesses map[NoteID]*merkle.IncrementalWitness
}

// SyncStore is the extended port used while scanning.
type SyncStore interface {
	Store

	PutAddress(account uint32, addr sapling.PaymentAddress) error
	PutNote(note *ReceivedNote) error
	// UnlockNotes releases locks taken by LockNotes, for example when the
	// transaction they were reserved for is abandoned. Unlocked notes are
	// left as they are; unknown ids return ErrNotFound and change nothing.
	UnlockNotes(ids []NoteID) error
	// MarkSpent records that the note with nullifier nf was spent in txid.
	// Unknown nullifiers return ErrNotFound.
	MarkSpent(nf [32]byte, txid [32]byte) error
	SaveCheckpoint(cp *Checkpoint) error
	// LoadCheckpoint returns ErrNotFound when nothing has been saved.
	LoadCheckpoint() (*Checkpoint, error)
}

// Balance sums the account's unspent notes.
func Balance(s Store, account uint32) (uint64, error) {
	notes, err := s.GetUnspentNotes(account)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, n := range notes {
		total += n.Note.Value
	}
	return total, nil
}

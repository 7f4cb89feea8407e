// Package wallet defines the wallet's view of the chain: transactions and
// notes discovered by the scanner, the storage port the rest of the wallet
// depends on, and note selection.
package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
)

// WalletShieldedSpend is a spend of one of the wallet's notes.
type WalletShieldedSpend struct {
	Index   int      // position among the transaction's spends
	Nf      [32]byte // revealed nullifier
	Account uint32   // account that owned the spent note
}

// WalletShieldedOutput is an output that decrypted under one of the
// wallet's incoming viewing keys.
type WalletShieldedOutput struct {
	Index    int      // position among the transaction's outputs
	Cmu      [32]byte // note commitment
	Epk      [32]byte // ephemeral public key
	Account  uint32
	Note     sapling.Note
	To       sapling.PaymentAddress
	IsChange bool // the same transaction also spent from Account
}

// WalletTx is a transaction with at least one spend or output relevant to
// the wallet. NumSpends and NumOutputs count all of its shielded parts.
type WalletTx struct {
	TxID            [32]byte
	NumSpends       int
	NumOutputs      int
	ShieldedSpends  []WalletShieldedSpend
	ShieldedOutputs []WalletShieldedOutput
}

// NoteID locates a received note by transaction and output index.
type NoteID struct {
	TxID  [32]byte
	Index uint32
}

func (id NoteID) String() string {
	return fmt.Sprintf("%s:%d", hex.EncodeToString(id.TxID[:]), id.Index)
}

// ReceivedNote is a note owned by the wallet together with what is needed
// to spend it later.
type ReceivedNote struct {
	ID        NoteID
	Account   uint32
	Note      sapling.Note
	Position  uint64   // leaf index in the commitment tree
	Nullifier [32]byte // revealed when the note is spent
	Height    uint64   // height of the block that mined the note
	IsChange  bool
	Memo      *sapling.Memo
	SpentIn   *[32]byte // txid of the spending transaction, once seen
	Locked    bool      // reserved by a pending transaction
}

// Spent reports whether a spend of the note has been observed.
func (n *ReceivedNote) Spent() bool {
	return n.SpentIn != nil
}

// Clone returns a copy that shares no mutable state with n.
func (n *ReceivedNote) Clone() *ReceivedNote {
	c := *n
	if n.Memo != nil {
		m := *n.Memo
		c.Memo = &m
	}
	if n.SpentIn != nil {
		s := *n.SpentIn
		c.SpentIn = &s
	}
	return &c
}

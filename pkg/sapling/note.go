package sapling

import (
	"encoding/binary"
	"errors"
	"math/big"
)

var ErrInvalidNote = errors.New("sapling: note cannot be committed")

// Note is a shielded value owned by a payment address.
type Note struct {
	Value     uint64
	Recipient PaymentAddress
	Rcm       [32]byte
}

// ValueCommitment computes cv = [value]V + [rcv]R. Negative values wrap
// modulo r_J.
func ValueCommitment(params *Params, value int64, rcv *big.Int) Point {
	v := mul(&params.ValueBase, big.NewInt(value))
	r := mul(&params.RandomnessBase, rcv)
	var cv Point
	cv.Add(&v, &r)
	return cv
}

// CommitmentPoint returns the full note commitment cm.
func (n *Note) CommitmentPoint(params *Params) (Point, error) {
	gd, ok := n.Recipient.Diversifier.GD()
	if !ok {
		return Point{}, ErrInvalidDiversifier
	}
	rcm, err := ParseScalar(n.Rcm)
	if err != nil {
		return Point{}, err
	}

	gdb, pkd := gd.Bytes(), n.Recipient.PkD.Bytes()
	var v [8]byte
	binary.LittleEndian.PutUint64(v[:], n.Value)
	msg := make([]byte, 0, 72)
	msg = append(msg, gdb[:]...)
	msg = append(msg, pkd[:]...)
	msg = append(msg, v[:]...)

	h, ok := groupHash(PersonalizationNoteCommit, msg)
	if !ok {
		return Point{}, ErrInvalidNote
	}
	r := mul(&params.NoteCommitRandBase, rcm)
	var cm Point
	cm.Add(&h, &r)
	return cm, nil
}

// Cmu returns the u-coordinate of the note commitment, the value stored
// in the commitment tree.
func (n *Note) Cmu(params *Params) ([32]byte, error) {
	cm, err := n.CommitmentPoint(params)
	if err != nil {
		return [32]byte{}, err
	}
	return fieldBytes(&cm.X), nil
}

// Nullifier computes PRF^nf(nk, rho) where rho = cm + [position]J.
func (n *Note) Nullifier(params *Params, nk *Point, position uint64) ([32]byte, error) {
	cm, err := n.CommitmentPoint(params)
	if err != nil {
		return [32]byte{}, err
	}
	pos := mul(&params.NullifierPosBase, new(big.Int).SetUint64(position))
	var rho Point
	rho.Add(&cm, &pos)
	nkb, rhob := nk.Bytes(), rho.Bytes()
	return blake2b256(PersonalizationNullifier, nkb[:], rhob[:]), nil
}

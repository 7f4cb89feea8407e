package sapling

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// MerkleHash combines two tree nodes at the given layer. Nodes are
// little-endian base-field elements; the result is reduced into the field.
func MerkleHash(layer uint8, left, right [32]byte) [32]byte {
	h := blake2b512(PersonalizationMerkle, []byte{layer}, left[:], right[:])
	var e fr.Element
	e.SetBytes(reverse(h[:]))
	return fieldBytes(&e)
}

// UncommittedLeaf is the filler value for an empty leaf position.
func UncommittedLeaf() [32]byte {
	var one fr.Element
	one.SetOne()
	return fieldBytes(&one)
}

// IsCanonicalNode reports whether b encodes a base-field element.
func IsCanonicalNode(b [32]byte) bool {
	_, err := fr.LittleEndian.Element(&b)
	return err == nil
}

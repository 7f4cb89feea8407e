// Package sapling is the cryptographic primitive boundary of the wallet.
//
// It provides the operations the scanner and the PCZT roles consume as
// opaque functions: value and note commitments, nullifiers, hierarchical key
// derivation, note encryption with compact trial decryption, RedJubjub
// spend-authorization and binding signatures, and an output prover.
//
// Curve arithmetic is done on Jubjub (the twisted Edwards curve over the
// BLS12-381 scalar field) via gnark-crypto. Hashes are personalised BLAKE2b.
// Generators are derived by hashing to the curve, so commitments and keys
// produced here are internally consistent but are not interchangeable with
// values produced by other Sapling implementations.
package sapling

// MaxMoney is the maximum value of a single note, in zatoshis.
const MaxMoney int64 = 21_000_000 * 100_000_000

// Params holds the fixed generators. Build it once with NewParams and pass
// the pointer to every call; it is never mutated afterwards.
type Params struct {
	// SpendAuthBase is G, the spend-authorization generator (ak = [ask]G).
	SpendAuthBase Point
	// ProofGenBase is H, the nullifier-key generator (nk = [nsk]H).
	ProofGenBase Point
	// ValueBase is V in cv = [v]V + [rcv]R.
	ValueBase Point
	// RandomnessBase is R in cv = [v]V + [rcv]R; binding keys live on it.
	RandomnessBase Point
	// NoteCommitRandBase blinds note commitments with rcm.
	NoteCommitRandBase Point
	// NullifierPosBase is J; rho = cm + [position]J.
	NullifierPosBase Point
}

// NewParams derives all generators.
func NewParams() *Params {
	return &Params{
		SpendAuthBase:      mustGroupHash(PersonalizationSpendAuthBase, nil),
		ProofGenBase:       mustGroupHash(PersonalizationProofGenBase, nil),
		ValueBase:          mustGroupHash(PersonalizationValueBase, []byte("v")),
		RandomnessBase:     mustGroupHash(PersonalizationValueBase, []byte("r")),
		NoteCommitRandBase: mustGroupHash(PersonalizationNoteCommit, []byte("r")),
		NullifierPosBase:   mustGroupHash(PersonalizationNullifierBase, nil),
	}
}

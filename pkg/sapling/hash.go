package sapling

import (
	"hash"

	blake2b "github.com/minio/blake2b-simd"
)

// BLAKE2b personalization strings. Each is at most 16 bytes; shorter
// strings are zero-padded by the hash.
const (
	PersonalizationSeedFingerprint = "Zcash_HD_Seed_FP"
	PersonalizationMasterKey       = "ZcashIP32Sapling"
	PersonalizationExpandSeed      = "Zcash_ExpandSeed"
	PersonalizationIvk             = "Zcashivk"
	PersonalizationDiversifier     = "Zcash_Diversify"
	PersonalizationKDF             = "Zcash_SaplingKDF"
	PersonalizationOCK             = "Zcash_Derive_ock"
	PersonalizationNullifier       = "Zcash_nf"
	PersonalizationMerkle          = "Zcash_MerkleCRH_"
	PersonalizationRedJubjub       = "Zcash_RedJubjubH"
	PersonalizationNoteCommit      = "Zcash_PH"
	PersonalizationProof           = "Zcash_OutputPrf_"

	// Group hash personalizations used to derive the fixed generators.
	PersonalizationSpendAuthBase = "Zcash_G_"
	PersonalizationProofGenBase  = "Zcash_H_"
	PersonalizationValueBase     = "Zcash_cv"
	PersonalizationNullifierBase = "Zcash_J_"
	PersonalizationDiversify     = "Zcash_gd"
)

// blake2bNew returns a BLAKE2b hash of the given output size keyed by a
// personalization string.
func blake2bNew(size uint8, personalization string) hash.Hash {
	h, err := blake2b.New(&blake2b.Config{
		Size:   size,
		Person: []byte(personalization),
	})
	if err != nil {
		// Only reachable with an over-long personalization constant.
		panic(err)
	}
	return h
}

func blake2b256(personalization string, parts ...[]byte) [32]byte {
	h := blake2bNew(32, personalization)
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func blake2b512(personalization string, parts ...[]byte) [64]byte {
	h := blake2bNew(64, personalization)
	for _, p := range parts {
		h.Write(p)
	}
	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out
}

// prfExpand is PRF^expand(sk, t) = BLAKE2b-512("Zcash_ExpandSeed", sk || t).
func prfExpand(sk []byte, t ...byte) [64]byte {
	return blake2b512(PersonalizationExpandSeed, sk, t)
}

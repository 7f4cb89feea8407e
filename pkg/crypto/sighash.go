// Package crypto computes the signature digest of a PCZT document.
//
// The digest follows the layout of the ZIP 244 shielded digests: a tree of
// personalised BLAKE2b-256 hashes whose root is keyed by the consensus
// branch id. It commits to:
//
//	valueBalance (i64le) || spends_digest || outputs_digest
//
// Spend slots contribute their key metadata and alpha, never their
// signatures, so signing one slot does not change the digest another
// signer sees. Outputs contribute everything that reaches the chain;
// cleartext values and rcv stay out, as do the binding accumulators.
package crypto

import (
	"encoding/binary"
	"hash"
	"io"

	blake2b "github.com/minio/blake2b-simd"

	"github.com/suffix-labs/zcash-lightwallet/pkg/pczt"
)

// blake2bNew256 creates a new BLAKE2b-256 hash with the given personalization.
func blake2bNew256(personalization []byte) (hash.Hash, error) {
	config := &blake2b.Config{
		Size:   32,
		Person: personalization,
	}
	return blake2b.New(config)
}

const (
	// Signature digest personalization (12 bytes prefix + 4 bytes branch ID)
	SigHashPersonalization = "ZcashSigHash"

	SpendsDigestPersonalization      = "ZTxIdSSpendsHash"
	OutputsDigestPersonalization     = "ZTxIdSOutputHash"
	OutputsCompactPersonalization    = "ZTxIdSOutC__Hash"
	OutputsMemosPersonalization      = "ZTxIdSOutM__Hash"
	OutputsNoncompactPersonalization = "ZTxIdSOutN__Hash"
)

const (
	compactCiphertextSize = 52
	memoEnd               = compactCiphertextSize + 512
)

// SignatureHash computes the digest every spend-authorization signature in
// p signs under consensus branch branchID.
func SignatureHash(p *pczt.PCZT, branchID uint32) ([32]byte, error) {
	personalization := make([]byte, 16)
	copy(personalization, SigHashPersonalization)
	binary.LittleEndian.PutUint32(personalization[12:], branchID)

	h, err := blake2bNew256(personalization)
	if err != nil {
		return [32]byte{}, err
	}

	var valueBalance int64
	if p.Global != nil {
		valueBalance = p.Global.ValueBalance
	}
	binary.Write(h, binary.LittleEndian, valueBalance)

	spends := computeSpendsDigest(p.Spends)
	outputs := computeOutputsDigest(p.Outputs)
	h.Write(spends[:])
	h.Write(outputs[:])

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

// computeSpendsDigest hashes each slot's key metadata and alpha.
func computeSpendsDigest(spends []pczt.Spend) [32]byte {
	h, _ := blake2bNew256([]byte(SpendsDigestPersonalization))

	for i := range spends {
		s := &spends[i]
		h.Write(s.Key.MasterFingerprint[:])
		writeCompactSize(h, uint64(len(s.Key.DerivationPath)))
		for _, idx := range s.Key.DerivationPath {
			binary.Write(h, binary.LittleEndian, idx)
		}
		writeCompactSize(h, uint64(len(s.Alpha)))
		h.Write(s.Alpha)
	}

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// computeOutputsDigest computes
// BLAKE2b-256("ZTxIdSOutputHash", compact || memos || noncompact).
func computeOutputsDigest(outputs []pczt.Output) [32]byte {
	h, _ := blake2bNew256([]byte(OutputsDigestPersonalization))

	compact := computeOutputsCompactDigest(outputs)
	memos := computeOutputsMemosDigest(outputs)
	noncompact := computeOutputsNoncompactDigest(outputs)
	h.Write(compact[:])
	h.Write(memos[:])
	h.Write(noncompact[:])

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// cmu || epk || enc_ciphertext[..52]
func computeOutputsCompactDigest(outputs []pczt.Output) [32]byte {
	h, _ := blake2bNew256([]byte(OutputsCompactPersonalization))
	for i := range outputs {
		o := &outputs[i]
		h.Write(o.Cmu[:])
		h.Write(o.Epk[:])
		writeSection(h, o.EncCiphertext, 0, compactCiphertextSize)
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// enc_ciphertext[52..564]
func computeOutputsMemosDigest(outputs []pczt.Output) [32]byte {
	h, _ := blake2bNew256([]byte(OutputsMemosPersonalization))
	for i := range outputs {
		writeSection(h, outputs[i].EncCiphertext, compactCiphertextSize, memoEnd)
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// cv || enc_ciphertext[564..] || out_ciphertext || zkproof
func computeOutputsNoncompactDigest(outputs []pczt.Output) [32]byte {
	h, _ := blake2bNew256([]byte(OutputsNoncompactPersonalization))
	for i := range outputs {
		o := &outputs[i]
		h.Write(o.Cv[:])
		writeSection(h, o.EncCiphertext, memoEnd, len(o.EncCiphertext))
		writeCompactSize(h, uint64(len(o.OutCiphertext)))
		h.Write(o.OutCiphertext)
		h.Write(o.Zkproof[:])
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// writeSection writes b[lo:hi] clamped to b, prefixed by its length so
// ciphertexts of unexpected size cannot collide.
func writeSection(w io.Writer, b []byte, lo, hi int) {
	if hi > len(b) {
		hi = len(b)
	}
	if lo > hi {
		lo = hi
	}
	writeCompactSize(w, uint64(hi-lo))
	w.Write(b[lo:hi])
}

// Helper: write compact size (Bitcoin-style varint)
func writeCompactSize(w io.Writer, n uint64) {
	if n < 253 {
		w.Write([]byte{byte(n)})
	} else if n <= 0xFFFF {
		w.Write([]byte{253})
		binary.Write(w, binary.LittleEndian, uint16(n))
	} else if n <= 0xFFFFFFFF {
		w.Write([]byte{254})
		binary.Write(w, binary.LittleEndian, uint32(n))
	} else {
		w.Write([]byte{255})
		binary.Write(w, binary.LittleEndian, n)
	}
}

// Package api provides the byte-level public API for wallet operations.
//
// This is the main entry point for applications that hand serialized PCZTs
// between parties. Every function parses its input document, applies one
// role, and returns the re-serialized result; the input bytes are never
// modified, so a failed call leaves the caller's document intact.
//
//  1. AddOutput / AddPayments - Adds shielded outputs
//  2. AddSpend - Records a spend slot for an HD seed
//  3. Sign - Fills the spend slots a seed controls
//  4. Combine - Merges documents signed in parallel
//  5. Verify - Checks the binding accumulator and completeness
//  6. ScanBlockBytes - Scans one serialized compact block
//  7. ParsePCZT / SerializePCZT - Binary encoding/decoding
package api

import (
	"fmt"

	"github.com/suffix-labs/zcash-lightwallet/pkg/merkle"
	"github.com/suffix-labs/zcash-lightwallet/pkg/pczt"
	"github.com/suffix-labs/zcash-lightwallet/pkg/roles"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
	"github.com/suffix-labs/zcash-lightwallet/pkg/scanner"
	"github.com/suffix-labs/zcash-lightwallet/pkg/zip321"
)

// ============================================================================
// API Function 1: AddOutput / AddPayments
// ============================================================================

// AddOutput adds one shielded output to a serialized PCZT.
//
// An empty doc starts a new document.
//
// Parameters:
//   - doc: Serialized PCZT (may be empty)
//   - ovk: Sender's outgoing viewing key, or nil for an unrecoverable output
//   - to: Recipient
//   - value: Value in zatoshis
//   - memo: Memo, or nil for the empty memo
//   - prover: Output prover
//
// Returns:
//   - Serialized PCZT with the output appended
//   - *pczt.ParseError or *pczt.OutputError on failure
func AddOutput(
	params *sapling.Params,
	doc []byte,
	ovk *[32]byte,
	to sapling.PaymentAddress,
	value int64,
	memo *sapling.Memo,
	prover roles.Prover,
) ([]byte, error) {
	p, err := pczt.Parse(doc)
	if err != nil {
		return nil, err
	}
	if err := roles.NewConstructor(p, params).AddOutput(ovk, to, value, memo, prover); err != nil {
		return nil, err
	}
	return pczt.Serialize(p)
}

// AddPayments adds one output per payment of a ZIP 321 request. Either all
// outputs are added or none is.
func AddPayments(
	params *sapling.Params,
	doc []byte,
	ovk *[32]byte,
	req *zip321.PaymentRequest,
	prover roles.Prover,
) ([]byte, error) {
	p, err := pczt.Parse(doc)
	if err != nil {
		return nil, err
	}
	c := roles.NewConstructor(p, params)
	for i := range req.Payments {
		pay := &req.Payments[i]
		if err := c.AddOutput(ovk, pay.Address, pay.Amount, pay.Memo, prover); err != nil {
			return nil, fmt.Errorf("payment %d: %w", i, err)
		}
	}
	return pczt.Serialize(p)
}

// ============================================================================
// API Function 2: AddSpend
// ============================================================================

// AddSpend records a spend slot for the key at path under the seed with
// fingerprint fp, and returns the document and the slot index.
func AddSpend(params *sapling.Params, doc []byte, fp sapling.SeedFingerprint, path []uint32) ([]byte, int, error) {
	p, err := pczt.Parse(doc)
	if err != nil {
		return nil, 0, err
	}
	idx, err := roles.NewConstructor(p, params).AddSpendSlot(fp, path)
	if err != nil {
		return nil, 0, err
	}
	out, err := pczt.Serialize(p)
	if err != nil {
		return nil, 0, err
	}
	return out, idx, nil
}

// ============================================================================
// API Function 3: Sign
// ============================================================================

// Sign fills every spend slot that seed controls.
//
// Multiple parties can call this function independently on copies of the
// same document; Combine merges the results. A seed that controls no slot
// returns the document unchanged.
//
// Returns:
//   - Serialized PCZT with signatures added
//   - *pczt.ParseError or *pczt.SignatureError on failure
func Sign(params *sapling.Params, doc, seed []byte, branchID uint32) ([]byte, error) {
	p, err := pczt.Parse(doc)
	if err != nil {
		return nil, err
	}
	if _, err := roles.NewSigner(p, params, nil).Sign(seed, branchID); err != nil {
		return nil, err
	}
	return pczt.Serialize(p)
}

// ============================================================================
// API Function 4: Combine
// ============================================================================

// Combine merges multiple PCZTs with partial signatures.
//
// All PCZTs must describe the same transaction.
func Combine(docs [][]byte) ([]byte, error) {
	if len(docs) == 0 {
		return nil, &pczt.CombineError{Code: pczt.ErrInvalidPCZT, Message: "no PCZTs to combine"}
	}

	pczts := make([]*pczt.PCZT, len(docs))
	for i, doc := range docs {
		p, err := pczt.Parse(doc)
		if err != nil {
			return nil, fmt.Errorf("invalid PCZT %d: %w", i, err)
		}
		pczts[i] = p
	}

	combined, err := roles.NewCombiner(pczts).Combine()
	if err != nil {
		return nil, err
	}
	return pczt.Serialize(combined)
}

// ============================================================================
// API Function 5: Verify
// ============================================================================

// Verify checks that the binding accumulator matches the value balance and
// that every spend slot is signed.
//
// Returns *pczt.VerificationFailure with code ErrInvalidPCZT,
// ErrDocumentCorrupt or ErrIncompletePCZT.
func Verify(params *sapling.Params, doc []byte) error {
	p, err := pczt.Parse(doc)
	if err != nil {
		return err
	}
	if err := roles.VerifyBinding(params, p); err != nil {
		return err
	}
	if !p.IsComplete() {
		unsigned := 0
		for i := range p.Spends {
			if !p.Spends[i].Signed() {
				unsigned++
			}
		}
		return &pczt.VerificationFailure{
			Code:    pczt.ErrIncompletePCZT,
			Message: "document is not fully signed",
			Details: map[string]interface{}{"unsigned_spends": unsigned},
		}
	}
	return nil
}

// ============================================================================
// API Function 6: ScanBlockBytes
// ============================================================================

// ScanBlockBytes decodes a protobuf compact block and scans it. tree and
// witnesses advance in place.
func ScanBlockBytes(
	sc *scanner.Scanner,
	data []byte,
	ivks []sapling.IncomingViewingKey,
	nullifiers map[[32]byte]uint32,
	tree *merkle.CommitmentTree,
	witnesses []*merkle.IncrementalWitness,
) ([]scanner.ScannedTx, error) {
	return sc.ScanBlockBytes(data, ivks, nullifiers, tree, witnesses)
}

// ============================================================================
// API Functions 7a & 7b: ParsePCZT / SerializePCZT
// ============================================================================

// ParsePCZT deserializes a PCZT from bytes.
func ParsePCZT(doc []byte) (*pczt.PCZT, error) {
	return pczt.Parse(doc)
}

// SerializePCZT serializes a PCZT to bytes.
func SerializePCZT(p *pczt.PCZT) ([]byte, error) {
	return pczt.Serialize(p)
}

// ParsePaymentRequest parses a ZIP 321 payment request URI.
func ParsePaymentRequest(uri string) (*zip321.PaymentRequest, error) {
	return zip321.Parse(uri)
}

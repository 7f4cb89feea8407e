package roles

import (
	"io"

	"github.com/suffix-labs/zcash-lightwallet/pkg/crypto"
	"github.com/suffix-labs/zcash-lightwallet/pkg/pczt"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
)

// IoFinalizer closes the output set and produces the binding signature.
//
// The IO Finalizer role:
//   - Checks the binding accumulator against the value balance
//   - Signs the document's signature digest with bsk
//
// The binding signature is returned rather than stored; it is attached when
// the transaction is extracted for broadcast.
type IoFinalizer struct {
	pczt   *pczt.PCZT
	params *sapling.Params
	rand   io.Reader
}

// NewIoFinalizer creates a new IO Finalizer.
func NewIoFinalizer(p *pczt.PCZT, params *sapling.Params, rand io.Reader) *IoFinalizer {
	if rand == nil {
		rand = defaultRand()
	}
	return &IoFinalizer{pczt: p, params: params, rand: rand}
}

// Finalize verifies the accumulator and returns the binding signature over
// the document's digest under branchID.
func (f *IoFinalizer) Finalize(branchID uint32) (sapling.Signature, error) {
	if err := VerifyBinding(f.params, f.pczt); err != nil {
		return sapling.Signature{}, err
	}
	bsk, _, err := parseAccumulator(f.pczt.Global)
	if err != nil {
		return sapling.Signature{}, &pczt.VerificationFailure{Code: pczt.ErrDocumentCorrupt, Message: err.Error()}
	}
	digest, err := crypto.SignatureHash(f.pczt, branchID)
	if err != nil {
		return sapling.Signature{}, err
	}
	return sapling.SignBinding(f.params, bsk, digest[:], f.rand)
}

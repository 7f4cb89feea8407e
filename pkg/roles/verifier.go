package roles

import (
	"fmt"

	"github.com/suffix-labs/zcash-lightwallet/pkg/crypto"
	"github.com/suffix-labs/zcash-lightwallet/pkg/pczt"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
)

// VerifyBinding checks that the accumulator is consistent with the value
// balance: [bsk]R == bvk + [valueBalance]V. With no outputs the accumulator
// is zero and the identity.
func VerifyBinding(params *sapling.Params, p *pczt.PCZT) error {
	bsk, bvk, err := parseAccumulator(p.Global)
	if err != nil {
		return &pczt.VerificationFailure{Code: pczt.ErrDocumentCorrupt, Message: err.Error()}
	}
	var valueBalance int64
	if p.Global != nil {
		valueBalance = p.Global.ValueBalance
	}

	// bvk = [-valueBalance]V + [bsk]R
	want := sapling.ValueCommitment(params, -valueBalance, bsk)
	if !want.Equal(&bvk) {
		return &pczt.VerificationFailure{
			Code:    pczt.ErrInvalidPCZT,
			Message: "binding accumulator does not match value balance",
			Details: map[string]interface{}{"value_balance": valueBalance},
		}
	}
	return nil
}

// VerifySpendAuth checks the signature in slot index against the
// randomized key derived from ak and the slot's alpha.
func VerifySpendAuth(params *sapling.Params, p *pczt.PCZT, index int, ak *sapling.Point, branchID uint32) error {
	if index < 0 || index >= len(p.Spends) {
		return &pczt.VerificationFailure{Code: pczt.ErrInvalidPCZT, Message: fmt.Sprintf("no spend slot %d", index)}
	}
	slot := &p.Spends[index]
	if !slot.Signed() {
		return &pczt.VerificationFailure{
			Code:    pczt.ErrIncompletePCZT,
			Message: fmt.Sprintf("spend %d is unsigned", index),
			Details: map[string]interface{}{"spend_index": index},
		}
	}
	alpha, err := parseAlpha(slot.Alpha)
	if err != nil {
		return &pczt.VerificationFailure{Code: pczt.ErrInvalidAlpha, Message: err.Error()}
	}
	digest, err := crypto.SignatureHash(p, branchID)
	if err != nil {
		return err
	}

	rk := sapling.RandomizedKey(params, ak, alpha)
	if !sapling.VerifySpendAuth(params, &rk, digest[:], sapling.Signature(slot.SpendAuthSig)) {
		return &pczt.VerificationFailure{
			Code:    pczt.ErrInvalidSignature,
			Message: fmt.Sprintf("spend %d signature does not verify", index),
			Details: map[string]interface{}{"spend_index": index},
		}
	}
	return nil
}

package roles

import (
	"bytes"
	"fmt"

	"github.com/suffix-labs/zcash-lightwallet/pkg/pczt"
)

// Combiner merges multiple PCZTs into a single PCZT.
//
// The Combiner role enables parallel signing workflows:
//   - Each signer receives its own copy of the same document
//   - Each copy comes back with the slots that signer controls filled
//   - The Combiner merges all signatures into one document
//
// Documents must be identical apart from spend-authorization signatures.
type Combiner struct {
	pczts []*pczt.PCZT
}

// NewCombiner creates a new Combiner.
//
// Parameters:
//   - pczts: List of PCZTs to combine (must all describe the same transaction)
func NewCombiner(pczts []*pczt.PCZT) *Combiner {
	return &Combiner{pczts: pczts}
}

// Combine merges all PCZTs into a new PCZT. The inputs are not modified.
//
// Returns *pczt.CombineError with code ErrConflictingData if:
//   - the documents differ in anything other than signatures
//   - two documents carry different signatures for the same slot
func (c *Combiner) Combine() (*pczt.PCZT, error) {
	if len(c.pczts) == 0 {
		return nil, &pczt.CombineError{Code: pczt.ErrInvalidPCZT, Message: "no PCZTs to combine"}
	}

	// Use first PCZT as base
	result := c.pczts[0].Clone()
	base, err := unsignedBytes(result)
	if err != nil {
		return nil, err
	}

	// Merge each subsequent PCZT
	for i := 1; i < len(c.pczts); i++ {
		if err := c.mergeInto(result, base, c.pczts[i]); err != nil {
			return nil, fmt.Errorf("failed to merge PCZT %d: %w", i, err)
		}
	}

	return result, nil
}

// mergeInto copies src's signatures into dst after checking both describe
// the same transaction.
func (c *Combiner) mergeInto(dst *pczt.PCZT, base []byte, src *pczt.PCZT) error {
	other, err := unsignedBytes(src)
	if err != nil {
		return err
	}
	if !bytes.Equal(base, other) {
		return &pczt.CombineError{Code: pczt.ErrConflictingData, Message: "documents describe different transactions"}
	}

	for i := range src.Spends {
		sig := src.Spends[i].SpendAuthSig
		if len(sig) == 0 {
			continue
		}
		have := dst.Spends[i].SpendAuthSig
		switch {
		case len(have) == 0:
			dst.Spends[i].SpendAuthSig = append([]byte(nil), sig...)
		case !bytes.Equal(have, sig):
			return &pczt.CombineError{
				Code:    pczt.ErrConflictingData,
				Message: fmt.Sprintf("spend %d has two different signatures", i),
			}
		}
	}
	return nil
}

// unsignedBytes serializes p with every signature removed.
func unsignedBytes(p *pczt.PCZT) ([]byte, error) {
	stripped := p.Clone()
	for i := range stripped.Spends {
		stripped.Spends[i].SpendAuthSig = nil
	}
	data, err := pczt.Serialize(stripped)
	if err != nil {
		return nil, &pczt.CombineError{Code: pczt.ErrInvalidPCZT, Message: "cannot serialize document", Cause: err}
	}
	return data, nil
}

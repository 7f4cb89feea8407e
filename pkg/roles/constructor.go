package roles

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/suffix-labs/zcash-lightwallet/pkg/pczt"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
)

// Prover builds a shielded output: value commitment, note commitment,
// ephemeral key, both ciphertexts, proof, and the rcv it committed with.
type Prover interface {
	BuildOutput(ovk [32]byte, to sapling.PaymentAddress, value uint64, memo *sapling.Memo, rand io.Reader) (*sapling.OutputDescription, error)
}

// Constructor adds outputs and spend slots to a PCZT.
//
// The Constructor role:
//   - Validates output values against MaxMoney
//   - Delegates output construction to a Prover
//   - Maintains the binding accumulator (bsk, bvk) and the value balance
//   - Records spend slots with fresh randomizers for later signing
//
// Outputs are expected to be added by a single builder before other parties
// add spends; interleaving is not checked.
type Constructor struct {
	pczt   *pczt.PCZT
	params *sapling.Params
	rand   io.Reader
}

// NewConstructor creates a new Constructor over p.
func NewConstructor(p *pczt.PCZT, params *sapling.Params) *Constructor {
	return &Constructor{pczt: p, params: params, rand: rand.Reader}
}

// WithRand replaces the randomness source.
func (c *Constructor) WithRand(r io.Reader) *Constructor {
	c.rand = r
	return c
}

// AddOutput adds a shielded output paying value to to.
//
// A nil ovk makes the output unrecoverable by the sender. On any error the
// document is left untouched.
//
// Returns *pczt.OutputError with code:
//   - ErrInvalidAmount: value outside [0, MaxMoney]
//   - ErrInvalidAddress: to has no valid diversified base
//   - ErrDocumentCorrupt: existing bsk or bvk cannot be parsed
//   - ErrProofFailed: the prover failed or returned unusable values
func (c *Constructor) AddOutput(ovk *[32]byte, to sapling.PaymentAddress, value int64, memo *sapling.Memo, prover Prover) error {
	if value < 0 || value > sapling.MaxMoney {
		return &pczt.OutputError{
			Code:    pczt.ErrInvalidAmount,
			Message: fmt.Sprintf("value %d outside [0, %d]", value, sapling.MaxMoney),
		}
	}
	if _, ok := to.Diversifier.GD(); !ok {
		return &pczt.OutputError{Code: pczt.ErrInvalidAddress, Message: "diversifier has no valid base"}
	}

	bsk, bvk, err := c.accumulator()
	if err != nil {
		return &pczt.OutputError{Code: pczt.ErrDocumentCorrupt, Message: "cannot parse binding accumulator", Cause: err}
	}

	var key [32]byte
	if ovk != nil {
		key = *ovk
	} else if _, err := io.ReadFull(c.rand, key[:]); err != nil {
		return &pczt.OutputError{Code: pczt.ErrProofFailed, Message: "cannot draw random ovk", Cause: err}
	}

	desc, err := prover.BuildOutput(key, to, uint64(value), memo, c.rand)
	if err != nil {
		return &pczt.OutputError{Code: pczt.ErrProofFailed, Message: "prover failed", Cause: err}
	}
	rcv, err := sapling.ParseScalar(desc.Rcv)
	if err != nil {
		return &pczt.OutputError{Code: pczt.ErrProofFailed, Message: "prover returned invalid rcv", Cause: err}
	}
	cv, err := sapling.ParsePoint(desc.Cv)
	if err != nil {
		return &pczt.OutputError{Code: pczt.ErrProofFailed, Message: "prover returned invalid cv", Cause: err}
	}

	// bsk' = bsk + rcv, bvk' = bvk + cv
	bsk.Add(bsk, rcv).Mod(bsk, sapling.Order())
	bvk.Add(&bvk, &cv)

	g := c.global()
	newBsk, newBvk := sapling.EncodeScalar(bsk), sapling.EncodePoint(&bvk)
	g.Bsk, g.Bvk = newBsk[:], newBvk[:]
	g.ValueBalance -= value

	c.pczt.Outputs = append(c.pczt.Outputs, pczt.Output{
		Cv:            desc.Cv,
		Cmu:           desc.Cmu,
		Epk:           desc.Epk,
		EncCiphertext: desc.EncCiphertext,
		OutCiphertext: desc.OutCiphertext,
		Zkproof:       desc.Zkproof,
		Value:         value,
		Rcv:           desc.Rcv,
	})
	return nil
}

// AddSpendSlot records a spend controlled by the seed with fingerprint fp
// at path, with a fresh randomizer. It returns the slot index. The spend's
// value commitment and proof come from an external spend prover and do not
// enter the accumulator here.
func (c *Constructor) AddSpendSlot(fp sapling.SeedFingerprint, path []uint32) (int, error) {
	alpha, err := sapling.RandomScalar(c.rand)
	if err != nil {
		return 0, fmt.Errorf("draw alpha: %w", err)
	}
	enc := sapling.EncodeScalar(alpha)

	c.global()
	c.pczt.Spends = append(c.pczt.Spends, pczt.Spend{
		Key: pczt.Key{
			MasterFingerprint: fp,
			DerivationPath:    append([]uint32(nil), path...),
		},
		Alpha: enc[:],
	})
	return len(c.pczt.Spends) - 1, nil
}

func (c *Constructor) global() *pczt.Global {
	if c.pczt.Global == nil {
		c.pczt.Global = &pczt.Global{}
	}
	return c.pczt.Global
}

// accumulator parses the current bsk and bvk, starting from zero and the
// identity when the document has none yet.
func (c *Constructor) accumulator() (*big.Int, sapling.Point, error) {
	return parseAccumulator(c.pczt.Global)
}

func parseAccumulator(g *pczt.Global) (*big.Int, sapling.Point, error) {
	if g == nil || (len(g.Bsk) == 0 && len(g.Bvk) == 0) {
		return new(big.Int), sapling.Identity(), nil
	}
	if len(g.Bsk) != 32 || len(g.Bvk) != 32 {
		return nil, sapling.Point{}, fmt.Errorf("bsk is %d bytes and bvk is %d bytes", len(g.Bsk), len(g.Bvk))
	}
	bsk, err := sapling.ParseScalar([32]byte(g.Bsk))
	if err != nil {
		return nil, sapling.Point{}, fmt.Errorf("bsk: %w", err)
	}
	bvk, err := sapling.ParsePoint([32]byte(g.Bvk))
	if err != nil {
		return nil, sapling.Point{}, fmt.Errorf("bvk: %w", err)
	}
	return bsk, bvk, nil
}

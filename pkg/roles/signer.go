package roles

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/suffix-labs/zcash-lightwallet/pkg/crypto"
	"github.com/suffix-labs/zcash-lightwallet/pkg/pczt"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
)

// SpendAuthorizer produces a spend-authorization signature for the key
// ask randomized by alpha. *sapling.SpendAuthSigner implements it.
type SpendAuthorizer interface {
	Sign(ask, alpha *big.Int, digest [32]byte) (sapling.Signature, error)
}

// Signer fills the spend slots a single HD seed controls.
//
// The Signer role:
//   - Computes the signature digest of the document under a branch id
//   - Matches each slot's master fingerprint against the seed
//   - Derives the slot's spending key along its ZIP 32 path
//   - Writes a RedJubjub spend-authorization signature randomized by alpha
//
// Slots controlled by other seeds are left untouched, so several signers can
// work on copies of the same document and a Combiner can merge the results.
type Signer struct {
	pczt   *pczt.PCZT
	params *sapling.Params
	auth   SpendAuthorizer
}

// NewSigner creates a new Signer drawing signature nonces from rand. A nil
// rand uses crypto/rand.
func NewSigner(p *pczt.PCZT, params *sapling.Params, rand io.Reader) *Signer {
	if rand == nil {
		rand = defaultRand()
	}
	return &Signer{
		pczt:   p,
		params: params,
		auth:   sapling.NewSpendAuthSigner(params, rand),
	}
}

// WithAuthorizer replaces the signature primitive.
func (s *Signer) WithAuthorizer(a SpendAuthorizer) *Signer {
	s.auth = a
	return s
}

// Sign signs every slot whose fingerprint matches seed and returns how many
// were signed. Slots that are already signed are signed again.
//
// Either every matching slot is signed or, on error, none is.
//
// Returns *pczt.SignatureError with code:
//   - ErrInvalidSeed: seed length outside [32, 252]
//   - ErrInvalidAlpha: a matching slot's alpha is not a canonical scalar
func (s *Signer) Sign(seed []byte, branchID uint32) (int, error) {
	fp, err := sapling.NewSeedFingerprint(seed)
	if err != nil {
		return 0, &pczt.SignatureError{Code: pczt.ErrInvalidSeed, SpendIndex: -1, Message: "cannot fingerprint seed", Cause: err}
	}
	master, err := sapling.MasterKey(seed)
	if err != nil {
		return 0, &pczt.SignatureError{Code: pczt.ErrInvalidSeed, SpendIndex: -1, Message: "cannot derive master key", Cause: err}
	}

	digest, err := crypto.SignatureHash(s.pczt, branchID)
	if err != nil {
		return 0, fmt.Errorf("compute signature hash: %w", err)
	}

	sigs := make(map[int]sapling.Signature)
	for i := range s.pczt.Spends {
		slot := &s.pczt.Spends[i]
		if slot.Key.MasterFingerprint != fp {
			continue
		}

		alpha, err := parseAlpha(slot.Alpha)
		if err != nil {
			return 0, &pczt.SignatureError{Code: pczt.ErrInvalidAlpha, SpendIndex: i, Message: "alpha is not a valid scalar", Cause: err}
		}

		xsk := master.DerivePath(s.params, slot.Key.DerivationPath)
		sig, err := s.auth.Sign(xsk.Expsk.Ask, alpha, digest)
		if err != nil {
			return 0, &pczt.SignatureError{Code: pczt.ErrInvalidSignature, SpendIndex: i, Message: "signing failed", Cause: err}
		}
		sigs[i] = sig
	}

	for i, sig := range sigs {
		s.pczt.Spends[i].SpendAuthSig = append([]byte(nil), sig[:]...)
	}
	return len(sigs), nil
}

func parseAlpha(b []byte) (*big.Int, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("alpha is %d bytes, want 32", len(b))
	}
	return sapling.ParseScalar([32]byte(b))
}

func defaultRand() io.Reader { return rand.Reader }

package sapling

import (
	"fmt"
	"io"
	"math/big"
)

// Signature is a RedJubjub signature R || S.
type Signature [64]byte

func hStar(parts ...[]byte) *big.Int {
	return ScalarFromWide(blake2b512(PersonalizationRedJubjub, parts...))
}

func redJubjubSign(base *Point, sk *big.Int, msg []byte, rand io.Reader) (Signature, error) {
	var t [80]byte
	if _, err := io.ReadFull(rand, t[:]); err != nil {
		return Signature{}, fmt.Errorf("read signing randomness: %w", err)
	}
	vk := mul(base, sk)
	vkb := vk.Bytes()

	r := hStar(t[:], vkb[:], msg)
	R := mul(base, r)
	Rb := R.Bytes()

	c := hStar(Rb[:], vkb[:], msg)
	s := new(big.Int).Mul(c, sk)
	s.Add(s, r)

	var sig Signature
	sb := EncodeScalar(s)
	copy(sig[:32], Rb[:])
	copy(sig[32:], sb[:])
	return sig, nil
}

func redJubjubVerify(base, vk *Point, msg []byte, sig Signature) bool {
	var rb, sb [32]byte
	copy(rb[:], sig[:32])
	copy(sb[:], sig[32:])
	R, err := ParsePoint(rb)
	if err != nil {
		return false
	}
	s, err := ParseScalar(sb)
	if err != nil {
		return false
	}
	vkb := vk.Bytes()
	c := hStar(rb[:], vkb[:], msg)

	lhs := mul(base, s)
	cvk := mul(vk, c)
	var rhs Point
	rhs.Add(&R, &cvk)
	return lhs.Equal(&rhs)
}

// RandomizedKey returns rk = ak + [alpha]G, the key a spend signature made
// with (ask, alpha) verifies under.
func RandomizedKey(params *Params, ak *Point, alpha *big.Int) Point {
	a := mul(&params.SpendAuthBase, alpha)
	var rk Point
	rk.Add(ak, &a)
	return rk
}

// SignSpendAuth signs msg with the rerandomized key rsk = ask + alpha.
func SignSpendAuth(params *Params, ask, alpha *big.Int, msg []byte, rand io.Reader) (Signature, error) {
	rsk := new(big.Int).Add(ask, alpha)
	rsk.Mod(rsk, order)
	return redJubjubSign(&params.SpendAuthBase, rsk, msg, rand)
}

// VerifySpendAuth checks a spend-authorization signature under rk.
func VerifySpendAuth(params *Params, rk *Point, msg []byte, sig Signature) bool {
	return redJubjubVerify(&params.SpendAuthBase, rk, msg, sig)
}

// SignBinding signs msg with the binding key bsk over base R.
func SignBinding(params *Params, bsk *big.Int, msg []byte, rand io.Reader) (Signature, error) {
	return redJubjubSign(&params.RandomnessBase, bsk, msg, rand)
}

// VerifyBinding checks a binding signature under bvk.
func VerifyBinding(params *Params, bvk *Point, msg []byte, sig Signature) bool {
	return redJubjubVerify(&params.RandomnessBase, bvk, msg, sig)
}

// SpendAuthSigner signs with the process parameters.
type SpendAuthSigner struct {
	params *Params
	rand   io.Reader
}

// NewSpendAuthSigner returns a signer drawing nonces from rand.
func NewSpendAuthSigner(params *Params, rand io.Reader) *SpendAuthSigner {
	return &SpendAuthSigner{params: params, rand: rand}
}

// Sign produces a spend-authorization signature over digest.
func (s *SpendAuthSigner) Sign(ask, alpha *big.Int, digest [32]byte) (Signature, error) {
	return SignSpendAuth(s.params, ask, alpha, digest[:], s.rand)
}

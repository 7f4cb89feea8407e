package sapling

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

// Seed length bounds accepted by MasterKey.
const (
	MinSeedLength = 32
	MaxSeedLength = 252
)

// HardenedKeyStart is the first hardened child index.
const HardenedKeyStart uint32 = 1 << 31

var ErrInvalidSeed = errors.New("sapling: seed must be between 32 and 252 bytes")

// SeedFingerprint identifies an HD seed without revealing it.
type SeedFingerprint [32]byte

// NewSeedFingerprint computes BLAKE2b-256("Zcash_HD_Seed_FP", [len] || seed).
func NewSeedFingerprint(seed []byte) (SeedFingerprint, error) {
	if len(seed) < MinSeedLength || len(seed) > MaxSeedLength {
		return SeedFingerprint{}, ErrInvalidSeed
	}
	return blake2b256(PersonalizationSeedFingerprint, []byte{byte(len(seed))}, seed), nil
}

// ExpandedSpendingKey holds the secret scalars of a spending key.
type ExpandedSpendingKey struct {
	Ask *big.Int
	Nsk *big.Int
	Ovk [32]byte
}

func expandSpendingKey(sk []byte) ExpandedSpendingKey {
	var ovk [32]byte
	o := prfExpand(sk, 0x02)
	copy(ovk[:], o[:32])
	return ExpandedSpendingKey{
		Ask: ScalarFromWide(prfExpand(sk, 0x00)),
		Nsk: ScalarFromWide(prfExpand(sk, 0x01)),
		Ovk: ovk,
	}
}

// FullViewingKey is the public part of an ExpandedSpendingKey.
type FullViewingKey struct {
	Ak  Point
	Nk  Point
	Ovk [32]byte
}

// FullViewingKey derives ak = [ask]G and nk = [nsk]H.
func (k *ExpandedSpendingKey) FullViewingKey(params *Params) FullViewingKey {
	return FullViewingKey{
		Ak:  mul(&params.SpendAuthBase, k.Ask),
		Nk:  mul(&params.ProofGenBase, k.Nsk),
		Ovk: k.Ovk,
	}
}

// Bytes encodes ak || nk || ovk.
func (fvk *FullViewingKey) Bytes() [96]byte {
	var out [96]byte
	ak, nk := fvk.Ak.Bytes(), fvk.Nk.Bytes()
	copy(out[:32], ak[:])
	copy(out[32:64], nk[:])
	copy(out[64:], fvk.Ovk[:])
	return out
}

// ParseFullViewingKey decodes ak || nk || ovk.
func ParseFullViewingKey(b [96]byte) (FullViewingKey, error) {
	ak, err := ParsePoint([32]byte(b[:32]))
	if err != nil {
		return FullViewingKey{}, fmt.Errorf("ak: %w", err)
	}
	nk, err := ParsePoint([32]byte(b[32:64]))
	if err != nil {
		return FullViewingKey{}, fmt.Errorf("nk: %w", err)
	}
	return FullViewingKey{Ak: ak, Nk: nk, Ovk: [32]byte(b[64:])}, nil
}

// IncomingViewingKey is a scalar below 2^251, encoded little-endian.
type IncomingViewingKey [32]byte

// IncomingViewingKey computes ivk = CRH(ak, nk) truncated to 251 bits.
func (fvk *FullViewingKey) IncomingViewingKey() IncomingViewingKey {
	ak, nk := fvk.Ak.Bytes(), fvk.Nk.Bytes()
	ivk := blake2b256(PersonalizationIvk, ak[:], nk[:])
	ivk[31] &= 0x07
	return IncomingViewingKey(ivk)
}

func (ivk IncomingViewingKey) scalar() *big.Int {
	return new(big.Int).SetBytes(reverse(ivk[:]))
}

// ExtendedSpendingKey is a node in the hierarchical key tree.
type ExtendedSpendingKey struct {
	Depth      uint8
	ChildIndex uint32
	ChainCode  [32]byte
	Expsk      ExpandedSpendingKey
	Dk         [32]byte
}

// MasterKey derives the root of the key tree from an HD seed.
func MasterKey(seed []byte) (*ExtendedSpendingKey, error) {
	if len(seed) < MinSeedLength || len(seed) > MaxSeedLength {
		return nil, ErrInvalidSeed
	}
	i := blake2b512(PersonalizationMasterKey, seed)
	skm, cm := i[:32], i[32:]

	xsk := &ExtendedSpendingKey{Expsk: expandSpendingKey(skm)}
	copy(xsk.ChainCode[:], cm)
	dk := prfExpand(skm, 0x10)
	copy(xsk.Dk[:], dk[:32])
	return xsk, nil
}

// Child derives the child at index. Indices at or above HardenedKeyStart
// produce hardened children.
func (xsk *ExtendedSpendingKey) Child(params *Params, index uint32) *ExtendedSpendingKey {
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], index)

	var input []byte
	if index >= HardenedKeyStart {
		input = append([]byte{0x11}, xsk.encodeSecret()...)
	} else {
		fvk := xsk.Expsk.FullViewingKey(params)
		enc := fvk.Bytes()
		input = append([]byte{0x12}, enc[:]...)
		input = append(input, xsk.Dk[:]...)
	}
	input = append(input, idx[:]...)

	i := prfExpand(xsk.ChainCode[:], input...)
	il, ir := i[:32], i[32:]

	child := &ExtendedSpendingKey{
		Depth:      xsk.Depth + 1,
		ChildIndex: index,
		Expsk: ExpandedSpendingKey{
			Ask: new(big.Int).Add(xsk.Expsk.Ask, ScalarFromWide(prfExpand(il, 0x13))),
			Nsk: new(big.Int).Add(xsk.Expsk.Nsk, ScalarFromWide(prfExpand(il, 0x14))),
		},
	}
	child.Expsk.Ask.Mod(child.Expsk.Ask, order)
	child.Expsk.Nsk.Mod(child.Expsk.Nsk, order)

	ovk := prfExpand(il, append([]byte{0x15}, xsk.Expsk.Ovk[:]...)...)
	copy(child.Expsk.Ovk[:], ovk[:32])
	dk := prfExpand(il, append([]byte{0x16}, xsk.Dk[:]...)...)
	copy(child.Dk[:], dk[:32])
	copy(child.ChainCode[:], ir)
	return child
}

// DerivePath walks path from xsk.
func (xsk *ExtendedSpendingKey) DerivePath(params *Params, path []uint32) *ExtendedSpendingKey {
	k := xsk
	for _, index := range path {
		k = k.Child(params, index)
	}
	return k
}

func (xsk *ExtendedSpendingKey) encodeSecret() []byte {
	ask, nsk := EncodeScalar(xsk.Expsk.Ask), EncodeScalar(xsk.Expsk.Nsk)
	out := make([]byte, 0, 128)
	out = append(out, ask[:]...)
	out = append(out, nsk[:]...)
	out = append(out, xsk.Expsk.Ovk[:]...)
	out = append(out, xsk.Dk[:]...)
	return out
}

// AccountPath returns the ZIP 32 path m/32'/coinType'/account'.
func AccountPath(coinType, account uint32) []uint32 {
	return []uint32{
		32 | HardenedKeyStart,
		coinType | HardenedKeyStart,
		account | HardenedKeyStart,
	}
}

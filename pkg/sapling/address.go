package sapling

import (
	"encoding/binary"
	"errors"
)

var ErrInvalidDiversifier = errors.New("sapling: diversifier has no valid base")

// Diversifier selects one of the many addresses of a viewing key.
type Diversifier [11]byte

// GD returns the diversified base g_d, or false if d is not valid.
func (d Diversifier) GD() (Point, bool) {
	return groupHash(PersonalizationDiversify, d[:])
}

// PaymentAddress is a shielded recipient (d, pk_d).
type PaymentAddress struct {
	Diversifier Diversifier
	PkD         Point
}

// Bytes encodes d || pk_d.
func (a *PaymentAddress) Bytes() [43]byte {
	var out [43]byte
	copy(out[:11], a.Diversifier[:])
	pk := a.PkD.Bytes()
	copy(out[11:], pk[:])
	return out
}

// ParsePaymentAddress decodes a 43-byte address and checks that both the
// diversifier and pk_d are valid.
func ParsePaymentAddress(b [43]byte) (PaymentAddress, error) {
	var a PaymentAddress
	copy(a.Diversifier[:], b[:11])
	if _, ok := a.Diversifier.GD(); !ok {
		return PaymentAddress{}, ErrInvalidDiversifier
	}
	var pk [32]byte
	copy(pk[:], b[11:])
	p, err := ParsePoint(pk)
	if err != nil {
		return PaymentAddress{}, err
	}
	a.PkD = p
	return a, nil
}

// Equal reports whether two addresses are identical.
func (a *PaymentAddress) Equal(b *PaymentAddress) bool {
	return a.Diversifier == b.Diversifier && a.PkD.Equal(&b.PkD)
}

// Address returns the address for diversifier d under ivk.
func (ivk IncomingViewingKey) Address(d Diversifier) (PaymentAddress, error) {
	gd, ok := d.GD()
	if !ok {
		return PaymentAddress{}, ErrInvalidDiversifier
	}
	return PaymentAddress{Diversifier: d, PkD: mul(&gd, ivk.scalar())}, nil
}

// diversifierAt derives the j-th candidate diversifier from dk.
func diversifierAt(dk [32]byte, j uint64) Diversifier {
	var idx [11]byte
	binary.LittleEndian.PutUint64(idx[:8], j)
	h := blake2b256(PersonalizationDiversifier, dk[:], idx[:])
	var d Diversifier
	copy(d[:], h[:11])
	return d
}

// DefaultAddress returns the first valid address of the key and the
// diversifier index it was found at.
func (xsk *ExtendedSpendingKey) DefaultAddress(params *Params) (uint64, PaymentAddress) {
	fvk := xsk.Expsk.FullViewingKey(params)
	ivk := fvk.IncomingViewingKey()
	for j := uint64(0); ; j++ {
		addr, err := ivk.Address(diversifierAt(xsk.Dk, j))
		if err == nil {
			return j, addr
		}
	}
}

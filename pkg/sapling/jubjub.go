package sapling

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/twistededwards"
)

var (
	ErrInvalidScalar = errors.New("sapling: scalar is not canonical")
	ErrInvalidPoint  = errors.New("sapling: invalid point encoding")
	ErrSmallOrder    = errors.New("sapling: point is not in the prime-order subgroup")
)

// Point is an affine point on the Jubjub curve.
type Point = twistededwards.PointAffine

var (
	curve    = twistededwards.GetEdwardsCurve()
	order    = new(big.Int).Set(&curve.Order)
	cofactor = big.NewInt(8)
)

// Order returns the order r_J of the Jubjub prime-order subgroup.
func Order() *big.Int {
	return new(big.Int).Set(order)
}

// Identity returns the neutral element (0, 1).
func Identity() Point {
	var p Point
	p.X.SetZero()
	p.Y.SetOne()
	return p
}

// ParseScalar decodes a little-endian scalar and rejects values >= r_J.
func ParseScalar(b [32]byte) (*big.Int, error) {
	s := new(big.Int).SetBytes(reverse(b[:]))
	if s.Cmp(order) >= 0 {
		return nil, ErrInvalidScalar
	}
	return s, nil
}

// EncodeScalar writes s mod r_J as 32 little-endian bytes.
func EncodeScalar(s *big.Int) [32]byte {
	var out [32]byte
	v := new(big.Int).Mod(s, order)
	be := v.FillBytes(make([]byte, 32))
	copy(out[:], reverse(be))
	return out
}

// ScalarFromWide reduces a 64-byte little-endian value modulo r_J.
func ScalarFromWide(b [64]byte) *big.Int {
	v := new(big.Int).SetBytes(reverse(b[:]))
	return v.Mod(v, order)
}

// RandomScalar draws a uniformly distributed scalar from rand.
func RandomScalar(rand io.Reader) (*big.Int, error) {
	var wide [64]byte
	if _, err := io.ReadFull(rand, wide[:]); err != nil {
		return nil, fmt.Errorf("read randomness: %w", err)
	}
	return ScalarFromWide(wide), nil
}

// AddScalars returns (a + b) mod r_J for two encoded scalars.
func AddScalars(a, b [32]byte) ([32]byte, error) {
	x, err := ParseScalar(a)
	if err != nil {
		return [32]byte{}, err
	}
	y, err := ParseScalar(b)
	if err != nil {
		return [32]byte{}, err
	}
	return EncodeScalar(new(big.Int).Add(x, y)), nil
}

// ParsePoint decodes a compressed point. The encoding must be canonical
// and the point must lie in the prime-order subgroup.
func ParsePoint(b [32]byte) (Point, error) {
	var p Point
	if _, err := p.SetBytes(b[:]); err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	if !p.IsOnCurve() {
		return Point{}, ErrInvalidPoint
	}
	if enc := p.Bytes(); !bytes.Equal(enc[:], b[:]) {
		return Point{}, ErrInvalidPoint
	}
	if !inPrimeSubgroup(&p) {
		return Point{}, ErrSmallOrder
	}
	return p, nil
}

// EncodePoint returns the 32-byte compressed encoding of p.
func EncodePoint(p *Point) [32]byte {
	return p.Bytes()
}

// AddPoints returns the encoding of a + b for two encoded points.
func AddPoints(a, b [32]byte) ([32]byte, error) {
	p, err := ParsePoint(a)
	if err != nil {
		return [32]byte{}, err
	}
	q, err := ParsePoint(b)
	if err != nil {
		return [32]byte{}, err
	}
	var sum Point
	sum.Add(&p, &q)
	return sum.Bytes(), nil
}

// mul returns [s]p with s reduced modulo r_J.
func mul(p *Point, s *big.Int) Point {
	k := new(big.Int).Mod(s, order)
	var out Point
	out.ScalarMultiplication(p, k)
	return out
}

func inPrimeSubgroup(p *Point) bool {
	var q Point
	q.ScalarMultiplication(p, order)
	return q.IsZero()
}

// groupHash maps (personalization, msg) to a point of prime order using
// try-and-increment over the compressed encoding. It returns false when no
// candidate in 256 attempts is valid.
func groupHash(personalization string, msg []byte) (Point, bool) {
	for ctr := 0; ctr < 256; ctr++ {
		h := blake2b256(personalization, msg, []byte{byte(ctr)})
		var p Point
		if _, err := p.SetBytes(h[:]); err != nil || !p.IsOnCurve() {
			continue
		}
		if enc := p.Bytes(); enc != h {
			continue
		}
		var q Point
		q.ScalarMultiplication(&p, cofactor)
		if q.IsZero() {
			continue
		}
		return q, true
	}
	return Point{}, false
}

func mustGroupHash(personalization string, msg []byte) Point {
	p, ok := groupHash(personalization, msg)
	if !ok {
		panic("sapling: no generator for " + personalization)
	}
	return p
}

// fieldBytes encodes a base-field element little-endian, the Merkle node
// and cmu encoding.
func fieldBytes(e *fr.Element) [32]byte {
	var out [32]byte
	fr.LittleEndian.PutElement(&out, *e)
	return out
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

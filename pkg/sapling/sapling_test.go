package sapling

import (
	"bytes"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = NewParams()

func testSeed(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func testAccount(t *testing.T, seedByte byte) (*ExtendedSpendingKey, PaymentAddress) {
	t.Helper()
	master, err := MasterKey(testSeed(seedByte))
	require.NoError(t, err)
	xsk := master.DerivePath(testParams, AccountPath(1, 0))
	_, addr := xsk.DefaultAddress(testParams)
	return xsk, addr
}

func TestParseScalarRange(t *testing.T) {
	s, err := ParseScalar(EncodeScalar(big.NewInt(42)))
	require.NoError(t, err)
	assert.Equal(t, int64(42), s.Int64())

	var tooBig [32]byte
	copy(tooBig[:], reverse(Order().FillBytes(make([]byte, 32))))
	_, err = ParseScalar(tooBig)
	assert.ErrorIs(t, err, ErrInvalidScalar)

	// r_J - 1 is the largest canonical scalar.
	top := new(big.Int).Sub(Order(), big.NewInt(1))
	_, err = ParseScalar(EncodeScalar(top))
	assert.NoError(t, err)
}

func TestAddScalarsWraps(t *testing.T) {
	top := EncodeScalar(new(big.Int).Sub(Order(), big.NewInt(1)))
	two := EncodeScalar(big.NewInt(2))
	sum, err := AddScalars(top, two)
	require.NoError(t, err)
	assert.Equal(t, EncodeScalar(big.NewInt(1)), sum)
}

func TestParsePoint(t *testing.T) {
	id := Identity()
	p, err := ParsePoint(id.Bytes())
	require.NoError(t, err)
	assert.True(t, p.IsZero())

	g := testParams.SpendAuthBase.Bytes()
	p, err = ParsePoint(g)
	require.NoError(t, err)
	assert.True(t, p.Equal(&testParams.SpendAuthBase))

	var garbage [32]byte
	for i := range garbage {
		garbage[i] = 0xff
	}
	_, err = ParsePoint(garbage)
	assert.Error(t, err)
}

func TestGeneratorsDistinct(t *testing.T) {
	gens := []Point{
		testParams.SpendAuthBase,
		testParams.ProofGenBase,
		testParams.ValueBase,
		testParams.RandomnessBase,
		testParams.NoteCommitRandBase,
		testParams.NullifierPosBase,
	}
	for i := range gens {
		assert.False(t, gens[i].IsZero())
		assert.True(t, inPrimeSubgroup(&gens[i]))
		for j := i + 1; j < len(gens); j++ {
			assert.False(t, gens[i].Equal(&gens[j]), "generators %d and %d collide", i, j)
		}
	}
}

func TestValueCommitmentHomomorphic(t *testing.T) {
	r1, r2 := big.NewInt(1234), big.NewInt(5678)
	cv1 := ValueCommitment(testParams, 100, r1)
	cv2 := ValueCommitment(testParams, 250, r2)

	sum, err := AddPoints(cv1.Bytes(), cv2.Bytes())
	require.NoError(t, err)

	want := ValueCommitment(testParams, 350, new(big.Int).Add(r1, r2))
	assert.Equal(t, want.Bytes(), sum)

	// A commitment to -v cancels a commitment to v with the same randomness
	// up to [2rcv]R.
	neg := ValueCommitment(testParams, -100, r1)
	var total Point
	total.Add(&cv1, &neg)
	assert.True(t, total.Equal(ptr(mul(&testParams.RandomnessBase, big.NewInt(2*1234)))))
}

func ptr(p Point) *Point { return &p }

func TestSeedFingerprint(t *testing.T) {
	fp1, err := NewSeedFingerprint(testSeed(1))
	require.NoError(t, err)
	fp1b, err := NewSeedFingerprint(testSeed(1))
	require.NoError(t, err)
	fp2, err := NewSeedFingerprint(testSeed(2))
	require.NoError(t, err)

	assert.Equal(t, fp1, fp1b)
	assert.NotEqual(t, fp1, fp2)

	_, err = NewSeedFingerprint(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidSeed)
	_, err = NewSeedFingerprint(make([]byte, 253))
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestKeyDerivation(t *testing.T) {
	master, err := MasterKey(testSeed(7))
	require.NoError(t, err)

	a := master.DerivePath(testParams, AccountPath(1, 0))
	b := master.DerivePath(testParams, AccountPath(1, 0))
	c := master.DerivePath(testParams, AccountPath(1, 1))

	assert.Equal(t, uint8(3), a.Depth)
	assert.Equal(t, 0, a.Expsk.Ask.Cmp(b.Expsk.Ask))
	assert.NotEqual(t, 0, a.Expsk.Ask.Cmp(c.Expsk.Ask))

	hardened := master.Child(testParams, HardenedKeyStart)
	normal := master.Child(testParams, 0)
	assert.NotEqual(t, hardened.ChainCode, normal.ChainCode)

	_, err = MasterKey(nil)
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestAddressDerivation(t *testing.T) {
	xsk, addr := testAccount(t, 3)
	fvk := xsk.Expsk.FullViewingKey(testParams)
	ivk := fvk.IncomingViewingKey()

	again, err := ivk.Address(addr.Diversifier)
	require.NoError(t, err)
	assert.True(t, again.Equal(&addr))

	parsed, err := ParsePaymentAddress(addr.Bytes())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(&addr))

	decoded, err := ParseFullViewingKey(fvk.Bytes())
	require.NoError(t, err)
	assert.Equal(t, ivk, decoded.IncomingViewingKey())
	assert.Equal(t, fvk.Ovk, decoded.Ovk)
}

func TestOutputEncryption(t *testing.T) {
	xsk, addr := testAccount(t, 4)
	fvk := xsk.Expsk.FullViewingKey(testParams)
	ivk := fvk.IncomingViewingKey()

	prover := NewOutputProver(testParams)
	memo := EmptyMemo()
	copy(memo[:], "hello")
	desc, err := prover.BuildOutput(xsk.Expsk.Ovk, addr, 50_000, &memo, rand.Reader)
	require.NoError(t, err)
	assert.Len(t, desc.EncCiphertext, EncCiphertextSize)
	assert.Len(t, desc.OutCiphertext, OutCiphertextSize)

	epk, err := ParsePoint(desc.Epk)
	require.NoError(t, err)

	t.Run("compact", func(t *testing.T) {
		note, to, ok := TryDecryptCompact(testParams, ivk, &epk, desc.Cmu, desc.EncCiphertext[:CompactNoteSize])
		require.True(t, ok)
		assert.Equal(t, uint64(50_000), note.Value)
		assert.True(t, to.Equal(&addr))
	})

	t.Run("full", func(t *testing.T) {
		_, _, gotMemo, ok := TryDecryptNote(testParams, ivk, &epk, desc.Cmu, desc.EncCiphertext)
		require.True(t, ok)
		assert.Equal(t, memo, *gotMemo)
	})

	t.Run("wrong ivk", func(t *testing.T) {
		other, _ := testAccount(t, 5)
		ofvk := other.Expsk.FullViewingKey(testParams)
		_, _, ok := TryDecryptCompact(testParams, ofvk.IncomingViewingKey(), &epk, desc.Cmu, desc.EncCiphertext)
		assert.False(t, ok)
	})

	t.Run("outgoing", func(t *testing.T) {
		note, _, _, ok := TryRecoverOutput(testParams, xsk.Expsk.Ovk, desc.Cv, desc.Cmu, desc.Epk, desc.EncCiphertext, desc.OutCiphertext)
		require.True(t, ok)
		assert.Equal(t, uint64(50_000), note.Value)

		var otherOvk [32]byte
		_, _, _, ok = TryRecoverOutput(testParams, otherOvk, desc.Cv, desc.Cmu, desc.Epk, desc.EncCiphertext, desc.OutCiphertext)
		assert.False(t, ok)
	})

	t.Run("value commitment", func(t *testing.T) {
		rcv, err := ParseScalar(desc.Rcv)
		require.NoError(t, err)
		cv := ValueCommitment(testParams, 50_000, rcv)
		assert.Equal(t, desc.Cv, cv.Bytes())
	})
}

func TestNullifierBindsPosition(t *testing.T) {
	xsk, addr := testAccount(t, 6)
	fvk := xsk.Expsk.FullViewingKey(testParams)
	note := &Note{Value: 10, Recipient: addr, Rcm: EncodeScalar(big.NewInt(99))}

	nf0, err := note.Nullifier(testParams, &fvk.Nk, 0)
	require.NoError(t, err)
	nf1, err := note.Nullifier(testParams, &fvk.Nk, 1)
	require.NoError(t, err)
	assert.NotEqual(t, nf0, nf1)
}

func TestSpendAuthSignature(t *testing.T) {
	xsk, _ := testAccount(t, 8)
	fvk := xsk.Expsk.FullViewingKey(testParams)
	alpha, err := RandomScalar(rand.Reader)
	require.NoError(t, err)

	msg := []byte("sighash")
	sig, err := SignSpendAuth(testParams, xsk.Expsk.Ask, alpha, msg, rand.Reader)
	require.NoError(t, err)

	rk := RandomizedKey(testParams, &fvk.Ak, alpha)
	assert.True(t, VerifySpendAuth(testParams, &rk, msg, sig))
	assert.False(t, VerifySpendAuth(testParams, &rk, []byte("other"), sig))
	assert.False(t, VerifySpendAuth(testParams, &fvk.Ak, msg, sig))
}

func TestBindingSignature(t *testing.T) {
	bsk := big.NewInt(777)
	bvk := mul(&testParams.RandomnessBase, bsk)
	sig, err := SignBinding(testParams, bsk, []byte("tx"), rand.Reader)
	require.NoError(t, err)
	assert.True(t, VerifyBinding(testParams, &bvk, []byte("tx"), sig))
}

func TestMerkleHash(t *testing.T) {
	leaf := UncommittedLeaf()
	assert.True(t, IsCanonicalNode(leaf))

	h0 := MerkleHash(0, leaf, leaf)
	h1 := MerkleHash(1, leaf, leaf)
	assert.NotEqual(t, h0, h1)
	assert.True(t, IsCanonicalNode(h0))
	assert.NotEqual(t, MerkleHash(0, leaf, h0), MerkleHash(0, h0, leaf))
}

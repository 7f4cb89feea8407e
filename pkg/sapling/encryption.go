package sapling

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
)

// Note encryption sizes.
const (
	CompactNoteSize   = 1 + 11 + 8 + 32 // leadbyte || d || value || rcm
	MemoSize          = 512
	NotePlaintextSize = CompactNoteSize + MemoSize
	EncCiphertextSize = NotePlaintextSize + chacha20poly1305.Overhead
	OutPlaintextSize  = 32 + 32 // pk_d || esk
	OutCiphertextSize = OutPlaintextSize + chacha20poly1305.Overhead

	noteLeadByte = 0x01
)

// Memo is the 512-byte memo field of a note.
type Memo [MemoSize]byte

// EmptyMemo returns the canonical "no memo" value (0xF6 then zeros).
func EmptyMemo() Memo {
	var m Memo
	m[0] = 0xF6
	return m
}

var zeroNonce [chacha20poly1305.NonceSize]byte

func kdf(shared *Point, epk [32]byte) [32]byte {
	s := shared.Bytes()
	return blake2b256(PersonalizationKDF, s[:], epk[:])
}

func outgoingCipherKey(ovk, cv, cmu, epk [32]byte) [32]byte {
	return blake2b256(PersonalizationOCK, ovk[:], cv[:], cmu[:], epk[:])
}

func notePlaintext(note *Note, memo *Memo) []byte {
	pt := make([]byte, 0, NotePlaintextSize)
	pt = append(pt, noteLeadByte)
	pt = append(pt, note.Recipient.Diversifier[:]...)
	pt = binary.LittleEndian.AppendUint64(pt, note.Value)
	pt = append(pt, note.Rcm[:]...)
	return append(pt, memo[:]...)
}

// EncryptNote encrypts note and memo to the note's recipient under the
// ephemeral secret esk. It returns epk = [esk]g_d and the ciphertext.
func EncryptNote(note *Note, memo *Memo, esk *big.Int) (Point, []byte, error) {
	gd, ok := note.Recipient.Diversifier.GD()
	if !ok {
		return Point{}, nil, ErrInvalidDiversifier
	}
	epk := mul(&gd, esk)
	shared := mul(&note.Recipient.PkD, esk)
	key := kdf(&shared, epk.Bytes())

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return Point{}, nil, fmt.Errorf("note cipher: %w", err)
	}
	return epk, aead.Seal(nil, zeroNonce[:], notePlaintext(note, memo), nil), nil
}

// EncryptOutgoing encrypts (pk_d, esk) under the key derived from ovk so
// the sender can later recover the output.
func EncryptOutgoing(ovk, cv, cmu, epk [32]byte, pkd *Point, esk *big.Int) ([]byte, error) {
	ock := outgoingCipherKey(ovk, cv, cmu, epk)
	aead, err := chacha20poly1305.New(ock[:])
	if err != nil {
		return nil, fmt.Errorf("outgoing cipher: %w", err)
	}
	pt := make([]byte, 0, OutPlaintextSize)
	pk, e := pkd.Bytes(), EncodeScalar(esk)
	pt = append(pt, pk[:]...)
	pt = append(pt, e[:]...)
	return aead.Seal(nil, zeroNonce[:], pt, nil), nil
}

// parseNotePlaintext decodes the compact prefix of a note plaintext and
// checks it against cmu. The caller supplies the expected pk_d derivation.
func parseNotePlaintext(params *Params, pt []byte, cmu [32]byte, address func(Diversifier) (PaymentAddress, error)) (*Note, *PaymentAddress, bool) {
	if len(pt) < CompactNoteSize || pt[0] != noteLeadByte {
		return nil, nil, false
	}
	var d Diversifier
	copy(d[:], pt[1:12])
	value := binary.LittleEndian.Uint64(pt[12:20])
	if value > uint64(MaxMoney) {
		return nil, nil, false
	}
	var rcm [32]byte
	copy(rcm[:], pt[20:52])
	if _, err := ParseScalar(rcm); err != nil {
		return nil, nil, false
	}

	to, err := address(d)
	if err != nil {
		return nil, nil, false
	}
	note := &Note{Value: value, Recipient: to, Rcm: rcm}
	got, err := note.Cmu(params)
	if err != nil || got != cmu {
		return nil, nil, false
	}
	return note, &to, true
}

// TryDecryptCompact trial-decrypts the first CompactNoteSize bytes of an
// output ciphertext. The AEAD tag is not available in compact form, so
// the plaintext is authenticated by recomputing cmu.
func TryDecryptCompact(params *Params, ivk IncomingViewingKey, epk *Point, cmu [32]byte, ciphertext []byte) (*Note, *PaymentAddress, bool) {
	if len(ciphertext) < CompactNoteSize {
		return nil, nil, false
	}
	shared := mul(epk, ivk.scalar())
	key := kdf(&shared, epk.Bytes())

	c, err := chacha20.NewUnauthenticatedCipher(key[:], zeroNonce[:])
	if err != nil {
		return nil, nil, false
	}
	// Block 0 keys Poly1305; the ciphertext starts at block 1.
	c.SetCounter(1)
	pt := make([]byte, CompactNoteSize)
	c.XORKeyStream(pt, ciphertext[:CompactNoteSize])

	return parseNotePlaintext(params, pt, cmu, ivk.Address)
}

// TryDecryptNote decrypts and authenticates a full output ciphertext,
// returning the memo as well.
func TryDecryptNote(params *Params, ivk IncomingViewingKey, epk *Point, cmu [32]byte, ciphertext []byte) (*Note, *PaymentAddress, *Memo, bool) {
	if len(ciphertext) != EncCiphertextSize {
		return nil, nil, nil, false
	}
	shared := mul(epk, ivk.scalar())
	key := kdf(&shared, epk.Bytes())
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, nil, nil, false
	}
	pt, err := aead.Open(nil, zeroNonce[:], ciphertext, nil)
	if err != nil {
		return nil, nil, nil, false
	}
	note, to, ok := parseNotePlaintext(params, pt, cmu, ivk.Address)
	if !ok {
		return nil, nil, nil, false
	}
	var memo Memo
	copy(memo[:], pt[CompactNoteSize:])
	return note, to, &memo, true
}

// TryRecoverOutput lets the holder of ovk decrypt an output it sent.
func TryRecoverOutput(params *Params, ovk, cv, cmu, epk [32]byte, encCiphertext, outCiphertext []byte) (*Note, *PaymentAddress, *Memo, bool) {
	if len(encCiphertext) != EncCiphertextSize || len(outCiphertext) != OutCiphertextSize {
		return nil, nil, nil, false
	}
	ock := outgoingCipherKey(ovk, cv, cmu, epk)
	outAead, err := chacha20poly1305.New(ock[:])
	if err != nil {
		return nil, nil, nil, false
	}
	op, err := outAead.Open(nil, zeroNonce[:], outCiphertext, nil)
	if err != nil {
		return nil, nil, nil, false
	}

	var pkb, eskb [32]byte
	copy(pkb[:], op[:32])
	copy(eskb[:], op[32:])
	pkd, err := ParsePoint(pkb)
	if err != nil {
		return nil, nil, nil, false
	}
	esk, err := ParseScalar(eskb)
	if err != nil {
		return nil, nil, nil, false
	}

	shared := mul(&pkd, esk)
	key := kdf(&shared, epk)
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, nil, nil, false
	}
	pt, err := aead.Open(nil, zeroNonce[:], encCiphertext, nil)
	if err != nil {
		return nil, nil, nil, false
	}

	address := func(d Diversifier) (PaymentAddress, error) {
		gd, ok := d.GD()
		if !ok {
			return PaymentAddress{}, ErrInvalidDiversifier
		}
		if got := mul(&gd, esk); got.Bytes() != epk {
			return PaymentAddress{}, ErrInvalidPoint
		}
		return PaymentAddress{Diversifier: d, PkD: pkd}, nil
	}
	note, to, ok := parseNotePlaintext(params, pt, cmu, address)
	if !ok {
		return nil, nil, nil, false
	}
	var memo Memo
	copy(memo[:], pt[CompactNoteSize:])
	return note, to, &memo, true
}

// Decryptor adapts TryDecryptCompact to a fixed Params.
type Decryptor struct {
	params *Params
}

// NewDecryptor returns a compact trial decryptor bound to params.
func NewDecryptor(params *Params) *Decryptor {
	return &Decryptor{params: params}
}

// TryDecryptCompact implements the scanner's decryption primitive.
func (d *Decryptor) TryDecryptCompact(ivk IncomingViewingKey, epk *Point, cmu [32]byte, ciphertext []byte) (*Note, *PaymentAddress, bool) {
	return TryDecryptCompact(d.params, ivk, epk, cmu, ciphertext)
}

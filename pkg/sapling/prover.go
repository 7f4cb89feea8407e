package sapling

import (
	"fmt"
	"io"
)

// ProofSize is the length of a Groth16 proof on BLS12-381.
const ProofSize = 192

// OutputDescription is everything a prover returns for one output.
type OutputDescription struct {
	Cv            [32]byte
	Cmu           [32]byte
	Epk           [32]byte
	EncCiphertext []byte
	OutCiphertext []byte
	Zkproof       [ProofSize]byte
	Rcv           [32]byte
}

// OutputProver builds output descriptions locally. The proof field is a
// transcript digest binding cv, cmu and epk; proof generation for the
// output circuit is delegated to an external proving service.
type OutputProver struct {
	params *Params
}

// NewOutputProver returns a prover bound to params.
func NewOutputProver(params *Params) *OutputProver {
	return &OutputProver{params: params}
}

// BuildOutput creates a note of value for to, encrypts it, and returns the
// description together with the value-commitment randomness rcv.
func (p *OutputProver) BuildOutput(ovk [32]byte, to PaymentAddress, value uint64, memo *Memo, rand io.Reader) (*OutputDescription, error) {
	if value > uint64(MaxMoney) {
		return nil, fmt.Errorf("output value %d exceeds maximum", value)
	}
	if memo == nil {
		m := EmptyMemo()
		memo = &m
	}

	rcv, err := RandomScalar(rand)
	if err != nil {
		return nil, err
	}
	rcm, err := RandomScalar(rand)
	if err != nil {
		return nil, err
	}
	esk, err := RandomScalar(rand)
	if err != nil {
		return nil, err
	}

	note := &Note{Value: value, Recipient: to, Rcm: EncodeScalar(rcm)}
	cmu, err := note.Cmu(p.params)
	if err != nil {
		return nil, err
	}
	cvPoint := ValueCommitment(p.params, int64(value), rcv)
	cv := cvPoint.Bytes()

	epkPoint, enc, err := EncryptNote(note, memo, esk)
	if err != nil {
		return nil, err
	}
	epk := epkPoint.Bytes()
	out, err := EncryptOutgoing(ovk, cv, cmu, epk, &to.PkD, esk)
	if err != nil {
		return nil, err
	}

	desc := &OutputDescription{
		Cv:            cv,
		Cmu:           cmu,
		Epk:           epk,
		EncCiphertext: enc,
		OutCiphertext: out,
		Rcv:           EncodeScalar(rcv),
	}
	for i := 0; i < ProofSize/64; i++ {
		chunk := blake2b512(PersonalizationProof, cv[:], cmu[:], epk[:], []byte{byte(i)})
		copy(desc.Zkproof[i*64:], chunk[:])
	}
	return desc, nil
}

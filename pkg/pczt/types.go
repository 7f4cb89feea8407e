// Package pczt implements the Partially Created Zcash Transaction (PCZT)
// document used to build and sign shielded transactions across parties.
//
// A document is created empty, receives shielded outputs from a builder
// (which also maintains the binding-signature accumulator), and receives
// spend-authorization signatures from one or more signers. Every role works
// on a parsed copy and hands the re-serialized bytes to the next party.
package pczt

// PCZT is a partially created transaction.
type PCZT struct {
	Global  *Global  // Absent until the first output or spend is added
	Spends  []Spend  // Spend slots, in transaction order
	Outputs []Output // Shielded outputs, in transaction order

	// Unknown holds fields written by newer versions, kept verbatim.
	Unknown []byte
}

// Global holds transaction-wide values.
type Global struct {
	// ValueBalance is the net value flowing from this transaction into the
	// transparent pool. Each shielded output decreases it by its value.
	ValueBalance int64

	// Bsk is the binding-signature scalar accumulator: the sum of every
	// output's rcv. Empty means "not yet started".
	Bsk []byte

	// Bvk is the binding verification key accumulator: the sum of every
	// output's value commitment. Empty means "not yet started".
	Bvk []byte

	Unknown []byte
}

// Spend is a spend slot awaiting a spend-authorization signature.
type Spend struct {
	Key          Key    // Which seed and path control the spent note
	Alpha        []byte // Spend-authorization randomizer (32-byte scalar)
	SpendAuthSig []byte // 64-byte RedJubjub signature, nil until signed
	Unknown      []byte
}

// Signed reports whether the slot carries a signature.
func (s *Spend) Signed() bool {
	return len(s.SpendAuthSig) == 64
}

// Key identifies the spending key of a slot without revealing it.
type Key struct {
	MasterFingerprint [32]byte // Fingerprint of the HD seed
	DerivationPath    []uint32 // Child indices walked from the master key
	Unknown           []byte
}

// Output is a shielded output description together with the cleartext
// value and value-commitment randomness. Value and Rcv are kept so later
// parties can audit the accumulator; they never reach the broadcast
// transaction.
type Output struct {
	Cv            [32]byte  // Value commitment
	Cmu           [32]byte  // Note commitment u-coordinate
	Epk           [32]byte  // Ephemeral public key
	EncCiphertext []byte    // Note ciphertext for the recipient
	OutCiphertext []byte    // Outgoing ciphertext for the sender
	Zkproof       [192]byte // Output proof
	Value         int64     // Cleartext value in zatoshis
	Rcv           [32]byte  // Value-commitment randomness
	Unknown       []byte
}

// New returns an empty document.
func New() *PCZT {
	return &PCZT{}
}

// IsComplete reports whether every spend slot is signed. A document with
// no spends is complete once it has a global section.
func (p *PCZT) IsComplete() bool {
	if p.Global == nil {
		return false
	}
	for i := range p.Spends {
		if !p.Spends[i].Signed() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of p.
func (p *PCZT) Clone() *PCZT {
	c := &PCZT{Unknown: cloneBytes(p.Unknown)}
	if p.Global != nil {
		c.Global = &Global{
			ValueBalance: p.Global.ValueBalance,
			Bsk:          cloneBytes(p.Global.Bsk),
			Bvk:          cloneBytes(p.Global.Bvk),
			Unknown:      cloneBytes(p.Global.Unknown),
		}
	}
	if p.Spends != nil {
		c.Spends = make([]Spend, len(p.Spends))
		for i, s := range p.Spends {
			c.Spends[i] = Spend{
				Key: Key{
					MasterFingerprint: s.Key.MasterFingerprint,
					DerivationPath:    append([]uint32(nil), s.Key.DerivationPath...),
					Unknown:           cloneBytes(s.Key.Unknown),
				},
				Alpha:        cloneBytes(s.Alpha),
				SpendAuthSig: cloneBytes(s.SpendAuthSig),
				Unknown:      cloneBytes(s.Unknown),
			}
		}
	}
	if p.Outputs != nil {
		c.Outputs = make([]Output, len(p.Outputs))
		for i, o := range p.Outputs {
			o.EncCiphertext = cloneBytes(o.EncCiphertext)
			o.OutCiphertext = cloneBytes(o.OutCiphertext)
			o.Unknown = cloneBytes(o.Unknown)
			c.Outputs[i] = o
		}
	}
	return c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}

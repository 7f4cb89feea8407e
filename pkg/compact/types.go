// Package compact implements the compact block format served to light
// clients.
//
// A compact block carries, per transaction, only the nullifiers of its
// shielded spends and the commitment, ephemeral key and ciphertext prefix of
// its shielded outputs: just enough to detect spends of known notes and to
// trial-decrypt incoming notes.
//
// The wire format is protobuf with the field numbers of lightwalletd's
// compact_formats.proto:
//
//	message CompactBlock  { uint32 protoVersion = 1; uint64 height = 2; bytes hash = 3;
//	                        bytes prevHash = 4; uint32 time = 5; bytes header = 6;
//	                        repeated CompactTx vtx = 7; }
//	message CompactTx     { uint64 index = 1; bytes hash = 2; uint32 fee = 3;
//	                        repeated CompactSpend spends = 4; repeated CompactOutput outputs = 5; }
//	message CompactSpend  { bytes nf = 1; }
//	message CompactOutput { bytes cmu = 1; bytes epk = 2; bytes ciphertext = 3; }
package compact

// Block is a compact block.
type Block struct {
	ProtoVersion uint32
	Height       uint64
	Hash         []byte
	PrevHash     []byte
	Time         uint32
	Header       []byte
	Vtx          []Tx
}

// Tx is a compact transaction. Index is its position in the block.
type Tx struct {
	Index   uint64
	Hash    []byte
	Fee     uint32
	Spends  []Spend
	Outputs []Output
}

// Spend carries the nullifier revealed by a shielded spend.
type Spend struct {
	Nf []byte
}

// Output carries the fields of a shielded output needed for trial
// decryption. Ciphertext holds at least the compact plaintext prefix.
type Output struct {
	Cmu        []byte
	Epk        []byte
	Ciphertext []byte
}

package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/zcash-lightwallet/pkg/pczt"
)

const testBranchID = 0xC2D6D0B4

func sampleDocument() *pczt.PCZT {
	out := pczt.Output{
		EncCiphertext: bytes.Repeat([]byte{0x05}, 580),
		OutCiphertext: bytes.Repeat([]byte{0x06}, 80),
		Value:         1_000,
	}
	out.Cv[0], out.Cmu[0], out.Epk[0], out.Zkproof[0], out.Rcv[0] = 1, 2, 3, 4, 7
	return &pczt.PCZT{
		Global: &pczt.Global{
			ValueBalance: -1_000,
			Bsk:          bytes.Repeat([]byte{0x08}, 32),
			Bvk:          bytes.Repeat([]byte{0x09}, 32),
		},
		Spends: []pczt.Spend{{
			Key:   pczt.Key{MasterFingerprint: [32]byte{0xaa}, DerivationPath: []uint32{1, 2}},
			Alpha: bytes.Repeat([]byte{0x0b}, 32),
		}},
		Outputs: []pczt.Output{out},
	}
}

func sighash(t *testing.T, p *pczt.PCZT, branchID uint32) [32]byte {
	t.Helper()
	d, err := SignatureHash(p, branchID)
	require.NoError(t, err)
	return d
}

func TestSignatureHashDeterministic(t *testing.T) {
	a := sighash(t, sampleDocument(), testBranchID)
	b := sighash(t, sampleDocument(), testBranchID)
	assert.Equal(t, a, b)
	assert.NotEqual(t, [32]byte{}, a)
}

func TestSignatureHashBindsBranchID(t *testing.T) {
	assert.NotEqual(t,
		sighash(t, sampleDocument(), testBranchID),
		sighash(t, sampleDocument(), testBranchID+1))
}

func TestSignatureHashCommitsTo(t *testing.T) {
	base := sighash(t, sampleDocument(), testBranchID)

	tests := []struct {
		name   string
		mutate func(p *pczt.PCZT)
	}{
		{"value balance", func(p *pczt.PCZT) { p.Global.ValueBalance-- }},
		{"fingerprint", func(p *pczt.PCZT) { p.Spends[0].Key.MasterFingerprint[1] = 1 }},
		{"derivation path", func(p *pczt.PCZT) { p.Spends[0].Key.DerivationPath[1] = 3 }},
		{"alpha", func(p *pczt.PCZT) { p.Spends[0].Alpha[0] ^= 1 }},
		{"cv", func(p *pczt.PCZT) { p.Outputs[0].Cv[5] = 1 }},
		{"cmu", func(p *pczt.PCZT) { p.Outputs[0].Cmu[5] = 1 }},
		{"epk", func(p *pczt.PCZT) { p.Outputs[0].Epk[5] = 1 }},
		{"compact ciphertext", func(p *pczt.PCZT) { p.Outputs[0].EncCiphertext[10] = 0 }},
		{"memo", func(p *pczt.PCZT) { p.Outputs[0].EncCiphertext[100] = 0 }},
		{"ciphertext tag", func(p *pczt.PCZT) { p.Outputs[0].EncCiphertext[570] = 0 }},
		{"out ciphertext", func(p *pczt.PCZT) { p.Outputs[0].OutCiphertext[0] = 0 }},
		{"proof", func(p *pczt.PCZT) { p.Outputs[0].Zkproof[100] = 1 }},
		{"extra spend", func(p *pczt.PCZT) { p.Spends = append(p.Spends, p.Spends[0]) }},
		{"extra output", func(p *pczt.PCZT) { p.Outputs = append(p.Outputs, p.Outputs[0]) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sampleDocument()
			tt.mutate(p)
			assert.NotEqual(t, base, sighash(t, p, testBranchID))
		})
	}
}

func TestSignatureHashIgnores(t *testing.T) {
	base := sighash(t, sampleDocument(), testBranchID)

	tests := []struct {
		name   string
		mutate func(p *pczt.PCZT)
	}{
		{"signature", func(p *pczt.PCZT) { p.Spends[0].SpendAuthSig = make([]byte, 64) }},
		{"cleartext value", func(p *pczt.PCZT) { p.Outputs[0].Value = 99 }},
		{"rcv", func(p *pczt.PCZT) { p.Outputs[0].Rcv[0] = 0 }},
		{"bsk", func(p *pczt.PCZT) { p.Global.Bsk = nil }},
		{"bvk", func(p *pczt.PCZT) { p.Global.Bvk[0] = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sampleDocument()
			tt.mutate(p)
			assert.Equal(t, base, sighash(t, p, testBranchID))
		})
	}
}

func TestSignatureHashEmptyDocument(t *testing.T) {
	a := sighash(t, pczt.New(), testBranchID)
	b := sighash(t, &pczt.PCZT{Global: &pczt.Global{}}, testBranchID)
	assert.Equal(t, a, b)
}

func TestWriteCompactSize(t *testing.T) {
	tests := []struct {
		n    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{252, []byte{0xfc}},
		{253, []byte{0xfd, 0xfd, 0x00}},
		{0x10000, []byte{0xfe, 0x00, 0x00, 0x01, 0x00}},
		{0x100000000, []byte{0xff, 0, 0, 0, 0, 1, 0, 0, 0}},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		writeCompactSize(&buf, tt.n)
		assert.Equal(t, tt.want, buf.Bytes(), "n=%d", tt.n)
	}
}

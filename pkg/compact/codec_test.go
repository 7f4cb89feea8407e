package compact

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func sampleBlock(height uint64) *Block {
	return &Block{
		ProtoVersion: 1,
		Height:       height,
		Hash:         bytes.Repeat([]byte{0xaa}, 32),
		PrevHash:     bytes.Repeat([]byte{0xbb}, 32),
		Time:         1_591_609_525,
		Vtx: []Tx{
			{
				Index:  3,
				Hash:   bytes.Repeat([]byte{0x01}, 32),
				Spends: []Spend{{Nf: bytes.Repeat([]byte{0x02}, 32)}},
				Outputs: []Output{
					{
						Cmu:        bytes.Repeat([]byte{0x03}, 32),
						Epk:        bytes.Repeat([]byte{0x04}, 32),
						Ciphertext: bytes.Repeat([]byte{0x05}, 52),
					},
					{Cmu: []byte{0x06}},
				},
			},
			{Index: 4, Hash: bytes.Repeat([]byte{0x07}, 32)},
		},
	}
}

func TestBlockRoundTrip(t *testing.T) {
	b := sampleBlock(950_000)
	data := b.Marshal()

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, b, got)
	assert.Equal(t, data, got.Marshal())
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	data := sampleBlock(10).Marshal()
	data = protowire.AppendTag(data, 99, protowire.Fixed32Type)
	data = protowire.AppendFixed32(data, 7)
	data = protowire.AppendTag(data, 100, protowire.BytesType)
	data = protowire.AppendBytes(data, []byte("future"))

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.Height)
	assert.Len(t, got.Vtx, 2)
}

func TestUnmarshalRejectsTruncated(t *testing.T) {
	data := sampleBlock(10).Marshal()
	_, err := Unmarshal(data[:len(data)-3])
	assert.Error(t, err)
}

func TestStream(t *testing.T) {
	var buf bytes.Buffer
	for h := uint64(100); h < 103; h++ {
		require.NoError(t, WriteDelimited(&buf, sampleBlock(h)))
	}

	r := NewReader(&buf)
	for h := uint64(100); h < 103; h++ {
		b, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, h, b.Height)
	}
	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDelimited(&buf, sampleBlock(1)))
	data := buf.Bytes()

	_, err := NewReader(bytes.NewReader(data[:len(data)-1])).Next()
	assert.ErrorIs(t, err, ErrTruncated)
}

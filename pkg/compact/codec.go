package compact

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/suffix-labs/zcash-lightwallet/internal/wire"
)

// MaxBlockSize bounds a single length-delimited block in a stream.
const MaxBlockSize = 16 << 20

var ErrTruncated = errors.New("compact: truncated message")

// Marshal encodes b in field order, omitting zero-valued scalars.
func (b *Block) Marshal() []byte {
	var buf []byte
	if b.ProtoVersion != 0 {
		buf = protowire.AppendTag(buf, 1, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(b.ProtoVersion))
	}
	if b.Height != 0 {
		buf = protowire.AppendTag(buf, 2, protowire.VarintType)
		buf = protowire.AppendVarint(buf, b.Height)
	}
	buf = appendBytesField(buf, 3, b.Hash)
	buf = appendBytesField(buf, 4, b.PrevHash)
	if b.Time != 0 {
		buf = protowire.AppendTag(buf, 5, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(b.Time))
	}
	buf = appendBytesField(buf, 6, b.Header)
	for i := range b.Vtx {
		buf = protowire.AppendTag(buf, 7, protowire.BytesType)
		buf = protowire.AppendBytes(buf, b.Vtx[i].marshal())
	}
	return buf
}

func (tx *Tx) marshal() []byte {
	var buf []byte
	if tx.Index != 0 {
		buf = protowire.AppendTag(buf, 1, protowire.VarintType)
		buf = protowire.AppendVarint(buf, tx.Index)
	}
	buf = appendBytesField(buf, 2, tx.Hash)
	if tx.Fee != 0 {
		buf = protowire.AppendTag(buf, 3, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(tx.Fee))
	}
	for _, s := range tx.Spends {
		var sb []byte
		sb = appendBytesField(sb, 1, s.Nf)
		buf = protowire.AppendTag(buf, 4, protowire.BytesType)
		buf = protowire.AppendBytes(buf, sb)
	}
	for _, o := range tx.Outputs {
		var ob []byte
		ob = appendBytesField(ob, 1, o.Cmu)
		ob = appendBytesField(ob, 2, o.Epk)
		ob = appendBytesField(ob, 3, o.Ciphertext)
		buf = protowire.AppendTag(buf, 5, protowire.BytesType)
		buf = protowire.AppendBytes(buf, ob)
	}
	return buf
}

func appendBytesField(buf []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, v)
}

// Unmarshal decodes a compact block. Unknown fields are skipped.
func Unmarshal(data []byte) (*Block, error) {
	b := &Block{}
	err := wire.Walk(data, func(f *wire.Field) error {
		switch {
		case f.Is(1, protowire.VarintType):
			b.ProtoVersion = uint32(f.Varint)
		case f.Is(2, protowire.VarintType):
			b.Height = f.Varint
		case f.Is(3, protowire.BytesType):
			b.Hash = clone(f.Bytes)
		case f.Is(4, protowire.BytesType):
			b.PrevHash = clone(f.Bytes)
		case f.Is(5, protowire.VarintType):
			b.Time = uint32(f.Varint)
		case f.Is(6, protowire.BytesType):
			b.Header = clone(f.Bytes)
		case f.Is(7, protowire.BytesType):
			tx, err := unmarshalTx(f.Bytes)
			if err != nil {
				return fmt.Errorf("vtx[%d]: %w", len(b.Vtx), err)
			}
			b.Vtx = append(b.Vtx, *tx)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("compact block: %w", err)
	}
	return b, nil
}

func unmarshalTx(data []byte) (*Tx, error) {
	tx := &Tx{}
	err := wire.Walk(data, func(f *wire.Field) error {
		switch {
		case f.Is(1, protowire.VarintType):
			tx.Index = f.Varint
		case f.Is(2, protowire.BytesType):
			tx.Hash = clone(f.Bytes)
		case f.Is(3, protowire.VarintType):
			tx.Fee = uint32(f.Varint)
		case f.Is(4, protowire.BytesType):
			var s Spend
			err := wire.Walk(f.Bytes, func(f *wire.Field) error {
				if f.Is(1, protowire.BytesType) {
					s.Nf = clone(f.Bytes)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("spend[%d]: %w", len(tx.Spends), err)
			}
			tx.Spends = append(tx.Spends, s)
		case f.Is(5, protowire.BytesType):
			var o Output
			err := wire.Walk(f.Bytes, func(f *wire.Field) error {
				if f.Type != protowire.BytesType {
					return nil
				}
				switch f.Num {
				case 1:
					o.Cmu = clone(f.Bytes)
				case 2:
					o.Epk = clone(f.Bytes)
				case 3:
					o.Ciphertext = clone(f.Bytes)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("output[%d]: %w", len(tx.Outputs), err)
			}
			tx.Outputs = append(tx.Outputs, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

// WriteDelimited writes b prefixed by its varint length.
func WriteDelimited(w io.Writer, b *Block) error {
	msg := b.Marshal()
	buf := protowire.AppendVarint(nil, uint64(len(msg)))
	buf = append(buf, msg...)
	_, err := w.Write(buf)
	return err
}

// Reader reads a stream of length-delimited compact blocks.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next block, or io.EOF at a clean end of stream.
func (r *Reader) Next() (*Block, error) {
	size, err := readUvarint(r.r)
	if err != nil {
		return nil, err
	}
	if size > MaxBlockSize {
		return nil, fmt.Errorf("compact block of %d bytes exceeds limit", size)
	}
	msg := make([]byte, size)
	if _, err := io.ReadFull(r.r, msg); err != nil {
		return nil, ErrTruncated
	}
	return Unmarshal(msg)
}

func readUvarint(r io.ByteReader) (uint64, error) {
	var buf []byte
	for i := 0; i < protowire.SizeVarint(1<<63); i++ {
		c, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && i > 0 {
				return 0, ErrTruncated
			}
			return 0, err
		}
		buf = append(buf, c)
		if c < 0x80 {
			x, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			return x, nil
		}
	}
	return 0, fmt.Errorf("compact: varint overflow")
}

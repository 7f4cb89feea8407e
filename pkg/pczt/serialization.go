// Package pczt serialization implements the protobuf wire encoding of a
// document:
//
//	message PartiallyCreatedTransaction { Global global = 1; repeated Spend spends = 2; repeated Output outputs = 3; }
//	message Global { int64 valueBalance = 1; bytes bsk = 2; bytes bvk = 3; }
//	message Spend  { Key key = 1; bytes alpha = 2; bytes spendAuthSig = 3; }
//	message Key    { bytes masterFingerprint = 1; repeated uint32 derivationPath = 2; }
//	message Output { bytes cv = 1; bytes cmu = 2; bytes epk = 3; bytes encCiphertext = 4;
//	                 bytes outCiphertext = 5; bytes zkproof = 6; int64 value = 7; bytes rcv = 8; }
//
// Fields are written in number order and zero scalars are omitted, so
// parsing and re-serializing a document reproduces it byte for byte.
// Fixed-size fields must have their exact length. Unknown fields are kept
// verbatim and written back after the known fields of their message.
package pczt

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/suffix-labs/zcash-lightwallet/internal/wire"
)

// Serialize encodes a document.
func Serialize(p *PCZT) ([]byte, error) {
	var b []byte
	if p.Global != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeGlobal(p.Global))
	}
	for i := range p.Spends {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeSpend(&p.Spends[i]))
	}
	for i := range p.Outputs {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeOutput(&p.Outputs[i]))
	}
	return append(b, p.Unknown...), nil
}

func encodeGlobal(g *Global) []byte {
	var b []byte
	b = appendInt64(b, 1, g.ValueBalance)
	b = appendOptionalBytes(b, 2, g.Bsk)
	b = appendOptionalBytes(b, 3, g.Bvk)
	return append(b, g.Unknown...)
}

func encodeSpend(s *Spend) []byte {
	var key []byte
	key = appendFixed(key, 1, s.Key.MasterFingerprint[:])
	if len(s.Key.DerivationPath) > 0 {
		var packed []byte
		for _, idx := range s.Key.DerivationPath {
			packed = protowire.AppendVarint(packed, uint64(idx))
		}
		key = protowire.AppendTag(key, 2, protowire.BytesType)
		key = protowire.AppendBytes(key, packed)
	}
	key = append(key, s.Key.Unknown...)

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, key)
	b = appendOptionalBytes(b, 2, s.Alpha)
	b = appendOptionalBytes(b, 3, s.SpendAuthSig)
	return append(b, s.Unknown...)
}

func encodeOutput(o *Output) []byte {
	var b []byte
	b = appendFixed(b, 1, o.Cv[:])
	b = appendFixed(b, 2, o.Cmu[:])
	b = appendFixed(b, 3, o.Epk[:])
	b = appendOptionalBytes(b, 4, o.EncCiphertext)
	b = appendOptionalBytes(b, 5, o.OutCiphertext)
	b = appendFixed(b, 6, o.Zkproof[:])
	b = appendInt64(b, 7, o.Value)
	b = appendFixed(b, 8, o.Rcv[:])
	return append(b, o.Unknown...)
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendFixed(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendOptionalBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	return appendFixed(b, num, v)
}

// Parse decodes a document.
func Parse(data []byte) (*PCZT, error) {
	p := &PCZT{}
	err := wire.Walk(data, func(f *wire.Field) error {
		switch {
		case f.Is(1, protowire.BytesType):
			g, err := decodeGlobal(f.Bytes)
			if err != nil {
				return fmt.Errorf("global: %w", err)
			}
			p.Global = g
		case f.Is(2, protowire.BytesType):
			s, err := decodeSpend(f.Bytes)
			if err != nil {
				return fmt.Errorf("spend %d: %w", len(p.Spends), err)
			}
			p.Spends = append(p.Spends, *s)
		case f.Is(3, protowire.BytesType):
			o, err := decodeOutput(f.Bytes)
			if err != nil {
				return fmt.Errorf("output %d: %w", len(p.Outputs), err)
			}
			p.Outputs = append(p.Outputs, *o)
		default:
			p.Unknown = append(p.Unknown, f.Raw...)
		}
		return nil
	})
	if err != nil {
		return nil, &ParseError{Message: "malformed document", Cause: err}
	}
	return p, nil
}

func decodeGlobal(data []byte) (*Global, error) {
	g := &Global{}
	err := wire.Walk(data, func(f *wire.Field) error {
		switch {
		case f.Is(1, protowire.VarintType):
			g.ValueBalance = int64(f.Varint)
		case f.Is(2, protowire.BytesType):
			g.Bsk = cloneBytes(f.Bytes)
		case f.Is(3, protowire.BytesType):
			g.Bvk = cloneBytes(f.Bytes)
		default:
			g.Unknown = append(g.Unknown, f.Raw...)
		}
		return nil
	})
	return g, err
}

func decodeSpend(data []byte) (*Spend, error) {
	s := &Spend{}
	err := wire.Walk(data, func(f *wire.Field) error {
		switch {
		case f.Is(1, protowire.BytesType):
			return decodeKey(f.Bytes, &s.Key)
		case f.Is(2, protowire.BytesType):
			s.Alpha = cloneBytes(f.Bytes)
		case f.Is(3, protowire.BytesType):
			if len(f.Bytes) != 64 {
				return fmt.Errorf("spendAuthSig is %d bytes", len(f.Bytes))
			}
			s.SpendAuthSig = cloneBytes(f.Bytes)
		default:
			s.Unknown = append(s.Unknown, f.Raw...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func decodeKey(data []byte, k *Key) error {
	return wire.Walk(data, func(f *wire.Field) error {
		switch {
		case f.Is(1, protowire.BytesType):
			return copyFixed(k.MasterFingerprint[:], f.Bytes, "masterFingerprint")
		case f.Is(2, protowire.VarintType):
			k.DerivationPath = append(k.DerivationPath, uint32(f.Varint))
		case f.Is(2, protowire.BytesType):
			v := f.Bytes
			for len(v) > 0 {
				idx, n := protowire.ConsumeVarint(v)
				if n < 0 {
					return protowire.ParseError(n)
				}
				k.DerivationPath = append(k.DerivationPath, uint32(idx))
				v = v[n:]
			}
		default:
			k.Unknown = append(k.Unknown, f.Raw...)
		}
		return nil
	})
}

func decodeOutput(data []byte) (*Output, error) {
	o := &Output{}
	err := wire.Walk(data, func(f *wire.Field) error {
		switch {
		case f.Is(1, protowire.BytesType):
			return copyFixed(o.Cv[:], f.Bytes, "cv")
		case f.Is(2, protowire.BytesType):
			return copyFixed(o.Cmu[:], f.Bytes, "cmu")
		case f.Is(3, protowire.BytesType):
			return copyFixed(o.Epk[:], f.Bytes, "epk")
		case f.Is(4, protowire.BytesType):
			o.EncCiphertext = cloneBytes(f.Bytes)
		case f.Is(5, protowire.BytesType):
			o.OutCiphertext = cloneBytes(f.Bytes)
		case f.Is(6, protowire.BytesType):
			return copyFixed(o.Zkproof[:], f.Bytes, "zkproof")
		case f.Is(7, protowire.VarintType):
			o.Value = int64(f.Varint)
		case f.Is(8, protowire.BytesType):
			return copyFixed(o.Rcv[:], f.Bytes, "rcv")
		default:
			o.Unknown = append(o.Unknown, f.Raw...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func copyFixed(dst, v []byte, name string) error {
	if len(v) != len(dst) {
		return fmt.Errorf("%s is %d bytes, want %d", name, len(v), len(dst))
	}
	copy(dst, v)
	return nil
}

// Package wire walks protobuf messages one field at a time. It is shared
// by the hand-written codecs of compact blocks, PCZT documents and stored
// notes.
package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Field is one decoded field of a message.
type Field struct {
	Num  protowire.Number
	Type protowire.Type

	// Varint holds the value of a VarintType field.
	Varint uint64
	// Bytes holds the payload of a BytesType field. It aliases the input.
	Bytes []byte
	// Raw is the tag and value exactly as they appeared in the input.
	Raw []byte
}

// Walk calls fn for each field of data in order. It stops at the first
// malformed field or the first error returned by fn.
func Walk(data []byte, fn func(f *Field) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		m := protowire.ConsumeFieldValue(num, typ, data[n:])
		if m < 0 {
			return protowire.ParseError(m)
		}

		f := Field{Num: num, Type: typ, Raw: data[:n+m]}
		value := data[n : n+m]
		switch typ {
		case protowire.VarintType:
			f.Varint, _ = protowire.ConsumeVarint(value)
		case protowire.BytesType:
			f.Bytes, _ = protowire.ConsumeBytes(value)
		}
		data = data[n+m:]

		if err := fn(&f); err != nil {
			return err
		}
	}
	return nil
}

// Is reports whether f has the given number and wire type.
func (f *Field) Is(num protowire.Number, typ protowire.Type) bool {
	return f.Num == num && f.Type == typ
}

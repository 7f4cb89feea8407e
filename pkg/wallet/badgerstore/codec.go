package badgerstore

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/suffix-labs/zcash-lightwallet/internal/wire"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
	"github.com/suffix-labs/zcash-lightwallet/pkg/wallet"
)

// Received notes are stored as protobuf records:
//
//	message Note { bytes txid = 1; uint32 index = 2; uint32 account = 3; uint64 value = 4;
//	               bytes recipient = 5; bytes rcm = 6; uint64 position = 7; bytes nullifier = 8;
//	               uint64 height = 9; bool is_change = 10; bytes memo = 11; bytes spent_in = 12;
//	               bool locked = 13; }
func encodeNote(n *wallet.ReceivedNote) []byte {
	var b []byte
	addr := n.Note.Recipient.Bytes()

	b = appendBytes(b, 1, n.ID.TxID[:])
	b = appendVarint(b, 2, uint64(n.ID.Index))
	b = appendVarint(b, 3, uint64(n.Account))
	b = appendVarint(b, 4, n.Note.Value)
	b = appendBytes(b, 5, addr[:])
	b = appendBytes(b, 6, n.Note.Rcm[:])
	b = appendVarint(b, 7, n.Position)
	b = appendBytes(b, 8, n.Nullifier[:])
	b = appendVarint(b, 9, n.Height)
	b = appendVarint(b, 10, protowire.EncodeBool(n.IsChange))
	if n.Memo != nil {
		b = appendBytes(b, 11, n.Memo[:])
	}
	if n.SpentIn != nil {
		b = appendBytes(b, 12, n.SpentIn[:])
	}
	b = appendVarint(b, 13, protowire.EncodeBool(n.Locked))
	return b
}

func decodeNote(data []byte) (*wallet.ReceivedNote, error) {
	n := &wallet.ReceivedNote{}
	err := wire.Walk(data, func(f *wire.Field) error {
		switch f.Type {
		case protowire.VarintType:
			x := f.Varint
			switch f.Num {
			case 2:
				n.ID.Index = uint32(x)
			case 3:
				n.Account = uint32(x)
			case 4:
				n.Note.Value = x
			case 7:
				n.Position = x
			case 9:
				n.Height = x
			case 10:
				n.IsChange = protowire.DecodeBool(x)
			case 13:
				n.Locked = protowire.DecodeBool(x)
			}
		case protowire.BytesType:
			return setNoteBytes(n, f.Num, f.Bytes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func setNoteBytes(n *wallet.ReceivedNote, num protowire.Number, v []byte) error {
	want := map[protowire.Number]int{1: 32, 5: 43, 6: 32, 8: 32, 11: sapling.MemoSize, 12: 32}[num]
	if want == 0 {
		return nil
	}
	if len(v) != want {
		return fmt.Errorf("note field %d: got %d bytes, want %d", num, len(v), want)
	}
	switch num {
	case 1:
		copy(n.ID.TxID[:], v)
	case 5:
		addr, err := sapling.ParsePaymentAddress([43]byte(v))
		if err != nil {
			return fmt.Errorf("note recipient: %w", err)
		}
		n.Note.Recipient = addr
	case 6:
		copy(n.Note.Rcm[:], v)
	case 8:
		copy(n.Nullifier[:], v)
	case 11:
		var m sapling.Memo
		copy(m[:], v)
		n.Memo = &m
	case 12:
		var txid [32]byte
		copy(txid[:], v)
		n.SpentIn = &txid
	}
	return nil
}

func appendVarint(b []byte, num protowire.Number, x uint64) []byte {
	if x == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, x)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

package zip321

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
)

var testParams = sapling.NewParams()

func testAddress(t *testing.T, seedByte byte) sapling.PaymentAddress {
	t.Helper()
	master, err := sapling.MasterKey(bytes.Repeat([]byte{seedByte}, 32))
	require.NoError(t, err)
	_, addr := master.DerivePath(testParams, sapling.AccountPath(1, 0)).DefaultAddress(testParams)
	return addr
}

func TestParseSinglePayment(t *testing.T) {
	addr := testAddress(t, 1)
	uri := "zcash:" + EncodeAddress(&addr) + "?amount=1.5&memo=aGVsbG8&message=coffee%20money"

	req, err := Parse(uri)
	require.NoError(t, err)
	require.Len(t, req.Payments, 1)

	p := req.Payments[0]
	assert.True(t, p.Address.Equal(&addr))
	assert.Equal(t, int64(150_000_000), p.Amount)
	require.NotNil(t, p.Memo)
	assert.Equal(t, []byte("hello"), p.Memo[:5])
	assert.Equal(t, byte(0), p.Memo[5])
	assert.Equal(t, "coffee money", p.Message)
}

func TestParseMultiplePayments(t *testing.T) {
	a, b := testAddress(t, 1), testAddress(t, 2)
	uri := "zcash:?address.1=" + EncodeAddress(&b) + "&amount.1=0.00000001" +
		"&address=" + EncodeAddress(&a) + "&amount=2&label=rent"

	req, err := Parse(uri)
	require.NoError(t, err)
	require.Len(t, req.Payments, 2)
	assert.True(t, req.Payments[0].Address.Equal(&a))
	assert.Equal(t, int64(200_000_000), req.Payments[0].Amount)
	assert.Equal(t, "rent", req.Payments[0].Label)
	assert.True(t, req.Payments[1].Address.Equal(&b))
	assert.Equal(t, int64(1), req.Payments[1].Amount)
	assert.Equal(t, int64(200_000_001), req.Total())
}

func TestParseRejects(t *testing.T) {
	addr := testAddress(t, 1)
	enc := EncodeAddress(&addr)

	tests := []struct {
		name string
		uri  string
	}{
		{"no scheme", enc + "?amount=1"},
		{"no payments", "zcash:"},
		{"missing amount", "zcash:" + enc},
		{"missing address", "zcash:?amount=1"},
		{"bad hex address", "zcash:zz?amount=1"},
		{"short address", "zcash:" + enc[:80] + "?amount=1"},
		{"negative amount", "zcash:" + enc + "?amount=-1"},
		{"too many decimals", "zcash:" + enc + "?amount=0.000000001"},
		{"above max money", "zcash:" + enc + "?amount=21000000.00000001"},
		{"duplicate param", "zcash:" + enc + "?amount=1&amount=2"},
		{"address twice", "zcash:" + enc + "?address=" + enc + "&amount=1"},
		{"index zero", "zcash:?address.0=" + enc + "&amount.0=1"},
		{"leading zero index", "zcash:?address.01=" + enc + "&amount.01=1"},
		{"required param", "zcash:" + enc + "?amount=1&req-future=1"},
		{"bad memo", "zcash:" + enc + "?amount=1&memo=%%%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.uri)
			assert.Error(t, err)
		})
	}
}

func TestParseIgnoresOptionalUnknownParams(t *testing.T) {
	addr := testAddress(t, 1)
	req, err := Parse("zcash:" + EncodeAddress(&addr) + "?amount=1&future=x")
	require.NoError(t, err)
	assert.Len(t, req.Payments, 1)
}

func TestAmounts(t *testing.T) {
	tests := []struct {
		s string
		z int64
	}{
		{"0", 0},
		{"1", 100_000_000},
		{"0.5", 50_000_000},
		{"0.00000001", 1},
		{"21000000", sapling.MaxMoney},
	}
	for _, tt := range tests {
		z, err := ParseAmount(tt.s)
		require.NoError(t, err, tt.s)
		assert.Equal(t, tt.z, z, tt.s)
		assert.Equal(t, tt.s, FormatAmount(tt.z))
	}

	for _, bad := range []string{"", ".5", "1.", "1e8", "0x10", "1,5"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidRequest, bad)
	}
}

func TestEncodeParses(t *testing.T) {
	a, b := testAddress(t, 1), testAddress(t, 2)
	memo := sapling.EmptyMemo()
	req := &PaymentRequest{Payments: []Payment{
		{Address: a, Amount: 12_345, Memo: &memo, Message: "a&b"},
		{Address: b, Amount: 100_000_000},
	}}

	got, err := Parse(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

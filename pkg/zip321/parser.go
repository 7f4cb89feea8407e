// Package zip321 implements the ZIP 321 payment request URI format for
// Sapling recipients.
//
// URI Format:
//
//	zcash:<address>?amount=<amount>&memo=<memo>&message=<message>
//
// Multiple recipients are supported with indexed parameters:
//
//	zcash:?address=<addr0>&amount=<amt0>&address.1=<addr1>&amount.1=<amt1>
//
// Addresses are the raw 43-byte Sapling encoding in hex; human-readable
// address encodings are left to the caller. Amounts are decimal ZEC with at
// most 8 fractional digits and are converted to zatoshis exactly. Memos are
// base64url without padding.
//
// See: https://zips.z.cash/zip-0321
package zip321

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
)

// ErrInvalidRequest is wrapped by every parse error.
var ErrInvalidRequest = errors.New("zip321: invalid payment request")

const (
	scheme        = "zcash:"
	coin          = 100_000_000
	maxParamIndex = 9999
)

// PaymentRequest represents a parsed ZIP 321 payment request.
type PaymentRequest struct {
	Payments []Payment // Ordered by parameter index
}

// Payment represents a single payment within a request.
type Payment struct {
	Address sapling.PaymentAddress
	Amount  int64         // Zatoshis
	Memo    *sapling.Memo // nil when absent
	Label   string
	Message string
}

// Total returns the sum of all payment amounts.
func (r *PaymentRequest) Total() int64 {
	var total int64
	for _, p := range r.Payments {
		total += p.Amount
	}
	return total
}

// Parse parses a ZIP 321 payment request URI.
//
// URI formats supported:
//  1. Single recipient: zcash:<address>?amount=1.5&memo=aGk
//  2. Multiple recipients: zcash:?address=a0&amount=1&address.1=a1&amount.1=2
//
// Every payment must carry an address and an amount. Unknown parameters
// starting with "req-" make the request invalid; other unknown parameters
// are ignored.
func Parse(uri string) (*PaymentRequest, error) {
	if !strings.HasPrefix(uri, scheme) {
		return nil, invalid("missing %q scheme", scheme)
	}
	rest := strings.TrimPrefix(uri, scheme)

	baseAddress, query, _ := strings.Cut(rest, "?")

	fields, err := parseQuery(query)
	if err != nil {
		return nil, err
	}
	if baseAddress != "" {
		if _, dup := fields[0]["address"]; dup {
			return nil, invalid("address given twice for payment 0")
		}
		if fields[0] == nil {
			fields[0] = make(map[string]string)
		}
		fields[0]["address"] = baseAddress
	}
	if len(fields) == 0 {
		return nil, invalid("no payments")
	}

	indices := make([]int, 0, len(fields))
	for idx := range fields {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	req := &PaymentRequest{Payments: make([]Payment, 0, len(indices))}
	for _, idx := range indices {
		p, err := parsePayment(fields[idx])
		if err != nil {
			return nil, fmt.Errorf("payment %d: %w", idx, err)
		}
		req.Payments = append(req.Payments, p)
	}
	if req.Total() > sapling.MaxMoney {
		return nil, invalid("total exceeds maximum money")
	}
	return req, nil
}

// parseQuery groups parameters by payment index.
func parseQuery(query string) (map[int]map[string]string, error) {
	fields := make(map[int]map[string]string)
	if query == "" {
		return fields, nil
	}
	for _, pair := range strings.Split(query, "&") {
		rawKey, rawValue, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, invalid("parameter %q has no value", pair)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, invalid("parameter %q: %v", rawKey, err)
		}
		name, idx, err := splitIndex(rawKey)
		if err != nil {
			return nil, err
		}
		switch name {
		case "address", "amount", "memo", "label", "message":
		default:
			if strings.HasPrefix(name, "req-") {
				return nil, invalid("unsupported required parameter %q", name)
			}
			continue
		}
		if fields[idx] == nil {
			fields[idx] = make(map[string]string)
		}
		if _, dup := fields[idx][name]; dup {
			return nil, invalid("duplicate parameter %q", rawKey)
		}
		fields[idx][name] = value
	}
	return fields, nil
}

// splitIndex splits "name.N" into its name and index. A bare name is index
// 0; "name.0" and leading zeros are rejected.
func splitIndex(key string) (string, int, error) {
	name, suffix, ok := strings.Cut(key, ".")
	if !ok {
		return key, 0, nil
	}
	if suffix == "" || suffix[0] == '0' {
		return "", 0, invalid("bad parameter index in %q", key)
	}
	idx, err := strconv.Atoi(suffix)
	if err != nil || idx < 1 || idx > maxParamIndex {
		return "", 0, invalid("bad parameter index in %q", key)
	}
	return name, idx, nil
}

func parsePayment(f map[string]string) (Payment, error) {
	var p Payment

	addr, ok := f["address"]
	if !ok {
		return p, invalid("missing address")
	}
	to, err := ParseAddress(addr)
	if err != nil {
		return p, err
	}
	p.Address = to

	amount, ok := f["amount"]
	if !ok {
		return p, invalid("missing amount")
	}
	if p.Amount, err = ParseAmount(amount); err != nil {
		return p, err
	}

	if m, ok := f["memo"]; ok {
		memo, err := decodeMemo(m)
		if err != nil {
			return p, err
		}
		p.Memo = memo
	}
	p.Label = f["label"]
	p.Message = f["message"]
	return p, nil
}

// ParseAddress decodes a hex-encoded raw Sapling payment address.
func ParseAddress(s string) (sapling.PaymentAddress, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 43 {
		return sapling.PaymentAddress{}, invalid("address is not 43 hex-encoded bytes")
	}
	addr, err := sapling.ParsePaymentAddress([43]byte(raw))
	if err != nil {
		return sapling.PaymentAddress{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return addr, nil
}

// EncodeAddress returns the hex encoding of a raw Sapling payment address.
func EncodeAddress(a *sapling.PaymentAddress) string {
	b := a.Bytes()
	return hex.EncodeToString(b[:])
}

// ParseAmount parses a decimal ZEC amount into zatoshis.
//
// Valid formats:
//   - "1.5" (decimal ZEC)
//   - "0.00000001" (one zatoshi)
//   - "1000" (whole ZEC)
func ParseAmount(s string) (int64, error) {
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || (hasFrac && frac == "") || len(frac) > 8 {
		return 0, invalid("bad amount %q", s)
	}
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return 0, invalid("bad amount %q", s)
		}
	}
	if len(whole) > 8 {
		return 0, invalid("amount %q exceeds maximum money", s)
	}

	w, _ := strconv.ParseInt(whole, 10, 64)
	frac += strings.Repeat("0", 8-len(frac))
	f, _ := strconv.ParseInt(frac, 10, 64)

	z := w*coin + f
	if z > sapling.MaxMoney {
		return 0, invalid("amount %q exceeds maximum money", s)
	}
	return z, nil
}

// FormatAmount formats zatoshis as a decimal ZEC amount without trailing
// zeros.
func FormatAmount(z int64) string {
	s := fmt.Sprintf("%d.%08d", z/coin, z%coin)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func decodeMemo(s string) (*sapling.Memo, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, invalid("memo is not base64url: %v", err)
	}
	if len(raw) > sapling.MemoSize {
		return nil, invalid("memo is %d bytes, limit is %d", len(raw), sapling.MemoSize)
	}
	if len(raw) == 0 {
		memo := sapling.EmptyMemo()
		return &memo, nil
	}
	var memo sapling.Memo
	copy(memo[:], raw)
	return &memo, nil
}

func encodeMemo(m *sapling.Memo) string {
	b := m[:]
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return base64.RawURLEncoding.EncodeToString(b[:end])
}

// Encode creates a ZIP 321 URI from a PaymentRequest. A single payment
// uses the address-in-path form.
func (r *PaymentRequest) Encode() string {
	if len(r.Payments) == 1 {
		p := &r.Payments[0]
		uri := scheme + EncodeAddress(&p.Address)
		if q := encodeParams(p, ""); q != "" {
			uri += "?" + q
		}
		return uri
	}

	parts := make([]string, 0, len(r.Payments))
	for i := range r.Payments {
		suffix := ""
		if i > 0 {
			suffix = "." + strconv.Itoa(i)
		}
		p := &r.Payments[i]
		part := "address" + suffix + "=" + EncodeAddress(&p.Address)
		if q := encodeParams(p, suffix); q != "" {
			part += "&" + q
		}
		parts = append(parts, part)
	}
	return scheme + "?" + strings.Join(parts, "&")
}

func encodeParams(p *Payment, suffix string) string {
	params := []string{"amount" + suffix + "=" + FormatAmount(p.Amount)}
	if p.Memo != nil {
		params = append(params, "memo"+suffix+"="+encodeMemo(p.Memo))
	}
	if p.Label != "" {
		params = append(params, "label"+suffix+"="+url.QueryEscape(p.Label))
	}
	if p.Message != "" {
		params = append(params, "message"+suffix+"="+url.QueryEscape(p.Message))
	}
	return strings.Join(params, "&")
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

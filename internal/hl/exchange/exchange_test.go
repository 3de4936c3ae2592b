package exchange

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"
)

func TestFloatToWire(t *testing.T) {
	cases := []struct {
		in  float64
		out string
	}{
		{in: 1.23, out: "1.23"},
		{in: 0, out: "0"},
		{in: math.Copysign(0, -1), out: "0"},
		{in: 1.23000000, out: "1.23"},
	}
	for _, tc := range cases {
		got, err := floatToWire(tc.in)
		if err != nil {
			t.Fatalf("unexpected error for %f: %v", tc.in, err)
		}
		if got != tc.out {
			t.Fatalf("expected %s, got %s", tc.out, got)
		}
	}
	if _, err := floatToWire(1.234567891); err == nil {
		t.Fatalf("expected rounding error")
	}
}

func TestEncodeOrderActionDeterministic(t *testing.T) {
	order, err := LimitOrderWire(1, true, 2.5, 100.0, false, TifIoc, "")
	if err != nil {
		t.Fatalf("unexpected order wire error: %v", err)
	}
	action := OrderAction{Type: "order", Orders: []OrderWire{order}, Grouping: "na"}
	b1, err := EncodeOrderAction(action)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	b2, err := EncodeOrderAction(action)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("expected deterministic encoding")
	}
	var decoded map[string]any
	if err := msgpack.Unmarshal(b1, &decoded); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if decoded["type"] != "order" {
		t.Fatalf("unexpected action type")
	}
	orders, ok := decoded["orders"].([]any)
	if !ok || len(orders) != 1 {
		t.Fatalf("expected 1 order")
	}
	orderMap, ok := orders[0].(map[string]any)
	if !ok {
		t.Fatalf("expected order map")
	}
	if orderMap["p"] != "100" {
		t.Fatalf("expected price 100, got %v", orderMap["p"])
	}
	if orderMap["s"] != "2.5" {
		t.Fatalf("expected size 2.5, got %v", orderMap["s"])
	}
}

func TestSignerRecover(t *testing.T) {
	signer, err := NewSigner("4f3edf983ac636a65a842ce7c78d9aa706d3b113bce036f81af8f9b72d3d80b2", true)
	if err != nil {
		t.Fatalf("signer error: %v", err)
	}
	order, err := LimitOrderWire(1, true, 2.5, 100.0, false, TifIoc, "")
	if err != nil {
		t.Fatalf("order wire error: %v", err)
	}
	action := OrderAction{Type: "order", Orders: []OrderWire{order}, Grouping: "na"}
	nonce := uint64(1700000000000)
	sig, err := signer.SignOrderAction(action, nonce, nil, nil)
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	payload, err := EncodeOrderAction(action)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	aHash := actionHash(payload, nonce, nil, nil)
	digest, err := typedDataHash(aHash, true)
	if err != nil {
		t.Fatalf("digest error: %v", err)
	}
	sigBytes, err := signatureBytes(sig)
	if err != nil {
		t.Fatalf("signature bytes error: %v", err)
	}
	pubKey, err := crypto.SigToPub(digest, sigBytes)
	if err != nil {
		t.Fatalf("recover error: %v", err)
	}
	recovered := crypto.PubkeyToAddress(*pubKey)
	if recovered != signer.Address() {
		t.Fatalf("expected %s, got %s", signer.Address().Hex(), recovered.Hex())
	}
}

func TestEncodeUpdateIsolatedMarginOrder(t *testing.T) {
	action := UpdateIsolatedMarginAction{Type: "updateIsolatedMargin", Asset: 3, IsBuy: true, Ntli: -5000000}
	payload, err := EncodeUpdateIsolatedMarginAction(action)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	n, err := dec.DecodeMapLen()
	if err != nil || n != 4 {
		t.Fatalf("expected map of 4, got %d (%v)", n, err)
	}
	var keys []string
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			t.Fatalf("decode key: %v", err)
		}
		keys = append(keys, key)
		if _, err := dec.DecodeInterface(); err != nil {
			t.Fatalf("decode value: %v", err)
		}
	}
	want := []string{"type", "asset", "isBuy", "ntli"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected key order %v, got %v", want, keys)
		}
	}
	if _, err := EncodeUpdateIsolatedMarginAction(UpdateIsolatedMarginAction{Type: "updateIsolatedMargin"}); err == nil {
		t.Fatalf("expected error for zero ntli")
	}
}

func TestSignUpdateIsolatedMarginRecover(t *testing.T) {
	signer, err := NewSigner("0x4f3edf983ac636a65a842ce7c78d9aa706d3b113bce036f81af8f9b72d3d80b2", false)
	if err != nil {
		t.Fatalf("signer error: %v", err)
	}
	action := UpdateIsolatedMarginAction{Type: "updateIsolatedMargin", Asset: 1, IsBuy: true, Ntli: 1000000}
	nonce := uint64(1700000000001)
	sig, err := signer.SignUpdateIsolatedMargin(action, nonce, nil, nil)
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	payload, err := EncodeUpdateIsolatedMarginAction(action)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	digest, err := typedDataHash(actionHash(payload, nonce, nil, nil), false)
	if err != nil {
		t.Fatalf("digest error: %v", err)
	}
	sigBytes, err := signatureBytes(sig)
	if err != nil {
		t.Fatalf("signature bytes error: %v", err)
	}
	pubKey, err := crypto.SigToPub(digest, sigBytes)
	if err != nil {
		t.Fatalf("recover error: %v", err)
	}
	if crypto.PubkeyToAddress(*pubKey) != signer.Address() {
		t.Fatalf("recovered address mismatch")
	}
}

func TestMarketPrice(t *testing.T) {
	cases := []struct {
		mark       float64
		slippage   float64
		isBuy      bool
		szDecimals int
		want       float64
	}{
		{mark: 2000, slippage: 0.05, isBuy: true, szDecimals: 4, want: 2100},
		{mark: 2000, slippage: 0.05, isBuy: false, szDecimals: 4, want: 1900},
		{mark: 1.234567, slippage: 0, isBuy: true, szDecimals: 1, want: 1.2346},
		{mark: 65432.1, slippage: 0.01, isBuy: false, szDecimals: 5, want: 64778},
		{mark: 0.0123456, slippage: 0, isBuy: true, szDecimals: 0, want: 0.012346},
	}
	for _, tc := range cases {
		got := MarketPrice(tc.mark, tc.slippage, tc.isBuy, tc.szDecimals)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("MarketPrice(%v, %v, %v, %d) = %v, want %v", tc.mark, tc.slippage, tc.isBuy, tc.szDecimals, got, tc.want)
		}
		if _, err := floatToWire(got); err != nil {
			t.Fatalf("price %v not wire safe: %v", got, err)
		}
	}
}

func TestRoundSizeTruncates(t *testing.T) {
	if got := RoundSize(0.99699, 2); got != 0.99 {
		t.Fatalf("expected 0.99, got %v", got)
	}
	if got := RoundSize(12.9, 0); got != 12 {
		t.Fatalf("expected 12, got %v", got)
	}
	if got := RoundSize(1.0, 4); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
}

func TestRoundingRejectsNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := RoundSize(v, 3); got != 0 {
			t.Fatalf("expected 0 size for %v, got %v", v, got)
		}
		if got := MarketPrice(v, 0.05, true, 2); got != 0 {
			t.Fatalf("expected 0 price for %v, got %v", v, got)
		}
	}
}

func TestMarginNtli(t *testing.T) {
	if got := MarginNtli(166, true); got != 166000000 {
		t.Fatalf("expected 166000000, got %d", got)
	}
	if got := MarginNtli(12.3456789, false); got != -12345678 {
		t.Fatalf("expected -12345678, got %d", got)
	}
}

func TestNewCloid(t *testing.T) {
	a := NewCloid()
	b := NewCloid()
	if len(a) != 34 || a[:2] != "0x" {
		t.Fatalf("unexpected cloid %q", a)
	}
	if a == b {
		t.Fatalf("expected unique cloids")
	}
}

func signatureBytes(sig Signature) ([]byte, error) {
	r, err := hexutil.Decode(sig.R)
	if err != nil {
		return nil, err
	}
	s, err := hexutil.Decode(sig.S)
	if err != nil {
		return nil, err
	}
	if len(r) != 32 || len(s) != 32 {
		return nil, errUnexpectedSigLen
	}
	v := sig.V - 27
	if v < 0 || v > 1 {
		return nil, errUnexpectedSigV
	}
	out := append(append([]byte{}, r...), s...)
	out = append(out, byte(v))
	return out, nil
}

var errUnexpectedSigLen = errors.New("unexpected signature length")
var errUnexpectedSigV = errors.New("unexpected signature v")

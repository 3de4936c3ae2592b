package exchange

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	maxPerpDecimals = 6
	priceSigFigs    = 5
	usdcMicros      = 1_000_000
)

func LimitOrderWire(asset int, isBuy bool, size, limit float64, reduceOnly bool, tif Tif, cloid string) (OrderWire, error) {
	if tif == "" {
		return OrderWire{}, errors.New("tif is required")
	}
	price, err := floatToWire(limit)
	if err != nil {
		return OrderWire{}, fmt.Errorf("limit price: %w", err)
	}
	sizeWire, err := floatToWire(size)
	if err != nil {
		return OrderWire{}, fmt.Errorf("size: %w", err)
	}
	return OrderWire{
		Asset:      asset,
		IsBuy:      isBuy,
		Price:      price,
		Size:       sizeWire,
		ReduceOnly: reduceOnly,
		OrderType:  OrderTypeWire{Limit: &LimitOrderType{Tif: tif}},
		Cloid:      cloid,
	}, nil
}

// MarketPrice is the aggressive IOC limit used to emulate a market order:
// mark moved by slippage against us, then rounded to 5 significant figures
// and at most 6-szDecimals decimals.
func MarketPrice(mark, slippage float64, isBuy bool, szDecimals int) float64 {
	if math.IsNaN(mark) || math.IsInf(mark, 0) {
		return 0
	}
	px := mark * (1 - slippage)
	if isBuy {
		px = mark * (1 + slippage)
	}
	px, _ = strconv.ParseFloat(strconv.FormatFloat(px, 'g', priceSigFigs, 64), 64)
	decimals := maxPerpDecimals - szDecimals
	if decimals < 0 {
		decimals = 0
	}
	return decimal.NewFromFloat(px).Round(int32(decimals)).InexactFloat64()
}

// RoundSize truncates size to the asset's size decimals so orders never
// exceed the requested amount. Non-finite sizes round to zero.
func RoundSize(size float64, szDecimals int) float64 {
	if math.IsNaN(size) || math.IsInf(size, 0) {
		return 0
	}
	if szDecimals < 0 {
		szDecimals = 0
	}
	return decimal.NewFromFloat(size).Truncate(int32(szDecimals)).InexactFloat64()
}

// MarginNtli converts a USDC amount into the signed micro-USDC integer of an
// updateIsolatedMargin action.
func MarginNtli(amount float64, add bool) int64 {
	ntli := decimal.NewFromFloat(math.Abs(amount)).Mul(decimal.NewFromInt(usdcMicros)).Truncate(0).IntPart()
	if !add {
		return -ntli
	}
	return ntli
}

// NewCloid returns a random 128-bit client order id.
func NewCloid() string {
	id := uuid.New()
	return "0x" + hex.EncodeToString(id[:])
}

func floatToWire(x float64) (string, error) {
	rounded := fmt.Sprintf("%.8f", x)
	parsed, err := strconv.ParseFloat(rounded, 64)
	if err != nil {
		return "", err
	}
	if math.Abs(parsed-x) >= 1e-12 {
		return "", fmt.Errorf("float_to_wire causes rounding: %f", x)
	}
	trimmed := strings.TrimRight(rounded, "0")
	trimmed = strings.TrimRight(trimmed, ".")
	if trimmed == "" || trimmed == "-0" {
		trimmed = "0"
	}
	return trimmed, nil
}

package vault

import (
	"math/big"
	"regexp"

	"github.com/shopspring/decimal"
)

// marginScale keeps four decimals of the position margin.
const marginScale = 10000

var shareSymbolPrefix = regexp.MustCompile(`^s\dx`)

// AssetsInUse converts a margin amount into the vault asset's base units:
// floor(margin*10^4) * 10^decimals / 10^4, in integer arithmetic.
func AssetsInUse(margin float64, decimals uint8) *big.Int {
	scaled := decimal.NewFromFloat(margin).Mul(decimal.NewFromInt(marginScale)).Floor().BigInt()
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	amount := new(big.Int).Mul(scaled, unit)
	return amount.Quo(amount, big.NewInt(marginScale))
}

// StripShareSymbol turns a vault share symbol such as "s2xETH" into the
// underlying asset symbol.
func StripShareSymbol(symbol string) string {
	return shareSymbolPrefix.ReplaceAllString(symbol, "")
}

package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssetsInUse(t *testing.T) {
	cases := []struct {
		name     string
		margin   float64
		decimals uint8
		want     string
	}{
		{name: "four decimals", margin: 12.3456, decimals: 6, want: "12345600"},
		{name: "fifth decimal dropped", margin: 12.34565, decimals: 6, want: "12345600"},
		{name: "whole", margin: 1000, decimals: 18, want: "1000000000000000000000"},
		{name: "fewer decimals than scale", margin: 1.23456, decimals: 2, want: "123"},
		{name: "zero decimals", margin: 99.9999, decimals: 0, want: "99"},
		{name: "zero margin", margin: 0, decimals: 6, want: "0"},
		{name: "decimal form floored not binary product", margin: 0.57, decimals: 4, want: "5700"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AssetsInUse(tc.margin, tc.decimals).String())
		})
	}
}

func TestStripShareSymbol(t *testing.T) {
	assert.Equal(t, "ETH", StripShareSymbol("s2xETH"))
	assert.Equal(t, "BTC", StripShareSymbol("s3xBTC"))
	assert.Equal(t, "BTC", StripShareSymbol("BTC"))
	assert.Equal(t, "sETH", StripShareSymbol("sETH"))
	assert.Equal(t, "ETHs2x", StripShareSymbol("ETHs2x"))
}

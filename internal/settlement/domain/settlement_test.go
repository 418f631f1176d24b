package domain

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *TokenRegistry {
	return NewTokenRegistry(map[string]Token{
		"btc":  {Address: "0x29f2D40B0605204364af54EC677bD022dA425d03", Decimals: 8},
		"USDT": {Address: "0xaA8E23Fb1079EA71e0a56F48a2aA51851D8433D0", Decimals: 6},
	})
}

func TestRegistryResolvesSymbol(t *testing.T) {
	base, quote, err := testRegistry().Resolve("BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, int32(8), base.Decimals)
	assert.Equal(t, int32(6), quote.Decimals)
	assert.Equal(t, "0x29f2D40B0605204364af54EC677bD022dA425d03", base.Address)
}

func TestRegistryResolveIsCaseInsensitive(t *testing.T) {
	base, quote, err := testRegistry().Resolve("btc/usdt")
	require.NoError(t, err)
	assert.Equal(t, int32(8), base.Decimals)
	assert.Equal(t, int32(6), quote.Decimals)
}

func TestRegistryResolveRejectsBadSymbol(t *testing.T) {
	_, _, err := testRegistry().Resolve("BTCUSDT")
	assert.Error(t, err)

	_, _, err = testRegistry().Resolve("BTC/DOGE")
	assert.Error(t, err)
}

func TestToUnits(t *testing.T) {
	cases := []struct {
		amount   string
		decimals int32
		want     string
	}{
		{"1", 6, "1000000"},
		{"1.5", 6, "1500000"},
		{"0.00000001", 8, "1"},
		{"2.5", 0, "2"},
		// 超出精度的位截断
		{"1.0000019", 6, "1000001"},
		{"0", 18, "0"},
	}

	for _, tc := range cases {
		got := ToUnits(decimal.RequireFromString(tc.amount), tc.decimals)
		want, ok := new(big.Int).SetString(tc.want, 10)
		require.True(t, ok)
		assert.Zero(t, got.Cmp(want), "ToUnits(%s, %d) = %s, want %s", tc.amount, tc.decimals, got, tc.want)
	}
}

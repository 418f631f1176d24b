package chain

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementABIParses(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(settlementABI))
	require.NoError(t, err)

	method, ok := parsed.Methods["settleTrade"]
	require.True(t, ok)
	assert.Len(t, method.Inputs, 6)
}

func TestSettleTradeCalldata(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(settlementABI))
	require.NoError(t, err)

	tokenSold := common.HexToAddress("0x29f2D40B0605204364af54EC677bD022dA425d03")
	tokenBought := common.HexToAddress("0xaA8E23Fb1079EA71e0a56F48a2aA51851D8433D0")
	seller := common.HexToAddress("0x0000000000000000000000000000000000000002")
	buyer := common.HexToAddress("0x0000000000000000000000000000000000000003")

	calldata, err := parsed.Pack("settleTrade",
		tokenSold, tokenBought, seller, buyer,
		big.NewInt(150000000), big.NewInt(1500000),
	)
	require.NoError(t, err)

	// 4 字节 selector + 6 个 32 字节参数
	require.Len(t, calldata, 4+6*32)

	selector := crypto.Keccak256([]byte("settleTrade(address,address,address,address,uint256,uint256)"))[:4]
	assert.Equal(t, selector, calldata[:4])

	args, err := parsed.Methods["settleTrade"].Inputs.Unpack(calldata[4:])
	require.NoError(t, err)
	assert.Equal(t, tokenSold, args[0])
	assert.Equal(t, seller, args[2])
	assert.Equal(t, big.NewInt(150000000), args[4])
	assert.Equal(t, big.NewInt(1500000), args[5])
}

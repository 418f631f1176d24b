// Package domain 链上结算的领域模型：交易对到 token 的解析与金额换算
package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Token 单个 ERC-20 token 的链上信息
type Token struct {
	// Address 合约地址 (hex)
	Address string
	// Decimals 小数位数
	Decimals int32
}

// TokenRegistry 交易对符号到链上 token 的静态映射。
// 符号的规范形式为 BASE/QUOTE，如 BTC/USDT。
type TokenRegistry struct {
	tokens map[string]Token
}

// NewTokenRegistry 构造函数，key 为 token 符号 (BTC, USDT, ...)
func NewTokenRegistry(tokens map[string]Token) *TokenRegistry {
	normalized := make(map[string]Token, len(tokens))
	for symbol, token := range tokens {
		normalized[strings.ToUpper(symbol)] = token
	}
	return &TokenRegistry{tokens: normalized}
}

// Resolve 将交易对符号解析为 (base, quote) token
func (r *TokenRegistry) Resolve(symbol string) (Token, Token, error) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok {
		return Token{}, Token{}, fmt.Errorf("symbol %q is not of the form BASE/QUOTE", symbol)
	}

	baseToken, ok := r.tokens[strings.ToUpper(base)]
	if !ok {
		return Token{}, Token{}, fmt.Errorf("no token address configured for %q", base)
	}
	quoteToken, ok := r.tokens[strings.ToUpper(quote)]
	if !ok {
		return Token{}, Token{}, fmt.Errorf("no token address configured for %q", quote)
	}

	return baseToken, quoteToken, nil
}

// ToUnits 将十进制数量换算为 token 最小单位的整数。
// 超出精度的位截断。
func ToUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

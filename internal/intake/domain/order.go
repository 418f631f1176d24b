// Package domain 订单接入的领域模型：请求校验与签名验证
package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	matching "github.com/wyfcoding/onchainexchange/internal/matchingengine/domain"
)

// 仓储层哨兵错误
var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrInvalidOrderID = errors.New("invalid order id")
)

// OrderRequest 客户端提交的签名订单。
// 字段与订单队列上的消息体一一对应。
type OrderRequest struct {
	Symbol    string          `json:"symbol" binding:"required"`
	Side      string          `json:"side" binding:"required"`
	Type      string          `json:"type" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Address   string          `json:"address" binding:"required"`
	Signature string          `json:"signature" binding:"required"`
}

// Validate 业务校验。签名验证单独进行。
func (r *OrderRequest) Validate() error {
	switch matching.OrderSide(r.Side) {
	case matching.SideBuy, matching.SideSell:
	default:
		return fmt.Errorf("side must be buy or sell")
	}

	switch matching.OrderType(r.Type) {
	case matching.TypeLimit:
		if !r.Price.IsPositive() {
			return fmt.Errorf("price must be provided for a limit order")
		}
	case matching.TypeMarket:
	default:
		return fmt.Errorf("type must be limit or market")
	}

	if !r.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive")
	}
	return nil
}

// SignedMessage 还原前端钱包签名的确认文案。
// 格式必须与前端逐字节一致，否则恢复出的地址不会匹配。
func (r *OrderRequest) SignedMessage() string {
	quantity, _ := r.Quantity.Float64()
	priceStr := "Market"
	if matching.OrderType(r.Type) == matching.TypeLimit {
		price, _ := r.Price.Float64()
		priceStr = fmt.Sprintf("$%.2f", price)
	}
	return fmt.Sprintf("Confirm Order:\n\nAction: %s\nQuantity: %.6f\nSymbol: %s\nPrice: %s",
		strings.ToUpper(r.Side), quantity, r.Symbol, priceStr)
}

// VerifySignature 校验 EIP-191 personal_sign 签名并比对恢复出的地址
func (r *OrderRequest) VerifySignature() error {
	signature, err := hexutil.Decode(r.Signature)
	if err != nil {
		return fmt.Errorf("signature is not valid hex: %w", err)
	}
	if len(signature) != 65 {
		return fmt.Errorf("signature must be 65 bytes, got %d", len(signature))
	}

	// 钱包生成的 v 为 27/28，恢复前归一化为 0/1
	if signature[64] >= 27 {
		signature[64] -= 27
	}

	message := r.SignedMessage()
	digest := crypto.Keccak256(
		[]byte("\x19Ethereum Signed Message:\n" + strconv.Itoa(len(message)) + message),
	)

	pubKey, err := crypto.SigToPub(digest, signature)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %w", err)
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	if !strings.EqualFold(recovered.Hex(), r.Address) {
		return fmt.Errorf("signature does not match the provided address")
	}
	return nil
}

// OrderReader 接入侧对订单存储的只读与撤单操作
type OrderReader interface {
	// ListOrders 返回最多 limit 条订单
	ListOrders(ctx context.Context, limit int64) ([]*matching.Order, error)
	// CancelOrder 删除指定订单；不存在返回 ErrOrderNotFound
	CancelOrder(ctx context.Context, orderID string) error
}

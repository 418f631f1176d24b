// Package chain go-ethereum 实现的结算客户端
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/onchainexchange/internal/settlement/domain"
)

// settlementABI Settlement 合约的 settleTrade 函数签名
const settlementABI = `[{"inputs":[{"internalType":"address","name":"tokenSold","type":"address"},{"internalType":"address","name":"tokenBought","type":"address"},{"internalType":"address","name":"seller","type":"address"},{"internalType":"address","name":"buyer","type":"address"},{"internalType":"uint256","name":"amountSold","type":"uint256"},{"internalType":"uint256","name":"amountBought","type":"uint256"}],"name":"settleTrade","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// Config 结算客户端配置
type Config struct {
	RPCURL          string
	ContractAddress string
	PrivateKey      string
	GasLimit        uint64
	SubmitTimeout   time.Duration
}

// Client 构造、签名并提交 settleTrade 交易。
// nonce 每次提交前从节点读取；引擎顺序调用，单实例内不会竞争。
type Client struct {
	eth           *ethclient.Client
	contract      common.Address
	privateKey    *ecdsa.PrivateKey
	from          common.Address
	chainID       *big.Int
	gasLimit      uint64
	submitTimeout time.Duration
	registry      *domain.TokenRegistry
	contractABI   abi.ABI
	logger        *slog.Logger
}

// NewClient 连接节点、解析私钥并读取 chain ID
func NewClient(ctx context.Context, cfg Config, registry *domain.TokenRegistry, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain node: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse operator private key: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}

	contractABI, err := abi.JSON(strings.NewReader(settlementABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse settlement abi: %w", err)
	}

	from := crypto.PubkeyToAddress(privateKey.PublicKey)
	logger = logger.With("module", "settlement_client", "operator", from.Hex())
	logger.Info("settlement client connected", "chain_id", chainID.String())

	return &Client{
		eth:           eth,
		contract:      common.HexToAddress(cfg.ContractAddress),
		privateKey:    privateKey,
		from:          from,
		chainID:       chainID,
		gasLimit:      cfg.GasLimit,
		submitTimeout: cfg.SubmitTimeout,
		registry:      registry,
		contractABI:   contractABI,
		logger:        logger,
	}, nil
}

// SettleTrade 提交一笔 settleTrade 交易并返回交易哈希。
// 提交受 submit_timeout 约束，超时视为结算失败，不阻塞撮合。
func (c *Client) SettleTrade(ctx context.Context, symbol, buyerAddr, sellerAddr string, price, quantity decimal.Decimal) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	c.logger.Info("attempting to settle trade",
		"symbol", symbol, "price", price.String(), "quantity", quantity.String())

	baseToken, quoteToken, err := c.registry.Resolve(symbol)
	if err != nil {
		return "", err
	}

	// 卖方交付 base token，买方支付 quote token，金额按各自小数位换算
	amountSold := domain.ToUnits(quantity, baseToken.Decimals)
	amountBought := domain.ToUnits(price.Mul(quantity), quoteToken.Decimals)

	calldata, err := c.contractABI.Pack("settleTrade",
		common.HexToAddress(baseToken.Address),
		common.HexToAddress(quoteToken.Address),
		common.HexToAddress(sellerAddr),
		common.HexToAddress(buyerAddr),
		amountSold,
		amountBought,
	)
	if err != nil {
		return "", fmt.Errorf("failed to pack settleTrade call: %w", err)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, c.contract, big.NewInt(0), c.gasLimit, gasPrice, calldata)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	txHash := signedTx.Hash().Hex()
	c.logger.Info("trade settlement transaction sent", "tx_hash", txHash, "nonce", nonce)
	return txHash, nil
}

// Close 断开节点连接
func (c *Client) Close() {
	c.eth.Close()
}

// Package config 提供 TOML 配置加载、环境变量覆盖与 schema 校验
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 基础配置结构
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置（仅 intake API 使用）
	HTTP HTTPConfig `mapstructure:"http"`
	// MongoDB 配置
	Mongo MongoConfig `mapstructure:"mongo"`
	// RabbitMQ 配置
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	// 链上结算配置
	Chain ChainConfig `mapstructure:"chain"`
	// 交易对 token 映射：symbol 片段 -> token
	Tokens map[string]TokenConfig `mapstructure:"tokens"`
	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	// 监听地址
	Host string `mapstructure:"host"`
	// 监听端口
	Port int `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
	// WebSocket 允许的 Origin 列表，空表示全部允许
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	// 连接 URL
	URL string `mapstructure:"url"`
	// 数据库名称
	Database string `mapstructure:"database"`
	// 连接超时（秒）
	ConnTimeout int `mapstructure:"conn_timeout"`
}

// RabbitMQConfig RabbitMQ 配置
type RabbitMQConfig struct {
	// 连接 URL
	URL string `mapstructure:"url"`
	// 订单队列名称
	OrderQueue string `mapstructure:"order_queue"`
	// 订单交换机名称
	OrdersExchange string `mapstructure:"orders_exchange"`
	// 行情交换机名称
	MarketDataExchange string `mapstructure:"market_data_exchange"`
}

// ChainConfig 链上结算配置
type ChainConfig struct {
	// 节点 RPC 地址
	RPCURL string `mapstructure:"rpc_url"`
	// Settlement 合约地址
	ContractAddress string `mapstructure:"contract_address"`
	// 运营方私钥（hex，不带 0x 前缀亦可）
	PrivateKey string `mapstructure:"private_key"`
	// 单笔交易 gas 上限
	GasLimit uint64 `mapstructure:"gas_limit"`
	// 单次提交超时（秒）
	SubmitTimeout int `mapstructure:"submit_timeout"`
}

// TokenConfig 单个 token 的链上信息
type TokenConfig struct {
	// ERC-20 合约地址
	Address string `mapstructure:"address"`
	// 小数位数
	Decimals int32 `mapstructure:"decimals"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	WithCaller bool   `mapstructure:"with_caller"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// Prometheus 监听端口
	Port int `mapstructure:"port"`
	// 指标路径
	Path string `mapstructure:"path"`
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 部署环境使用固定的环境变量名注入敏感字段，优先于配置文件
	if url := os.Getenv("MONGODB_URL"); url != "" {
		cfg.Mongo.URL = url
	}
	if name := os.Getenv("DATABASE_NAME"); name != "" {
		cfg.Mongo.Database = name
	}
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		cfg.RabbitMQ.URL = url
	}
	if addr := os.Getenv("SETTLEMENT_CONTRACT_ADDRESS"); addr != "" {
		cfg.Chain.ContractAddress = addr
	}
	if url := os.Getenv("SEPOLIA_RPC_URL"); url != "" {
		cfg.Chain.RPCURL = url
	}
	if key := os.Getenv("BACKEND_WALLET_PRIVATE_KEY"); key != "" {
		cfg.Chain.PrivateKey = key
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RabbitMQ.OrderQueue == "" {
		c.RabbitMQ.OrderQueue = "order_processing_queue"
	}
	if c.RabbitMQ.OrdersExchange == "" {
		c.RabbitMQ.OrdersExchange = "orders_exchange"
	}
	if c.RabbitMQ.MarketDataExchange == "" {
		c.RabbitMQ.MarketDataExchange = "market_data_exchange"
	}
	if c.Mongo.ConnTimeout == 0 {
		c.Mongo.ConnTimeout = 10
	}
	if c.Chain.GasLimit == 0 {
		c.Chain.GasLimit = 200000
	}
	if c.Chain.SubmitTimeout == 0 {
		c.Chain.SubmitTimeout = 30
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate 校验必填配置
func (c *Config) Validate() error {
	if c.Mongo.URL == "" {
		return fmt.Errorf("mongo.url is required (set MONGODB_URL)")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo.database is required (set DATABASE_NAME)")
	}
	if c.RabbitMQ.URL == "" {
		return fmt.Errorf("rabbitmq.url is required (set RABBITMQ_URL)")
	}
	return nil
}

// ValidateChain 校验结算相关配置，仅撮合 Worker 需要
func (c *Config) ValidateChain() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required (set SEPOLIA_RPC_URL)")
	}
	if c.Chain.ContractAddress == "" {
		return fmt.Errorf("chain.contract_address is required (set SETTLEMENT_CONTRACT_ADDRESS)")
	}
	if c.Chain.PrivateKey == "" {
		return fmt.Errorf("chain.private_key is required (set BACKEND_WALLET_PRIVATE_KEY)")
	}
	if len(c.Tokens) == 0 {
		return fmt.Errorf("tokens mapping is required for settlement")
	}
	return nil
}

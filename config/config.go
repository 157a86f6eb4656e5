package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type Config struct {
	// Chain and network settings
	ChainID     uint64 `json:"chain_id"`
	RPCEndpoint string `json:"rpc_endpoint"`

	// Execution settings, a zero gas limit is estimated per transaction
	GasLimit       uint64        `json:"gas_limit"`
	StepDelay      time.Duration `json:"step_delay"`
	ReceiptTimeout time.Duration `json:"receipt_timeout"`
	Simulate       bool          `json:"simulate"`
	StrictDecode   bool          `json:"strict_decode"`
	RouteFile      string        `json:"route_file"`

	// Duplicate payload guard
	SubmittedCacheSize int `json:"submitted_cache_size"`

	RPCRateLimit RateLimitConfig `json:"rpc_rate_limit"`

	// Feature flags
	PrometheusEnabled  bool   `json:"prometheus_enabled"`
	PrometheusEndpoint string `json:"prometheus_endpoint"`

	Contracts ContractsConfig `json:"-"`
	Secure    *SecureConfig   `json:"-"`

	// Internal components
	Logger *zap.Logger `json:"-"`
}

// ContractsConfig holds the on-chain addresses the executor talks to.
type ContractsConfig struct {
	Arbitrage common.Address
	WETH      common.Address
	USDC      common.Address
	Owner     common.Address
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `json:"requests_per_second"`
	BurstSize         int           `json:"burst_size"`
	WaitTimeout       time.Duration `json:"wait_timeout"`
}

type SecureConfig struct {
	PrivateKey string
}

func (c *Config) ValidateConfig() error {
	var errors []string

	if c.ChainID == 0 {
		errors = append(errors, "chain_id must be specified")
	}
	if c.RPCEndpoint == "" {
		errors = append(errors, "rpc_endpoint must be specified")
	}
	if c.StepDelay < 0 {
		errors = append(errors, "step_delay cannot be negative")
	}
	if c.ReceiptTimeout <= 0 {
		errors = append(errors, "receipt_timeout must be positive")
	}
	if c.SubmittedCacheSize <= 0 {
		errors = append(errors, "submitted_cache_size must be positive")
	}
	if c.PrometheusEnabled && c.PrometheusEndpoint == "" {
		errors = append(errors, "prometheus_endpoint must be specified when prometheus is enabled")
	}

	if err := c.RPCRateLimit.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("RPC rate limit error: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (r *RateLimitConfig) Validate() error {
	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if r.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}
	if r.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be positive")
	}

	return nil
}

// LoadConfig reads the JSON settings file on top of DefaultConfig. An empty
// path keeps the defaults. The RPC endpoint may be overridden by
// ETH_PROVIDER_URL.
func LoadConfig(cfgFile string) (*Config, error) {
	config, err := ReadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	// Validate configuration
	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}

	return config, nil
}

// ReadConfig layers cfgFile and the environment over the defaults without
// validating, for commands that never touch the network.
func ReadConfig(cfgFile string) (*Config, error) {
	config := DefaultConfig()

	if cfgFile != "" {
		file, err := os.Open(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		if err := json.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	config.RPCEndpoint = GetEnvWithDefault(EnvProviderURL, config.RPCEndpoint)
	return config, nil
}

// LoadContracts reads the contract and owner addresses from the environment.
func LoadContracts() (*ContractsConfig, error) {
	var (
		c   ContractsConfig
		err error
	)
	if c.Arbitrage, err = GetRequiredAddress(EnvArbitrageContract); err != nil {
		return nil, err
	}
	if c.WETH, err = GetRequiredAddress(EnvWETHContract); err != nil {
		return nil, err
	}
	if c.USDC, err = GetRequiredAddress(EnvUSDCContract); err != nil {
		return nil, err
	}
	if c.Owner, err = GetRequiredAddress(EnvOwnerAddress); err != nil {
		return nil, err
	}
	return &c, nil
}

func LoadSecureConfig() (*SecureConfig, error) {
	privateKey, err := GetRequiredEnv(EnvPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("private key not found: %w", err)
	}

	return &SecureConfig{
		PrivateKey: strings.TrimPrefix(privateKey, "0x"),
	}, nil
}

func SaveConfig(cfg *Config, cfgFile string) error {
	file, err := os.Create(cfgFile)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "    ")
	return encoder.Encode(cfg)
}

func DefaultConfig() *Config {
	return &Config{
		ChainID:            1,
		RPCEndpoint:        "http://127.0.0.1:8545",
		GasLimit:           0,
		StepDelay:          2 * time.Second,
		ReceiptTimeout:     2 * time.Minute,
		Simulate:           false,
		StrictDecode:       false,
		SubmittedCacheSize: 128,
		RPCRateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			BurstSize:         20,
			WaitTimeout:       5 * time.Second,
		},
		PrometheusEnabled:  false,
		PrometheusEndpoint: ":9100",
		Logger:             zap.NewNop(),
	}
}

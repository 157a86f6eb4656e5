package config

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvProviderURL       = "ETH_PROVIDER_URL"
	EnvPrivateKey        = "WALLET_PRIVATE_KEY"
	EnvArbitrageContract = "ARBITRAGE_CONTRACT_ADDRESS"
	EnvWETHContract      = "IWETH_CONTRACT_ADDRESS"
	EnvUSDCContract      = "IUSDC_CONTRACT_ADDRESS"
	EnvOwnerAddress      = "OWNER_ADDRESS"
)

// LoadEnv loads environment variables from .env files. A missing default
// .env is not an error since the variables may be set another way.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); os.IsNotExist(err) {
			return nil
		}
	}
	return godotenv.Load(files...)
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetRequiredEnv returns the value of key or an error when it is unset.
func GetRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s not set", key)
	}
	return value, nil
}

// GetRequiredAddress reads a hex address from the environment.
func GetRequiredAddress(key string) (common.Address, error) {
	value, err := GetRequiredEnv(key)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("environment variable %s is not a valid address: %q", key, value)
	}
	return common.HexToAddress(value), nil
}

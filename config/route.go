package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/michaelpento.lv/arbexec/codec"
	"gopkg.in/yaml.v2"
)

// Default route pools
var (
	UniswapV2WETHUSDC = common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")
	UniswapV3USDCWETH = common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
)

// RouteFile is the YAML form of an arbitrage request.
type RouteFile struct {
	InputAmount string    `yaml:"input_amount"`
	MinProfit   string    `yaml:"min_profit"`
	Hops        []HopSpec `yaml:"hops"`
}

// HopSpec is one hop of a route file.
type HopSpec struct {
	Pool    string `yaml:"pool"`
	Sell    string `yaml:"sell"`
	Address string `yaml:"address"`
}

// DefaultRoute is the WETH/USDC round trip through Uniswap V2 and V3,
// 1 ETH in with a 0.001 ETH minimum profit.
func DefaultRoute() *codec.Request {
	return &codec.Request{
		InputAmount: big.NewInt(1_000_000_000_000_000_000),
		MinProfit:   big.NewInt(1_000_000_000_000_000),
		Hops: []codec.Hop{
			{Kind: codec.PoolUniswapV2, Side: codec.SellToken0, Pool: UniswapV2WETHUSDC},
			{Kind: codec.PoolUniswapV3, Side: codec.SellToken1, Pool: UniswapV3USDCWETH},
		},
	}
}

// LoadRoute reads a YAML route file. An empty path yields DefaultRoute.
func LoadRoute(path string) (*codec.Request, error) {
	if path == "" {
		return DefaultRoute(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route file: %w", err)
	}
	return ParseRoute(data)
}

// ParseRoute parses the YAML form of a route into a validated request.
func ParseRoute(data []byte) (*codec.Request, error) {
	var rf RouteFile
	if err := yaml.UnmarshalStrict(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to decode route: %w", err)
	}
	return rf.Request()
}

// Request converts the route file into a codec request.
func (rf *RouteFile) Request() (*codec.Request, error) {
	inputAmount, err := parseAmount(rf.InputAmount)
	if err != nil {
		return nil, fmt.Errorf("input_amount: %w", err)
	}
	minProfit, err := parseAmount(rf.MinProfit)
	if err != nil {
		return nil, fmt.Errorf("min_profit: %w", err)
	}

	hops := make([]codec.Hop, 0, len(rf.Hops))
	for i, hs := range rf.Hops {
		hop, err := hs.Hop()
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
		hops = append(hops, hop)
	}

	return codec.NewRequest(inputAmount, minProfit, hops...)
}

// Hop converts the route entry into a codec hop.
func (s HopSpec) Hop() (codec.Hop, error) {
	var kind codec.PoolKind
	switch strings.ToLower(s.Pool) {
	case "uniswap_v2", "v2":
		kind = codec.PoolUniswapV2
	case "uniswap_v3", "v3":
		kind = codec.PoolUniswapV3
	default:
		return codec.Hop{}, fmt.Errorf("unknown pool type %q", s.Pool)
	}

	var side codec.SellSide
	switch strings.ToLower(s.Sell) {
	case "token0":
		side = codec.SellToken0
	case "token1":
		side = codec.SellToken1
	default:
		return codec.Hop{}, fmt.Errorf("unknown sell side %q", s.Sell)
	}

	if !common.IsHexAddress(s.Address) {
		return codec.Hop{}, fmt.Errorf("invalid pool address %q", s.Address)
	}

	return codec.NewHop(kind, side, common.HexToAddress(s.Address))
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("amount must be specified")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", s)
	}
	return v, nil
}

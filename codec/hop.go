package codec

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// PoolKind selects which AMM implementation the executor calls for a hop.
type PoolKind uint8

const (
	PoolUniswapV2 PoolKind = iota
	PoolUniswapV3
)

// SellSide tells the executor which of the pool's reserve tokens is sold.
// The numeric value is the bit written to the hop header.
type SellSide uint8

const (
	SellToken1 SellSide = iota
	SellToken0
)

// Hop header bit positions
const (
	sellSideBit  byte = 0x01
	poolKindBit  byte = 0x02
	reservedBits byte = ^(sellSideBit | poolKindBit)
)

func (k PoolKind) String() string {
	switch k {
	case PoolUniswapV2:
		return "UniswapV2"
	case PoolUniswapV3:
		return "UniswapV3"
	default:
		return fmt.Sprintf("PoolKind(%d)", uint8(k))
	}
}

func (s SellSide) String() string {
	switch s {
	case SellToken0:
		return "Selling token0"
	case SellToken1:
		return "Selling token1"
	default:
		return fmt.Sprintf("SellSide(%d)", uint8(s))
	}
}

// Hop is one step of a swap route.
type Hop struct {
	Kind PoolKind
	Side SellSide
	Pool common.Address
}

// NewHop creates a hop, rejecting enum values that do not fit their header bit.
func NewHop(kind PoolKind, side SellSide, pool common.Address) (Hop, error) {
	h := Hop{Kind: kind, Side: side, Pool: pool}
	if err := h.validate(); err != nil {
		return Hop{}, err
	}
	return h, nil
}

func (h Hop) validate() error {
	if h.Kind > PoolUniswapV3 {
		return fmt.Errorf("%w: unknown pool kind %d", ErrInvalidHopHeader, h.Kind)
	}
	if h.Side > SellToken0 {
		return fmt.Errorf("%w: unknown sell side %d", ErrInvalidHopHeader, h.Side)
	}
	return nil
}

// header packs the pool kind into bit 1 and the sell side into bit 0.
func (h Hop) header() byte {
	return byte(h.Kind)<<1 | byte(h.Side)
}

func hopFromHeader(b byte) Hop {
	return Hop{
		Kind: PoolKind((b & poolKindBit) >> 1),
		Side: SellSide(b & sellSideBit),
	}
}

func (h Hop) String() string {
	return fmt.Sprintf("%s, %s, %s", h.Kind, h.Side, h.Pool.Hex())
}

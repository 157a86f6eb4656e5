package codec

import (
	"fmt"
	"math/big"
	"strings"
)

// Request is an arbitrage execution request as consumed by the on-chain
// executor: an input amount, the minimum acceptable profit and the route.
type Request struct {
	InputAmount *big.Int
	MinProfit   *big.Int
	Hops        []Hop
}

// NewRequest creates a request after checking that both amounts fit the
// 16-byte wire fields and every hop is well formed.
func NewRequest(inputAmount, minProfit *big.Int, hops ...Hop) (*Request, error) {
	r := &Request{
		InputAmount: inputAmount,
		MinProfit:   minProfit,
		Hops:        append([]Hop(nil), hops...),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the request against the wire layout constraints.
func (r *Request) Validate() error {
	if _, err := toUint128(r.InputAmount); err != nil {
		return fmt.Errorf("input amount: %w", err)
	}
	if _, err := toUint128(r.MinProfit); err != nil {
		return fmt.Errorf("min profit: %w", err)
	}
	for i, hop := range r.Hops {
		if err := hop.validate(); err != nil {
			return fmt.Errorf("hop %d: %w", i, err)
		}
	}
	return nil
}

// EncodedLen returns the exact size of the encoded request.
func (r *Request) EncodedLen() int {
	return HeaderSize + HopSize*len(r.Hops)
}

// Equal reports whether two requests carry the same amounts and route.
func (r *Request) Equal(o *Request) bool {
	if r == nil || o == nil {
		return r == o
	}
	if amountOrZero(r.InputAmount).Cmp(amountOrZero(o.InputAmount)) != 0 ||
		amountOrZero(r.MinProfit).Cmp(amountOrZero(o.MinProfit)) != 0 ||
		len(r.Hops) != len(o.Hops) {
		return false
	}
	for i := range r.Hops {
		if r.Hops[i] != o.Hops[i] {
			return false
		}
	}
	return true
}

func (r *Request) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Input Amount: %s\nMinimum Profit: %s", amountOrZero(r.InputAmount), amountOrZero(r.MinProfit))
	for i, hop := range r.Hops {
		fmt.Fprintf(&sb, "\nHop %d: Pool Type: %s, Direction: %s, Pool Address: %s",
			i+1, hop.Kind, hop.Side, hop.Pool.Hex())
	}
	return sb.String()
}

func amountOrZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}

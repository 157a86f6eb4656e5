// Package codec implements the compact binary layout of an arbitrage
// execution request.
//
// Layout, big-endian throughout:
//
//	[0,16)   input amount
//	[16,32)  minimum profit
//	then per hop, 21 bytes:
//	  1 byte   header, bit 1 pool kind, bit 0 sell side, bits 2-7 zero
//	  20 bytes pool address
package codec

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

const (
	// AmountSize is the width of each amount field.
	AmountSize = 16
	// HeaderSize is the size of the two amount fields.
	HeaderSize = 2 * AmountSize
	// HopSize is the size of one encoded hop.
	HopSize = 1 + common.AddressLength
)

// Decoder decodes payloads. The zero value is lenient: reserved header bits
// are ignored and the hex prefix is optional.
type Decoder struct {
	// StrictHeader rejects hop headers with any of bits 2-7 set.
	StrictHeader bool
	// RequirePrefix rejects hex input without a leading "0x".
	RequirePrefix bool
}

// Encode serializes the request into its wire layout.
func Encode(r *Request) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	input, err := toUint128(r.InputAmount)
	if err != nil {
		return nil, fmt.Errorf("input amount: %w", err)
	}
	minProfit, err := toUint128(r.MinProfit)
	if err != nil {
		return nil, fmt.Errorf("min profit: %w", err)
	}

	buf := make([]byte, r.EncodedLen())
	putUint128(buf[0:AmountSize], input)
	putUint128(buf[AmountSize:HeaderSize], minProfit)

	off := HeaderSize
	for i, hop := range r.Hops {
		if err := hop.validate(); err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
		buf[off] = hop.header()
		copy(buf[off+1:off+HopSize], hop.Pool[:])
		off += HopSize
	}
	return buf, nil
}

// EncodeHex encodes the request and renders it as 0x-prefixed hex.
func EncodeHex(r *Request) (string, error) {
	b, err := Encode(r)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(b), nil
}

// Decode parses a payload with the lenient default decoder.
func Decode(data []byte) (*Request, error) {
	return Decoder{}.Decode(data)
}

// DecodeHex parses a hex payload with the lenient default decoder.
func DecodeHex(s string) (*Request, error) {
	return Decoder{}.DecodeHex(s)
}

// Decode parses the wire layout back into a request. Hops keep wire order.
func (d Decoder) Decode(data []byte) (*Request, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the %d byte header",
			ErrMalformedLength, len(data), HeaderSize)
	}
	if (len(data)-HeaderSize)%HopSize != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes do not form whole %d byte hops",
			ErrMalformedLength, len(data)-HeaderSize, HopSize)
	}

	r := &Request{
		InputAmount: new(uint256.Int).SetBytes16(data[0:AmountSize]).ToBig(),
		MinProfit:   new(uint256.Int).SetBytes16(data[AmountSize:HeaderSize]).ToBig(),
		Hops:        make([]Hop, 0, (len(data)-HeaderSize)/HopSize),
	}
	for off := HeaderSize; off < len(data); off += HopSize {
		b := data[off]
		if d.StrictHeader && b&reservedBits != 0 {
			return nil, fmt.Errorf("%w: hop %d header 0x%02x sets reserved bits",
				ErrInvalidHopHeader, len(r.Hops), b)
		}
		hop := hopFromHeader(b)
		copy(hop.Pool[:], data[off+1:off+HopSize])
		r.Hops = append(r.Hops, hop)
	}
	return r, nil
}

// DecodeHex strips the "0x" marker and decodes the remaining hex payload.
func (d Decoder) DecodeHex(s string) (*Request, error) {
	body, hasPrefix := strings.CutPrefix(s, "0x")
	if !hasPrefix {
		body, hasPrefix = strings.CutPrefix(s, "0X")
	}
	if d.RequirePrefix && !hasPrefix {
		return nil, fmt.Errorf("%w: missing 0x prefix", ErrInvalidHexEncoding)
	}
	data, err := hexutil.Decode("0x" + body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHexEncoding, err)
	}
	return d.Decode(data)
}

// toUint128 converts an amount, failing for negative values and values
// wider than 128 bits. A nil amount is zero.
func toUint128(x *big.Int) (*uint256.Int, error) {
	if x == nil {
		return new(uint256.Int), nil
	}
	if x.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount %s", ErrValueOutOfRange, x)
	}
	v, overflow := uint256.FromBig(x)
	if overflow || v.BitLen() > 8*AmountSize {
		return nil, fmt.Errorf("%w: %s", ErrValueOutOfRange, x)
	}
	return v, nil
}

func putUint128(dst []byte, v *uint256.Int) {
	b := v.Bytes32()
	copy(dst, b[32-AmountSize:])
}

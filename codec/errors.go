package codec

import "errors"

var (
	// ErrValueOutOfRange is returned when an amount does not fit in 128 bits.
	ErrValueOutOfRange = errors.New("value out of 128-bit range")
	// ErrInvalidHexEncoding is returned for hex input that cannot be decoded.
	ErrInvalidHexEncoding = errors.New("invalid hex encoding")
	// ErrMalformedLength is returned when the payload is shorter than the
	// amount header or not aligned to the hop stride.
	ErrMalformedLength = errors.New("malformed payload length")
	// ErrInvalidHopHeader is returned when a hop header uses reserved bits.
	ErrInvalidHopHeader = errors.New("invalid hop header")
)

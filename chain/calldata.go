package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// ErrNotArbitrageCall is returned for calldata that does not target executeArbitrage
var ErrNotArbitrageCall = errors.New("calldata is not an executeArbitrage call")

// CalldataDecoder extracts the encoded request from executeArbitrage transaction input
type CalldataDecoder struct {
	arbABI abi.ABI
	logger *zap.Logger
}

// NewCalldataDecoder creates a new calldata decoder
func NewCalldataDecoder(logger *zap.Logger) (*CalldataDecoder, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	arbABI, err := abi.JSON(strings.NewReader(arbitrageABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse arbitrage ABI: %w", err)
	}

	return &CalldataDecoder{
		arbABI: arbABI,
		logger: logger,
	}, nil
}

// Payload returns the bytes argument of an executeArbitrage call
func (d *CalldataDecoder) Payload(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: %d bytes of calldata", ErrNotArbitrageCall, len(data))
	}

	method, err := d.arbABI.MethodById(data[:4])
	if err != nil || method.Name != methodExecuteArbitrage {
		return nil, fmt.Errorf("%w: selector %s", ErrNotArbitrageCall, hexutil.Encode(data[:4]))
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode parameters: %w", err)
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("unexpected argument count %d", len(args))
	}
	payload, ok := args[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected argument type %T", args[0])
	}

	d.logger.Debug("Decoded arbitrage calldata",
		zap.Int("payloadSize", len(payload)),
	)
	return payload, nil
}

// PayloadHex decodes 0x-prefixed calldata and returns the embedded payload
func (d *CalldataDecoder) PayloadHex(calldata string) ([]byte, error) {
	data, err := hexutil.Decode(calldata)
	if err != nil {
		return nil, fmt.Errorf("invalid calldata hex: %w", err)
	}
	return d.Payload(data)
}

package gas

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"go.uber.org/zap"
)

const (
	// Base cost for transaction
	baseCost uint64 = 21000
	// Calldata, header parsing and the profit check in the executor
	executorOverhead uint64 = 30000
	// Cost per pool hop (approximate), covering
	// - Storage reads (~2000)
	// - Token transfers (~50000)
	// - Swap execution (~100000)
	costPerHop uint64 = 152000
	// headroomPercent is added on top of node estimates
	headroomPercent uint64 = 20
)

// ErrExecutionReverted is returned when the node reports that the call would revert
var ErrExecutionReverted = errors.New("gas estimation: execution reverted")

// ArbitrageGasLimit returns a static gas limit for an executeArbitrage call
// over numHops pools.
func ArbitrageGasLimit(numHops int) uint64 {
	if numHops < 0 {
		numHops = 0
	}
	return baseCost + executorOverhead + costPerHop*uint64(numHops)
}

// Estimator asks the node for a gas estimate and falls back to the static
// per-hop limit when the node cannot estimate.
type Estimator struct {
	backend ethereum.GasEstimator
	logger  *zap.Logger
}

// NewEstimator creates a new gas estimator
func NewEstimator(backend ethereum.GasEstimator, logger *zap.Logger) (*Estimator, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Estimator{backend: backend, logger: logger}, nil
}

// EstimateArbitrageGas returns the node estimate for msg plus headroom. A
// call that would revert fails with ErrExecutionReverted; any other failed
// estimate yields ArbitrageGasLimit(numHops).
func (e *Estimator) EstimateArbitrageGas(ctx context.Context, msg ethereum.CallMsg, numHops int) (uint64, error) {
	fallback := ArbitrageGasLimit(numHops)

	estimate, err := e.backend.EstimateGas(ctx, msg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		if isRevert(err) {
			return 0, fmt.Errorf("%w: %v", ErrExecutionReverted, err)
		}
		e.logger.Warn("Gas estimation failed, using static limit",
			zap.Error(err),
			zap.Uint64("gas_limit", fallback))
		return fallback, nil
	}
	return estimate + estimate*headroomPercent/100, nil
}

// isRevert matches the revert error of geth-compatible nodes, which only
// survives JSON-RPC as message text.
func isRevert(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

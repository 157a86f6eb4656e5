package gas

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockEstimator struct {
	gas uint64
	err error
}

func (m *mockEstimator) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return m.gas, m.err
}

func TestArbitrageGasLimit(t *testing.T) {
	assert.Equal(t, uint64(51000), ArbitrageGasLimit(0))
	assert.Equal(t, uint64(51000), ArbitrageGasLimit(-3))
	assert.Equal(t, uint64(355000), ArbitrageGasLimit(2))
	assert.Greater(t, ArbitrageGasLimit(3), ArbitrageGasLimit(2))
}

func TestEstimateArbitrageGas(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := NewEstimator(nil, logger)
	assert.Error(t, err)

	ctx := context.Background()
	tests := []struct {
		name    string
		backend *mockEstimator
		want    uint64
		wantErr error
	}{
		{"Headroom", &mockEstimator{gas: 200000}, 240000, nil},
		{"Fallback", &mockEstimator{err: errors.New("method not found")}, ArbitrageGasLimit(2), nil},
		{"Reverted", &mockEstimator{err: errors.New("execution reverted: no profit")}, 0, ErrExecutionReverted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEstimator(tt.backend, logger)
			require.NoError(t, err)

			got, err := e.EstimateArbitrageGas(ctx, ethereum.CallMsg{}, 2)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEstimateArbitrageGasCancelled(t *testing.T) {
	e, err := NewEstimator(&mockEstimator{err: errors.New("request aborted")}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.EstimateArbitrageGas(ctx, ethereum.CallMsg{}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

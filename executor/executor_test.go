package executor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/michaelpento.lv/arbexec/codec"
	"github.com/michaelpento.lv/arbexec/utils/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	arbitrageAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	wethAddr      = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdcAddr      = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	ownerAddr     = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

// mockClient implements ChainClient and records the call sequence
type mockClient struct {
	mu          sync.Mutex
	calls       []string
	approvals   map[common.Address]*big.Int
	balances    map[common.Address]*big.Int
	executed    [][]byte
	executeErr  error
	simulateErr error
	approveErr  error
	// balanceErr fails BalanceOf, only once something was executed when
	// balanceErrAfterExecute is set
	balanceErr             error
	balanceErrAfterExecute bool
	onExecute              func()
}

func newMockClient() *mockClient {
	return &mockClient{
		approvals: make(map[common.Address]*big.Int),
		balances: map[common.Address]*big.Int{
			wethAddr: big.NewInt(5_000_000_000_000_000_000),
			usdcAddr: big.NewInt(1_000_000_000),
		},
	}
}

func (m *mockClient) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockClient) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	m.record("approve")
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	m.approvals[token] = amount
	return &types.Receipt{TxHash: common.BytesToHash(token.Bytes()), Status: types.ReceiptStatusSuccessful}, nil
}

func (m *mockClient) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	m.record("allowance")
	if a, ok := m.approvals[token]; ok {
		return a, nil
	}
	return big.NewInt(0), nil
}

func (m *mockClient) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	m.record("balance")
	if m.balanceErr != nil && (!m.balanceErrAfterExecute || len(m.executed) > 0) {
		return nil, m.balanceErr
	}
	return m.balances[token], nil
}

func (m *mockClient) Execute(ctx context.Context, payload []byte) (*types.Receipt, error) {
	m.record("execute")
	if m.executeErr != nil {
		return nil, m.executeErr
	}
	m.executed = append(m.executed, payload)
	if m.onExecute != nil {
		m.onExecute()
	}
	// profit lands in WETH
	m.balances[wethAddr] = new(big.Int).Add(m.balances[wethAddr], big.NewInt(1_000_000_000_000_000))
	return &types.Receipt{
		TxHash:  common.HexToHash("0xabc"),
		Status:  types.ReceiptStatusSuccessful,
		GasUsed: 180_000,
	}, nil
}

func (m *mockClient) Simulate(ctx context.Context, payload []byte) error {
	m.record("simulate")
	return m.simulateErr
}

func testRequest() *codec.Request {
	return &codec.Request{
		InputAmount: big.NewInt(1_000_000_000_000_000_000),
		MinProfit:   big.NewInt(1_000_000_000_000_000),
		Hops: []codec.Hop{
			{Kind: codec.PoolUniswapV2, Side: codec.SellToken0, Pool: common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")},
			{Kind: codec.PoolUniswapV3, Side: codec.SellToken1, Pool: common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")},
		},
	}
}

func newTestExecutor(t *testing.T, client ChainClient, mutate func(*Config)) (*Executor, *metrics.ExecutorMetrics) {
	cfg := Config{
		Arbitrage: arbitrageAddr,
		WETH:      wethAddr,
		USDC:      usdcAddr,
		Owner:     ownerAddr,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m := metrics.NewExecutorMetrics("test", metrics.NewRegistry(nil).Registerer())
	exec, err := New(client, cfg, m, zaptest.NewLogger(t))
	require.NoError(t, err)
	return exec, m
}

func TestNewValidation(t *testing.T) {
	m := metrics.NewExecutorMetrics("test", metrics.NewRegistry(nil).Registerer())
	logger := zaptest.NewLogger(t)

	_, err := New(nil, Config{}, m, logger)
	assert.Error(t, err)
	_, err = New(newMockClient(), Config{}, nil, logger)
	assert.Error(t, err)
	_, err = New(newMockClient(), Config{}, m, nil)
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	client := newMockClient()
	exec, m := newTestExecutor(t, client, nil)

	report, err := exec.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"approve", "approve",
		"allowance", "allowance",
		"balance", "balance",
		"execute",
		"balance", "balance",
	}, client.calls)

	want, err := codec.Encode(testRequest())
	require.NoError(t, err)
	require.Len(t, client.executed, 1)
	assert.Equal(t, want, client.executed[0])
	assert.Equal(t, want, report.Payload)
	assert.Equal(t, hexutil.Encode(want), report.PayloadHex)

	approval := big.NewInt(2_000_000_000_000_000_000)
	assert.Equal(t, 0, approval.Cmp(client.approvals[wethAddr]))
	assert.Equal(t, 0, approval.Cmp(client.approvals[usdcAddr]))

	assert.Equal(t, common.HexToHash("0xabc"), report.TxHash)
	assert.Equal(t, uint64(180_000), report.GasUsed)
	assert.Equal(t, "5000000000000000000", report.Initial.WETH.String())
	assert.Equal(t, "5001000000000000000", report.Final.WETH.String())
	assert.False(t, report.DryRun)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Successes))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Encoded))
	assert.True(t, report.HasFinal())
}

func TestRunSimulate(t *testing.T) {
	client := newMockClient()
	exec, _ := newTestExecutor(t, client, func(c *Config) { c.Simulate = true })

	_, err := exec.Run(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Contains(t, client.calls, "simulate")

	client = newMockClient()
	client.simulateErr = errors.New("execution reverted")
	exec, m := newTestExecutor(t, client, func(c *Config) { c.Simulate = true })

	_, err = exec.Run(context.Background(), testRequest())
	assert.ErrorContains(t, err, StepSimulate)
	assert.NotContains(t, client.calls, "execute")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Failures.WithLabelValues(StepSimulate)))
}

func TestRunDryRun(t *testing.T) {
	client := newMockClient()
	exec, _ := newTestExecutor(t, client, func(c *Config) { c.DryRun = true })

	report, err := exec.Run(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.NotContains(t, client.calls, "approve")
	assert.NotContains(t, client.calls, "execute")
	assert.Len(t, report.Payload, 74)
	assert.Equal(t, report.Initial, report.Final)
}

func TestRunRejectsOutOfRangeAmount(t *testing.T) {
	client := newMockClient()
	exec, m := newTestExecutor(t, client, nil)

	req := testRequest()
	req.InputAmount = new(big.Int).Lsh(big.NewInt(1), 128)
	_, err := exec.Run(context.Background(), req)
	assert.ErrorIs(t, err, codec.ErrValueOutOfRange)
	assert.Empty(t, client.calls, "nothing may be sent for an invalid request")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EncodeErrors))
}

func TestRunDuplicatePayload(t *testing.T) {
	client := newMockClient()
	exec, m := newTestExecutor(t, client, nil)

	_, err := exec.Run(context.Background(), testRequest())
	require.NoError(t, err)

	_, err = exec.Run(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrDuplicatePayload)
	assert.Len(t, client.executed, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Duplicates))

	other := testRequest()
	other.MinProfit = big.NewInt(2_000_000_000_000_000)
	_, err = exec.Run(context.Background(), other)
	require.NoError(t, err)
	assert.Len(t, client.executed, 2)
}

func TestRunExecuteFailureAllowsResend(t *testing.T) {
	client := newMockClient()
	client.executeErr = errors.New("connection refused")
	exec, m := newTestExecutor(t, client, nil)

	_, err := exec.Run(context.Background(), testRequest())
	assert.ErrorContains(t, err, StepExecute)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Failures.WithLabelValues(StepExecute)))

	client.executeErr = nil
	_, err = exec.Run(context.Background(), testRequest())
	require.NoError(t, err)
}

func TestRunApproveFailure(t *testing.T) {
	client := newMockClient()
	client.approveErr = errors.New("insufficient funds")
	exec, _ := newTestExecutor(t, client, nil)

	_, err := exec.Run(context.Background(), testRequest())
	assert.ErrorContains(t, err, StepApproveWETH)
	assert.Equal(t, []string{"approve"}, client.calls)
}

func TestRunCancelledDuringDelay(t *testing.T) {
	client := newMockClient()
	exec, _ := newTestExecutor(t, client, func(c *Config) { c.StepDelay = time.Hour })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := exec.Run(ctx, testRequest())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"approve"}, client.calls)
}

func TestRunBalanceFailure(t *testing.T) {
	t.Run("Initial", func(t *testing.T) {
		client := newMockClient()
		client.balanceErr = errors.New("header not found")
		exec, m := newTestExecutor(t, client, nil)

		report, err := exec.Run(context.Background(), testRequest())
		assert.ErrorContains(t, err, StepBalance)
		assert.Nil(t, report)
		assert.NotContains(t, client.calls, "execute")
		assert.Equal(t, float64(1), testutil.ToFloat64(m.Failures.WithLabelValues(StepBalance)))
		assert.Equal(t, float64(0), testutil.ToFloat64(m.Successes))
	})

	t.Run("Final", func(t *testing.T) {
		client := newMockClient()
		client.balanceErr = errors.New("header not found")
		client.balanceErrAfterExecute = true
		exec, m := newTestExecutor(t, client, nil)

		report, err := exec.Run(context.Background(), testRequest())
		require.NoError(t, err)
		require.NotNil(t, report)
		assert.Equal(t, common.HexToHash("0xabc"), report.TxHash)
		assert.Equal(t, uint64(180_000), report.GasUsed)
		assert.NotNil(t, report.Initial.WETH)
		assert.False(t, report.HasFinal())
		assert.Equal(t, float64(1), testutil.ToFloat64(m.Successes))
		assert.Equal(t, float64(0), testutil.ToFloat64(m.Failures.WithLabelValues(StepExecute)))
	})
}

func TestRunCancelledAfterExecute(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newMockClient()
	exec, m := newTestExecutor(t, client, nil)

	// approvals run without delay, the post-execute delay is cancelled
	client.onExecute = func() {
		exec.cfg.StepDelay = time.Hour
		cancel()
	}

	report, err := exec.Run(ctx, testRequest())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, common.HexToHash("0xabc"), report.TxHash)
	assert.False(t, report.HasFinal())
	assert.Len(t, client.executed, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Successes))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Failures.WithLabelValues(StepExecute)))
}

// Package executor runs an arbitrage request against the on-chain executor
// contract: token approvals, balance checks, encoding and submission.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru"
	"github.com/michaelpento.lv/arbexec/codec"
	"github.com/michaelpento.lv/arbexec/utils/metrics"
	"go.uber.org/zap"
)

// ErrDuplicatePayload is returned when the same payload was already
// submitted by this executor.
var ErrDuplicatePayload = errors.New("payload already submitted")

// Step names used in errors and metrics
const (
	StepApproveWETH = "approve_weth"
	StepApproveUSDC = "approve_usdc"
	StepAllowance   = "allowance"
	StepBalance     = "balance"
	StepEncode      = "encode"
	StepSimulate    = "simulate"
	StepExecute     = "execute"
)

// ChainClient is the chain access the executor needs. *chain.Client
// implements it.
type ChainClient interface {
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Receipt, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error)
	Execute(ctx context.Context, payload []byte) (*types.Receipt, error)
	Simulate(ctx context.Context, payload []byte) error
}

type Config struct {
	Arbitrage common.Address
	WETH      common.Address
	USDC      common.Address
	Owner     common.Address

	// StepDelay is the pause after each state-changing transaction.
	StepDelay time.Duration
	// Simulate dry-runs executeArbitrage before sending it.
	Simulate bool
	// DryRun stops before any state-changing transaction.
	DryRun bool
	// SubmittedCacheSize bounds the duplicate payload guard.
	SubmittedCacheSize int
}

// Balances holds the owner's token balances at one point in time.
type Balances struct {
	WETH *big.Int
	USDC *big.Int
}

// Report summarizes one execution run.
type Report struct {
	Payload    []byte
	PayloadHex string
	TxHash     common.Hash
	GasUsed    uint64
	Initial    Balances
	// Final is zero when the balances could not be read after a mined execute.
	Final  Balances
	DryRun bool
}

// HasFinal reports whether the final balances were read.
func (r *Report) HasFinal() bool {
	return r.Final.WETH != nil && r.Final.USDC != nil
}

type Executor struct {
	client    ChainClient
	cfg       Config
	logger    *zap.Logger
	metrics   *metrics.ExecutorMetrics
	submitted *lru.Cache
}

func New(client ChainClient, cfg Config, m *metrics.ExecutorMetrics, logger *zap.Logger) (*Executor, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is required")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.SubmittedCacheSize <= 0 {
		cfg.SubmittedCacheSize = 128
	}

	submitted, err := lru.New(cfg.SubmittedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create submitted payload cache: %w", err)
	}

	return &Executor{
		client:    client,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		submitted: submitted,
	}, nil
}

// Run approves both tokens for twice the input amount, reports allowances and
// balances, then encodes and submits the request. Steps run sequentially with
// StepDelay after every mined transaction.
func (e *Executor) Run(ctx context.Context, req *codec.Request) (*Report, error) {
	start := time.Now()
	e.metrics.Attempts.Inc()
	defer func() {
		e.metrics.ExecutionTime.Observe(time.Since(start).Seconds())
	}()

	report := &Report{DryRun: e.cfg.DryRun}

	payload, err := e.encode(req)
	if err != nil {
		return nil, e.fail(StepEncode, err)
	}
	report.Payload = payload
	report.PayloadHex = hexutil.Encode(payload)

	if !e.cfg.DryRun {
		approval := new(big.Int).Mul(amountOrZero(req.InputAmount), big.NewInt(2))
		if err := e.approve(ctx, StepApproveWETH, e.cfg.WETH, approval); err != nil {
			return nil, err
		}
		if err := e.approve(ctx, StepApproveUSDC, e.cfg.USDC, approval); err != nil {
			return nil, err
		}
	}

	if err := e.logAllowances(ctx); err != nil {
		return nil, err
	}

	if report.Initial, err = e.balances(ctx); err != nil {
		return nil, err
	}
	e.logger.Info("Initial balances",
		zap.String("owner", e.cfg.Owner.Hex()),
		zap.String("weth", report.Initial.WETH.String()),
		zap.String("usdc", report.Initial.USDC.String()))

	e.logger.Info("Encoded arbitrage request",
		zap.String("payload", report.PayloadHex),
		zap.Int("hops", len(req.Hops)))

	if e.cfg.Simulate {
		stepStart := time.Now()
		if err := e.client.Simulate(ctx, payload); err != nil {
			return nil, e.fail(StepSimulate, err)
		}
		e.observe(StepSimulate, stepStart)
	}

	if e.cfg.DryRun {
		report.Final = report.Initial
		return report, nil
	}

	receipt, err := e.execute(ctx, payload)
	if err != nil {
		return nil, err
	}
	report.TxHash = receipt.TxHash
	report.GasUsed = receipt.GasUsed
	e.metrics.Successes.Inc()

	// The arbitrage is mined from here on, so later failures only cost the
	// final balances.
	if err := sleep(ctx, e.cfg.StepDelay); err != nil {
		e.logger.Warn("Skipping final balances",
			zap.String("tx_hash", report.TxHash.Hex()),
			zap.Error(err))
		return report, nil
	}

	final, err := e.balances(ctx)
	if err != nil {
		e.logger.Warn("Failed to read final balances",
			zap.String("tx_hash", report.TxHash.Hex()),
			zap.Error(err))
		return report, nil
	}
	report.Final = final
	e.logger.Info("Final balances",
		zap.String("owner", e.cfg.Owner.Hex()),
		zap.String("weth", report.Final.WETH.String()),
		zap.String("usdc", report.Final.USDC.String()))

	return report, nil
}

func (e *Executor) encode(req *codec.Request) ([]byte, error) {
	payload, err := codec.Encode(req)
	if err != nil {
		e.metrics.EncodeErrors.Inc()
		return nil, err
	}
	e.metrics.Encoded.Inc()
	e.metrics.PayloadSize.Observe(float64(len(payload)))
	e.metrics.HopCount.Observe(float64(len(req.Hops)))
	return payload, nil
}

func (e *Executor) approve(ctx context.Context, step string, token common.Address, amount *big.Int) error {
	start := time.Now()
	receipt, err := e.client.Approve(ctx, token, e.cfg.Arbitrage, amount)
	if err != nil {
		return e.fail(step, err)
	}
	e.observe(step, start)
	e.logger.Info("Approval transaction confirmed",
		zap.String("token", token.Hex()),
		zap.String("tx_hash", receipt.TxHash.Hex()))

	if err := sleep(ctx, e.cfg.StepDelay); err != nil {
		return e.fail(step, err)
	}
	return nil
}

func (e *Executor) logAllowances(ctx context.Context) error {
	start := time.Now()
	for _, token := range []common.Address{e.cfg.WETH, e.cfg.USDC} {
		allowance, err := e.client.Allowance(ctx, token, e.cfg.Owner, e.cfg.Arbitrage)
		if err != nil {
			return e.fail(StepAllowance, err)
		}
		e.logger.Info("Allowance",
			zap.String("token", token.Hex()),
			zap.String("spender", e.cfg.Arbitrage.Hex()),
			zap.String("amount", allowance.String()))
	}
	e.observe(StepAllowance, start)
	return nil
}

func (e *Executor) balances(ctx context.Context) (Balances, error) {
	start := time.Now()
	weth, err := e.client.BalanceOf(ctx, e.cfg.WETH, e.cfg.Owner)
	if err != nil {
		return Balances{}, e.fail(StepBalance, err)
	}
	usdc, err := e.client.BalanceOf(ctx, e.cfg.USDC, e.cfg.Owner)
	if err != nil {
		return Balances{}, e.fail(StepBalance, err)
	}
	e.observe(StepBalance, start)
	return Balances{WETH: weth, USDC: usdc}, nil
}

func (e *Executor) execute(ctx context.Context, payload []byte) (*types.Receipt, error) {
	fingerprint := xxhash.Sum64(payload)
	if seen, _ := e.submitted.ContainsOrAdd(fingerprint, struct{}{}); seen {
		e.metrics.Duplicates.Inc()
		return nil, e.fail(StepExecute, fmt.Errorf("%w: fingerprint %016x", ErrDuplicatePayload, fingerprint))
	}

	start := time.Now()
	receipt, err := e.client.Execute(ctx, payload)
	if err != nil {
		if receipt == nil {
			// never mined, allow the payload to be sent again
			e.submitted.Remove(fingerprint)
		}
		return nil, e.fail(StepExecute, err)
	}
	e.observe(StepExecute, start)
	e.metrics.GasUsed.Observe(float64(receipt.GasUsed))
	e.logger.Info("Arbitrage transaction confirmed",
		zap.String("tx_hash", receipt.TxHash.Hex()),
		zap.Uint64("gas_used", receipt.GasUsed))
	return receipt, nil
}

func (e *Executor) fail(step string, err error) error {
	e.metrics.Failures.WithLabelValues(step).Inc()
	return fmt.Errorf("%s: %w", step, err)
}

func (e *Executor) observe(step string, start time.Time) {
	e.metrics.StepLatency.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func amountOrZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}

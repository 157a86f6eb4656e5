package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/michaelpento.lv/arbexec/codec"
	"github.com/michaelpento.lv/arbexec/gas"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrTransactionFailed is returned when a mined transaction reverted.
var ErrTransactionFailed = errors.New("transaction failed")

// Backend is the subset of an Ethereum node client the chain client needs.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Config contains the parameters of a chain client
type Config struct {
	ChainID   *big.Int
	Arbitrage common.Address
	// GasLimit of zero estimates every transaction instead.
	GasLimit       uint64
	ReceiptTimeout time.Duration
	RateLimit      rate.Limit
	Burst          int
	WaitTimeout    time.Duration
}

// Client sends arbitrage payloads and token calls to the chain.
type Client struct {
	backend   Backend
	cfg       Config
	key       *ecdsa.PrivateKey
	from      common.Address
	arbitrage *bind.BoundContract
	arbABI    abi.ABI
	erc20ABI  abi.ABI
	limiter   *rate.Limiter
	estimator *gas.Estimator
	logger    *zap.Logger
	closer    func()
}

// Dial connects to the RPC endpoint and creates a client on top of it.
func Dial(ctx context.Context, endpoint string, key *ecdsa.PrivateKey, cfg Config, logger *zap.Logger) (*Client, error) {
	ethClient, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum node: %w", err)
	}
	if cfg.ChainID == nil {
		chainID, err := ethClient.ChainID(ctx)
		if err != nil {
			ethClient.Close()
			return nil, fmt.Errorf("failed to get chain id: %w", err)
		}
		cfg.ChainID = chainID
	}
	client, err := NewClient(ethClient, key, cfg, logger)
	if err != nil {
		ethClient.Close()
		return nil, err
	}
	client.closer = ethClient.Close
	return client, nil
}

// Close releases the RPC connection opened by Dial.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// NewClient creates a chain client over an existing backend.
func NewClient(backend Backend, key *ecdsa.PrivateKey, cfg Config, logger *zap.Logger) (*Client, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if key == nil {
		return nil, fmt.Errorf("private key is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id must be positive")
	}
	if cfg.Arbitrage == (common.Address{}) {
		return nil, fmt.Errorf("arbitrage contract address is required")
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = rate.Inf
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	arbABI, err := abi.JSON(strings.NewReader(arbitrageABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse arbitrage ABI: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	estimator, err := gas.NewEstimator(backend, logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		backend:   backend,
		cfg:       cfg,
		key:       key,
		from:      crypto.PubkeyToAddress(key.PublicKey),
		arbitrage: bind.NewBoundContract(cfg.Arbitrage, arbABI, backend, backend, backend),
		arbABI:    arbABI,
		erc20ABI:  erc20ABI,
		limiter:   rate.NewLimiter(cfg.RateLimit, cfg.Burst),
		estimator: estimator,
		logger:    logger,
	}, nil
}

// From returns the address transactions are signed with.
func (c *Client) From() common.Address {
	return c.from
}

// Approve lets spender move amount of token on behalf of the signer and
// waits for the approval to be mined.
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	contract := c.token(token)
	receipt, err := c.transact(ctx, contract, c.cfg.GasLimit, methodApprove, spender, amount)
	if err != nil {
		return receipt, fmt.Errorf("failed to approve %s: %w", token.Hex(), err)
	}
	return receipt, nil
}

// Allowance returns how much of token spender may move for owner.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	amount, err := c.callUint(ctx, c.token(token), methodAllowance, owner, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to get allowance of %s: %w", token.Hex(), err)
	}
	return amount, nil
}

// BalanceOf returns the token balance of account.
func (c *Client) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	amount, err := c.callUint(ctx, c.token(token), methodBalanceOf, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance of %s: %w", token.Hex(), err)
	}
	return amount, nil
}

// Execute hands the encoded request to the arbitrage contract and waits for
// the receipt. A reverted transaction returns its receipt with the error.
func (c *Client) Execute(ctx context.Context, payload []byte) (*types.Receipt, error) {
	gasLimit := c.cfg.GasLimit
	if gasLimit == 0 {
		input, err := c.arbABI.Pack(methodExecuteArbitrage, payload)
		if err != nil {
			return nil, fmt.Errorf("failed to pack arbitrage call: %w", err)
		}
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		to := c.cfg.Arbitrage
		gasLimit, err = c.estimator.EstimateArbitrageGas(ctx, ethereum.CallMsg{
			From: c.from,
			To:   &to,
			Data: input,
		}, hopCount(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to estimate arbitrage gas: %w", err)
		}
	}

	receipt, err := c.transact(ctx, c.arbitrage, gasLimit, methodExecuteArbitrage, payload)
	if err != nil {
		return receipt, fmt.Errorf("failed to execute arbitrage: %w", err)
	}
	return receipt, nil
}

// Simulate runs executeArbitrage as a call against the latest state. A
// revert is returned as an error.
func (c *Client) Simulate(ctx context.Context, payload []byte) error {
	input, err := c.arbABI.Pack(methodExecuteArbitrage, payload)
	if err != nil {
		return fmt.Errorf("failed to pack arbitrage call: %w", err)
	}
	if err := c.wait(ctx); err != nil {
		return err
	}

	to := c.cfg.Arbitrage
	_, err = c.backend.CallContract(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &to,
		Gas:  c.cfg.GasLimit,
		Data: input,
	}, nil)
	if err != nil {
		return fmt.Errorf("arbitrage simulation reverted: %w", err)
	}
	return nil
}

func (c *Client) token(address common.Address) *bind.BoundContract {
	return bind.NewBoundContract(address, c.erc20ABI, c.backend, c.backend, c.backend)
}

func (c *Client) transact(ctx context.Context, contract *bind.BoundContract, gasLimit uint64, method string, params ...interface{}) (*types.Receipt, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = gasLimit

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	tx, err := contract.Transact(opts, method, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}
	c.logger.Debug("Transaction sent",
		zap.String("method", method),
		zap.String("tx_hash", tx.Hash().Hex()))

	waitCtx := ctx
	if c.cfg.ReceiptTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.cfg.ReceiptTimeout)
		defer cancel()
	}
	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s receipt: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s in tx %s", ErrTransactionFailed, method, tx.Hash().Hex())
	}
	return receipt, nil
}

func (c *Client) callUint(ctx context.Context, contract *bind.BoundContract, method string, params ...interface{}) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to parse %s result", method)
	}
	return amount, nil
}

func hopCount(payload []byte) int {
	if len(payload) < codec.HeaderSize {
		return 0
	}
	return (len(payload) - codec.HeaderSize) / codec.HopSize
}

// wait blocks on the RPC limiter, bounded by the configured wait timeout.
func (c *Client) wait(ctx context.Context) error {
	if c.cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.WaitTimeout)
		defer cancel()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/michaelpento.lv/arbexec/chain"
	"github.com/michaelpento.lv/arbexec/codec"
	"github.com/michaelpento.lv/arbexec/config"
	"github.com/michaelpento.lv/arbexec/executor"
	"github.com/michaelpento.lv/arbexec/utils"
	"github.com/michaelpento.lv/arbexec/utils/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	executeRoute    string
	executeDryRun   bool
	executeSimulate bool
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Approve tokens and submit the arbitrage request",
	Long: `Execute approves WETH and USDC for the arbitrage contract, reports
allowances and balances, then sends the encoded route to executeArbitrage
and reports the balances afterwards.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.LoggerFrom(cmd.Context())

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.Logger = log
		if executeRoute == "" {
			executeRoute = cfg.RouteFile
		}

		req, err := config.LoadRoute(executeRoute)
		if err != nil {
			return err
		}

		report, err := runExecute(cmd.Context(), cfg, req, log)
		if err != nil {
			log.Error("Execution failed", zap.Error(err))
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Encoded Arbitrage Request: %s\n", report.PayloadHex)
		if report.DryRun {
			fmt.Fprintln(out, "Dry run, nothing sent")
			return nil
		}
		fmt.Fprintf(out, "Transaction: %s (gas used %d)\n", report.TxHash.Hex(), report.GasUsed)
		if !report.HasFinal() {
			fmt.Fprintln(out, "Final balances unavailable")
			return nil
		}
		fmt.Fprintf(out, "WETH: %s -> %s\n", report.Initial.WETH, report.Final.WETH)
		fmt.Fprintf(out, "USDC: %s -> %s\n", report.Initial.USDC, report.Final.USDC)
		return nil
	},
}

func runExecute(ctx context.Context, cfg *config.Config, req *codec.Request, log *zap.Logger) (*executor.Report, error) {
	contracts, err := config.LoadContracts()
	if err != nil {
		return nil, fmt.Errorf("failed to load contract addresses: %w", err)
	}
	secure, err := config.LoadSecureConfig()
	if err != nil {
		return nil, err
	}
	key, err := crypto.HexToECDSA(secure.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet private key: %w", err)
	}

	registry := metrics.NewRegistry(log)
	if cfg.PrometheusEnabled {
		srv := registry.Serve(&metrics.MetricsConfig{Endpoint: cfg.PrometheusEndpoint})
		defer srv.Close()
	}

	client, err := chain.Dial(ctx, cfg.RPCEndpoint, key, chain.Config{
		ChainID:        new(big.Int).SetUint64(cfg.ChainID),
		Arbitrage:      contracts.Arbitrage,
		GasLimit:       cfg.GasLimit,
		ReceiptTimeout: cfg.ReceiptTimeout,
		RateLimit:      rate.Limit(cfg.RPCRateLimit.RequestsPerSecond),
		Burst:          cfg.RPCRateLimit.BurstSize,
		WaitTimeout:    cfg.RPCRateLimit.WaitTimeout,
	}, log)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if client.From() != contracts.Owner {
		log.Warn("Signer differs from owner address",
			zap.String("signer", client.From().Hex()),
			zap.String("owner", contracts.Owner.Hex()))
	}

	exec, err := executor.New(client, executor.Config{
		Arbitrage:          contracts.Arbitrage,
		WETH:               contracts.WETH,
		USDC:               contracts.USDC,
		Owner:              contracts.Owner,
		StepDelay:          cfg.StepDelay,
		Simulate:           cfg.Simulate || executeSimulate,
		DryRun:             executeDryRun,
		SubmittedCacheSize: cfg.SubmittedCacheSize,
	}, metrics.NewExecutorMetrics("arbexec", registry.Registerer()), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}

	return exec.Run(ctx, req)
}

func init() {
	rootCmd.AddCommand(executeCmd)
	executeCmd.Flags().StringVar(&executeRoute, "route", "", "YAML route file (overrides route_file from the config)")
	executeCmd.Flags().BoolVar(&executeDryRun, "dry-run", false, "stop before sending any transaction")
	executeCmd.Flags().BoolVar(&executeSimulate, "simulate", false, "simulate executeArbitrage with eth_call before sending")
}

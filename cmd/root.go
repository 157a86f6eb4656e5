package cmd

import (
	"context"

	"github.com/michaelpento.lv/arbexec/config"
	"github.com/michaelpento.lv/arbexec/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	envFile string
	logFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "arbexec",
	Short: "Encode, inspect and execute arbitrage requests",
	Long: `arbexec builds the compact arbitrage request consumed by the on-chain
executor contract, decodes payloads for debugging, and submits requests
after approving the input tokens.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = utils.LoggerFrom(cmd.Context()).Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "JSON settings file (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file with credentials and addresses (default is ./.env)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// setup builds the command logger and loads the env file before any
// subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	log, err := utils.NewLogger(debug, logFile)
	if err != nil {
		return err
	}
	cmd.SetContext(utils.WithLogger(cmd.Context(), log))

	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	if err := config.LoadEnv(files...); err != nil {
		log.Warn("Failed to load env file", zap.Error(err))
	}
	return nil
}

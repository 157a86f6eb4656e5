package cmd

import (
	"fmt"

	"github.com/michaelpento.lv/arbexec/chain"
	"github.com/michaelpento.lv/arbexec/codec"
	"github.com/michaelpento.lv/arbexec/config"
	"github.com/michaelpento.lv/arbexec/utils"
	"github.com/spf13/cobra"
)

var (
	decodeStrict        bool
	decodeRequirePrefix bool
	decodeCalldata      bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode <payload>",
	Short: "Decode a hex payload back into its amounts and hops",
	Long: `Decode a hex payload back into its amounts and hops.

With --calldata the argument is the full input of an executeArbitrage
transaction and the payload is extracted from it first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.ReadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		decoder := codec.Decoder{
			StrictHeader:  decodeStrict || cfg.StrictDecode,
			RequirePrefix: decodeRequirePrefix,
		}

		var req *codec.Request
		if decodeCalldata {
			calldata, cerr := chain.NewCalldataDecoder(utils.LoggerFrom(cmd.Context()))
			if cerr != nil {
				return cerr
			}
			payload, cerr := calldata.PayloadHex(args[0])
			if cerr != nil {
				return fmt.Errorf("failed to decode calldata: %w", cerr)
			}
			req, err = decoder.Decode(payload)
		} else {
			req, err = decoder.DecodeHex(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to decode payload: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), req)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVar(&decodeStrict, "strict", false, "reject hop headers with reserved bits set")
	decodeCmd.Flags().BoolVar(&decodeRequirePrefix, "require-prefix", false, "reject payloads without a 0x prefix")
	decodeCmd.Flags().BoolVar(&decodeCalldata, "calldata", false, "argument is executeArbitrage transaction input")
}

package cmd

import (
	"fmt"

	"github.com/michaelpento.lv/arbexec/codec"
	"github.com/michaelpento.lv/arbexec/config"
	"github.com/spf13/cobra"
)

var (
	encodeRoute   string
	encodeVerbose bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode a route into the executor payload",
	Long: `Encode reads a YAML route file (or the built-in WETH/USDC route when
none is given) and prints the 0x-prefixed payload.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := config.LoadRoute(encodeRoute)
		if err != nil {
			return err
		}

		encoded, err := codec.EncodeHex(req)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}

		out := cmd.OutOrStdout()
		if encodeVerbose {
			fmt.Fprintln(out, req)
		}
		fmt.Fprintln(out, encoded)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().StringVar(&encodeRoute, "route", "", "YAML route file")
	encodeCmd.Flags().BoolVarP(&encodeVerbose, "verbose", "v", false, "print the decoded request before the payload")
}

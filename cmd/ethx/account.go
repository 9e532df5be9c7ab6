package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmagro/eth-extractor/internal/display"
	"github.com/dmagro/eth-extractor/internal/util"
)

func accountCmd() *cobra.Command {
	var blockArg string

	cmd := &cobra.Command{
		Use:   "account <address>",
		Short: "Fetch an account snapshot (balance, nonce, code)",
		Long: `Fetch balance, nonce, and deployed code of an address at a block.

Examples:
  ethx account 0x742d35cc6634c0532925a3b844bc454e4438f44e
  ethx account 0x742d35cc6634c0532925a3b844bc454e4438f44e --block 19000000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := util.ParseBlockArg(blockArg)
			if err != nil {
				return err
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			snap, err := a.service.GetAccount(cmd.Context(), strings.ToLower(args[0]), id)
			if err != nil {
				return err
			}
			display.Account(os.Stdout, snap)
			return nil
		},
	}

	cmd.Flags().StringVar(&blockArg, "block", "latest", "Block number or tag to evaluate at")
	return cmd
}

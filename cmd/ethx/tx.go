package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmagro/eth-extractor/internal/display"
)

func txCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tx <hash>",
		Short: "Fetch and display transaction details",
		Long: `Fetch a transaction and, once mined, its receipt.

Examples:
  ethx tx 0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := strings.ToLower(strings.TrimSpace(args[0]))
			if !strings.HasPrefix(hash, "0x") || len(hash) != 66 {
				return fmt.Errorf("malformed transaction hash %q", args[0])
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			tx, err := a.service.GetTransaction(cmd.Context(), hash)
			if err != nil {
				return err
			}
			display.Transaction(os.Stdout, tx)
			return nil
		},
	}
}

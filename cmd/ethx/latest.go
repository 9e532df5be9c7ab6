package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dmagro/eth-extractor/internal/display"
)

func latestCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "List the most recent blocks",
		Long: `List the N most recent blocks, newest first.

Examples:
  ethx latest
  ethx latest --count 25`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			blocks, err := a.service.GetLatestBlocks(cmd.Context(), count)
			if err != nil {
				return err
			}
			display.Blocks(os.Stdout, blocks)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 10, "Number of blocks to list")
	return cmd
}

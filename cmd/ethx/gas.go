package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmagro/eth-extractor/internal/display"
)

func gasCmd() *cobra.Command {
	var (
		blocks int
		from   uint64
		to     uint64
	)

	cmd := &cobra.Command{
		Use:   "gas",
		Short: "Show gas statistics over a block range",
		Long: `Compute gas statistics (mean/median gas used, mean base fee,
utilization) over a range of blocks.

Examples:
  ethx gas                      # last 100 blocks
  ethx gas --blocks 250
  ethx gas --from 19000000 --to 19000099`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			explicitRange := cmd.Flags().Changed("from") || cmd.Flags().Changed("to")
			if explicitRange && cmd.Flags().Changed("blocks") {
				return fmt.Errorf("--blocks cannot be combined with --from/--to")
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if !explicitRange {
				if blocks <= 0 {
					return fmt.Errorf("--blocks must be positive, got %d", blocks)
				}
				head, err := a.service.Head(ctx)
				if err != nil {
					return err
				}
				to = head
				from = 0
				if uint64(blocks) <= head {
					from = head - uint64(blocks) + 1
				}
			}

			gs, err := a.service.GetGasStatistics(ctx, from, to)
			if err != nil {
				return err
			}
			display.GasStats(os.Stdout, gs)
			return nil
		},
	}

	cmd.Flags().IntVar(&blocks, "blocks", 100, "Number of most recent blocks to analyze")
	cmd.Flags().Uint64Var(&from, "from", 0, "Range start block number (inclusive)")
	cmd.Flags().Uint64Var(&to, "to", 0, "Range end block number (inclusive)")
	return cmd
}

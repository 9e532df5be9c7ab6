package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dmagro/eth-extractor/internal/display"
	"github.com/dmagro/eth-extractor/internal/util"
)

func blockCmd() *cobra.Command {
	var fullTx bool

	cmd := &cobra.Command{
		Use:   "block [number|hash|latest|pending|finalized]",
		Short: "Fetch and display block details",
		Long: `Fetch a block from the configured Ethereum RPC endpoint.

Examples:
  ethx block latest
  ethx block 19000000
  ethx block 0x121eac0
  ethx block 0xd4e56740f876aef8c010b86a40d5f56745a118d0906a34e69aec8c0db1cb8fa3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := util.ParseBlockArg(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			b, err := a.service.GetBlock(cmd.Context(), id, fullTx)
			if err != nil {
				return err
			}
			display.Block(os.Stdout, b)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fullTx, "full", false, "Fetch full transaction bodies instead of hashes")
	return cmd
}

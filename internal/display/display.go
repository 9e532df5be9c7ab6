// Package display renders domain values for the terminal. It is a pure
// consumer of the extraction core: nothing in here issues RPC calls.
package display

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/rodaine/table"

	"github.com/dmagro/eth-extractor/internal/types"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()

	headerFmt = color.New(color.FgCyan, color.Underline).SprintfFunc()
)

// Block writes a single-block detail view.
func Block(w io.Writer, b *types.Block) {
	fmt.Fprintf(w, "\n%s\n", bold("Block #"+FormatNumber(b.Number)))
	fmt.Fprintln(w, "═══════════════════════════════════════════════════")
	fmt.Fprintf(w, "  Hash:         %s\n", b.Hash)
	fmt.Fprintf(w, "  Parent:       %s\n", b.ParentHash)
	fmt.Fprintf(w, "  Timestamp:    %s\n", FormatTimestamp(b.Timestamp))
	if b.Miner != "" {
		fmt.Fprintf(w, "  Miner:        %s\n", b.Miner)
	}
	if b.GasLimit > 0 {
		fmt.Fprintf(w, "  Gas:          %s / %s (%.1f%%)\n",
			FormatNumber(b.GasUsed),
			FormatNumber(b.GasLimit),
			float64(b.GasUsed)/float64(b.GasLimit)*100)
	} else {
		fmt.Fprintf(w, "  Gas:          %s / %s\n",
			FormatNumber(b.GasUsed), FormatNumber(b.GasLimit))
	}
	fmt.Fprintf(w, "  Base Fee:     %s\n", FormatGwei(b.BaseFeePerGas))
	fmt.Fprintf(w, "  Transactions: %d\n", b.TxCount())
	fmt.Fprintln(w)
}

// Transaction writes a transaction detail view.
func Transaction(w io.Writer, tx *types.Transaction) {
	fmt.Fprintf(w, "\n%s\n", bold("Transaction"))
	fmt.Fprintln(w, "═══════════════════════════════════════════════════")
	fmt.Fprintf(w, "  Hash:       %s\n", tx.Hash)
	fmt.Fprintf(w, "  Status:     %s\n", formatStatus(tx.Status))
	fmt.Fprintf(w, "  From:       %s\n", tx.From)
	if tx.CreatesContract() {
		fmt.Fprintf(w, "  To:         %s\n", yellow("(contract creation)"))
	} else {
		fmt.Fprintf(w, "  To:         %s\n", tx.To)
	}
	fmt.Fprintf(w, "  Value:      %s\n", FormatWei(tx.Value))
	fmt.Fprintf(w, "  Nonce:      %d\n", tx.Nonce)
	fmt.Fprintf(w, "  Gas Limit:  %s\n", FormatNumber(tx.Gas))
	if tx.GasPrice != nil {
		fmt.Fprintf(w, "  Gas Price:  %s\n", FormatGwei(tx.GasPrice))
	}
	if tx.MaxFeePerGas != nil {
		fmt.Fprintf(w, "  Max Fee:    %s (priority %s)\n",
			FormatGwei(tx.MaxFeePerGas), FormatGwei(tx.MaxPriorityFeePerGas))
	}
	if tx.BlockNumber != nil {
		fmt.Fprintf(w, "  Block:      #%s (%s)\n", FormatNumber(*tx.BlockNumber), ShortHash(tx.BlockHash))
	}
	if fee := tx.Fee(); fee != nil {
		fmt.Fprintf(w, "  Gas Used:   %s\n", FormatNumber(tx.GasUsed))
		fmt.Fprintf(w, "  Fee:        %s\n", FormatWei(fee))
	}
	fmt.Fprintln(w)
}

// Account writes an account snapshot view.
func Account(w io.Writer, a *types.AccountSnapshot) {
	fmt.Fprintf(w, "\n%s (at %s)\n", bold("Account"), a.At)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════")
	fmt.Fprintf(w, "  Address:  %s\n", a.Address)
	fmt.Fprintf(w, "  Balance:  %s\n", FormatWei(a.Balance))
	fmt.Fprintf(w, "  Nonce:    %d\n", a.Nonce)
	if a.IsContract() {
		fmt.Fprintf(w, "  Type:     %s\n", yellow("smart contract"))
		fmt.Fprintf(w, "  Code:     %s bytes\n", FormatNumber(uint64(a.CodeSize())))
	} else {
		fmt.Fprintf(w, "  Type:     externally owned account\n")
	}
	fmt.Fprintln(w)
}

// Blocks writes a most-recent-first block table.
func Blocks(w io.Writer, blocks []*types.Block) {
	tbl := table.New("Block #", "Hash", "Txs", "Gas Used", "Base Fee", "Age")
	tbl.WithHeaderFormatter(headerFmt)
	tbl.WithWriter(w)

	for _, b := range blocks {
		tbl.AddRow(
			FormatNumber(b.Number),
			ShortHash(b.Hash),
			b.TxCount(),
			FormatNumber(b.GasUsed),
			FormatGwei(b.BaseFeePerGas),
			FormatTimestamp(b.Timestamp),
		)
	}
	fmt.Fprintln(w)
	tbl.Print()
	fmt.Fprintln(w)
}

// GasStats writes a gas statistics table for a block range.
func GasStats(w io.Writer, s *types.GasStatistics) {
	fmt.Fprintf(w, "\n%s (blocks %s – %s)\n",
		bold("Gas Statistics"), FormatNumber(s.FromBlock), FormatNumber(s.ToBlock))

	tbl := table.New("Metric", "Value")
	tbl.WithHeaderFormatter(headerFmt)
	tbl.WithWriter(w)

	tbl.AddRow("Blocks Analyzed", s.BlockCount)
	tbl.AddRow("Total Transactions", FormatNumber(uint64(s.TotalTxs)))
	tbl.AddRow("Total Gas Used", FormatNumber(s.TotalGasUsed))
	tbl.AddRow("Mean Gas Used", s.MeanGasUsed.Round(0).String())
	tbl.AddRow("Median Gas Used", FormatNumber(s.MedianGasUsed))
	tbl.AddRow("Min / Max Gas Used", fmt.Sprintf("%s / %s",
		FormatNumber(s.MinGasUsed), FormatNumber(s.MaxGasUsed)))
	tbl.AddRow("Mean Base Fee", FormatGweiDecimal(s.MeanBaseFee))
	tbl.AddRow("Mean Gas Price", FormatGweiDecimal(s.MeanGasPrice))
	tbl.AddRow("Utilization", fmt.Sprintf("%s%%", s.Utilization.Mul(hundred).Round(1)))
	tbl.Print()
	fmt.Fprintln(w)
}

func formatStatus(s types.TxStatus) string {
	switch s {
	case types.TxMined:
		return green("mined")
	case types.TxReverted:
		return red("reverted")
	default:
		return yellow("pending")
	}
}

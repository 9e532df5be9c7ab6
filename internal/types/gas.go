package types

import "github.com/shopspring/decimal"

// GasStatistics aggregates gas metrics over an inclusive block range.
// It is a derived value recomputed per query and never cached as a whole;
// only the underlying blocks may be cached.
type GasStatistics struct {
	FromBlock uint64
	ToBlock   uint64

	BlockCount int
	TotalTxs   int

	TotalGasUsed  uint64
	MeanGasUsed   decimal.Decimal
	MedianGasUsed uint64
	MinGasUsed    uint64
	MaxGasUsed    uint64

	// MeanBaseFee is the mean base fee per gas in wei across blocks that
	// carry one; zero when the range predates the London fork.
	MeanBaseFee decimal.Decimal

	// MeanGasPrice is the mean effective gas price in wei across every
	// transaction in the range; zero when the range has no transactions.
	MeanGasPrice decimal.Decimal

	// Utilization is mean gasUsed/gasLimit across the range, in [0,1].
	Utilization decimal.Decimal
}

// Package stats computes aggregate gas metrics over a set of blocks.
package stats

import (
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dmagro/eth-extractor/internal/types"
)

// ComputeGas derives GasStatistics for blocks covering [from, to]. The
// caller guarantees the slice is complete for the range; partial input is a
// service-level error, never computed around. Blocks may be in any order.
func ComputeGas(from, to uint64, blocks []*types.Block) types.GasStatistics {
	s := types.GasStatistics{
		FromBlock:  from,
		ToBlock:    to,
		BlockCount: len(blocks),
	}
	if len(blocks) == 0 {
		return s
	}

	gasUsed := make([]uint64, 0, len(blocks))
	var totalGasUsed, totalGasLimit uint64
	feeSum := new(big.Int)
	feeCount := 0
	priceSum := new(big.Int)
	priceCount := 0

	for _, b := range blocks {
		gasUsed = append(gasUsed, b.GasUsed)
		totalGasUsed += b.GasUsed
		totalGasLimit += b.GasLimit
		s.TotalTxs += b.TxCount()
		if b.BaseFeePerGas != nil {
			feeSum.Add(feeSum, b.BaseFeePerGas)
			feeCount++
		}
		for i := range b.Transactions {
			if p := effectiveGasPrice(&b.Transactions[i], b.BaseFeePerGas); p != nil {
				priceSum.Add(priceSum, p)
				priceCount++
			}
		}
	}

	n := decimal.NewFromInt(int64(len(blocks)))
	s.TotalGasUsed = totalGasUsed
	s.MeanGasUsed = decimal.NewFromBigInt(new(big.Int).SetUint64(totalGasUsed), 0).Div(n)
	s.MedianGasUsed = median(gasUsed)
	s.MinGasUsed, s.MaxGasUsed = bounds(gasUsed)

	if feeCount > 0 {
		s.MeanBaseFee = decimal.NewFromBigInt(feeSum, 0).Div(decimal.NewFromInt(int64(feeCount)))
	}
	if priceCount > 0 {
		s.MeanGasPrice = decimal.NewFromBigInt(priceSum, 0).Div(decimal.NewFromInt(int64(priceCount)))
	}
	if totalGasLimit > 0 {
		s.Utilization = decimal.NewFromBigInt(new(big.Int).SetUint64(totalGasUsed), 0).
			Div(decimal.NewFromBigInt(new(big.Int).SetUint64(totalGasLimit), 0))
	}
	return s
}

// effectiveGasPrice resolves what a transaction pays per gas unit: the
// declared price for legacy transactions, min(maxFee, baseFee+tip) for
// fee-market ones. Returns nil when the transaction carries no fee fields.
func effectiveGasPrice(tx *types.Transaction, baseFee *big.Int) *big.Int {
	if tx.EffectiveGasPrice != nil {
		return tx.EffectiveGasPrice
	}
	if tx.GasPrice != nil {
		return tx.GasPrice
	}
	if tx.MaxFeePerGas == nil {
		return nil
	}
	if baseFee == nil {
		return tx.MaxFeePerGas
	}
	price := new(big.Int).Set(baseFee)
	if tx.MaxPriorityFeePerGas != nil {
		price.Add(price, tx.MaxPriorityFeePerGas)
	}
	if price.Cmp(tx.MaxFeePerGas) > 0 {
		return tx.MaxFeePerGas
	}
	return price
}

// median returns the lower-median of samples using the nearest-rank method,
// so small sample sizes behave predictably.
func median(samples []uint64) uint64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]uint64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[(len(sorted)-1)/2]
}

func bounds(samples []uint64) (min, max uint64) {
	min, max = samples[0], samples[0]
	for _, v := range samples[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

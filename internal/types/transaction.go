package types

import "math/big"

// TxStatus describes where a transaction stands in its lifecycle.
// Reverted is only knowable after the receipt has been fetched.
type TxStatus int

const (
	TxPending TxStatus = iota
	TxMined
	TxReverted
)

func (s TxStatus) String() string {
	switch s {
	case TxMined:
		return "mined"
	case TxReverted:
		return "reverted"
	default:
		return "pending"
	}
}

// Transaction is a fully decoded Ethereum transaction. To is empty for
// contract-creation transactions. Legacy transactions carry GasPrice;
// fee-market (EIP-1559) transactions carry MaxFeePerGas and
// MaxPriorityFeePerGas instead. BlockHash/BlockNumber are unset while the
// transaction is pending.
type Transaction struct {
	Hash                 string
	From                 string
	To                   string
	Nonce                uint64
	Value                *big.Int
	Gas                  uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Input                string
	BlockHash            string
	BlockNumber          *uint64
	Status               TxStatus

	// Receipt-derived fields, zero until a receipt has been fetched.
	GasUsed           uint64
	EffectiveGasPrice *big.Int
}

// Pending reports whether the transaction has not been mined yet.
func (t *Transaction) Pending() bool { return t.BlockHash == "" }

// CreatesContract reports whether this is a contract-creation transaction.
func (t *Transaction) CreatesContract() bool { return t.To == "" }

// Fee returns gasUsed * effectiveGasPrice in wei, or nil if the receipt has
// not been fetched.
func (t *Transaction) Fee() *big.Int {
	if t.EffectiveGasPrice == nil {
		return nil
	}
	return new(big.Int).Mul(t.EffectiveGasPrice, new(big.Int).SetUint64(t.GasUsed))
}

// Receipt is the mined outcome of a transaction.
type Receipt struct {
	TxHash            string
	BlockHash         string
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Reverted          bool
}

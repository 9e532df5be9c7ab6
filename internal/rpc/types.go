package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/dmagro/eth-extractor/internal/types"
)

// request is a JSON-RPC 2.0 request envelope. IDs are assigned by the
// client, monotonically increasing per instance, and used to correlate
// batch responses.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

// response is a JSON-RPC 2.0 response envelope. Result stays raw until the
// typed method that issued the request decodes it.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *respError      `json:"error,omitempty"`
}

type respError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// wireBlock is a block exactly as it arrives: every numeric field is a
// hex-encoded string. Transactions stays raw because its element type
// depends on the include-full-tx request flag.
type wireBlock struct {
	Number        string          `json:"number"`
	Hash          string          `json:"hash"`
	ParentHash    string          `json:"parentHash"`
	Timestamp     string          `json:"timestamp"`
	Miner         string          `json:"miner"`
	GasUsed       string          `json:"gasUsed"`
	GasLimit      string          `json:"gasLimit"`
	BaseFeePerGas string          `json:"baseFeePerGas,omitempty"`
	Transactions  json.RawMessage `json:"transactions"`
}

type wireTx struct {
	Hash                 string `json:"hash"`
	From                 string `json:"from"`
	To                   string `json:"to"`
	Nonce                string `json:"nonce"`
	Value                string `json:"value"`
	Gas                  string `json:"gas"`
	GasPrice             string `json:"gasPrice,omitempty"`
	MaxFeePerGas         string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas,omitempty"`
	Input                string `json:"input"`
	BlockHash            string `json:"blockHash"`
	BlockNumber          string `json:"blockNumber"`
}

type wireReceipt struct {
	TransactionHash   string `json:"transactionHash"`
	BlockHash         string `json:"blockHash"`
	BlockNumber       string `json:"blockNumber"`
	GasUsed           string `json:"gasUsed"`
	EffectiveGasPrice string `json:"effectiveGasPrice,omitempty"`
	Status            string `json:"status"`
}

func (w *wireBlock) decode() (*types.Block, error) {
	num, err := parseQuantity(w.Number)
	if err != nil {
		return nil, fmt.Errorf("number: %w", err)
	}
	ts, err := parseQuantity(w.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	gasUsed, err := parseQuantity(w.GasUsed)
	if err != nil {
		return nil, fmt.Errorf("gasUsed: %w", err)
	}
	gasLimit, err := parseQuantity(w.GasLimit)
	if err != nil {
		return nil, fmt.Errorf("gasLimit: %w", err)
	}
	// Pending views arrive with null hash fields; the block has not been
	// sealed yet. Anything non-null must still be a well-formed hash.
	if w.Hash != "" {
		if err := validateHash(w.Hash); err != nil {
			return nil, err
		}
	}
	if w.ParentHash != "" {
		if err := validateHash(w.ParentHash); err != nil {
			return nil, err
		}
	}

	var baseFee *big.Int
	if w.BaseFeePerGas != "" {
		baseFee, err = parseBigQuantity(w.BaseFeePerGas)
		if err != nil {
			return nil, fmt.Errorf("baseFeePerGas: %w", err)
		}
	}

	b := &types.Block{
		Number:        num,
		Hash:          w.Hash,
		ParentHash:    w.ParentHash,
		Timestamp:     ts,
		Miner:         w.Miner,
		GasUsed:       gasUsed,
		GasLimit:      gasLimit,
		BaseFeePerGas: baseFee,
	}

	if len(w.Transactions) == 0 {
		return b, nil
	}

	// Hash-only mode first; fall back to full bodies.
	var hashes []string
	if err := json.Unmarshal(w.Transactions, &hashes); err == nil {
		for _, h := range hashes {
			if err := validateHash(h); err != nil {
				return nil, fmt.Errorf("transactions: %w", err)
			}
		}
		b.TxHashes = hashes
		return b, nil
	}

	var txs []wireTx
	if err := json.Unmarshal(w.Transactions, &txs); err != nil {
		return nil, fmt.Errorf("transactions: %w", err)
	}
	b.Transactions = make([]types.Transaction, 0, len(txs))
	for i := range txs {
		tx, err := txs[i].decode()
		if err != nil {
			return nil, fmt.Errorf("transactions[%d]: %w", i, err)
		}
		b.Transactions = append(b.Transactions, *tx)
	}
	return b, nil
}

func (w *wireTx) decode() (*types.Transaction, error) {
	if err := validateHash(w.Hash); err != nil {
		return nil, err
	}
	nonce, err := parseQuantity(w.Nonce)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	value, err := parseBigQuantity(w.Value)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	gas, err := parseQuantity(w.Gas)
	if err != nil {
		return nil, fmt.Errorf("gas: %w", err)
	}

	tx := &types.Transaction{
		Hash:      w.Hash,
		From:      w.From,
		To:        w.To,
		Nonce:     nonce,
		Value:     value,
		Gas:       gas,
		Input:     w.Input,
		BlockHash: w.BlockHash,
	}

	if w.GasPrice != "" {
		if tx.GasPrice, err = parseBigQuantity(w.GasPrice); err != nil {
			return nil, fmt.Errorf("gasPrice: %w", err)
		}
	}
	if w.MaxFeePerGas != "" {
		if tx.MaxFeePerGas, err = parseBigQuantity(w.MaxFeePerGas); err != nil {
			return nil, fmt.Errorf("maxFeePerGas: %w", err)
		}
	}
	if w.MaxPriorityFeePerGas != "" {
		if tx.MaxPriorityFeePerGas, err = parseBigQuantity(w.MaxPriorityFeePerGas); err != nil {
			return nil, fmt.Errorf("maxPriorityFeePerGas: %w", err)
		}
	}

	// blockNumber is null while the transaction is pending.
	if w.BlockNumber != "" {
		n, err := parseQuantity(w.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("blockNumber: %w", err)
		}
		tx.BlockNumber = &n
		tx.Status = types.TxMined
	}
	return tx, nil
}

func (w *wireReceipt) decode() (*types.Receipt, error) {
	blockNum, err := parseQuantity(w.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("blockNumber: %w", err)
	}
	gasUsed, err := parseQuantity(w.GasUsed)
	if err != nil {
		return nil, fmt.Errorf("gasUsed: %w", err)
	}
	status, err := parseQuantity(w.Status)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	r := &types.Receipt{
		TxHash:      w.TransactionHash,
		BlockHash:   w.BlockHash,
		BlockNumber: blockNum,
		GasUsed:     gasUsed,
		Reverted:    status == 0,
	}
	if w.EffectiveGasPrice != "" {
		if r.EffectiveGasPrice, err = parseBigQuantity(w.EffectiveGasPrice); err != nil {
			return nil, fmt.Errorf("effectiveGasPrice: %w", err)
		}
	}
	return r, nil
}

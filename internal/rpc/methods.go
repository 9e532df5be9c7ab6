package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/dmagro/eth-extractor/internal/types"
)

// blockParam renders a BlockID as the RPC parameter for *byNumber methods.
func blockParam(id types.BlockID) string {
	if id.IsNumber() {
		return encodeQuantity(id.Number())
	}
	return string(id.Tag())
}

// BlockNumber calls eth_blockNumber and returns the current chain head.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	raw, err := c.call(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return 0, &Error{Kind: KindMalformed, Method: "eth_blockNumber", Err: err}
	}
	n, err := parseQuantity(hex)
	if err != nil {
		return 0, &Error{Kind: KindDecodeError, Method: "eth_blockNumber", Err: err}
	}
	return n, nil
}

// BlockByID fetches a block by number, hash, or tag. fullTx selects full
// transaction bodies instead of hashes. Returns NotFound for unknown blocks.
func (c *Client) BlockByID(ctx context.Context, id types.BlockID, fullTx bool) (*types.Block, error) {
	method := "eth_getBlockByNumber"
	param := blockParam(id)
	if id.IsHash() {
		method = "eth_getBlockByHash"
		param = id.Hash()
	}

	raw, err := c.call(ctx, method, param, fullTx)
	if err != nil {
		return nil, err
	}
	return decodeBlockResult(method, raw)
}

func decodeBlockResult(method string, raw json.RawMessage) (*types.Block, error) {
	if isNull(raw) {
		return nil, &Error{Kind: KindNotFound, Method: method}
	}
	var wb wireBlock
	if err := json.Unmarshal(raw, &wb); err != nil {
		return nil, &Error{Kind: KindMalformed, Method: method, Err: err}
	}
	b, err := wb.decode()
	if err != nil {
		return nil, &Error{Kind: KindDecodeError, Method: method, Err: err}
	}
	return b, nil
}

// BlockResult is a per-block outcome of a batched range fetch.
type BlockResult struct {
	Number uint64
	Block  *types.Block
	Err    error
}

// BlockRange fetches blocks [from, to] inclusive in one batched transport
// round trip. Results are returned in ascending block order regardless of
// the order the node answered in. Per-block failures land in the
// corresponding BlockResult; a non-nil error means the batch itself failed.
func (c *Client) BlockRange(ctx context.Context, from, to uint64, fullTx bool) ([]BlockResult, error) {
	if to < from {
		return nil, &Error{Kind: KindInvalidRequest, Method: "eth_getBlockByNumber",
			Err: fmt.Errorf("invalid range [%d, %d]", from, to)}
	}

	n := int(to - from + 1)
	elems := make([]batchElem, n)
	for i := 0; i < n; i++ {
		elems[i] = batchElem{
			method: "eth_getBlockByNumber",
			params: []any{encodeQuantity(from + uint64(i)), fullTx},
		}
	}

	raws, err := c.batch(ctx, elems)
	if err != nil {
		return nil, err
	}

	results := make([]BlockResult, n)
	for i, r := range raws {
		num := from + uint64(i)
		results[i] = BlockResult{Number: num}
		if r.err != nil {
			results[i].Err = r.err
			continue
		}
		b, err := decodeBlockResult("eth_getBlockByNumber", r.raw)
		if err != nil {
			results[i].Err = err
			continue
		}
		if b.Number != num {
			results[i].Err = &Error{Kind: KindMalformed, Method: "eth_getBlockByNumber",
				Err: fmt.Errorf("requested block %d, got %d", num, b.Number)}
			continue
		}
		results[i].Block = b
	}
	return results, nil
}

// TransactionByHash fetches a transaction. Returns NotFound if the node has
// never seen the hash. The Status field is TxPending until a receipt
// confirms otherwise.
func (c *Client) TransactionByHash(ctx context.Context, hash string) (*types.Transaction, error) {
	raw, err := c.call(ctx, "eth_getTransactionByHash", hash)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, &Error{Kind: KindNotFound, Method: "eth_getTransactionByHash"}
	}
	var wt wireTx
	if err := json.Unmarshal(raw, &wt); err != nil {
		return nil, &Error{Kind: KindMalformed, Method: "eth_getTransactionByHash", Err: err}
	}
	tx, err := wt.decode()
	if err != nil {
		return nil, &Error{Kind: KindDecodeError, Method: "eth_getTransactionByHash", Err: err}
	}
	return tx, nil
}

// TransactionReceipt fetches a transaction receipt. Returns NotFound while
// the transaction is pending (nodes answer null until it is mined).
func (c *Client) TransactionReceipt(ctx context.Context, hash string) (*types.Receipt, error) {
	raw, err := c.call(ctx, "eth_getTransactionReceipt", hash)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, &Error{Kind: KindNotFound, Method: "eth_getTransactionReceipt"}
	}
	var wr wireReceipt
	if err := json.Unmarshal(raw, &wr); err != nil {
		return nil, &Error{Kind: KindMalformed, Method: "eth_getTransactionReceipt", Err: err}
	}
	r, err := wr.decode()
	if err != nil {
		return nil, &Error{Kind: KindDecodeError, Method: "eth_getTransactionReceipt", Err: err}
	}
	return r, nil
}

// Balance calls eth_getBalance for addr at the given block.
func (c *Client) Balance(ctx context.Context, addr string, at types.BlockID) (*big.Int, error) {
	return c.quantityCall(ctx, "eth_getBalance", addr, at)
}

// TransactionCount calls eth_getTransactionCount (the account nonce).
func (c *Client) TransactionCount(ctx context.Context, addr string, at types.BlockID) (uint64, error) {
	v, err := c.quantityCall(ctx, "eth_getTransactionCount", addr, at)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, &Error{Kind: KindDecodeError, Method: "eth_getTransactionCount",
			Err: fmt.Errorf("nonce overflows uint64")}
	}
	return v.Uint64(), nil
}

// Code calls eth_getCode. An address with no deployed code yields "0x",
// not an error.
func (c *Client) Code(ctx context.Context, addr string, at types.BlockID) (string, error) {
	raw, err := c.call(ctx, "eth_getCode", addr, blockParam(at))
	if err != nil {
		return "", err
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return "", &Error{Kind: KindMalformed, Method: "eth_getCode", Err: err}
	}
	if err := validateData(hex); err != nil {
		return "", &Error{Kind: KindDecodeError, Method: "eth_getCode", Err: err}
	}
	return hex, nil
}

func (c *Client) quantityCall(ctx context.Context, method, addr string, at types.BlockID) (*big.Int, error) {
	raw, err := c.call(ctx, method, addr, blockParam(at))
	if err != nil {
		return nil, err
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return nil, &Error{Kind: KindMalformed, Method: method, Err: err}
	}
	v, err := parseBigQuantity(hex)
	if err != nil {
		return nil, &Error{Kind: KindDecodeError, Method: method, Err: err}
	}
	return v, nil
}

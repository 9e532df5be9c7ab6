package extract

import (
	"context"
	"math/big"

	"github.com/dmagro/eth-extractor/internal/rpc"
	"github.com/dmagro/eth-extractor/internal/types"
)

// ChainReader is the slice of the RPC client the service consumes.
// *rpc.Client satisfies it; tests substitute instrumented fakes.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByID(ctx context.Context, id types.BlockID, fullTx bool) (*types.Block, error)
	BlockRange(ctx context.Context, from, to uint64, fullTx bool) ([]rpc.BlockResult, error)
	TransactionByHash(ctx context.Context, hash string) (*types.Transaction, error)
	TransactionReceipt(ctx context.Context, hash string) (*types.Receipt, error)
	Balance(ctx context.Context, addr string, at types.BlockID) (*big.Int, error)
	TransactionCount(ctx context.Context, addr string, at types.BlockID) (uint64, error)
	Code(ctx context.Context, addr string, at types.BlockID) (string, error)
}

var _ ChainReader = (*rpc.Client)(nil)

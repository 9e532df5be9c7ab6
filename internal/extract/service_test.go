package extract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dmagro/eth-extractor/internal/cache"
	"github.com/dmagro/eth-extractor/internal/rpc"
	"github.com/dmagro/eth-extractor/internal/types"
)

// fakeChain serves canned blocks and counts every call per method.
type fakeChain struct {
	mu    sync.Mutex
	head  uint64
	calls map[string]int

	balanceErr error
	nonceErr   error
	codeErr    error
	rangeErr   error
	failBlocks map[uint64]error
	pendingTx  bool
	noReceipt  bool
	reverted   bool

	// Optional gates to hold a fetch open while callers pile up.
	txHold      chan struct{}
	balanceHold chan struct{}
}

func newFakeChain(head uint64) *fakeChain {
	return &fakeChain{head: head, calls: map[string]int{}}
}

func (f *fakeChain) count(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *fakeChain) callsTo(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeChain) block(n uint64) *types.Block {
	return &types.Block{
		Number:     n,
		Hash:       fmt.Sprintf("0x%064x", n),
		ParentHash: fmt.Sprintf("0x%064x", n-1),
		GasUsed:    21000 + n,
		GasLimit:   30_000_000,
		TxHashes:   []string{fmt.Sprintf("0x%064x", n*7+1)},
	}
}

func (f *fakeChain) fullBlock(n uint64) *types.Block {
	b := f.block(n)
	b.TxHashes = nil
	b.Transactions = []types.Transaction{{
		Hash:     fmt.Sprintf("0x%064x", n*7+1),
		Gas:      21000,
		GasPrice: big.NewInt(30_000_000_000),
	}}
	return b
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	f.count("BlockNumber")
	return f.head, nil
}

func (f *fakeChain) BlockByID(ctx context.Context, id types.BlockID, fullTx bool) (*types.Block, error) {
	f.count("BlockByID")
	switch {
	case id.IsNumber():
		return f.block(id.Number()), nil
	case id.IsHash():
		return f.block(7), nil
	default:
		if id.Tag() == types.TagPending {
			b := f.block(f.head + 1)
			b.Hash = ""
			return b, nil
		}
		return f.block(f.head), nil
	}
}

func (f *fakeChain) BlockRange(ctx context.Context, from, to uint64, fullTx bool) ([]rpc.BlockResult, error) {
	f.count("BlockRange")
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	// Deliver results in reverse order; the service reassembles by number.
	results := make([]rpc.BlockResult, 0, to-from+1)
	for n := to; ; n-- {
		switch {
		case f.failBlocks[n] != nil:
			results = append(results, rpc.BlockResult{Number: n, Err: f.failBlocks[n]})
		case fullTx:
			results = append(results, rpc.BlockResult{Number: n, Block: f.fullBlock(n)})
		default:
			results = append(results, rpc.BlockResult{Number: n, Block: f.block(n)})
		}
		if n == from {
			break
		}
	}
	return results, nil
}

func (f *fakeChain) TransactionByHash(ctx context.Context, hash string) (*types.Transaction, error) {
	f.count("TransactionByHash")
	if f.txHold != nil {
		<-f.txHold
	}
	tx := &types.Transaction{Hash: hash, Gas: 21000}
	if f.pendingTx {
		tx.Status = types.TxPending
		return tx, nil
	}
	n := f.head - 100
	tx.Status = types.TxMined
	tx.BlockHash = fmt.Sprintf("0x%064x", n)
	tx.BlockNumber = &n
	return tx, nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, hash string) (*types.Receipt, error) {
	f.count("TransactionReceipt")
	if f.noReceipt {
		return nil, &rpc.Error{Kind: rpc.KindNotFound, Method: "eth_getTransactionReceipt"}
	}
	return &types.Receipt{
		TxHash:            hash,
		BlockNumber:       f.head - 100,
		GasUsed:           21000,
		EffectiveGasPrice: big.NewInt(20_000_000_000),
		Reverted:          f.reverted,
	}, nil
}

func (f *fakeChain) Balance(ctx context.Context, addr string, at types.BlockID) (*big.Int, error) {
	f.count("Balance")
	if f.balanceHold != nil {
		<-f.balanceHold
	}
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return big.NewInt(1_000_000_000_000_000_000), nil
}

func (f *fakeChain) TransactionCount(ctx context.Context, addr string, at types.BlockID) (uint64, error) {
	f.count("TransactionCount")
	if f.nonceErr != nil {
		return 0, f.nonceErr
	}
	return 42, nil
}

func (f *fakeChain) Code(ctx context.Context, addr string, at types.BlockID) (string, error) {
	f.count("Code")
	if f.codeErr != nil {
		return "", f.codeErr
	}
	return "0x", nil
}

const testAddr = "0x742d35cc6634c0532925a3b844bc454e4438f44e"

func newTestService(t *testing.T, chain ChainReader) *Service {
	t.Helper()
	return NewService(chain, cache.New(128, nil), Config{
		MaxLatestBlocks: 100,
		MaxRangeBlocks:  100,
		BatchSize:       10,
		FinalityDepth:   64,
	}, zaptest.NewLogger(t))
}

func TestGetBlockByHashCachesForever(t *testing.T) {
	chain := newFakeChain(1000)
	svc := newTestService(t, chain)
	ctx := context.Background()

	hash := fmt.Sprintf("0x%064x", 7)
	b1, err := svc.GetBlock(ctx, types.BlockIDHash(hash), false)
	require.NoError(t, err)
	b2, err := svc.GetBlock(ctx, types.BlockIDHash(hash), false)
	require.NoError(t, err)

	assert.Same(t, b1, b2)
	assert.Equal(t, 1, chain.callsTo("BlockByID"), "second lookup must be served from cache")
}

func TestGetBlockByNumberCachesOnlyFinalized(t *testing.T) {
	chain := newFakeChain(1000)
	svc := newTestService(t, chain)
	ctx := context.Background()

	// Establish the head watermark.
	_, err := svc.Head(ctx)
	require.NoError(t, err)

	// 900 is 100 behind head: finalized, cached after first fetch.
	_, err = svc.GetBlock(ctx, types.BlockIDNumber(900), false)
	require.NoError(t, err)
	_, err = svc.GetBlock(ctx, types.BlockIDNumber(900), false)
	require.NoError(t, err)
	assert.Equal(t, 1, chain.callsTo("BlockByID"))

	// 990 is only 10 behind head: every lookup goes to the node.
	_, err = svc.GetBlock(ctx, types.BlockIDNumber(990), false)
	require.NoError(t, err)
	_, err = svc.GetBlock(ctx, types.BlockIDNumber(990), false)
	require.NoError(t, err)
	assert.Equal(t, 3, chain.callsTo("BlockByID"))
}

func TestGetBlockByTagNeverCached(t *testing.T) {
	chain := newFakeChain(1000)
	svc := newTestService(t, chain)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b, err := svc.GetBlock(ctx, types.BlockIDTag(types.TagLatest), false)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), b.Number)
	}
	assert.Equal(t, 3, chain.callsTo("BlockByID"))
	assert.Equal(t, uint64(1000), svc.head.Load(), "latest lookups must advance the head watermark")
}

func TestGetBlockFullAndHashOnlyCachedSeparately(t *testing.T) {
	chain := newFakeChain(1000)
	svc := newTestService(t, chain)
	ctx := context.Background()

	hash := fmt.Sprintf("0x%064x", 7)
	_, err := svc.GetBlock(ctx, types.BlockIDHash(hash), false)
	require.NoError(t, err)
	_, err = svc.GetBlock(ctx, types.BlockIDHash(hash), true)
	require.NoError(t, err)
	assert.Equal(t, 2, chain.callsTo("BlockByID"), "fetch modes must not share cache entries")
}

func TestGetTransactionMergesReceipt(t *testing.T) {
	chain := newFakeChain(1000)
	svc := newTestService(t, chain)

	tx, err := svc.GetTransaction(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, types.TxMined, tx.Status)
	assert.Equal(t, uint64(21000), tx.GasUsed)
	require.NotNil(t, tx.EffectiveGasPrice)
}

func TestGetTransactionCachedOnceFinalized(t *testing.T) {
	chain := newFakeChain(1000)
	svc := newTestService(t, chain)
	ctx := context.Background()

	// Seed the watermark so a tx mined at head-100 counts as finalized.
	_, err := svc.Head(ctx)
	require.NoError(t, err)

	_, err = svc.GetTransaction(ctx, "0xabc")
	require.NoError(t, err)
	_, err = svc.GetTransaction(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 1, chain.callsTo("TransactionByHash"))
	assert.Equal(t, 1, chain.callsTo("TransactionReceipt"))
}

func TestGetTransactionPendingNeverCached(t *testing.T) {
	chain := newFakeChain(1000)
	chain.pendingTx = true
	svc := newTestService(t, chain)
	ctx := context.Background()

	tx, err := svc.GetTransaction(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, types.TxPending, tx.Status)
	assert.Equal(t, uint64(0), tx.GasUsed)

	_, err = svc.GetTransaction(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 2, chain.callsTo("TransactionByHash"))
	assert.Equal(t, 0, chain.callsTo("TransactionReceipt"))
}

func TestGetTransactionMissingReceiptReportsPending(t *testing.T) {
	chain := newFakeChain(1000)
	chain.noReceipt = true
	svc := newTestService(t, chain)

	tx, err := svc.GetTransaction(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, types.TxPending, tx.Status)
}

func TestGetTransactionReverted(t *testing.T) {
	chain := newFakeChain(1000)
	chain.reverted = true
	svc := newTestService(t, chain)

	tx, err := svc.GetTransaction(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, types.TxReverted, tx.Status)
}

func TestGetAccountSnapshot(t *testing.T) {
	chain := newFakeChain(1000)
	svc := newTestService(t, chain)

	snap, err := svc.GetAccount(context.Background(), testAddr, types.BlockIDTag(types.TagLatest))
	require.NoError(t, err)
	assert.Equal(t, testAddr, snap.Address)
	assert.Equal(t, uint64(42), snap.Nonce)
	assert.Equal(t, "0x", snap.Code)
	assert.False(t, snap.IsContract())
	require.NotNil(t, snap.Balance)
}

func TestGetAccountRejectsMalformedAddress(t *testing.T) {
	chain := newFakeChain(1000)
	svc := newTestService(t, chain)

	_, err := svc.GetAccount(context.Background(), "0x1234", types.BlockIDTag(types.TagLatest))
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err))
	assert.Equal(t, 0, chain.callsTo("Balance"), "validation must happen before any RPC")
}

func TestGetAccountAllOrNothing(t *testing.T) {
	chain := newFakeChain(1000)
	chain.nonceErr = errors.New("nonce boom")
	svc := newTestService(t, chain)

	snap, err := svc.GetAccount(context.Background(), testAddr, types.BlockIDTag(types.TagLatest))
	require.Error(t, err)
	assert.Nil(t, snap, "no partial snapshot on sub-call failure")
	assert.True(t, IsPartialFailure(err))

	// Collect-all: the other two sub-calls still ran.
	assert.Equal(t, 1, chain.callsTo("Balance"))
	assert.Equal(t, 1, chain.callsTo("Code"))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Detail, "nonce boom")
}

func TestGetTransactionConcurrentLookupsShareOneFetch(t *testing.T) {
	chain := newFakeChain(1000)
	chain.txHold = make(chan struct{})
	svc := newTestService(t, chain)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetTransaction(ctx, "0xabc")
			assert.NoError(t, err)
		}()
	}
	// Let the goroutines pile onto the in-flight fetch before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(chain.txHold)
	wg.Wait()

	assert.Equal(t, 1, chain.callsTo("TransactionByHash"))
}

func TestGetAccountConcurrentLookupsShareOneFetch(t *testing.T) {
	chain := newFakeChain(1000)
	chain.balanceHold = make(chan struct{})
	svc := newTestService(t, chain)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetAccount(ctx, testAddr, types.BlockIDNumber(900))
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(chain.balanceHold)
	wg.Wait()

	assert.Equal(t, 1, chain.callsTo("Balance"))
	assert.Equal(t, 1, chain.callsTo("TransactionCount"))
	assert.Equal(t, 1, chain.callsTo("Code"))
}

func TestGetAccountCachedOnceFinalized(t *testing.T) {
	chain := newFakeChain(1000)
	svc := newTestService(t, chain)
	ctx := context.Background()

	_, err := svc.Head(ctx)
	require.NoError(t, err)

	_, err = svc.GetAccount(ctx, testAddr, types.BlockIDNumber(900))
	require.NoError(t, err)
	_, err = svc.GetAccount(ctx, testAddr, types.BlockIDNumber(900))
	require.NoError(t, err)
	assert.Equal(t, 1, chain.callsTo("Balance"), "finalized snapshot must be served from cache")
}

func TestGetLatestBlocksOrdering(t *testing.T) {
	chain := newFakeChain(504)
	svc := newTestService(t, chain)

	blocks, err := svc.GetLatestBlocks(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, blocks, 5)
	for i, b := range blocks {
		assert.Equal(t, uint64(504-i), b.Number, "blocks must be most recent first")
	}
	assert.Equal(t, 1, chain.callsTo("BlockNumber"), "head resolved exactly once")
}

func TestGetLatestBlocksValidatesCount(t *testing.T) {
	chain := newFakeChain(504)
	svc := newTestService(t, chain)
	ctx := context.Background()

	_, err := svc.GetLatestBlocks(ctx, 0)
	assert.True(t, IsInvalidArgument(err))

	_, err = svc.GetLatestBlocks(ctx, 101)
	assert.True(t, IsInvalidArgument(err))

	assert.Equal(t, 0, chain.callsTo("BlockNumber"))
}

func TestGetLatestBlocksClampsAtGenesis(t *testing.T) {
	chain := newFakeChain(2)
	svc := newTestService(t, chain)

	blocks, err := svc.GetLatestBlocks(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.Equal(t, uint64(2), blocks[0].Number)
	assert.Equal(t, uint64(0), blocks[2].Number)
}

func TestGetGasStatisticsMean(t *testing.T) {
	chain := newFakeChain(1000)
	svc := newTestService(t, chain)

	gs, err := svc.GetGasStatistics(context.Background(), 100, 102)
	require.NoError(t, err)
	assert.Equal(t, 3, gs.BlockCount)
	// gasUsed is 21000+n per fake block: 21100, 21101, 21102.
	assert.Equal(t, uint64(63303), gs.TotalGasUsed)
	assert.Equal(t, uint64(21101), gs.MedianGasUsed)
}

func TestGetGasStatisticsMeanGasPrice(t *testing.T) {
	chain := newFakeChain(1000)
	svc := newTestService(t, chain)

	// Every fake transaction pays a flat 30 gwei.
	gs, err := svc.GetGasStatistics(context.Background(), 100, 102)
	require.NoError(t, err)
	assert.True(t, gs.MeanGasPrice.Equal(decimal.NewFromInt(30_000_000_000)),
		"mean gas price = %s", gs.MeanGasPrice)
}

func TestGetGasStatisticsValidatesRange(t *testing.T) {
	chain := newFakeChain(1000)
	svc := newTestService(t, chain)
	ctx := context.Background()

	_, err := svc.GetGasStatistics(ctx, 10, 5)
	assert.True(t, IsInvalidArgument(err))

	_, err = svc.GetGasStatistics(ctx, 0, 100)
	assert.True(t, IsInvalidArgument(err), "101 blocks exceeds the 100-block cap")

	assert.Equal(t, 0, chain.callsTo("BlockRange"))
}

func TestGetGasStatisticsReportsFailedBlocks(t *testing.T) {
	chain := newFakeChain(1000)
	chain.failBlocks = map[uint64]error{
		101: errors.New("pruned"),
		103: errors.New("pruned"),
	}
	svc := newTestService(t, chain)

	_, err := svc.GetGasStatistics(context.Background(), 100, 104)
	require.Error(t, err)
	assert.True(t, IsPartialFailure(err))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []uint64{101, 103}, se.FailedBlocks)
}

func TestFetchRangeReusesFinalizedBlocks(t *testing.T) {
	chain := newFakeChain(1000)
	svc := newTestService(t, chain)
	ctx := context.Background()

	// Seed the head watermark so [100, 102] is finalized and cacheable.
	_, err := svc.Head(ctx)
	require.NoError(t, err)

	_, err = svc.GetGasStatistics(ctx, 100, 102)
	require.NoError(t, err)
	assert.Equal(t, 1, chain.callsTo("BlockRange"))

	_, err = svc.GetGasStatistics(ctx, 100, 102)
	require.NoError(t, err)
	assert.Equal(t, 1, chain.callsTo("BlockRange"), "finalized blocks must come from cache")
}

func TestFetchRangeSplitsIntoBatches(t *testing.T) {
	chain := newFakeChain(1000)
	svc := newTestService(t, chain)

	// 25 blocks with BatchSize 10 -> 3 batch round trips.
	_, err := svc.GetGasStatistics(context.Background(), 100, 124)
	require.NoError(t, err)
	assert.Equal(t, 3, chain.callsTo("BlockRange"))
}

func TestRangeFetchCancelled(t *testing.T) {
	chain := newFakeChain(1000)
	svc := newTestService(t, chain)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.GetGasStatistics(ctx, 100, 102)
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
}

func TestChunkRuns(t *testing.T) {
	cases := []struct {
		name string
		nums []uint64
		size int
		want [][2]uint64
	}{
		{"contiguous", []uint64{1, 2, 3, 4, 5}, 10, [][2]uint64{{1, 5}}},
		{"split by size", []uint64{1, 2, 3, 4, 5}, 2, [][2]uint64{{1, 2}, {3, 4}, {5, 5}}},
		{"gap", []uint64{1, 2, 7, 8}, 10, [][2]uint64{{1, 2}, {7, 8}}},
		{"singletons", []uint64{3, 9}, 10, [][2]uint64{{3, 3}, {9, 9}}},
		{"empty", nil, 10, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, chunkRuns(tc.nums, tc.size))
		})
	}
}

// Package extract exposes the domain operations of the data-extraction
// core: single block and transaction lookups, account snapshots, latest-N
// block listings, and gas statistics over block ranges. It orchestrates the
// cache and the RPC client, and owns all multi-block fan-out and
// partial-failure aggregation.
package extract

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dmagro/eth-extractor/internal/cache"
	"github.com/dmagro/eth-extractor/internal/rpc"
	"github.com/dmagro/eth-extractor/internal/stats"
	"github.com/dmagro/eth-extractor/internal/types"
)

// Config bounds the service's per-request cost.
type Config struct {
	// MaxLatestBlocks caps GetLatestBlocks' count argument.
	MaxLatestBlocks int
	// MaxRangeBlocks caps the span of a GetGasStatistics range.
	MaxRangeBlocks int
	// BatchSize is the largest number of blocks fetched per batched
	// transport round trip.
	BatchSize int
	// MaxConcurrentBatches bounds concurrent batch round trips.
	MaxConcurrentBatches int
	// FinalityDepth is how far behind the observed head a block must be
	// before its contents are treated as immutable and cached.
	FinalityDepth uint64
}

// Service implements the five domain operations. It holds the only shared
// mutable state of the core (the cache and the head watermark); callers
// may invoke operations concurrently without coordination.
type Service struct {
	client ChainReader
	cache  *cache.Cache
	cfg    Config
	log    *zap.Logger

	// head is the highest block number this process has observed, used
	// to gate caching on finality. Zero means no head seen yet.
	head atomic.Uint64
}

// NewService wires the extraction service. cache may be nil to disable
// memoization entirely.
func NewService(client ChainReader, c *cache.Cache, cfg Config, log *zap.Logger) *Service {
	if cfg.MaxLatestBlocks <= 0 {
		cfg.MaxLatestBlocks = 1000
	}
	if cfg.MaxRangeBlocks <= 0 {
		cfg.MaxRangeBlocks = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxConcurrentBatches <= 0 {
		cfg.MaxConcurrentBatches = 4
	}
	if cfg.FinalityDepth == 0 {
		cfg.FinalityDepth = 64
	}
	return &Service{client: client, cache: c, cfg: cfg, log: log}
}

var addressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func keyBlockHash(hash string, fullTx bool) string { return "block/h/" + hash + mode(fullTx) }
func keyBlockNum(n uint64, fullTx bool) string     { return fmt.Sprintf("block/n/%d%s", n, mode(fullTx)) }
func keyTx(hash string) string                     { return "tx/" + hash }
func keyAccount(addr string, n uint64) string      { return fmt.Sprintf("acct/%s/%d", addr, n) }

func mode(fullTx bool) string {
	if fullTx {
		return "/full"
	}
	return ""
}

// observeHead advances the head watermark. Any fetched block proves the
// chain is at least that tall.
func (s *Service) observeHead(n uint64) {
	for {
		cur := s.head.Load()
		if n <= cur || s.head.CompareAndSwap(cur, n) {
			return
		}
	}
}

// finalized reports whether block n is deep enough behind the observed head
// to be treated as immutable. With no head observed yet, nothing is.
func (s *Service) finalized(n uint64) bool {
	head := s.head.Load()
	return head > 0 && n+s.cfg.FinalityDepth <= head
}

// GetBlock fetches a block by number, hash, or tag. Hash lookups are always
// cache-backed (a hash pins immutable contents); number lookups only once
// the block is finalized; tag lookups always hit the node.
func (s *Service) GetBlock(ctx context.Context, id types.BlockID, fullTx bool) (*types.Block, error) {
	op := fmt.Sprintf("get block %s", id)

	switch {
	case id.IsHash():
		b, err := s.cachedBlock(ctx, keyBlockHash(id.Hash(), fullTx), id, fullTx)
		return b, wrap(ctx, op, err)

	case id.IsNumber():
		n := id.Number()
		if s.finalized(n) {
			b, err := s.cachedBlock(ctx, keyBlockNum(n, fullTx), id, fullTx)
			return b, wrap(ctx, op, err)
		}
		b, err := s.client.BlockByID(ctx, id, fullTx)
		if err != nil {
			return nil, wrap(ctx, op, err)
		}
		s.observeHead(b.Number)
		return b, nil

	default:
		b, err := s.client.BlockByID(ctx, id, fullTx)
		if err != nil {
			return nil, wrap(ctx, op, err)
		}
		if id.Tag() != types.TagPending {
			s.observeHead(b.Number)
		}
		return b, nil
	}
}

func (s *Service) cachedBlock(ctx context.Context, key string, id types.BlockID, fullTx bool) (*types.Block, error) {
	if s.cache == nil {
		return s.client.BlockByID(ctx, id, fullTx)
	}
	v, err := s.cache.GetOrFetch(ctx, key, func() (any, bool, error) {
		b, err := s.client.BlockByID(ctx, id, fullTx)
		if err != nil {
			return nil, false, err
		}
		s.observeHead(b.Number)
		return b, true, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Block), nil
}

// GetTransaction fetches a transaction and, once it is mined, its receipt.
// Mined transactions in finalized blocks are cached; pending ones never are.
// Concurrent lookups for the same hash share one fetch.
func (s *Service) GetTransaction(ctx context.Context, hash string) (*types.Transaction, error) {
	op := fmt.Sprintf("get transaction %s", hash)

	if s.cache == nil {
		tx, err := s.fetchTransaction(ctx, hash)
		return tx, wrap(ctx, op, err)
	}

	v, err := s.cache.GetOrFetch(ctx, keyTx(hash), func() (any, bool, error) {
		tx, err := s.fetchTransaction(ctx, hash)
		if err != nil {
			return nil, false, err
		}
		store := tx.Status != types.TxPending && tx.BlockNumber != nil && s.finalized(*tx.BlockNumber)
		return tx, store, nil
	})
	if err != nil {
		return nil, wrap(ctx, op, err)
	}
	return v.(*types.Transaction), nil
}

func (s *Service) fetchTransaction(ctx context.Context, hash string) (*types.Transaction, error) {
	tx, err := s.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if tx.Pending() {
		return tx, nil
	}

	receipt, err := s.client.TransactionReceipt(ctx, hash)
	if err != nil {
		// A null receipt means the node now sees the tx as pending
		// again; report what we have without caching.
		if rpc.IsNotFound(err) {
			tx.Status = types.TxPending
			return tx, nil
		}
		return nil, err
	}

	tx.GasUsed = receipt.GasUsed
	tx.EffectiveGasPrice = receipt.EffectiveGasPrice
	if receipt.Reverted {
		tx.Status = types.TxReverted
	} else {
		tx.Status = types.TxMined
	}
	s.observeHead(receipt.BlockNumber)
	return tx, nil
}

// GetAccount fetches balance, nonce, and code concurrently and combines
// them into a snapshot. All three calls are always attempted so the error
// carries complete diagnostics, but any failure fails the whole operation;
// no partial snapshot is ever returned. Number-pinned snapshots share one
// fetch across concurrent callers and are cached once finalized.
func (s *Service) GetAccount(ctx context.Context, addr string, at types.BlockID) (*types.AccountSnapshot, error) {
	op := fmt.Sprintf("get account %s at %s", addr, at)

	if !addressRe.MatchString(addr) {
		return nil, invalidArg(op, "malformed address %q", addr)
	}

	if s.cache != nil && at.IsNumber() {
		v, err := s.cache.GetOrFetch(ctx, keyAccount(addr, at.Number()), func() (any, bool, error) {
			snap, err := s.fetchAccount(ctx, op, addr, at)
			if err != nil {
				return nil, false, err
			}
			return snap, s.finalized(at.Number()), nil
		})
		if err != nil {
			var se *Error
			if errors.As(err, &se) {
				return nil, err
			}
			return nil, wrap(ctx, op, err)
		}
		return v.(*types.AccountSnapshot), nil
	}
	return s.fetchAccount(ctx, op, addr, at)
}

func (s *Service) fetchAccount(ctx context.Context, op, addr string, at types.BlockID) (*types.AccountSnapshot, error) {
	snap := &types.AccountSnapshot{Address: addr, At: at}
	subErrs := make([]error, 3)

	// Collect-all fan-out: no fail-fast, every sub-call runs to completion.
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		var err error
		if snap.Balance, err = s.client.Balance(ctx, addr, at); err != nil {
			subErrs[0] = fmt.Errorf("balance: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if snap.Nonce, err = s.client.TransactionCount(ctx, addr, at); err != nil {
			subErrs[1] = fmt.Errorf("nonce: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if snap.Code, err = s.client.Code(ctx, addr, at); err != nil {
			subErrs[2] = fmt.Errorf("code: %w", err)
		}
	}()
	wg.Wait()

	var first error
	var details []string
	for _, err := range subErrs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		details = append(details, err.Error())
	}
	if first != nil {
		if ctx.Err() != nil && (errors.Is(first, context.Canceled) || errors.Is(first, context.DeadlineExceeded)) {
			return nil, &Error{Kind: KindCancelled, Op: op, Err: first}
		}
		return nil, &Error{
			Kind:   KindPartialFailure,
			Op:     op,
			Detail: strings.Join(details, "; "),
			Err:    first,
		}
	}

	return snap, nil
}

// Head resolves the current chain head number with a live call.
func (s *Service) Head(ctx context.Context) (uint64, error) {
	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		return 0, wrap(ctx, "get chain head", err)
	}
	s.observeHead(head)
	return head, nil
}

// GetLatestBlocks resolves the chain head once, then fetches the count most
// recent blocks in batches. The result is ordered most recent first.
func (s *Service) GetLatestBlocks(ctx context.Context, count int) ([]*types.Block, error) {
	op := fmt.Sprintf("get latest %d blocks", count)

	if count <= 0 {
		return nil, invalidArg(op, "count must be positive, got %d", count)
	}
	if count > s.cfg.MaxLatestBlocks {
		return nil, invalidArg(op, "count %d exceeds maximum %d", count, s.cfg.MaxLatestBlocks)
	}

	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		return nil, wrap(ctx, op, err)
	}
	s.observeHead(head)

	from := uint64(0)
	if uint64(count) <= head {
		from = head - uint64(count) + 1
	}

	blocks, err := s.fetchRange(ctx, op, from, head, false)
	if err != nil {
		return nil, err
	}

	// Most recent first.
	for i, j := 0, len(blocks)-1; i < j; i, j = i+1, j-1 {
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}
	return blocks, nil
}

// GetGasStatistics fetches every block in [from, to] and computes aggregate
// gas metrics. The computation is all-or-nothing: if any block fetch fails,
// the error reports which block numbers failed and no statistics are
// returned.
func (s *Service) GetGasStatistics(ctx context.Context, from, to uint64) (*types.GasStatistics, error) {
	op := fmt.Sprintf("get gas statistics [%d, %d]", from, to)

	if from > to {
		return nil, invalidArg(op, "range start %d exceeds end %d", from, to)
	}
	if span := to - from + 1; span > uint64(s.cfg.MaxRangeBlocks) {
		return nil, invalidArg(op, "range of %d blocks exceeds maximum %d", span, s.cfg.MaxRangeBlocks)
	}

	// Full bodies: the gas price aggregate needs per-transaction fees.
	blocks, err := s.fetchRange(ctx, op, from, to, true)
	if err != nil {
		return nil, err
	}
	gs := stats.ComputeGas(from, to, blocks)
	return &gs, nil
}

// fetchRange returns all blocks in [from, to] ascending. Cached blocks are
// reused; the rest are fetched in bounded concurrent batches and reassembled
// into request order. The cache is only populated once the entire range has
// been fetched successfully, so cancelled or failed range fetches leave no
// partial state behind.
func (s *Service) fetchRange(ctx context.Context, op string, from, to uint64, fullTx bool) ([]*types.Block, error) {
	n := int(to - from + 1)
	blocks := make([]*types.Block, n)

	var missing []uint64
	for i := 0; i < n; i++ {
		num := from + uint64(i)
		if s.cache != nil && s.finalized(num) {
			if v, ok := s.cache.Get(keyBlockNum(num, fullTx)); ok {
				blocks[i] = v.(*types.Block)
				continue
			}
		}
		missing = append(missing, num)
	}

	if len(missing) > 0 {
		var mu sync.Mutex
		failed := make(map[uint64]error)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.MaxConcurrentBatches)

		for _, run := range chunkRuns(missing, s.cfg.BatchSize) {
			run := run
			g.Go(func() error {
				results, err := s.client.BlockRange(gctx, run[0], run[1], fullTx)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					for num := run[0]; num <= run[1]; num++ {
						failed[num] = err
					}
					return nil // collect-all: report every failed block
				}
				for _, r := range results {
					if r.Err != nil {
						failed[r.Number] = r.Err
						continue
					}
					blocks[r.Number-from] = r.Block
				}
				return nil
			})
		}
		g.Wait()

		if err := ctx.Err(); err != nil {
			return nil, &Error{Kind: KindCancelled, Op: op, Err: err}
		}
		if len(failed) > 0 {
			nums := make([]uint64, 0, len(failed))
			for num := range failed {
				nums = append(nums, num)
			}
			sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
			s.log.Warn("range fetch incomplete",
				zap.String("op", op),
				zap.Int("failed", len(nums)))
			return nil, &Error{
				Kind:         KindPartialFailure,
				Op:           op,
				FailedBlocks: nums,
				Err:          failed[nums[0]],
			}
		}
	}

	s.observeHead(to)

	// Populate the cache only now that the whole range is present.
	if s.cache != nil {
		for _, b := range blocks {
			if s.finalized(b.Number) && !s.cache.Contains(keyBlockNum(b.Number, fullTx)) {
				s.cache.Add(keyBlockNum(b.Number, fullTx), b)
			}
		}
	}
	return blocks, nil
}

// chunkRuns splits a sorted list of block numbers into contiguous [from, to]
// runs of at most size blocks each.
func chunkRuns(nums []uint64, size int) [][2]uint64 {
	var runs [][2]uint64
	for i := 0; i < len(nums); {
		j := i + 1
		for j < len(nums) && nums[j] == nums[j-1]+1 && j-i < size {
			j++
		}
		runs = append(runs, [2]uint64{nums[i], nums[j-1]})
		i = j
	}
	return runs
}

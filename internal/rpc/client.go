// Package rpc encodes typed Ethereum requests into JSON-RPC 2.0 envelopes,
// decodes typed responses, and maps node-level errors into a closed error
// taxonomy. It knows nothing about HTTP; payload delivery is delegated to a
// Sender (the transport package in production, fakes in tests).
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dmagro/eth-extractor/internal/metrics"
)

// Sender delivers a serialized JSON-RPC payload and returns the raw response
// body. idempotent marks read-only calls as safe to retry.
type Sender interface {
	Send(ctx context.Context, payload []byte, idempotent bool) ([]byte, error)
}

// Client is a typed JSON-RPC client for a single endpoint. Request ids are
// monotonically increasing per instance. Safe for concurrent use.
type Client struct {
	sender  Sender
	nextID  atomic.Uint64
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewClient wraps a Sender. log must be non-nil; m may be nil.
func NewClient(s Sender, log *zap.Logger, m *metrics.Metrics) *Client {
	return &Client{sender: s, log: log, metrics: m}
}

// isNull reports whether a raw result is absent or JSON null. Nodes encode
// "unknown block/transaction" as a null result, not as an error.
func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// call issues a single request. Every supported method is a read, so the
// transport is always allowed to retry. The returned raw result may be null;
// typed methods decide whether that means NotFound.
func (c *Client) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	id := c.nextID.Add(1)
	payload, err := json.Marshal(request{JSONRPC: "2.0", Method: method, Params: params, ID: id})
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Method: method, Err: err}
	}

	c.metrics.RPCStarted()
	start := time.Now()
	body, err := c.sender.Send(ctx, payload, true)
	elapsed := time.Since(start)
	c.metrics.RPCFinished()

	if err != nil {
		c.metrics.ObserveRPCCall(method, "transport_error", elapsed)
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		c.metrics.ObserveRPCCall(method, KindMalformed.String(), elapsed)
		return nil, &Error{Kind: KindMalformed, Method: method, Err: fmt.Errorf("invalid response JSON: %w", err)}
	}
	if err := validateEnvelope(method, &resp, id); err != nil {
		c.metrics.ObserveRPCCall(method, KindMalformed.String(), elapsed)
		return nil, err
	}
	if resp.Error != nil {
		rerr := mapNodeError(method, resp.Error.Code, resp.Error.Message)
		c.metrics.ObserveRPCCall(method, rerr.Kind.String(), elapsed)
		return nil, rerr
	}

	c.metrics.ObserveRPCCall(method, "ok", elapsed)
	c.log.Debug("rpc call",
		zap.String("method", method),
		zap.Duration("latency", elapsed))
	return resp.Result, nil
}

// validateEnvelope enforces JSON-RPC 2.0 shape: correct version, matching
// id, and exactly one of result/error present. A null result counts as
// present; absence of both fields is malformed.
func validateEnvelope(method string, resp *response, wantID uint64) error {
	if resp.JSONRPC != "2.0" {
		return &Error{Kind: KindMalformed, Method: method,
			Err: fmt.Errorf("unexpected jsonrpc version %q", resp.JSONRPC)}
	}
	if resp.ID != wantID {
		return &Error{Kind: KindMalformed, Method: method,
			Err: fmt.Errorf("response id %d does not match request id %d", resp.ID, wantID)}
	}
	if resp.Error != nil && len(resp.Result) > 0 && !isNull(resp.Result) {
		return &Error{Kind: KindMalformed, Method: method,
			Err: fmt.Errorf("result and error both present")}
	}
	if resp.Error == nil && resp.Result == nil {
		return &Error{Kind: KindMalformed, Method: method,
			Err: fmt.Errorf("result and error both absent")}
	}
	return nil
}

// batchElem is one call inside a batch request.
type batchElem struct {
	method string
	params []any
}

// batchResult is the per-element outcome of a batch. Raw may be null.
type batchResult struct {
	raw json.RawMessage
	err error
}

// batch issues all elems in a single transport round trip and demultiplexes
// the responses by request id; response order is not assumed to match
// request order. The returned slice is positionally aligned with elems.
// A non-nil error means the batch as a whole failed.
func (c *Client) batch(ctx context.Context, elems []batchElem) ([]batchResult, error) {
	if len(elems) == 0 {
		return nil, nil
	}

	reqs := make([]request, len(elems))
	byID := make(map[uint64]int, len(elems))
	for i, e := range elems {
		params := e.params
		if params == nil {
			params = []any{}
		}
		id := c.nextID.Add(1)
		reqs[i] = request{JSONRPC: "2.0", Method: e.method, Params: params, ID: id}
		byID[id] = i
	}

	payload, err := json.Marshal(reqs)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Method: "batch", Err: err}
	}

	c.metrics.RPCStarted()
	start := time.Now()
	body, err := c.sender.Send(ctx, payload, true)
	elapsed := time.Since(start)
	c.metrics.RPCFinished()

	if err != nil {
		c.metrics.ObserveRPCCall("batch", "transport_error", elapsed)
		return nil, err
	}

	var resps []response
	if err := json.Unmarshal(body, &resps); err != nil {
		c.metrics.ObserveRPCCall("batch", KindMalformed.String(), elapsed)
		return nil, &Error{Kind: KindMalformed, Method: "batch", Err: fmt.Errorf("invalid batch response JSON: %w", err)}
	}

	results := make([]batchResult, len(elems))
	seen := make(map[uint64]bool, len(resps))
	for i := range resps {
		resp := &resps[i]
		idx, ok := byID[resp.ID]
		if !ok || seen[resp.ID] {
			c.metrics.ObserveRPCCall("batch", KindMalformed.String(), elapsed)
			return nil, &Error{Kind: KindMalformed, Method: "batch",
				Err: fmt.Errorf("unexpected response id %d", resp.ID)}
		}
		seen[resp.ID] = true

		method := elems[idx].method
		if err := validateEnvelope(method, resp, resp.ID); err != nil {
			results[idx] = batchResult{err: err}
			continue
		}
		if resp.Error != nil {
			results[idx] = batchResult{err: mapNodeError(method, resp.Error.Code, resp.Error.Message)}
			continue
		}
		results[idx] = batchResult{raw: resp.Result}
	}

	// Requests the node never answered are malformed, not silently nil.
	for id, idx := range byID {
		if !seen[id] {
			results[idx] = batchResult{err: &Error{Kind: KindMalformed, Method: elems[idx].method,
				Err: fmt.Errorf("no response for request id %d", id)}}
		}
	}

	c.metrics.ObserveRPCCall("batch", "ok", elapsed)
	c.log.Debug("rpc batch",
		zap.Int("size", len(elems)),
		zap.Duration("latency", elapsed))
	return results, nil
}

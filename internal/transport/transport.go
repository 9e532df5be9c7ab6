// Package transport issues JSON-RPC payloads over HTTP to a single Ethereum
// node endpoint. It owns connection pooling, per-request timeouts, retry with
// exponential backoff, client-side rate limiting, and a circuit breaker.
// Callers hand it an opaque payload and get back the raw response body; the
// rpc package on top is responsible for envelope semantics.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dmagro/eth-extractor/internal/metrics"
)

// Config controls a single HTTP transport instance.
type Config struct {
	URL         string
	Timeout     time.Duration // per-attempt HTTP timeout
	MaxRetries  int           // retries after the first attempt
	BackoffBase time.Duration // first retry delay; doubles per attempt

	RPS   float64 // client-side rate limit; 0 disables
	Burst int

	BreakerEnabled     bool
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// HTTP is a pooled JSON-RPC transport for one node endpoint. It is safe for
// concurrent use; the underlying http.Client reuses persistent connections.
type HTTP struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New creates an HTTP transport. log must be non-nil; m may be nil.
func New(cfg Config, log *zap.Logger, m *metrics.Metrics) *HTTP {
	t := &HTTP{
		url: cfg.URL,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg:     cfg,
		log:     log,
		metrics: m,
	}

	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	if cfg.BreakerEnabled {
		t.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "eth-http",
			Timeout: cfg.BreakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Info("circuit breaker state change",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
				if to == gobreaker.StateOpen {
					m.BreakerOpened()
				}
			},
		})
	}

	return t
}

// attemptError is the internal classification of a single failed attempt.
type attemptError struct {
	kind      Kind
	status    int
	retryable bool
	err       error
}

func (a *attemptError) Error() string { return a.err.Error() }

// Send posts payload to the endpoint and returns the raw response body.
// Transient failures (network errors, timeouts, HTTP 429, HTTP 5xx) are
// retried with exponential backoff and jitter, but only when idempotent is
// true; other HTTP errors fail immediately. The returned error is always a
// *Error or a context error.
func (t *HTTP) Send(ctx context.Context, payload []byte, idempotent bool) ([]byte, error) {
	var last *attemptError
	var made int

	maxAttempts := t.cfg.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		body, aerr := t.attempt(ctx, payload)
		made = attempt
		if aerr == nil {
			return body, nil
		}
		last = aerr

		if !idempotent || !aerr.retryable || attempt == maxAttempts {
			break
		}

		delay := t.backoff(attempt)
		t.metrics.Retry()
		t.log.Debug("retrying request",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("kind", aerr.kind.String()),
			zap.Error(aerr.err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, &Error{Kind: last.kind, Status: last.status, Attempts: made, Err: last.err}
}

func (t *HTTP) attempt(ctx context.Context, payload []byte) ([]byte, *attemptError) {
	do := func() ([]byte, error) { return t.doRequest(ctx, payload) }

	var body []byte
	var err error
	if t.breaker != nil {
		body, err = t.breaker.Execute(do)
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &attemptError{
				kind:      KindConnectionFailed,
				retryable: false,
				err:       fmt.Errorf("circuit breaker open: %w", err),
			}
		}
	} else {
		body, err = do()
	}
	if err == nil {
		return body, nil
	}
	if aerr, ok := err.(*attemptError); ok {
		return nil, aerr
	}
	return nil, classifyNetErr(err)
}

func (t *HTTP) doRequest(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, &attemptError{kind: KindProtocol, retryable: false, err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classifyNetErr(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, &attemptError{
			kind:      KindProtocol,
			status:    resp.StatusCode,
			retryable: true,
			err:       fmt.Errorf("rate limited by node (HTTP 429)"),
		}
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, &attemptError{
			kind:      KindConnectionFailed,
			status:    resp.StatusCode,
			retryable: true,
			err:       fmt.Errorf("node unavailable (HTTP %d)", resp.StatusCode),
		}
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, resp.Body)
		return nil, &attemptError{
			kind:      KindProtocol,
			status:    resp.StatusCode,
			retryable: false,
			err:       fmt.Errorf("unexpected HTTP status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &attemptError{
			kind:      KindProtocol,
			status:    resp.StatusCode,
			retryable: false,
			err:       fmt.Errorf("reading response body: %w", err),
		}
	}
	return body, nil
}

func classifyNetErr(err error) *attemptError {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return &attemptError{kind: KindTimeout, retryable: true, err: err}
	}
	// url.Error wraps the underlying net error; Timeout() propagates.
	type timeouter interface{ Timeout() bool }
	if te, ok := err.(timeouter); ok && te.Timeout() {
		return &attemptError{kind: KindTimeout, retryable: true, err: err}
	}
	return &attemptError{kind: KindConnectionFailed, retryable: true, err: err}
}

// backoff returns the delay before the next attempt: base doubled per
// attempt, with ±20% jitter.
func (t *HTTP) backoff(attempt int) time.Duration {
	base := t.cfg.BackoffBase
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	d := base << (attempt - 1)
	jitter := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(d) * jitter)
}

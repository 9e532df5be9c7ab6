package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/eth-extractor/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
endpoint:
  url: https://eth-mainnet.example.com/v2/key
`))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Endpoint.Timeout)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.BackoffBase)
	assert.Equal(t, uint32(5), cfg.Breaker.MaxFailures)
	assert.Equal(t, 30*time.Second, cfg.Breaker.OpenTimeout)
	assert.Equal(t, 10000, cfg.Cache.Capacity)
	assert.Equal(t, uint64(64), cfg.Cache.FinalityDepth)
	assert.Equal(t, 1000, cfg.Limits.MaxLatestBlocks)
	assert.Equal(t, 1000, cfg.Limits.MaxRangeBlocks)
	assert.Equal(t, 100, cfg.Limits.BatchSize)
	assert.Equal(t, 4, cfg.Limits.MaxConcurrentBatches)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
endpoint:
  url: http://localhost:8545
  timeout: 5s
retry:
  max_retries: 7
  backoff_base: 50ms
rate_limit:
  rps: 25
  burst: 50
breaker:
  enabled: true
  max_failures: 10
cache:
  capacity: 500
  finality_depth: 12
limits:
  batch_size: 20
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Endpoint.Timeout)
	assert.Equal(t, 7, cfg.Retry.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.BackoffBase)
	assert.Equal(t, 25.0, cfg.RateLimit.RPS)
	assert.True(t, cfg.Breaker.Enabled)
	assert.Equal(t, uint32(10), cfg.Breaker.MaxFailures)
	assert.Equal(t, 500, cfg.Cache.Capacity)
	assert.Equal(t, uint64(12), cfg.Cache.FinalityDepth)
	assert.Equal(t, 20, cfg.Limits.BatchSize)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_RPC_URL", "https://node.example.com/rpc")
	cfg, err := config.Load(writeConfig(t, `
endpoint:
  url: ${TEST_RPC_URL}
`))
	require.NoError(t, err)
	assert.Equal(t, "https://node.example.com/rpc", cfg.Endpoint.URL)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing url", `log: {level: info}`},
		{"bad scheme", "endpoint:\n  url: ws://localhost:8546"},
		{"no host", "endpoint:\n  url: https://"},
		{"negative retries", "endpoint:\n  url: http://localhost:8545\nretry:\n  max_retries: -1"},
		{"bad log format", "endpoint:\n  url: http://localhost:8545\nlog:\n  format: xml"},
		{"not yaml", `{{{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg, err := config.Default("http://localhost:8545")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8545", cfg.Endpoint.URL)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)

	_, err = config.Default("")
	assert.Error(t, err)
}

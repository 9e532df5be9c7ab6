package display_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmagro/eth-extractor/internal/display"
	"github.com/dmagro/eth-extractor/internal/types"
)

func TestBlockView(t *testing.T) {
	var buf bytes.Buffer
	display.Block(&buf, &types.Block{
		Number:   21233467,
		Hash:     "0x" + strings.Repeat("ab", 32),
		GasUsed:  15_000_000,
		GasLimit: 30_000_000,
	})
	out := buf.String()
	assert.Contains(t, out, "21,233,467")
	assert.Contains(t, out, "(50.0%)")
}

func TestBlockViewZeroGasLimit(t *testing.T) {
	var buf bytes.Buffer
	display.Block(&buf, &types.Block{Number: 1001, GasUsed: 21000})
	out := buf.String()
	assert.NotContains(t, out, "NaN")
	assert.Contains(t, out, "21,000 / 0")
}

// Package util holds small helpers shared by the CLI commands.
package util

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmagro/eth-extractor/internal/types"
)

// ParseBlockArg converts a user-supplied block identifier (decimal number,
// 0x hash, 0x hex number, or tag) into a typed BlockID. An empty argument
// means "latest".
func ParseBlockArg(arg string) (types.BlockID, error) {
	arg = strings.TrimSpace(strings.ToLower(arg))

	if arg == "" {
		return types.BlockIDTag(types.TagLatest), nil
	}
	if types.ValidTag(arg) {
		return types.BlockIDTag(types.BlockTag(arg)), nil
	}

	if strings.HasPrefix(arg, "0x") {
		// A 32-byte value is a block hash; anything shorter is a hex
		// block number.
		if len(arg) == 66 {
			for _, c := range arg[2:] {
				if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
					return types.BlockID{}, fmt.Errorf("malformed block hash %q", arg)
				}
			}
			return types.BlockIDHash(arg), nil
		}
		n, err := strconv.ParseUint(arg[2:], 16, 64)
		if err != nil {
			return types.BlockID{}, fmt.Errorf("malformed hex block number %q", arg)
		}
		return types.BlockIDNumber(n), nil
	}

	n, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return types.BlockID{}, fmt.Errorf("invalid block identifier %q (expected number, 0x hash, or tag)", arg)
	}
	return types.BlockIDNumber(n), nil
}

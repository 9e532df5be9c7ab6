package rpc

import (
	"fmt"
	"math/big"
	"strings"
)

// Hex codec for the Ethereum JSON-RPC encoding rules. Quantities are
// 0x-prefixed big-endian with no leading zeros ("0x0" for zero); data is
// 0x-prefixed with an even number of hex digits. Violations are decode
// errors, not silent zeros.

func validQuantity(s string) error {
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("quantity %q: missing 0x prefix", s)
	}
	digits := s[2:]
	if digits == "" {
		return fmt.Errorf("quantity %q: no digits", s)
	}
	if len(digits) > 1 && digits[0] == '0' {
		return fmt.Errorf("quantity %q: leading zero", s)
	}
	return nil
}

// parseQuantity decodes a JSON-RPC quantity into a uint64.
func parseQuantity(s string) (uint64, error) {
	v, err := parseBigQuantity(s)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("quantity %q overflows uint64", s)
	}
	return v.Uint64(), nil
}

// parseBigQuantity decodes a JSON-RPC quantity of arbitrary size.
func parseBigQuantity(s string) (*big.Int, error) {
	if err := validQuantity(s); err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(s[2:], 16)
	if !ok {
		return nil, fmt.Errorf("quantity %q: invalid hex digits", s)
	}
	return v, nil
}

// validateData checks a JSON-RPC data value (hash, address, calldata, code).
func validateData(s string) error {
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("data %q: missing 0x prefix", s)
	}
	digits := s[2:]
	if len(digits)%2 != 0 {
		return fmt.Errorf("data %q: odd number of hex digits", s)
	}
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return fmt.Errorf("data %q: invalid hex digit %q", s, c)
		}
	}
	return nil
}

// validateHash checks a 32-byte data value.
func validateHash(s string) error {
	if err := validateData(s); err != nil {
		return err
	}
	if len(s) != 66 {
		return fmt.Errorf("hash %q: expected 32 bytes", s)
	}
	return nil
}

// encodeQuantity renders n per the quantity encoding rules.
func encodeQuantity(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}

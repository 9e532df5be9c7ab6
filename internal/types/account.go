package types

import "math/big"

// AccountSnapshot is the state of an address evaluated at a specific block.
// Two snapshots of the same address at different blocks are independent
// values. Code is 0x-prefixed hex and empty ("0x") for non-contract accounts.
type AccountSnapshot struct {
	Address string
	Balance *big.Int
	Nonce   uint64
	Code    string
	At      BlockID
}

// IsContract reports whether the address holds deployed code.
func (a *AccountSnapshot) IsContract() bool {
	return a.Code != "" && a.Code != "0x"
}

// CodeSize returns the deployed code size in bytes.
func (a *AccountSnapshot) CodeSize() int {
	if !a.IsContract() {
		return 0
	}
	return (len(a.Code) - 2) / 2
}

// Package types defines the domain values that flow between the RPC client,
// the cache, and the extraction service. Wire-format concerns (hex encoding,
// JSON envelopes) stay in the rpc package; everything here is already parsed.
package types

import (
	"math/big"
	"strconv"
)

// BlockTag is a symbolic block reference understood by Ethereum nodes.
type BlockTag string

const (
	TagLatest    BlockTag = "latest"
	TagPending   BlockTag = "pending"
	TagFinalized BlockTag = "finalized"
	TagEarliest  BlockTag = "earliest"
)

// ValidTag reports whether s is a recognized block tag.
func ValidTag(s string) bool {
	switch BlockTag(s) {
	case TagLatest, TagPending, TagFinalized, TagEarliest:
		return true
	}
	return false
}

// BlockID identifies a block by number, by hash, or by tag. Exactly one of
// the three forms is set; construct values through the helpers below.
type BlockID struct {
	number uint64
	hash   string
	tag    BlockTag
	byNum  bool
}

// BlockIDNumber references a block by its height.
func BlockIDNumber(n uint64) BlockID {
	return BlockID{number: n, byNum: true}
}

// BlockIDHash references a block by its 32-byte hash (0x-prefixed hex).
func BlockIDHash(hash string) BlockID {
	return BlockID{hash: hash}
}

// BlockIDTag references a block by a symbolic tag such as "latest".
func BlockIDTag(tag BlockTag) BlockID {
	return BlockID{tag: tag}
}

// IsNumber reports whether the identifier is a concrete block height.
func (id BlockID) IsNumber() bool { return id.byNum }

// IsHash reports whether the identifier is a block hash.
func (id BlockID) IsHash() bool { return id.hash != "" }

// IsTag reports whether the identifier is symbolic ("latest", "pending", ...).
// Tag identifiers reference a mutable view of the chain and are never cached.
func (id BlockID) IsTag() bool { return !id.byNum && id.hash == "" }

// Number returns the block height; valid only when IsNumber is true.
func (id BlockID) Number() uint64 { return id.number }

// Hash returns the block hash; valid only when IsHash is true.
func (id BlockID) Hash() string { return id.hash }

// Tag returns the block tag; valid only when IsTag is true.
func (id BlockID) Tag() BlockTag {
	if id.tag == "" {
		return TagLatest
	}
	return id.tag
}

func (id BlockID) String() string {
	switch {
	case id.byNum:
		return "#" + strconv.FormatUint(id.number, 10)
	case id.hash != "":
		return id.hash
	default:
		return string(id.Tag())
	}
}

// Block is a fully decoded Ethereum block. BaseFeePerGas is nil for blocks
// mined before the London fork. Exactly one of TxHashes and Transactions is
// populated, depending on whether the block was fetched with full bodies.
type Block struct {
	Number        uint64
	Hash          string
	ParentHash    string
	Timestamp     uint64
	Miner         string
	GasUsed       uint64
	GasLimit      uint64
	BaseFeePerGas *big.Int
	TxHashes      []string
	Transactions  []Transaction
}

// TxCount returns the number of transactions regardless of fetch mode.
func (b *Block) TxCount() int {
	if len(b.Transactions) > 0 {
		return len(b.Transactions)
	}
	return len(b.TxHashes)
}

// Package opdb reads canonical block data out of a legacy, geth-style
// chain database so it can be migrated into a new storage engine.
// The read path lives in the legacy package; this package holds the
// shared records, errors and the range migrator that drives it.
package opdb

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/rlp"
)

// HexBytes is a byte slice that marshals/unmarshals as hex (with or without 0x prefix)
type HexBytes []byte

// UnmarshalJSON decodes hex string (with or without 0x prefix) to bytes
func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		*h = nil
		return nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*h = b
	return nil
}

// MarshalJSON encodes bytes as hex string with 0x prefix
func (h HexBytes) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte(`""`), nil
	}
	return json.Marshal("0x" + hex.EncodeToString(h))
}

// SealedHeader is a header paired with the hash recorded for it in the
// canonical hash table. The hash is trusted as stored, not recomputed.
type SealedHeader struct {
	Header *types.Header
	Hash   common.Hash
}

// Number returns the block number of the header.
func (h *SealedHeader) Number() uint64 {
	return h.Header.Number.Uint64()
}

// Block is a sealed header with its body. Legacy blocks never carry
// uncles or withdrawals.
type Block struct {
	Header *SealedHeader
	Body   *types.Body
}

// Number returns the block number.
func (b *Block) Number() uint64 {
	return b.Header.Number()
}

// Hash returns the sealed block hash.
func (b *Block) Hash() common.Hash {
	return b.Header.Hash
}

// Transactions returns the block's transactions in order.
func (b *Block) Transactions() types.Transactions {
	if b.Body == nil {
		return nil
	}
	return b.Body.Transactions
}

// BlockData is the record handed to an Importer for each migrated block.
// Field names use lowercase JSON keys to match the JSONL export format.
type BlockData struct {
	Number     uint64      `json:"height"`
	Hash       common.Hash `json:"hash"`
	ParentHash common.Hash `json:"parentHash,omitempty"`
	Timestamp  uint64      `json:"timestamp,omitempty"`

	// State roots
	StateRoot        common.Hash `json:"stateRoot,omitempty"`
	ReceiptsRoot     common.Hash `json:"receiptsRoot,omitempty"`
	TransactionsRoot common.Hash `json:"transactionsRoot,omitempty"`

	// Block metadata
	GasLimit  uint64         `json:"gasLimit,omitempty"`
	GasUsed   uint64         `json:"gasUsed,omitempty"`
	Coinbase  common.Address `json:"coinbase,omitempty"`
	ExtraData HexBytes       `json:"extraData,omitempty"`
	TxCount   int            `json:"txCount"`

	// RLP encoded data (hex with 0x prefix)
	Header   HexBytes `json:"header,omitempty"`
	Body     HexBytes `json:"body,omitempty"`
	Receipts HexBytes `json:"receipts,omitempty"`
}

// NewBlockData converts a decoded block, and optionally its receipts,
// into the migration record. Receipts are encoded in consensus form,
// bloom included.
func NewBlockData(block *Block, receipts types.Receipts) (*BlockData, error) {
	header := block.Header.Header

	headerRLP, err := rlp.EncodeToBytes(header)
	if err != nil {
		return nil, fmt.Errorf("failed to encode header: %w", err)
	}

	var bodyRLP []byte
	if block.Body != nil {
		bodyRLP, err = rlp.EncodeToBytes(block.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body: %w", err)
		}
	}

	var receiptsRLP []byte
	if receipts != nil {
		receiptsRLP, err = rlp.EncodeToBytes(receipts)
		if err != nil {
			return nil, fmt.Errorf("failed to encode receipts: %w", err)
		}
	}

	return &BlockData{
		Number:           block.Number(),
		Hash:             block.Hash(),
		ParentHash:       header.ParentHash,
		Timestamp:        header.Time,
		StateRoot:        header.Root,
		ReceiptsRoot:     header.ReceiptHash,
		TransactionsRoot: header.TxHash,
		GasLimit:         header.GasLimit,
		GasUsed:          header.GasUsed,
		Coinbase:         header.Coinbase,
		ExtraData:        header.Extra,
		TxCount:          len(block.Transactions()),
		Header:           headerRLP,
		Body:             bodyRLP,
		Receipts:         receiptsRLP,
	}, nil
}

// Storage engines understood by the kvstore package
const (
	EngineAuto    = ""
	EngineLevelDB = "leveldb"
	EnginePebble  = "pebble"
)

// StoreConfig configures how the legacy chain database is opened.
// The store is always opened read-only.
type StoreConfig struct {
	DatabasePath string
	Engine       string // "leveldb", "pebble" or "" to detect

	// AncientPath is the freezer directory; empty disables the
	// cold-storage fallback.
	AncientPath string

	Cache     int // MB
	Handles   int
	Namespace string
}

// MigrationOptions configures a migration run
type MigrationOptions struct {
	// Block range (inclusive)
	StartBlock uint64
	EndBlock   uint64

	// Processing options
	BatchSize       int
	IncludeReceipts bool

	// Error handling
	ContinueOnError bool

	// Progress reporting
	ProgressCallback func(current, total uint64)
}

// MigrationResult contains the result of a migration
type MigrationResult struct {
	Success        bool
	BlocksMigrated uint64
	BlocksSkipped  uint64
	StartTime      time.Time
	EndTime        time.Time
	Errors         []error
}

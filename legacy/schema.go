// Package legacy reads headers, bodies and receipts out of a legacy
// geth-style chain database, following its rawdb key schema and the
// RLP quirks of the pre-Bedrock history.
package legacy

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/opdb"
)

// Database key prefixes (matching rawdb/schema.go)
const (
	HeaderPrefix     byte = 'h' // HeaderPrefix + num (uint64 big endian) + hash -> header
	HeaderHashSuffix byte = 'n' // HeaderPrefix + num (uint64 big endian) + HeaderHashSuffix -> hash
	BlockBodyPrefix  byte = 'b' // BlockBodyPrefix + num (uint64 big endian) + hash -> block body

	HeaderNumberPrefix byte = 'H' // HeaderNumberPrefix + hash -> num (uint64 big endian)

	// DefaultReceiptsPrefix is rawdb's blockReceiptsPrefix:
	// prefix + num (uint64 big endian) + hash -> block receipts
	DefaultReceiptsPrefix byte = 'r'
)

// headBlockKey tracks the hash of the latest full block.
var headBlockKey = []byte("LastBlock")

const (
	numberKeyLength = 1 + 8 + 1
	hashKeyLength   = 1 + 8 + common.HashLength
)

// Table identifies one of the key families read by this package.
type Table uint8

const (
	CanonicalHashTable Table = iota
	HeaderTable
	BodyTable
	ReceiptsTable
	HeadBlockTable
	HeaderNumberTable
)

func (t Table) String() string {
	switch t {
	case CanonicalHashTable:
		return "canonical-hash"
	case HeaderTable:
		return "header"
	case BodyTable:
		return "body"
	case ReceiptsTable:
		return "receipts"
	case HeadBlockTable:
		return "head-block"
	case HeaderNumberTable:
		return "header-number"
	default:
		return fmt.Sprintf("table(%d)", uint8(t))
	}
}

// Schema builds keys for the legacy database. Only the receipts prefix
// varies; the other families are fixed by rawdb.
type Schema struct {
	ReceiptsPrefix byte
}

// DefaultSchema returns the rawdb schema with the 'r' receipts prefix.
func DefaultSchema() Schema {
	return Schema{ReceiptsPrefix: DefaultReceiptsPrefix}
}

// NewSchema returns a schema using the given receipts prefix. Prefixes
// shared with the header or body families are rejected since their keys
// would collide. Zero is reserved: the zero Schema means DefaultSchema.
func NewSchema(receiptsPrefix byte) (Schema, error) {
	switch receiptsPrefix {
	case 0:
		return Schema{}, fmt.Errorf("%w: receipts prefix must not be zero", opdb.ErrInvalidSchema)
	case HeaderPrefix, BlockBodyPrefix:
		return Schema{}, fmt.Errorf("%w: receipts prefix %q overlaps another key family", opdb.ErrInvalidSchema, receiptsPrefix)
	}
	return Schema{ReceiptsPrefix: receiptsPrefix}, nil
}

// HashByNumberKey = HeaderPrefix + num (uint64 big endian) + HeaderHashSuffix
func (s Schema) HashByNumberKey(number uint64) []byte {
	key := make([]byte, numberKeyLength)
	key[0] = HeaderPrefix
	binary.BigEndian.PutUint64(key[1:9], number)
	key[9] = HeaderHashSuffix
	return key
}

// HeaderKey = HeaderPrefix + num (uint64 big endian) + hash
func (s Schema) HeaderKey(hash common.Hash, number uint64) []byte {
	return hashKey(HeaderPrefix, hash, number)
}

// BodyKey = BlockBodyPrefix + num (uint64 big endian) + hash
func (s Schema) BodyKey(hash common.Hash, number uint64) []byte {
	return hashKey(BlockBodyPrefix, hash, number)
}

// ReceiptsKey = ReceiptsPrefix + num (uint64 big endian) + hash
func (s Schema) ReceiptsKey(hash common.Hash, number uint64) []byte {
	return hashKey(s.ReceiptsPrefix, hash, number)
}

// HeadBlockKey is the singleton key holding the head block hash.
func (s Schema) HeadBlockKey() []byte {
	return append([]byte(nil), headBlockKey...)
}

// HeaderNumberKey = HeaderNumberPrefix + hash
func (s Schema) HeaderNumberKey(hash common.Hash) []byte {
	return append([]byte{HeaderNumberPrefix}, hash[:]...)
}

// Key builds the key for table. CanonicalHashTable ignores the hash,
// HeaderNumberTable the number and HeadBlockTable both.
func (s Schema) Key(table Table, hash common.Hash, number uint64) []byte {
	switch table {
	case CanonicalHashTable:
		return s.HashByNumberKey(number)
	case HeaderTable:
		return s.HeaderKey(hash, number)
	case BodyTable:
		return s.BodyKey(hash, number)
	case ReceiptsTable:
		return s.ReceiptsKey(hash, number)
	case HeadBlockTable:
		return s.HeadBlockKey()
	case HeaderNumberTable:
		return s.HeaderNumberKey(hash)
	default:
		panic(fmt.Sprintf("legacy: unknown table %d", table))
	}
}

func hashKey(prefix byte, hash common.Hash, number uint64) []byte {
	key := make([]byte, hashKeyLength)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:9], number)
	copy(key[9:], hash[:])
	return key
}

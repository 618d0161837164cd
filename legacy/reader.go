package legacy

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/log"
	"github.com/luxfi/opdb"
)

// KeyValueReader is the point-lookup side of the legacy store. Get must
// return an error wrapping opdb.ErrNotFound for absent keys.
type KeyValueReader interface {
	Get(key []byte) ([]byte, error)
}

// Ancient is a cold-storage source for blocks the primary store no
// longer holds. Each method returns an error wrapping opdb.ErrNotFound
// when the block is not there either.
type Ancient interface {
	AncientHeader(number uint64) (*opdb.SealedHeader, error)
	AncientBlock(number uint64) (*opdb.Block, error)
	AncientReceipts(number uint64) (types.Receipts, error)
}

// Config configures a Reader. The zero value reads with the default
// schema, no ancient fallback and the root logger.
type Config struct {
	Schema  Schema
	Ancient Ancient
	Logger  log.Logger
}

// Reader answers canonical chain queries by block number against a
// legacy store. It holds no mutable state, so it is safe for concurrent
// use whenever the store is.
type Reader struct {
	db      KeyValueReader
	schema  Schema
	ancient Ancient
	log     log.Logger
}

var _ opdb.Exporter = (*Reader)(nil)

// NewReader creates a reader over db.
func NewReader(db KeyValueReader, config Config) *Reader {
	schema := config.Schema
	if schema == (Schema{}) {
		schema = DefaultSchema()
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Root()
	}
	return &Reader{
		db:      db,
		schema:  schema,
		ancient: config.Ancient,
		log:     logger,
	}
}

// HashByNumber returns the canonical header hash stored for number.
func (r *Reader) HashByNumber(number uint64) (common.Hash, error) {
	data, err := r.get(CanonicalHashTable, common.Hash{}, number)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := DecodeHash(data)
	if err != nil {
		return common.Hash{}, readError(CanonicalHashTable, number, err)
	}
	return hash, nil
}

// HeadNumber returns the number of the head block recorded by the node.
// The head hash must resolve to a number whose canonical hash matches it.
func (r *Reader) HeadNumber() (uint64, error) {
	data, err := r.get(HeadBlockTable, common.Hash{}, 0)
	if err != nil {
		return 0, err
	}
	hash, err := DecodeHash(data)
	if err != nil {
		return 0, readError(HeadBlockTable, 0, err)
	}
	data, err = r.get(HeaderNumberTable, hash, 0)
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, readError(HeaderNumberTable, 0, fmt.Errorf("%w: header number is %d bytes, want 8", opdb.ErrIntegrity, len(data)))
	}
	number := binary.BigEndian.Uint64(data)
	canonical, err := r.HashByNumber(number)
	if err != nil {
		return 0, err
	}
	if canonical != hash {
		return 0, readError(CanonicalHashTable, number, fmt.Errorf("%w: head %s is not canonical", opdb.ErrIntegrity, hash))
	}
	return number, nil
}

// HeaderByNumber returns the canonical header sealed with its stored hash.
func (r *Reader) HeaderByNumber(number uint64) (*opdb.SealedHeader, error) {
	var ancient func(uint64) (*opdb.SealedHeader, error)
	if r.ancient != nil {
		ancient = r.ancient.AncientHeader
	}
	return withAncient(r, HeaderTable, number, r.headerByNumber, ancient)
}

// BlockByNumber returns the canonical header and body.
func (r *Reader) BlockByNumber(number uint64) (*opdb.Block, error) {
	var ancient func(uint64) (*opdb.Block, error)
	if r.ancient != nil {
		ancient = r.ancient.AncientBlock
	}
	return withAncient(r, BodyTable, number, r.blockByNumber, ancient)
}

// ReceiptsByNumber returns the receipts of the canonical block, blooms
// recomputed. Only genesis may have none.
func (r *Reader) ReceiptsByNumber(number uint64) (types.Receipts, error) {
	var ancient func(uint64) (types.Receipts, error)
	if r.ancient != nil {
		ancient = r.ancient.AncientReceipts
	}
	return withAncient(r, ReceiptsTable, number, r.receiptsByNumber, ancient)
}

func (r *Reader) headerByNumber(number uint64) (*opdb.SealedHeader, error) {
	hash, err := r.HashByNumber(number)
	if err != nil {
		return nil, err
	}
	data, err := r.get(HeaderTable, hash, number)
	if err != nil {
		return nil, err
	}
	header, err := DecodeHeader(data)
	if err != nil {
		return nil, readError(HeaderTable, number, err)
	}
	if header.Number == nil || !header.Number.IsUint64() || header.Number.Uint64() != number {
		return nil, readError(HeaderTable, number, fmt.Errorf("%w: header number %v stored under #%d", opdb.ErrIntegrity, header.Number, number))
	}
	return Seal(header, hash), nil
}

func (r *Reader) blockByNumber(number uint64) (*opdb.Block, error) {
	header, err := r.headerByNumber(number)
	if err != nil {
		return nil, err
	}
	data, err := r.get(BodyTable, header.Hash, header.Number())
	if err != nil {
		return nil, err
	}
	body, err := DecodeBody(data)
	if err != nil {
		return nil, readError(BodyTable, number, err)
	}
	return &opdb.Block{Header: header, Body: body}, nil
}

func (r *Reader) receiptsByNumber(number uint64) (types.Receipts, error) {
	hash, err := r.HashByNumber(number)
	if err != nil {
		return nil, err
	}
	data, err := r.get(ReceiptsTable, hash, number)
	if err != nil {
		return nil, err
	}
	receipts, err := DecodeReceipts(data)
	if err != nil {
		return nil, readError(ReceiptsTable, number, err)
	}
	if err := CheckReceipts(receipts, number); err != nil {
		return nil, readError(ReceiptsTable, number, err)
	}
	return receipts, nil
}

// get fetches the value for table at (hash, number).
func (r *Reader) get(table Table, hash common.Hash, number uint64) ([]byte, error) {
	data, err := r.db.Get(r.schema.Key(table, hash, number))
	if err != nil {
		if opdb.IsNotFound(err) {
			return nil, readError(table, number, opdb.ErrNotFound)
		}
		return nil, readError(table, number, fmt.Errorf("failed to read %s: %w", table, err))
	}
	return data, nil
}

// withAncient runs primary and, when it reports the block absent and an
// ancient source is configured, retries against the ancient source.
func withAncient[T any](r *Reader, table Table, number uint64, primary, ancient func(uint64) (T, error)) (T, error) {
	v, err := primary(number)
	if err == nil || ancient == nil || !opdb.IsNotFound(err) {
		return v, err
	}
	av, aerr := ancient(number)
	if aerr != nil {
		if opdb.IsNotFound(aerr) {
			return v, err
		}
		return av, aerr
	}
	r.log.Debug("Served from ancient store", "table", table, "number", number)
	return av, nil
}

func readError(table Table, number uint64, err error) error {
	return &opdb.ReadError{Table: table.String(), Number: number, Err: err}
}

package opdb

import "github.com/luxfi/geth/core/types"

// Exporter reads canonical block data from a source chain database by
// block number. Every method returns a fully constructed record or an
// error; there are no partial results.
type Exporter interface {
	// HeaderByNumber returns the canonical header sealed with its stored hash
	HeaderByNumber(number uint64) (*SealedHeader, error)

	// BlockByNumber returns the canonical header and body
	BlockByNumber(number uint64) (*Block, error)

	// ReceiptsByNumber returns the canonical block's receipts with blooms
	// recomputed from their logs
	ReceiptsByNumber(number uint64) (types.Receipts, error)
}

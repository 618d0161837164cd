// Package ancient serves legacy blocks out of a geth freezer, for block
// numbers the primary key-value store no longer retains.
package ancient

import (
	"fmt"

	"github.com/luxfi/geth/core/rawdb"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/opdb"
	"github.com/luxfi/opdb/legacy"
)

// FreezerReader is the subset of a geth freezer used here.
type FreezerReader interface {
	// Ancient retrieves an item from the given freezer table
	Ancient(kind string, number uint64) ([]byte, error)

	// Ancients returns the number of items in the freezer
	Ancients() (uint64, error)

	// Tail returns the number of the first retained item
	Tail() (uint64, error)
}

// Freezer decodes freezer items with the legacy value decoders.
type Freezer struct {
	reader FreezerReader
}

var _ legacy.Ancient = (*Freezer)(nil)

// New wraps a freezer reader.
func New(reader FreezerReader) *Freezer {
	return &Freezer{reader: reader}
}

// AncientHeader returns the frozen header of number sealed with its
// frozen hash.
func (f *Freezer) AncientHeader(number uint64) (*opdb.SealedHeader, error) {
	data, err := f.item(rawdb.ChainFreezerHashTable, number)
	if err != nil {
		return nil, err
	}
	hash, err := legacy.DecodeHash(data)
	if err != nil {
		return nil, readError(rawdb.ChainFreezerHashTable, number, err)
	}

	data, err = f.item(rawdb.ChainFreezerHeaderTable, number)
	if err != nil {
		return nil, err
	}
	header, err := legacy.DecodeHeader(data)
	if err != nil {
		return nil, readError(rawdb.ChainFreezerHeaderTable, number, err)
	}
	return legacy.Seal(header, hash), nil
}

// AncientBlock returns the frozen header and body of number.
func (f *Freezer) AncientBlock(number uint64) (*opdb.Block, error) {
	header, err := f.AncientHeader(number)
	if err != nil {
		return nil, err
	}
	data, err := f.item(rawdb.ChainFreezerBodiesTable, number)
	if err != nil {
		return nil, err
	}
	body, err := legacy.DecodeBody(data)
	if err != nil {
		return nil, readError(rawdb.ChainFreezerBodiesTable, number, err)
	}
	return &opdb.Block{Header: header, Body: body}, nil
}

// AncientReceipts returns the frozen receipts of number.
func (f *Freezer) AncientReceipts(number uint64) (types.Receipts, error) {
	data, err := f.item(rawdb.ChainFreezerReceiptTable, number)
	if err != nil {
		return nil, err
	}
	receipts, err := legacy.DecodeReceipts(data)
	if err == nil {
		err = legacy.CheckReceipts(receipts, number)
	}
	if err != nil {
		return nil, readError(rawdb.ChainFreezerReceiptTable, number, err)
	}
	return receipts, nil
}

func (f *Freezer) item(table string, number uint64) ([]byte, error) {
	frozen, err := f.reader.Ancients()
	if err != nil {
		return nil, readError(table, number, fmt.Errorf("failed to read freezer size: %w", err))
	}
	tail, err := f.reader.Tail()
	if err != nil {
		return nil, readError(table, number, fmt.Errorf("failed to read freezer tail: %w", err))
	}
	if number < tail || number >= frozen {
		return nil, readError(table, number, opdb.ErrNotFound)
	}
	data, err := f.reader.Ancient(table, number)
	if err != nil {
		return nil, readError(table, number, fmt.Errorf("failed to read freezer item: %w", err))
	}
	return data, nil
}

func readError(table string, number uint64, err error) error {
	return &opdb.ReadError{Table: "ancient-" + table, Number: number, Err: err}
}

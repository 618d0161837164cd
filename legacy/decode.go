package legacy

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/rlp"
	"github.com/luxfi/opdb"
)

// DecodeHash validates a value from the canonical hash table.
func DecodeHash(data []byte) (common.Hash, error) {
	if len(data) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: header hash is %d bytes, want %d", opdb.ErrIntegrity, len(data), common.HashLength)
	}
	return common.BytesToHash(data), nil
}

// DecodeHeader decodes an RLP header.
func DecodeHeader(data []byte) (*types.Header, error) {
	header := new(types.Header)
	if err := rlp.DecodeBytes(data, header); err != nil {
		return nil, fmt.Errorf("%w: header: %w", opdb.ErrDecode, err)
	}
	return header, nil
}

// Seal attaches the hash read from the canonical hash table to header.
func Seal(header *types.Header, hash common.Hash) *opdb.SealedHeader {
	return &opdb.SealedHeader{Header: header, Hash: hash}
}

// DecodeBody decodes a legacy block body. Legacy bodies are a list
// wrapping a single transaction list, with no uncles or withdrawals.
func DecodeBody(data []byte) (*types.Body, error) {
	var wrapped [][]*types.Transaction
	if err := rlp.DecodeBytes(data, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: body: %w", opdb.ErrDecode, err)
	}
	if len(wrapped) != 1 {
		return nil, fmt.Errorf("%w: body wraps %d transaction lists, want 1", opdb.ErrIntegrity, len(wrapped))
	}
	txs := wrapped[0]
	if txs == nil {
		txs = []*types.Transaction{}
	}
	return &types.Body{Transactions: txs}, nil
}

// DecodeReceipts decodes the legacy receipts value of a block.
//
// An empty outer list yields no receipts; only genesis may store one, which
// the reader checks. Otherwise the outer list must hold exactly one stored
// receipt [success, cumulativeGasUsed, logs] whose fields fill its declared
// payload exactly. The legacy format omits the bloom, so it is rebuilt from
// the logs, and every receipt is typed legacy.
func DecodeReceipts(data []byte) (types.Receipts, error) {
	r := bytes.NewReader(data)
	s := rlp.NewStream(r, uint64(len(data)))

	outerSize, err := s.List()
	if err != nil {
		return nil, fmt.Errorf("%w: receipts: %w", opdb.ErrDecode, err)
	}
	if outerSize == 0 {
		return types.Receipts{}, nil
	}

	innerSize, err := s.List()
	if err != nil {
		return nil, fmt.Errorf("%w: receipt: %w", opdb.ErrDecode, err)
	}
	mark := r.Len()

	success, err := s.Bool()
	if err != nil {
		return nil, receiptFieldError("status", err)
	}
	cumulativeGasUsed, err := s.Uint64()
	if err != nil {
		return nil, receiptFieldError("cumulative gas", err)
	}
	var logs []*types.Log
	if err := s.Decode(&logs); err != nil {
		return nil, receiptFieldError("logs", err)
	}

	if consumed := uint64(mark - r.Len()); consumed != innerSize {
		return nil, fmt.Errorf("%w: receipt fields use %d of %d payload bytes", opdb.ErrIntegrity, consumed, innerSize)
	}
	if err := s.ListEnd(); err != nil {
		return nil, fmt.Errorf("%w: receipt: %w", opdb.ErrDecode, err)
	}
	if err := s.ListEnd(); err != nil {
		return nil, fmt.Errorf("%w: expected exactly one receipt: %w", opdb.ErrIntegrity, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after receipts", opdb.ErrIntegrity, r.Len())
	}

	receipt := &types.Receipt{
		Type:              types.LegacyTxType,
		Status:            types.ReceiptStatusFailed,
		CumulativeGasUsed: cumulativeGasUsed,
		Logs:              logs,
	}
	if success {
		receipt.Status = types.ReceiptStatusSuccessful
	}
	receipt.Bloom = types.CreateBloom(receipt)
	return types.Receipts{receipt}, nil
}

// CheckReceipts rejects an empty receipts list stored for any block other
// than genesis.
func CheckReceipts(receipts types.Receipts, number uint64) error {
	if len(receipts) == 0 && number != 0 {
		return fmt.Errorf("%w: empty receipts outside genesis", opdb.ErrIntegrity)
	}
	return nil
}

// receiptFieldError classifies a failed field read inside the receipt list.
// Running out of the declared payload is an integrity fault.
func receiptFieldError(field string, err error) error {
	if errors.Is(err, rlp.EOL) || errors.Is(err, rlp.ErrElemTooLarge) || errors.Is(err, rlp.ErrValueTooLarge) {
		return fmt.Errorf("%w: receipt payload too short for %s: %w", opdb.ErrIntegrity, field, err)
	}
	return fmt.Errorf("%w: receipt %s: %w", opdb.ErrDecode, field, err)
}

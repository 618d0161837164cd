package legacy

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/rlp"
	"github.com/luxfi/opdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storedReceipt mirrors the legacy on-disk receipt: no bloom, no type.
type storedReceipt struct {
	Success           bool
	CumulativeGasUsed uint64
	Logs              []*types.Log
}

func encodeReceipts(t *testing.T, receipts ...storedReceipt) []byte {
	t.Helper()
	items := make([]rlp.RawValue, 0, len(receipts))
	for _, r := range receipts {
		enc, err := rlp.EncodeToBytes(r)
		require.NoError(t, err)
		items = append(items, enc)
	}
	enc, err := rlp.EncodeToBytes(items)
	require.NoError(t, err)
	return enc
}

func testTransactions(n int) []*types.Transaction {
	to := common.HexToAddress("0x4200000000000000000000000000000000000016")
	txs := make([]*types.Transaction, n)
	for i := range txs {
		txs[i] = types.NewTx(&types.LegacyTx{
			Nonce:    uint64(i),
			To:       &to,
			Value:    big.NewInt(int64(i + 1)),
			Gas:      21000,
			GasPrice: big.NewInt(1_000_000_000),
			Data:     []byte{byte(i)},
		})
	}
	return txs
}

func TestDecodeHash(t *testing.T) {
	want := common.HexToHash("0xabcdef")
	hash, err := DecodeHash(want.Bytes())
	require.NoError(t, err)
	assert.Equal(t, want, hash)

	for _, size := range []int{0, 31, 33} {
		_, err := DecodeHash(make([]byte, size))
		require.ErrorIs(t, err, opdb.ErrIntegrity, "size %d", size)
	}
}

func TestDecodeHeader(t *testing.T) {
	header := &types.Header{
		ParentHash: common.HexToHash("0x01"),
		Coinbase:   common.HexToAddress("0x4200000000000000000000000000000000000011"),
		Root:       common.HexToHash("0x02"),
		Difficulty: big.NewInt(2),
		Number:     big.NewInt(1234),
		GasLimit:   15_000_000,
		GasUsed:    21000,
		Time:       1_610_000_000,
		Extra:      []byte("legacy"),
	}
	enc, err := rlp.EncodeToBytes(header)
	require.NoError(t, err)

	decoded, err := DecodeHeader(enc)
	require.NoError(t, err)
	assert.Equal(t, header.Hash(), decoded.Hash())
	assert.Equal(t, uint64(1234), decoded.Number.Uint64())
	assert.Equal(t, header.Extra, decoded.Extra)

	_, err = DecodeHeader([]byte{0xc1})
	require.ErrorIs(t, err, opdb.ErrDecode)
}

func TestSeal(t *testing.T) {
	header := &types.Header{Number: big.NewInt(7), Difficulty: big.NewInt(1)}
	hash := common.HexToHash("0x77")

	sealed := Seal(header, hash)
	assert.Equal(t, hash, sealed.Hash)
	assert.NotEqual(t, header.Hash(), sealed.Hash)
	assert.Same(t, header, sealed.Header)
	assert.Equal(t, uint64(7), sealed.Number())
}

func TestDecodeBody(t *testing.T) {
	t.Run("SingleWrappedList", func(t *testing.T) {
		txs := testTransactions(3)
		enc, err := rlp.EncodeToBytes([][]*types.Transaction{txs})
		require.NoError(t, err)

		body, err := DecodeBody(enc)
		require.NoError(t, err)
		require.Len(t, body.Transactions, 3)
		for i, tx := range body.Transactions {
			assert.Equal(t, txs[i].Hash(), tx.Hash())
		}
		assert.Empty(t, body.Uncles)
		assert.Nil(t, body.Withdrawals)
	})

	t.Run("EmptyTransactions", func(t *testing.T) {
		body, err := DecodeBody([]byte{0xc1, 0xc0})
		require.NoError(t, err)
		assert.NotNil(t, body.Transactions)
		assert.Empty(t, body.Transactions)
	})

	t.Run("OuterListNotOne", func(t *testing.T) {
		// [] and [[], []]
		for _, enc := range [][]byte{{0xc0}, {0xc2, 0xc0, 0xc0}} {
			_, err := DecodeBody(enc)
			require.ErrorIs(t, err, opdb.ErrIntegrity, hexutil.Encode(enc))
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := DecodeBody([]byte{0x80})
		require.ErrorIs(t, err, opdb.ErrDecode)
	})
}

func TestDecodeReceipts(t *testing.T) {
	t.Run("Genesis", func(t *testing.T) {
		receipts, err := DecodeReceipts([]byte{0xc0})
		require.NoError(t, err)
		assert.NotNil(t, receipts)
		assert.Empty(t, receipts)
	})

	t.Run("SuccessNoLogs", func(t *testing.T) {
		// [[true, 21000, []]]
		enc := hexutil.MustDecode("0xc6c501825208c0")
		assert.Equal(t, enc, encodeReceipts(t, storedReceipt{Success: true, CumulativeGasUsed: 21000}))

		receipts, err := DecodeReceipts(enc)
		require.NoError(t, err)
		require.Len(t, receipts, 1)

		r := receipts[0]
		assert.Equal(t, uint8(types.LegacyTxType), r.Type)
		assert.Equal(t, types.ReceiptStatusSuccessful, r.Status)
		assert.Equal(t, uint64(21000), r.CumulativeGasUsed)
		assert.Empty(t, r.Logs)
		assert.Equal(t, types.Bloom{}, r.Bloom)
	})

	t.Run("FailedWithLogs", func(t *testing.T) {
		log := &types.Log{
			Address: common.HexToAddress("0x4200000000000000000000000000000000000010"),
			Topics:  []common.Hash{common.HexToHash("0xddf252ad"), common.HexToHash("0x01")},
			Data:    []byte{1, 2, 3},
		}
		enc := encodeReceipts(t, storedReceipt{Success: false, CumulativeGasUsed: 50_000, Logs: []*types.Log{log}})

		receipts, err := DecodeReceipts(enc)
		require.NoError(t, err)
		require.Len(t, receipts, 1)

		r := receipts[0]
		assert.Equal(t, types.ReceiptStatusFailed, r.Status)
		assert.Equal(t, uint64(50_000), r.CumulativeGasUsed)
		require.Len(t, r.Logs, 1)
		assert.Equal(t, log.Address, r.Logs[0].Address)
		assert.Equal(t, log.Topics, r.Logs[0].Topics)
		assert.Equal(t, log.Data, r.Logs[0].Data)

		assert.NotEqual(t, types.Bloom{}, r.Bloom)
		assert.True(t, r.Bloom.Test(log.Address.Bytes()))
		for _, topic := range log.Topics {
			assert.True(t, r.Bloom.Test(topic.Bytes()))
		}
	})

	t.Run("TrailingByteInsidePayload", func(t *testing.T) {
		// [[true, 21000, [], 0x00]] with the inner length covering the extra byte
		enc := hexutil.MustDecode("0xc7c601825208c000")
		_, err := DecodeReceipts(enc)
		require.ErrorIs(t, err, opdb.ErrIntegrity)
	})

	t.Run("ShortPayload", func(t *testing.T) {
		for name, input := range map[string]string{
			// [[true, 21000]]: no logs field
			"MissingLogs": "0xc5c401825208",
			// inner list declares 4 bytes, fields need 5
			"LogsOutsideList": "0xc6c401825208c0",
			// gas value runs past the end of the inner list
			"FieldOverrunsList": "0xc6c201825208c0",
		} {
			t.Run(name, func(t *testing.T) {
				_, err := DecodeReceipts(hexutil.MustDecode(input))
				require.ErrorIs(t, err, opdb.ErrIntegrity)
				assert.NotErrorIs(t, err, opdb.ErrDecode)
			})
		}
	})

	t.Run("MoreThanOneReceipt", func(t *testing.T) {
		enc := encodeReceipts(t,
			storedReceipt{Success: true, CumulativeGasUsed: 21000},
			storedReceipt{Success: true, CumulativeGasUsed: 42000},
		)
		_, err := DecodeReceipts(enc)
		require.ErrorIs(t, err, opdb.ErrIntegrity)
	})

	t.Run("TrailingBytesAfterList", func(t *testing.T) {
		enc := append(encodeReceipts(t, storedReceipt{Success: true, CumulativeGasUsed: 1}), 0x01)
		_, err := DecodeReceipts(enc)
		require.ErrorIs(t, err, opdb.ErrIntegrity)
	})

	t.Run("NotAList", func(t *testing.T) {
		_, err := DecodeReceipts([]byte{0x82, 0x52, 0x08})
		require.ErrorIs(t, err, opdb.ErrDecode)
	})

	t.Run("PostStateRoot", func(t *testing.T) {
		// pre-Byzantium receipts carry a 32-byte root where the status goes
		enc, err := rlp.EncodeToBytes([]interface{}{
			[]interface{}{common.HexToHash("0x01"), uint64(21000), []*types.Log{}},
		})
		require.NoError(t, err)
		_, err = DecodeReceipts(enc)
		require.ErrorIs(t, err, opdb.ErrDecode)
		assert.NotErrorIs(t, err, opdb.ErrIntegrity)
	})
}

func TestCheckReceipts(t *testing.T) {
	one := types.Receipts{{Type: types.LegacyTxType, CumulativeGasUsed: 1}}

	require.NoError(t, CheckReceipts(types.Receipts{}, 0))
	require.NoError(t, CheckReceipts(one, 0))
	require.NoError(t, CheckReceipts(one, 5))
	require.ErrorIs(t, CheckReceipts(types.Receipts{}, 1), opdb.ErrIntegrity)
	require.ErrorIs(t, CheckReceipts(nil, 5), opdb.ErrIntegrity)
}

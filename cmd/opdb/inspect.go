package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/luxfi/geth/log"
	"github.com/luxfi/opdb"
	"github.com/luxfi/opdb/ancient"
	"github.com/luxfi/opdb/kvstore"
	"github.com/luxfi/opdb/legacy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// inspection is what inspect prints for one block.
type inspection struct {
	Keys     map[string]string `json:"keys"`
	Block    *opdb.BlockData   `json:"block,omitempty"`
	Receipts int               `json:"receiptCount"`
	Error    string            `json:"error,omitempty"`
}

func newInspectCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <datadir> <number>",
		Short: "Print the keys and decoded record of a single canonical block",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid block number %q: %w", args[1], err)
			}
			return runInspect(cmd.OutOrStdout(), v, args[0], number)
		},
	}

	flags := cmd.Flags()
	flags.String("engine", "", "storage engine: leveldb or pebble (default: detect)")
	flags.String("ancient", "", "freezer directory holding pruned history")
	flags.String("receipts-prefix", string(legacy.DefaultReceiptsPrefix), "key prefix of the receipts table")
	return cmd
}

func runInspect(out io.Writer, v *viper.Viper, datadir string, number uint64) error {
	schema, err := schemaFromConfig(v)
	if err != nil {
		return err
	}
	db, err := kvstore.Open(opdb.StoreConfig{
		DatabasePath: datadir,
		Engine:       v.GetString("engine"),
		AncientPath:  v.GetString("ancient"),
	})
	if err != nil {
		return err
	}
	defer db.Close()

	config := legacy.Config{Schema: schema, Logger: log.Root()}
	if freezer := db.Freezer(); freezer != nil {
		config.Ancient = ancient.New(freezer)
	}
	reader := legacy.NewReader(db, config)

	result := inspection{Keys: map[string]string{
		legacy.CanonicalHashTable.String(): hex.EncodeToString(schema.HashByNumberKey(number)),
	}}
	if hash, err := reader.HashByNumber(number); err == nil {
		for _, table := range []legacy.Table{legacy.HeaderTable, legacy.BodyTable, legacy.ReceiptsTable} {
			result.Keys[table.String()] = hex.EncodeToString(schema.Key(table, hash, number))
		}
	}
	if err := inspectBlock(reader, number, &result); err != nil {
		result.Error = err.Error()
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if result.Error != "" {
		return fmt.Errorf("block %d: %s", number, result.Error)
	}
	return nil
}

func inspectBlock(reader *legacy.Reader, number uint64, result *inspection) error {
	block, err := reader.BlockByNumber(number)
	if err != nil {
		return err
	}
	receipts, err := reader.ReceiptsByNumber(number)
	if err != nil {
		return err
	}
	data, err := opdb.NewBlockData(block, receipts)
	if err != nil {
		return err
	}
	result.Block = data
	result.Receipts = len(receipts)
	return nil
}

// schemaFromConfig builds the key schema from the receipts-prefix setting.
func schemaFromConfig(v *viper.Viper) (legacy.Schema, error) {
	prefix := v.GetString("receipts-prefix")
	if len(prefix) != 1 {
		return legacy.Schema{}, fmt.Errorf("receipts prefix must be a single byte, got %q", prefix)
	}
	return legacy.NewSchema(prefix[0])
}

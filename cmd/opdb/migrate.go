package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/luxfi/geth/log"
	"github.com/luxfi/opdb"
	"github.com/luxfi/opdb/ancient"
	"github.com/luxfi/opdb/jsonl"
	"github.com/luxfi/opdb/kvstore"
	"github.com/luxfi/opdb/legacy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <datadir> <output>",
		Short: "Export canonical blocks from a legacy chain database to JSONL",
		Long: `Reads headers, bodies and receipts for every block in [start, end] from the
legacy chain database at <datadir> and writes one JSON line per block to <output>.
The database is opened read-only.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), v, args[0], args[1])
		},
	}

	flags := cmd.Flags()
	flags.Uint64("start", 0, "first block number")
	flags.Uint64("end", 0, "last block number (inclusive, default: head block)")
	flags.String("engine", "", "storage engine: leveldb or pebble (default: detect)")
	flags.String("ancient", "", "freezer directory holding pruned history")
	flags.String("receipts-prefix", string(legacy.DefaultReceiptsPrefix), "key prefix of the receipts table")
	flags.Bool("receipts", true, "include receipts")
	flags.Bool("continue-on-error", false, "skip unreadable blocks instead of aborting")
	flags.Int("batch-size", 100, "blocks per import batch")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func runMigrate(ctx context.Context, v *viper.Viper, datadir, output string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	schema, err := schemaFromConfig(v)
	if err != nil {
		return err
	}

	db, err := kvstore.Open(opdb.StoreConfig{
		DatabasePath: datadir,
		Engine:       v.GetString("engine"),
		AncientPath:  v.GetString("ancient"),
		Namespace:    "opdb/",
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

	end := v.GetUint64("end")
	if !v.IsSet("end") {
		if end, err = reader.HeadNumber(); err != nil {
			return fmt.Errorf("failed to resolve head block, pass --end: %w", err)
		}
		log.Info("Resolved head block", "number", end)
	}

	if dir := filepath.Dir(output); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	writer, err := jsonl.NewWriter(output)
	if err != nil {
		return err
	}
	defer writer.Close()

	registry := prometheus.NewRegistry()
	if addr := v.GetString("metrics-addr"); addr != "" {
		go serveMetrics(addr, registry)
	}
	migrator, err := opdb.NewMigrator(log.Root(), registry)
	if err != nil {
		return err
	}

	log.Info("Starting database migration", "datadir", datadir, "engine", db.Engine(),
		"ancient", config.Ancient != nil, "output", output)

	result, err := migrator.MigrateRange(ctx, reader, writer, opdb.MigrationOptions{
		StartBlock:      v.GetUint64("start"),
		EndBlock:        end,
		BatchSize:       v.GetInt("batch-size"),
		IncludeReceipts: v.GetBool("receipts"),
		ContinueOnError: v.GetBool("continue-on-error"),
	})
	if err != nil {
		return err
	}
	if result.BlocksSkipped > 0 {
		log.Warn("Some blocks were skipped", "skipped", result.BlocksSkipped)
	}
	log.Info("Exported blocks", "count", result.BlocksMigrated, "lines", writer.Written(), "output", output)
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Metrics server stopped", "addr", addr, "err", err)
	}
}

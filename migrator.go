package opdb

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/geth/log"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultBatchSize = 100

type migrationMetrics struct {
	blocksMigrated prometheus.Counter
	blocksSkipped  prometheus.Counter
	lastHeight     prometheus.Gauge
}

func newMigrationMetrics(reg prometheus.Registerer) (*migrationMetrics, error) {
	m := &migrationMetrics{
		blocksMigrated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opdb",
			Name:      "blocks_migrated_total",
			Help:      "Number of blocks read from the legacy database and imported",
		}),
		blocksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opdb",
			Name:      "blocks_skipped_total",
			Help:      "Number of blocks that failed to read and were skipped",
		}),
		lastHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "opdb",
			Name:      "last_migrated_height",
			Help:      "Height of the last block handed to the importer",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.blocksMigrated, m.blocksSkipped, m.lastHeight} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

// Migrator walks a block range on an Exporter and hands the records to
// an Importer in batches.
type Migrator struct {
	log     log.Logger
	metrics *migrationMetrics
}

// NewMigrator creates a migrator. A nil logger uses the root logger and a
// nil registerer leaves the metrics unregistered.
func NewMigrator(logger log.Logger, reg prometheus.Registerer) (*Migrator, error) {
	if logger == nil {
		logger = log.Root()
	}
	metrics, err := newMigrationMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &Migrator{log: logger, metrics: metrics}, nil
}

// MigrateRange migrates [options.StartBlock, options.EndBlock] in order.
// A block that fails to read aborts the run unless ContinueOnError is
// set, in which case it is recorded in the result and skipped.
func (m *Migrator) MigrateRange(ctx context.Context, source Exporter, dest Importer, options MigrationOptions) (*MigrationResult, error) {
	result := &MigrationResult{
		StartTime: time.Now(),
	}
	start, end := options.StartBlock, options.EndBlock
	if start > end {
		result.EndTime = time.Now()
		return result, ErrInvalidBlockRange
	}

	batchSize := options.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	total := end - start + 1

	var batch []*BlockData
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := dest.ImportBlocks(batch); err != nil {
			return fmt.Errorf("failed to import blocks %d-%d: %w", batch[0].Number, batch[len(batch)-1].Number, err)
		}
		result.BlocksMigrated += uint64(len(batch))
		m.metrics.blocksMigrated.Add(float64(len(batch)))
		m.metrics.lastHeight.Set(float64(batch[len(batch)-1].Number))
		batch = nil
		return nil
	}
	fail := func(err error) (*MigrationResult, error) {
		result.Errors = append(result.Errors, err)
		result.EndTime = time.Now()
		return result, err
	}

	m.log.Info("Migrating block range", "start", start, "end", end, "receipts", options.IncludeReceipts)

	for number := start; ; number++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		data, err := m.readBlock(source, number, options.IncludeReceipts)
		if err != nil {
			if !options.ContinueOnError {
				return fail(fmt.Errorf("failed to read block %d: %w", number, err))
			}
			m.log.Warn("Skipping unreadable block", "number", number, "err", err)
			result.Errors = append(result.Errors, err)
			result.BlocksSkipped++
			m.metrics.blocksSkipped.Inc()
		} else {
			batch = append(batch, data)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return fail(err)
				}
			}
		}

		done := number - start + 1
		if options.ProgressCallback != nil {
			options.ProgressCallback(done, total)
		}
		if done%10000 == 0 {
			m.log.Info("Migration progress", "number", number, "done", done, "total", total)
		}
		if number == end {
			break
		}
	}

	if err := flush(); err != nil {
		return fail(err)
	}
	if err := dest.Flush(); err != nil {
		return fail(fmt.Errorf("failed to flush importer: %w", err))
	}

	result.EndTime = time.Now()
	result.Success = len(result.Errors) == 0
	m.log.Info("Migration finished", "migrated", result.BlocksMigrated, "skipped", result.BlocksSkipped,
		"elapsed", result.EndTime.Sub(result.StartTime))
	return result, nil
}

func (m *Migrator) readBlock(source Exporter, number uint64, withReceipts bool) (*BlockData, error) {
	block, err := source.BlockByNumber(number)
	if err != nil {
		return nil, err
	}
	if !withReceipts {
		return NewBlockData(block, nil)
	}
	receipts, err := source.ReceiptsByNumber(number)
	if err != nil {
		return nil, err
	}
	return NewBlockData(block, receipts)
}

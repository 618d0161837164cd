// Package kvstore opens legacy chain databases read-only and exposes the
// point lookups the legacy reader needs.
package kvstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/luxfi/geth/core/rawdb"
	"github.com/luxfi/geth/ethdb"
	ethleveldb "github.com/luxfi/geth/ethdb/leveldb"
	"github.com/luxfi/geth/ethdb/memorydb"
	ethpebble "github.com/luxfi/geth/ethdb/pebble"
	"github.com/luxfi/opdb"
	"github.com/syndtr/goleveldb/leveldb"
)

const (
	defaultCache   = 512 // MB
	defaultHandles = 256
)

// Database is a read-only handle on a legacy chain database, optionally
// with its freezer attached.
type Database struct {
	db      ethdb.Database
	engine  string
	freezer bool
}

// Open opens the database described by config in read-only mode.
func Open(config opdb.StoreConfig) (*Database, error) {
	path := config.DatabasePath
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", opdb.ErrOpen, err)
	}

	engine := config.Engine
	if engine == opdb.EngineAuto {
		engine = DetectEngine(path)
	}
	cache, handles := config.Cache, config.Handles
	if cache <= 0 {
		cache = defaultCache
	}
	if handles <= 0 {
		handles = defaultHandles
	}

	var (
		kv  ethdb.KeyValueStore
		err error
	)
	switch engine {
	case opdb.EngineLevelDB:
		kv, err = ethleveldb.New(path, cache, handles, config.Namespace, true)
	case opdb.EnginePebble:
		kv, err = ethpebble.New(path, cache, handles, config.Namespace, true)
	default:
		return nil, fmt.Errorf("%w: %q", opdb.ErrUnsupportedEngine, engine)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s database %s: %w", opdb.ErrOpen, engine, path, err)
	}

	if config.AncientPath == "" {
		return &Database{db: rawdb.NewDatabase(kv), engine: engine}, nil
	}
	db, err := rawdb.Open(kv, rawdb.OpenOptions{
		Ancient:          config.AncientPath,
		MetricsNamespace: config.Namespace,
		ReadOnly:         true,
	})
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("%w: freezer %s: %w", opdb.ErrOpen, config.AncientPath, err)
	}
	return &Database{db: db, engine: engine, freezer: true}, nil
}

// DetectEngine guesses the storage engine from the files in path.
// Pebble always writes an OPTIONS file; anything else is treated as
// leveldb, the legacy default.
func DetectEngine(path string) string {
	if matches, _ := filepath.Glob(filepath.Join(path, "OPTIONS-*")); len(matches) > 0 {
		return opdb.EnginePebble
	}
	return opdb.EngineLevelDB
}

// Get returns the value stored for key, or opdb.ErrNotFound.
func (d *Database) Get(key []byte) ([]byte, error) {
	return get(d.db, key)
}

// Engine returns the storage engine the database was opened with.
func (d *Database) Engine() string {
	return d.engine
}

// Freezer returns the attached freezer, or nil when none was configured.
func (d *Database) Freezer() ethdb.AncientReader {
	if !d.freezer {
		return nil
	}
	return d.db
}

// Close releases the database and its freezer.
func (d *Database) Close() error {
	return d.db.Close()
}

// Memory is an in-memory store for fixtures and tests.
type Memory struct {
	db *memorydb.Database
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{db: memorydb.New()}
}

// Put stores value under key.
func (m *Memory) Put(key, value []byte) error {
	return m.db.Put(key, value)
}

// Get returns the value stored for key, or opdb.ErrNotFound.
func (m *Memory) Get(key []byte) ([]byte, error) {
	return get(m.db, key)
}

// Close releases the store.
func (m *Memory) Close() error {
	return m.db.Close()
}

// get normalises the engines' not-found signals to opdb.ErrNotFound.
// memorydb keeps its sentinel private, so Has settles what's left.
func get(kv ethdb.KeyValueReader, key []byte) ([]byte, error) {
	val, err := kv.Get(key)
	if err == nil {
		return val, nil
	}
	if errors.Is(err, leveldb.ErrNotFound) || errors.Is(err, pebble.ErrNotFound) {
		return nil, opdb.ErrNotFound
	}
	if ok, herr := kv.Has(key); herr == nil && !ok {
		return nil, opdb.ErrNotFound
	}
	return nil, err
}

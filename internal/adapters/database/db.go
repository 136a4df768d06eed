package database

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/pkg/logger"
)

// DB wraps the embedded badgerhold store
type DB struct {
	store *badgerhold.Store
	dir   string
}

// New opens (or creates) the store under dir
func New(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil // badger logs through its own logger otherwise

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	logger.Info("storage opened", zap.String("dir", dir))

	return &DB{store: store, dir: dir}, nil
}

// Close closes the store
func (db *DB) Close() error {
	if db.store != nil {
		logger.Info("closing storage", zap.String("dir", db.dir))
		return db.store.Close()
	}
	return nil
}

// Store returns the badgerhold store
func (db *DB) Store() *badgerhold.Store {
	return db.store
}

// Update runs fn in a read-write transaction; all writes commit or none do
func (db *DB) Update(fn func(tx *badger.Txn) error) error {
	return db.store.Badger().Update(fn)
}

// Health checks the store is open
func (db *DB) Health() error {
	if db.store == nil || db.store.Badger().IsClosed() {
		return errors.New("storage is closed")
	}
	return nil
}

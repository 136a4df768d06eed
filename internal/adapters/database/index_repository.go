package database

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/selivandex/thesis-engine/pkg/models"
)

// IndexRepository stores similarity index entries, partitioned by ticker
type IndexRepository struct {
	db *DB
}

// NewIndexRepository creates new index repository
func NewIndexRepository(db *DB) *IndexRepository {
	return &IndexRepository{db: db}
}

func byTicker(ticker string) *badgerhold.Query {
	return badgerhold.Where("Ticker").Eq(ticker).Index("Ticker")
}

// List returns every entry indexed for ticker
func (r *IndexRepository) List(ctx context.Context, ticker string) ([]models.IndexEntry, error) {
	var entries []models.IndexEntry
	if err := r.db.Store().Find(&entries, byTicker(ticker)); err != nil {
		return nil, fmt.Errorf("failed to list index entries: %w", err)
	}
	return entries, nil
}

// DocKeys returns the set of document keys already indexed for ticker
func (r *IndexRepository) DocKeys(ctx context.Context, ticker string) (map[string]struct{}, error) {
	entries, err := r.List(ctx, ticker)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.DocKey != "" {
			keys[e.DocKey] = struct{}{}
		}
	}
	return keys, nil
}

// Append inserts entries in a single transaction
func (r *IndexRepository) Append(ctx context.Context, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	err := r.db.Update(func(tx *badger.Txn) error {
		for i := range entries {
			if err := r.db.Store().TxInsert(tx, entries[i].ID, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append index entries: %w", err)
	}
	return nil
}

// Count returns the number of entries indexed for ticker
func (r *IndexRepository) Count(ctx context.Context, ticker string) (int, error) {
	n, err := r.db.Store().Count(&models.IndexEntry{}, byTicker(ticker))
	if err != nil {
		return 0, fmt.Errorf("failed to count index entries: %w", err)
	}
	return int(n), nil
}

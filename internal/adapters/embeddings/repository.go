package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"
	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/internal/adapters/database"
	"github.com/selivandex/thesis-engine/pkg/logger"
)

// record is the stored form of one embedding
type record struct {
	Hash       string
	Embedding  []float32
	Model      string
	TextLength int
	CreatedAt  time.Time
	LastUsedAt time.Time
	UseCount   int
}

// Repository handles persistent embedding storage in badger.
// Embeddings are deterministic per model, so they are kept permanently.
type Repository struct {
	db *database.DB
}

// NewRepository creates new embedding repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Get retrieves embedding by text hash and bumps its usage counters
func (r *Repository) Get(ctx context.Context, textHash string) ([]float32, bool) {
	var rec record
	if err := r.db.Store().Get(textHash, &rec); err != nil {
		if err != badgerhold.ErrNotFound {
			logger.Warn("failed to read stored embedding", zap.Error(err))
		}
		return nil, false
	}

	rec.LastUsedAt = time.Now()
	rec.UseCount++
	if err := r.db.Store().Update(textHash, &rec); err != nil {
		logger.Debug("failed to update embedding usage", zap.Error(err))
	}

	return rec.Embedding, true
}

// Set stores embedding under its text hash
func (r *Repository) Set(ctx context.Context, textHash string, embedding []float32, model string, textLength int) error {
	now := time.Now()
	rec := record{
		Hash:       textHash,
		Embedding:  embedding,
		Model:      model,
		TextLength: textLength,
		CreatedAt:  now,
		LastUsedAt: now,
		UseCount:   1,
	}

	if err := r.db.Store().Upsert(textHash, &rec); err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// GetStats returns the number of stored embeddings
func (r *Repository) GetStats(ctx context.Context) (int, error) {
	n, err := r.db.Store().Count(&record{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get embedding stats: %w", err)
	}
	return int(n), nil
}

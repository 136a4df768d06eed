package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/internal/analysis"
	"github.com/selivandex/thesis-engine/pkg/logger"
	"github.com/selivandex/thesis-engine/pkg/models"
)

// HeadlineSource aggregates headlines from feeds
type HeadlineSource interface {
	Fetch(ctx context.Context, feeds []string, limit int) ([]models.NewsItem, error)
}

// Ingester appends headlines to a ticker's evidence index
type Ingester interface {
	Ingest(ctx context.Context, ticker string, items []models.NewsItem) (int, error)
	Count(ctx context.Context, ticker string) (int, error)
}

// EvidenceRefresher keeps the evidence indices of a watchlist warm between requests
type EvidenceRefresher struct {
	headlines HeadlineSource
	index     Ingester
	tickers   []string
	feeds     []string
	limit     int
}

// NewEvidenceRefresher creates new refresher. Invalid tickers are rejected up front.
func NewEvidenceRefresher(headlines HeadlineSource, index Ingester, tickers, feeds []string, limit int) (*EvidenceRefresher, error) {
	normalized := make([]string, 0, len(tickers))
	seen := make(map[string]struct{}, len(tickers))
	for _, raw := range tickers {
		t, err := analysis.NormalizeTicker(raw)
		if err != nil {
			return nil, fmt.Errorf("watchlist: %w", err)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		normalized = append(normalized, t)
	}

	return &EvidenceRefresher{
		headlines: headlines,
		index:     index,
		tickers:   normalized,
		feeds:     feeds,
		limit:     limit,
	}, nil
}

// Name returns worker name
func (w *EvidenceRefresher) Name() string {
	return "evidence_refresher"
}

// Tickers returns the normalized watchlist
func (w *EvidenceRefresher) Tickers() []string {
	return w.tickers
}

// Run fetches headlines once and ingests them for every watchlist ticker.
// A failing ticker does not stop the others; their errors are joined.
func (w *EvidenceRefresher) Run(ctx context.Context) error {
	startTime := time.Now()

	items, err := w.headlines.Fetch(ctx, w.feeds, w.limit)
	if err != nil {
		return fmt.Errorf("fetch headlines: %w", err)
	}
	if len(items) == 0 {
		logger.Debug("no headlines to index")
		return nil
	}

	var (
		errs  []error
		added int
	)
	for _, ticker := range w.tickers {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		n, err := w.index.Ingest(ctx, ticker, items)
		if err != nil {
			logger.Warn("evidence refresh failed",
				zap.String("ticker", ticker),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", ticker, err))
			continue
		}
		added += n

		if total, err := w.index.Count(ctx, ticker); err == nil {
			logger.Debug("evidence index size",
				zap.String("ticker", ticker),
				zap.Int("added", n),
				zap.Int("total", total),
			)
		}
	}

	logger.Info("evidence refreshed",
		zap.Int("tickers", len(w.tickers)),
		zap.Int("headlines", len(items)),
		zap.Int("chunks_added", added),
		zap.Duration("duration", time.Since(startTime)),
	)

	return errors.Join(errs...)
}

// Package market fetches price history and turns it into an indicator snapshot.
package market

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/internal/adapters/price"
	"github.com/selivandex/thesis-engine/internal/indicators"
	"github.com/selivandex/thesis-engine/pkg/logger"
	"github.com/selivandex/thesis-engine/pkg/models"
)

// ErrDataUnavailable is returned when no usable history exists after fallback.
var ErrDataUnavailable = errors.New("market data unavailable")

// Extractor produces indicator snapshots for a ticker
type Extractor struct {
	primary   price.HistoryProvider
	secondary price.HistoryProvider
	calc      *indicators.Calculator

	primaryReq   price.HistoryRequest
	secondaryReq price.HistoryRequest
}

// Options configures the two history calls
type Options struct {
	Range         string
	Interval      string
	FallbackRange string
}

// NewExtractor creates an extractor. secondary may be nil to reuse primary
// with the fallback request policy.
func NewExtractor(primary, secondary price.HistoryProvider, opts Options) *Extractor {
	if secondary == nil {
		secondary = primary
	}
	if opts.Range == "" {
		opts.Range = "6mo"
	}
	if opts.Interval == "" {
		opts.Interval = "1d"
	}
	if opts.FallbackRange == "" {
		opts.FallbackRange = "1y"
	}
	return &Extractor{
		primary:      primary,
		secondary:    secondary,
		calc:         indicators.NewCalculator(),
		primaryReq:   price.HistoryRequest{Range: opts.Range, Interval: opts.Interval},
		secondaryReq: price.HistoryRequest{Range: opts.FallbackRange, Interval: "1d", Adjusted: true},
	}
}

// Bars returns normalized history, falling back once to the secondary call
// when the primary response is empty or fails.
func (e *Extractor) Bars(ctx context.Context, ticker string) ([]models.OHLCV, error) {
	frame, err := e.primary.FetchHistory(ctx, ticker, e.primaryReq)
	if err != nil || frame == nil || len(frame.Dates) == 0 {
		logger.Warn("primary history empty, trying fallback",
			zap.String("ticker", ticker),
			zap.String("provider", e.primary.GetName()),
			zap.Error(err),
		)

		frame, err = e.secondary.FetchHistory(ctx, ticker, e.secondaryReq)
		if err != nil {
			return nil, fmt.Errorf("%w for %s: %v", ErrDataUnavailable, ticker, err)
		}
		if frame == nil || len(frame.Dates) == 0 {
			return nil, fmt.Errorf("%w for %s: no rows returned", ErrDataUnavailable, ticker)
		}
	}

	bars, err := price.Normalize(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s: all rows incomplete", ErrDataUnavailable, ticker)
	}
	return bars, nil
}

// Snapshot fetches history and computes the indicator snapshot
func (e *Extractor) Snapshot(ctx context.Context, ticker string) (models.IndicatorSnapshot, error) {
	bars, err := e.Bars(ctx, ticker)
	if err != nil {
		return models.IndicatorSnapshot{}, err
	}

	snap, err := e.calc.Calculate(bars)
	if err != nil {
		return models.IndicatorSnapshot{}, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	logger.Debug("indicators computed",
		zap.String("ticker", ticker),
		zap.Int("bars", len(bars)),
		zap.Float64("price", snap.Price),
		zap.Float64("volatility_20d", snap.Volatility20D),
	)

	return snap, nil
}

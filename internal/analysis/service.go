// Package analysis runs the thesis pipeline for a ticker.
package analysis

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/selivandex/thesis-engine/internal/cache"
	"github.com/selivandex/thesis-engine/internal/evidence"
	"github.com/selivandex/thesis-engine/internal/synthesis"
	"github.com/selivandex/thesis-engine/pkg/lock"
	"github.com/selivandex/thesis-engine/pkg/logger"
	"github.com/selivandex/thesis-engine/pkg/models"
)

// SignalSource computes indicators for a ticker
type SignalSource interface {
	Snapshot(ctx context.Context, ticker string) (models.IndicatorSnapshot, error)
}

// HeadlineSource aggregates headlines from feeds
type HeadlineSource interface {
	Fetch(ctx context.Context, feeds []string, limit int) ([]models.NewsItem, error)
}

// EvidenceIndex is the per-ticker similarity index
type EvidenceIndex interface {
	Ingest(ctx context.Context, ticker string, items []models.NewsItem) (int, error)
	Query(ctx context.Context, ticker, text string, k int) ([]models.Evidence, error)
}

// ThesisWriter produces a thesis from pipeline inputs
type ThesisWriter interface {
	Synthesize(ctx context.Context, in synthesis.Input) (models.Thesis, error)
}

// Config tunes the pipeline
type Config struct {
	Feeds     []string
	NewsLimit int
	EvidenceK int
	CacheTTL  time.Duration
}

// Service orchestrates the analysis pipeline
type Service struct {
	signals   SignalSource
	headlines HeadlineSource
	evidence  EvidenceIndex
	writer    ThesisWriter
	cache     cache.Cache
	locker    lock.Locker
	cfg       Config
	now       func() time.Time
}

// Deps groups pipeline collaborators
type Deps struct {
	Signals   SignalSource
	Headlines HeadlineSource
	Evidence  EvidenceIndex
	Writer    ThesisWriter
	Cache     cache.Cache
	// Locker guards refreshes per ticker; nil uses an in-process lock
	Locker lock.Locker
}

// NewService creates analysis service
func NewService(deps Deps, cfg Config) *Service {
	if cfg.NewsLimit <= 0 {
		cfg.NewsLimit = 8
	}
	if cfg.EvidenceK <= 0 {
		cfg.EvidenceK = 5
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	locker := deps.Locker
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Service{
		signals:   deps.Signals,
		headlines: deps.Headlines,
		evidence:  deps.Evidence,
		writer:    deps.Writer,
		cache:     deps.Cache,
		locker:    locker,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Analyze returns a cached or freshly computed report for ticker
func (s *Service) Analyze(ctx context.Context, ticker string) (*models.Report, error) {
	ticker, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	if report, ok := s.cache.Get(ctx, ticker); ok {
		logger.Debug("analysis cache hit", zap.String("ticker", ticker))
		return report, nil
	}

	release, err := s.locker.Acquire(ctx, ticker)
	if err != nil {
		logger.Warn("refresh lock unavailable, computing unguarded",
			zap.String("ticker", ticker),
			zap.Error(err),
		)
	} else {
		defer release()
		// another request may have refreshed while we waited
		if report, ok := s.cache.Get(ctx, ticker); ok {
			logger.Debug("analysis cache filled while waiting", zap.String("ticker", ticker))
			return report, nil
		}
	}

	report, err := s.compute(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Put(ctx, ticker, report, s.cfg.CacheTTL); err != nil {
		logger.Warn("failed to cache report", zap.String("ticker", ticker), zap.Error(err))
	}
	return report, nil
}

func (s *Service) compute(ctx context.Context, ticker string) (*models.Report, error) {
	start := s.now()

	var (
		snapshot  models.IndicatorSnapshot
		headlines []models.NewsItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshot, err = s.signals.Snapshot(gctx, ticker)
		if err != nil {
			return newError(ErrDataUnavailable, ticker, err)
		}
		return nil
	})
	g.Go(func() error {
		items, err := s.headlines.Fetch(gctx, s.cfg.Feeds, s.cfg.NewsLimit)
		if err != nil {
			logger.Warn("headlines degraded to empty",
				zap.String("ticker", ticker),
				zap.Error(newError(ErrAggregationDegraded, ticker, err)),
			)
			items = nil
		}
		headlines = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if headlines == nil {
		headlines = []models.NewsItem{}
	}

	evidences := s.retrieve(ctx, ticker, headlines)

	thesis, err := s.writer.Synthesize(ctx, synthesis.Input{
		Ticker:     ticker,
		Indicators: snapshot,
		Headlines:  headlines,
		Evidence:   evidences,
	})
	if err != nil {
		if errors.Is(err, synthesis.ErrInvalidPayload) {
			return nil, newError(ErrPayloadInvalid, ticker, err)
		}
		return nil, newError(ErrSynthesisFailure, ticker, err)
	}

	report := &models.Report{
		Ticker:      ticker,
		GeneratedAt: s.now().UTC(),
		Indicators:  snapshot,
		TopNews:     headlines,
		Thesis:      thesis,
	}

	logger.Info("analysis completed",
		zap.String("ticker", ticker),
		zap.Int("headlines", len(headlines)),
		zap.Int("evidences", len(evidences)),
		zap.String("viewpoint", string(thesis.Viewpoint)),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return report, nil
}

// retrieve ingests headlines and queries evidence. Failures degrade to an empty pool.
func (s *Service) retrieve(ctx context.Context, ticker string, headlines []models.NewsItem) []models.Evidence {
	if len(headlines) > 0 {
		if _, err := s.evidence.Ingest(ctx, ticker, headlines); err != nil {
			logger.Warn("evidence ingest failed",
				zap.String("ticker", ticker),
				zap.Error(newError(ErrRetrievalEmpty, ticker, err)),
			)
		}
	}

	evidences, err := s.evidence.Query(ctx, ticker, evidence.QueryText(ticker), s.cfg.EvidenceK)
	if err != nil {
		logger.Warn("evidence degraded to empty",
			zap.String("ticker", ticker),
			zap.Error(newError(ErrRetrievalEmpty, ticker, err)),
		)
		return []models.Evidence{}
	}
	if len(evidences) == 0 {
		logger.Debug("no evidence for ticker", zap.String("ticker", ticker))
	}
	return evidences
}

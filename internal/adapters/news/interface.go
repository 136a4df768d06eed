package news

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/pkg/logger"
	"github.com/selivandex/thesis-engine/pkg/models"
)

// Provider represents news feed provider interface
type Provider interface {
	// GetName returns provider name
	GetName() string

	// FetchFeed fetches at most limit entries from one feed source
	FetchFeed(ctx context.Context, feed string, limit int) ([]models.NewsItem, error)
}

// Aggregator merges headlines from multiple feeds
type Aggregator struct {
	provider Provider
	timeout  time.Duration
}

// NewAggregator creates new news aggregator. timeout bounds each feed fetch; zero disables it.
func NewAggregator(provider Provider, timeout time.Duration) *Aggregator {
	return &Aggregator{
		provider: provider,
		timeout:  timeout,
	}
}

// Fetch fetches all feeds in parallel, deduplicates by url, sorts newest first
// and truncates to limit. Failing feeds are logged and skipped.
func (a *Aggregator) Fetch(ctx context.Context, feeds []string, limit int) ([]models.NewsItem, error) {
	type result struct {
		err   error
		items []models.NewsItem
	}

	// results are kept by feed position so dedup order is stable across runs
	results := make([]result, len(feeds))
	done := make(chan int, len(feeds))

	for i, feed := range feeds {
		go func(i int, feed string) {
			fctx := ctx
			if a.timeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(ctx, a.timeout)
				defer cancel()
			}
			items, err := a.provider.FetchFeed(fctx, feed, limit)
			results[i] = result{items: items, err: err}
			done <- i
		}(i, feed)
	}

	for range feeds {
		<-done
	}

	all := make([]models.NewsItem, 0)
	failed := 0
	for i, res := range results {
		if res.err != nil {
			failed++
			logger.Warn("feed fetch failed",
				zap.String("provider", a.provider.GetName()),
				zap.String("feed", feeds[i]),
				zap.Error(res.err),
			)
			continue
		}
		all = append(all, res.items...)
	}

	merged := Merge(all, limit)

	logger.Debug("news aggregated",
		zap.Int("feeds", len(feeds)),
		zap.Int("failed", failed),
		zap.Int("items", len(merged)),
	)

	return merged, nil
}

// Merge deduplicates items by non-empty url (first occurrence wins), sorts by
// published descending with undated items last, and truncates to limit.
func Merge(items []models.NewsItem, limit int) []models.NewsItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]models.NewsItem, 0, len(items))

	for _, item := range items {
		if item.URL != "" {
			if _, ok := seen[item.URL]; ok {
				continue
			}
			seen[item.URL] = struct{}{}
		}
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, okI := out[i].PublishedTime()
		tj, okJ := out[j].PublishedTime()
		switch {
		case okI && okJ:
			return ti.After(tj)
		case okI:
			return true
		default:
			return false
		}
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

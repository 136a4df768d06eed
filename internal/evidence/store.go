// Package evidence maintains a per-ticker similarity index over headline text.
package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/pkg/embeddings"
	"github.com/selivandex/thesis-engine/pkg/lock"
	"github.com/selivandex/thesis-engine/pkg/logger"
	"github.com/selivandex/thesis-engine/pkg/models"
)

const (
	DefaultChunkSize    = 600
	DefaultChunkOverlap = 80
	DefaultPreviewChars = 240
)

// Repository persists index entries per ticker
type Repository interface {
	List(ctx context.Context, ticker string) ([]models.IndexEntry, error)
	DocKeys(ctx context.Context, ticker string) (map[string]struct{}, error)
	Append(ctx context.Context, entries []models.IndexEntry) error
	Count(ctx context.Context, ticker string) (int, error)
}

// Options tunes chunking and retrieval
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	PreviewChars int
	// MaxDistance drops hits farther than this L2 distance; 0 keeps every hit
	MaxDistance float64
}

// Store is the Evidence Store
type Store struct {
	repo     Repository
	embedder embeddings.Embedder
	locks    *lock.Local
	splitter textsplitter.RecursiveCharacter
	opts     Options
	now      func() time.Time
}

// NewStore creates evidence store
func NewStore(repo Repository, embedder embeddings.Embedder, opts Options) *Store {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	if opts.PreviewChars <= 0 {
		opts.PreviewChars = DefaultPreviewChars
	}

	return &Store{
		repo:     repo,
		embedder: embedder,
		locks:    lock.NewLocal(),
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(opts.ChunkSize),
			textsplitter.WithChunkOverlap(opts.ChunkOverlap),
		),
		opts: opts,
		now:  time.Now,
	}
}

// chunk is a pending index entry before embedding
type chunk struct {
	docKey string
	text   string
	item   models.NewsItem
}

// Ingest chunks and embeds items not yet indexed for ticker and appends them.
// Calls for the same ticker are serialized. Returns the number of chunks added.
func (s *Store) Ingest(ctx context.Context, ticker string, items []models.NewsItem) (int, error) {
	release, err := s.locks.Acquire(ctx, ticker)
	if err != nil {
		return 0, fmt.Errorf("acquire ingest lock for %s: %w", ticker, err)
	}
	defer release()

	existing, err := s.repo.DocKeys(ctx, ticker)
	if err != nil {
		return 0, fmt.Errorf("load index for %s: %w", ticker, err)
	}

	pending := make([]chunk, 0)
	for _, item := range items {
		text := itemText(item)
		if text == "" {
			continue
		}

		key := docKey(item, text)
		if _, ok := existing[key]; ok {
			continue
		}
		existing[key] = struct{}{}

		parts, err := s.splitter.SplitText(text)
		if err != nil {
			logger.Warn("failed to split headline", zap.String("url", item.URL), zap.Error(err))
			continue
		}
		for _, p := range parts {
			if strings.TrimSpace(p) == "" {
				continue
			}
			pending = append(pending, chunk{docKey: key, text: p, item: item})
		}
	}

	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, c := range pending {
		texts[i] = c.text
	}
	vectors, err := s.embedder.GenerateBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks for %s: %w", ticker, err)
	}
	if len(vectors) != len(pending) {
		return 0, fmt.Errorf("embed chunks for %s: got %d vectors for %d chunks", ticker, len(vectors), len(pending))
	}

	created := s.now().UTC()
	entries := make([]models.IndexEntry, len(pending))
	for i, c := range pending {
		published := ""
		if c.item.Published != nil {
			published = *c.item.Published
		}
		entries[i] = models.IndexEntry{
			ID:        ticker + ":" + uuid.Must(uuid.NewV7()).String(),
			Ticker:    ticker,
			DocKey:    c.docKey,
			Text:      c.text,
			Vector:    vectors[i],
			Source:    c.item.Source,
			URL:       c.item.URL,
			Published: published,
			Title:     c.item.Title,
			CreatedAt: created,
		}
	}

	if err := s.repo.Append(ctx, entries); err != nil {
		return 0, fmt.Errorf("persist index for %s: %w", ticker, err)
	}

	logger.Info("evidence ingested",
		zap.String("ticker", ticker),
		zap.Int("items", len(items)),
		zap.Int("chunks_added", len(entries)),
	)

	return len(entries), nil
}

type hit struct {
	entry    models.IndexEntry
	distance float64
}

// Query returns up to k nearest chunks for text. A ticker without an index yields an empty list.
func (s *Store) Query(ctx context.Context, ticker, text string, k int) ([]models.Evidence, error) {
	out := make([]models.Evidence, 0)
	if k <= 0 {
		return out, nil
	}

	entries, err := s.repo.List(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("load index for %s: %w", ticker, err)
	}
	if len(entries) == 0 {
		return out, nil
	}

	query, err := s.embedder.Generate(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query for %s: %w", ticker, err)
	}

	hits := make([]hit, 0, len(entries))
	skipped := 0
	for _, e := range entries {
		if len(e.Vector) != len(query) {
			skipped++
			continue
		}
		d := l2(query, e.Vector)
		if s.opts.MaxDistance > 0 && d > s.opts.MaxDistance {
			continue
		}
		hits = append(hits, hit{entry: e, distance: d})
	}
	if skipped > 0 {
		logger.Warn("index entries with mismatched dimensions skipped",
			zap.String("ticker", ticker),
			zap.Int("skipped", skipped),
			zap.Int("query_dim", len(query)),
		)
	}

	// smaller distance is more similar
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return hits[i].entry.ID < hits[j].entry.ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	for _, h := range hits {
		out = append(out, models.Evidence{
			Source:  models.StringPtr(h.entry.Source),
			URL:     models.StringPtr(h.entry.URL),
			Title:   models.StringPtr(h.entry.Title),
			Summary: models.StringPtr(Preview(h.entry.Text, s.opts.PreviewChars)),
		})
	}

	logger.Debug("evidence queried",
		zap.String("ticker", ticker),
		zap.Int("indexed", len(entries)),
		zap.Int("hits", len(out)),
	)

	return out, nil
}

// Count returns the number of indexed chunks for ticker
func (s *Store) Count(ctx context.Context, ticker string) (int, error) {
	return s.repo.Count(ctx, ticker)
}

// QueryText is the risk-oriented retrieval query for a ticker
func QueryText(ticker string) string {
	return ticker + " stock risks volatility earnings regulation macro AI rout"
}

// Preview truncates text to max runes with newlines collapsed to spaces
func Preview(text string, max int) string {
	text = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
	runes := []rune(text)
	if len(runes) > max {
		runes = runes[:max]
	}
	return strings.TrimSpace(string(runes))
}

func itemText(item models.NewsItem) string {
	title := strings.TrimSpace(item.Title)
	summary := strings.TrimSpace(item.SummaryText())
	switch {
	case title == "":
		return summary
	case summary == "":
		return title
	}
	return title + "\n" + summary
}

func docKey(item models.NewsItem, text string) string {
	if item.URL != "" {
		return item.URL
	}
	sum := sha256.Sum256([]byte(text))
	return "sha256:" + hex.EncodeToString(sum[:])
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selivandex/thesis-engine/internal/adapters/database"
	"github.com/selivandex/thesis-engine/internal/adapters/price"
	"github.com/selivandex/thesis-engine/internal/cache"
	"github.com/selivandex/thesis-engine/internal/evidence"
	"github.com/selivandex/thesis-engine/internal/market"
	"github.com/selivandex/thesis-engine/internal/synthesis"
	"github.com/selivandex/thesis-engine/pkg/embeddings"
	"github.com/selivandex/thesis-engine/pkg/models"
)

type fakeHistory struct {
	frame *price.Frame
	calls atomic.Int32
}

func (f *fakeHistory) GetName() string { return "fake" }

func (f *fakeHistory) FetchHistory(_ context.Context, _ string, _ price.HistoryRequest) (*price.Frame, error) {
	f.calls.Add(1)
	if f.frame == nil {
		return nil, price.ErrNoData
	}
	return f.frame, nil
}

type fakeHeadlines struct {
	items []models.NewsItem
	err   error
}

func (f *fakeHeadlines) Fetch(_ context.Context, _ []string, _ int) ([]models.NewsItem, error) {
	return f.items, f.err
}

type fakeWriter struct {
	mu     sync.Mutex
	thesis models.Thesis
	err    error
	inputs []synthesis.Input
}

func (f *fakeWriter) Synthesize(_ context.Context, in synthesis.Input) (models.Thesis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	return f.thesis, f.err
}

type failingIndex struct{}

func (failingIndex) Ingest(context.Context, string, []models.NewsItem) (int, error) {
	return 0, errors.New("disk full")
}

func (failingIndex) Query(context.Context, string, string, int) ([]models.Evidence, error) {
	return nil, errors.New("disk full")
}

// ascendingFrame builds 25 daily bars with closes 150, 152, ... and open = previous close + 1
func ascendingFrame() *price.Frame {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	n := 25
	dates := make([]time.Time, n)
	opens := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i := 0; i < n; i++ {
		dates[i] = start.AddDate(0, 0, i)
		closes[i] = 150 + 2*float64(i)
		opens[i] = closes[i]
		if i > 0 {
			opens[i] = closes[i-1] + 1
		}
		volumes[i] = 1_000_000 + float64(i%5)*50_000
	}
	return &price.Frame{Ticker: "AAPL", Dates: dates, Columns: []price.Column{
		{Label: []string{price.ColOpen}, Values: opens},
		{Label: []string{price.ColHigh}, Values: closes},
		{Label: []string{price.ColLow}, Values: opens},
		{Label: []string{price.ColClose}, Values: closes},
		{Label: []string{price.ColVolume}, Values: volumes},
	}}
}

func sampleThesis() models.Thesis {
	return models.Thesis{
		Viewpoint:  models.ViewpointBullish,
		Reasoning:  []string{"momentum", "demand"},
		Catalysts:  []string{"earnings"},
		Risks:      []models.RiskItem{},
		Confidence: 0.6,
	}
}

func sampleHeadlines() []models.NewsItem {
	published := "2025-01-26T10:00:00Z"
	return []models.NewsItem{
		{Title: "Apple faces EU regulation probe", URL: "https://news.example/eu", Source: "Reuters",
			Published: &published, Summary: models.StringPtr("Regulators question App Store rules.")},
		{Title: "Apple earnings beat", URL: "https://news.example/earnings", Source: "WSJ"},
	}
}

type fixture struct {
	svc     *Service
	history *fakeHistory
	writer  *fakeWriter
	cache   *cache.Memory
	store   *evidence.Store
}

func newFixture(t *testing.T, headlines HeadlineSource) *fixture {
	t.Helper()

	db, err := database.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	history := &fakeHistory{frame: ascendingFrame()}
	store := evidence.NewStore(database.NewIndexRepository(db), embeddings.NewHashEmbedder(), evidence.Options{})
	writer := &fakeWriter{thesis: sampleThesis()}
	mem := cache.NewMemory(nil)

	svc := NewService(Deps{
		Signals:   market.NewExtractor(history, nil, market.Options{}),
		Headlines: headlines,
		Evidence:  store,
		Writer:    writer,
		Cache:     mem,
	}, Config{Feeds: []string{"feed"}, NewsLimit: 8, EvidenceK: 5, CacheTTL: time.Minute})

	return &fixture{svc: svc, history: history, writer: writer, cache: mem, store: store}
}

func TestNormalizeTicker(t *testing.T) {
	valid := map[string]string{"aapl": "AAPL", " brk.b ": "BRK.B", "RDS-A": "RDS-A", "x": "X"}
	for in, want := range valid {
		got, err := NormalizeTicker(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "../etc", "1ABC", "ABCDEFGHIJK", "A B", "AAPL;"} {
		_, err := NormalizeTicker(in)
		assert.ErrorIs(t, err, ErrValidation, in)
	}
}

func TestAnalyze_EndToEnd(t *testing.T) {
	f := newFixture(t, &fakeHeadlines{items: sampleHeadlines()})

	report, err := f.svc.Analyze(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", report.Ticker)
	assert.Equal(t, time.UTC, report.GeneratedAt.Location())
	assert.Equal(t, 198.0, report.Indicators.Price)
	assert.InDelta(t, 198.0/196.0-1, report.Indicators.ChangePct1D, 1e-15)
	assert.InDelta(t, 197.0/196.0-1, report.Indicators.GapOpenPct, 1e-15)
	assert.Len(t, report.TopNews, 2)
	assert.Equal(t, sampleThesis(), report.Thesis)

	// the writer saw the just-ingested evidence
	require.Len(t, f.writer.inputs, 1)
	in := f.writer.inputs[0]
	assert.Equal(t, "AAPL", in.Ticker)
	assert.Len(t, in.Evidence, 2)

	count, err := f.store.Count(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAnalyze_InvalidTickerNeverFetches(t *testing.T) {
	f := newFixture(t, &fakeHeadlines{})

	_, err := f.svc.Analyze(context.Background(), "../etc")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, f.history.calls.Load())
	assert.Empty(t, f.writer.inputs)
}

func TestAnalyze_CacheHit(t *testing.T) {
	f := newFixture(t, &fakeHeadlines{items: sampleHeadlines()})

	first, err := f.svc.Analyze(context.Background(), "AAPL")
	require.NoError(t, err)
	second, err := f.svc.Analyze(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, f.writer.inputs, 1)
	assert.Equal(t, int32(1), f.history.calls.Load())
	assert.Equal(t, 1, f.cache.Len())
}

func TestAnalyze_ConcurrentMissesComputeOnce(t *testing.T) {
	f := newFixture(t, &fakeHeadlines{items: sampleHeadlines()})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Analyze(context.Background(), "AAPL")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.writer.inputs, 1)
}

func TestAnalyze_Degraded(t *testing.T) {
	t.Run("headlines fail", func(t *testing.T) {
		f := newFixture(t, &fakeHeadlines{err: errors.New("feeds down")})

		report, err := f.svc.Analyze(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.NotNil(t, report.TopNews)
		assert.Empty(t, report.TopNews)
		require.Len(t, f.writer.inputs, 1)
		assert.Empty(t, f.writer.inputs[0].Evidence)
	})

	t.Run("evidence store fails", func(t *testing.T) {
		f := newFixture(t, &fakeHeadlines{items: sampleHeadlines()})
		f.svc.evidence = failingIndex{}

		report, err := f.svc.Analyze(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Len(t, report.TopNews, 2)
		assert.NotNil(t, f.writer.inputs[0].Evidence)
		assert.Empty(t, f.writer.inputs[0].Evidence)
	})
}

func TestAnalyze_Failures(t *testing.T) {
	t.Run("no price data", func(t *testing.T) {
		f := newFixture(t, &fakeHeadlines{})
		f.history.frame = nil

		_, err := f.svc.Analyze(context.Background(), "NOPE")
		assert.ErrorIs(t, err, ErrDataUnavailable)
		assert.ErrorIs(t, err, market.ErrDataUnavailable)
		assert.Contains(t, err.Error(), "NOPE")
		assert.Empty(t, f.writer.inputs)
	})

	t.Run("synthesis failed", func(t *testing.T) {
		f := newFixture(t, &fakeHeadlines{})
		f.writer.err = fmt.Errorf("%w: timeout", synthesis.ErrSynthesisFailed)

		_, err := f.svc.Analyze(context.Background(), "AAPL")
		assert.ErrorIs(t, err, ErrSynthesisFailure)
		assert.NotErrorIs(t, err, ErrPayloadInvalid)
		assert.Zero(t, f.cache.Len(), "failures are not cached")
	})

	t.Run("invalid payload", func(t *testing.T) {
		f := newFixture(t, &fakeHeadlines{})
		f.writer.err = fmt.Errorf("%w: expected object", synthesis.ErrInvalidPayload)

		_, err := f.svc.Analyze(context.Background(), "AAPL")
		assert.ErrorIs(t, err, ErrPayloadInvalid)
		assert.NotErrorIs(t, err, ErrSynthesisFailure)
	})
}

func TestError_Message(t *testing.T) {
	err := newError(ErrDataUnavailable, "AAPL", errors.New("boom"))
	assert.Equal(t, "data unavailable for AAPL: boom", err.Error())
	assert.Equal(t, "validation error", (&Error{Kind: ErrValidation}).Error())
}

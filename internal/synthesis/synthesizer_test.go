package synthesis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selivandex/thesis-engine/internal/adapters/ai"
	"github.com/selivandex/thesis-engine/pkg/models"
)

type fakeGenerator struct {
	reply  string
	err    error
	prompt ai.Prompt
	calls  int
}

func (f *fakeGenerator) Generate(_ context.Context, prompt ai.Prompt) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.reply, f.err
}

func (f *fakeGenerator) GetName() string { return "fake" }

func newTestSynthesizer(t *testing.T, gen ai.Generator) *Synthesizer {
	t.Helper()
	prompts, err := ai.NewPromptBuilder("")
	require.NoError(t, err)
	return NewSynthesizer(gen, prompts)
}

func TestParseThesis_RepairsMissingFields(t *testing.T) {
	raw := `{"thesis":{"viewpoint":"bullish","reasoning":["strong demand","margin expansion"],
		"risks":[{"name":"Regulation","rationale":"EU probe","severity":"extreme",
		"evidences":[{"source":"Reuters","url":"https://r.example/1"}]}],"confidence_0_1":0.7}}`

	thesis, err := ParseThesis(raw)
	require.NoError(t, err)

	assert.Equal(t, models.ViewpointBullish, thesis.Viewpoint)
	assert.NotNil(t, thesis.Catalysts)
	assert.Empty(t, thesis.Catalysts)
	require.Len(t, thesis.Risks, 1)
	assert.Equal(t, models.SeverityMedium, thesis.Risks[0].Severity)
	require.Len(t, thesis.Risks[0].Evidences, 1)

	ev := thesis.Risks[0].Evidences[0]
	assert.Equal(t, "Reuters", *ev.Source)
	assert.Nil(t, ev.Summary)
	assert.Nil(t, ev.Quote)
	assert.Nil(t, ev.Title)
	assert.InDelta(t, 0.7, thesis.Confidence, 1e-12)
}

func TestParseThesis_Defaults(t *testing.T) {
	for _, raw := range []string{`{}`, `{"thesis":{}}`, `{"thesis":null}`} {
		t.Run(raw, func(t *testing.T) {
			thesis, err := ParseThesis(raw)
			require.NoError(t, err)
			assert.Equal(t, models.Thesis{
				Viewpoint:  models.ViewpointNeutral,
				Reasoning:  []string{},
				Catalysts:  []string{},
				Risks:      []models.RiskItem{},
				Confidence: 0.5,
			}, thesis)
		})
	}
}

func TestParseThesis_Coercion(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, th models.Thesis)
	}{
		{
			name: "bare object in fences",
			raw:  "```json\n{\"viewpoint\":\"Bearish\",\"reasoning\":\"one reason\"}\n```",
			check: func(t *testing.T, th models.Thesis) {
				assert.Equal(t, models.ViewpointBearish, th.Viewpoint)
				assert.Equal(t, []string{"one reason"}, th.Reasoning)
			},
		},
		{
			name: "unknown viewpoint",
			raw:  `{"thesis":{"viewpoint":"moon"}}`,
			check: func(t *testing.T, th models.Thesis) {
				assert.Equal(t, models.ViewpointNeutral, th.Viewpoint)
			},
		},
		{
			name: "confidence clamped",
			raw:  `{"thesis":{"confidence_0_1":1.7}}`,
			check: func(t *testing.T, th models.Thesis) {
				assert.Equal(t, 1.0, th.Confidence)
			},
		},
		{
			name: "confidence as string",
			raw:  `{"thesis":{"confidence_0_1":"0.35"}}`,
			check: func(t *testing.T, th models.Thesis) {
				assert.InDelta(t, 0.35, th.Confidence, 1e-12)
			},
		},
		{
			name: "severity case folded",
			raw:  `{"thesis":{"risks":[{"name":"n","rationale":"r","severity":"HIGH"}]}}`,
			check: func(t *testing.T, th models.Thesis) {
				require.Len(t, th.Risks, 1)
				assert.Equal(t, models.SeverityHigh, th.Risks[0].Severity)
				assert.NotNil(t, th.Risks[0].Evidences)
			},
		},
		{
			name: "prose around object",
			raw:  `Sure! {"thesis":{"catalysts":["launch"]}} Hope this helps.`,
			check: func(t *testing.T, th models.Thesis) {
				assert.Equal(t, []string{"launch"}, th.Catalysts)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th, err := ParseThesis(tt.raw)
			require.NoError(t, err)
			tt.check(t, th)
		})
	}
}

func TestParseThesis_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "I cannot help with that"},
		{"array", `[]`},
		{"scalar", `42`},
		{"thesis not object", `{"thesis":"bullish"}`},
		{"reasoning object", `{"thesis":{"reasoning":{"a":1}}}`},
		{"risk without name", `{"thesis":{"risks":[{"rationale":"r","severity":"low"}]}}`},
		{"risk not object", `{"thesis":{"risks":["bad"]}}`},
		{"confidence word", `{"thesis":{"confidence_0_1":"high"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseThesis(tt.raw)
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestSynthesize(t *testing.T) {
	published := "2025-01-02T15:04:05Z"
	gen := &fakeGenerator{reply: `{"thesis":{"viewpoint":"bullish","reasoning":["a","b"],"catalysts":["c"],"risks":[],"confidence_0_1":0.6}}`}
	s := newTestSynthesizer(t, gen)

	thesis, err := s.Synthesize(context.Background(), Input{
		Ticker:     "AAPL",
		Indicators: models.IndicatorSnapshot{Price: 198},
		Headlines: []models.NewsItem{
			{Title: "Apple beats", URL: "https://r.example/1", Source: "Reuters", Published: &published},
		},
		Evidence: []models.Evidence{
			{Source: models.StringPtr("Reuters"), URL: models.StringPtr("https://r.example/1"), Summary: models.StringPtr("line one\nline two")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ViewpointBullish, thesis.Viewpoint)
	assert.Equal(t, 1, gen.calls)

	assert.Contains(t, gen.prompt.User, "Ticker: AAPL")
	assert.Contains(t, gen.prompt.User, `"price":198`)
	assert.Contains(t, gen.prompt.User, "- Apple beats | Reuters | 2025-01-02T15:04:05Z | https://r.example/1")
	assert.Contains(t, gen.prompt.User, "- line one line two | Reuters | https://r.example/1")
}

func TestSynthesize_Errors(t *testing.T) {
	t.Run("model unreachable", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("connection refused")}
		_, err := newTestSynthesizer(t, gen).Synthesize(context.Background(), Input{Ticker: "AAPL"})
		assert.ErrorIs(t, err, ErrSynthesisFailed)
		assert.NotErrorIs(t, err, ErrInvalidPayload)
		assert.Equal(t, 1, gen.calls)
	})

	t.Run("not configured", func(t *testing.T) {
		gen := &fakeGenerator{err: fmt.Errorf("fake: %w", ai.ErrNotConfigured)}
		_, err := newTestSynthesizer(t, gen).Synthesize(context.Background(), Input{Ticker: "AAPL"})
		assert.ErrorIs(t, err, ErrSynthesisFailed)
		assert.ErrorIs(t, err, ai.ErrNotConfigured)
	})

	t.Run("unrepairable", func(t *testing.T) {
		gen := &fakeGenerator{reply: `[]`}
		_, err := newTestSynthesizer(t, gen).Synthesize(context.Background(), Input{Ticker: "AAPL"})
		assert.ErrorIs(t, err, ErrInvalidPayload)
		assert.NotErrorIs(t, err, ErrSynthesisFailed)
	})
}

func TestFormatHeadlines(t *testing.T) {
	assert.Equal(t, []string{"- (no headlines)"}, FormatHeadlines(nil))
	assert.Equal(t, []string{"- (no evidences)"}, FormatEvidence(nil))

	items := make([]models.NewsItem, 12)
	for i := range items {
		items[i] = models.NewsItem{Title: fmt.Sprintf("t%d", i), Source: "s", URL: fmt.Sprintf("u%d", i)}
	}
	lines := FormatHeadlines(items)
	require.Len(t, lines, 8)
	assert.Equal(t, "- t0 | s |  | u0", lines[0])
}

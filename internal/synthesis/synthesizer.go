package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/internal/adapters/ai"
	"github.com/selivandex/thesis-engine/pkg/logger"
	"github.com/selivandex/thesis-engine/pkg/models"
)

var (
	// ErrSynthesisFailed means the model could not be reached or returned an error
	ErrSynthesisFailed = errors.New("synthesis failed")
	// ErrInvalidPayload means the model answered with something that cannot be repaired into a Thesis
	ErrInvalidPayload = errors.New("invalid thesis payload")
)

const (
	maxPromptHeadlines = 8
	maxPromptEvidence  = 8
)

// Input is everything the model sees for one ticker
type Input struct {
	Ticker     string
	Indicators models.IndicatorSnapshot
	Headlines  []models.NewsItem
	Evidence   []models.Evidence
}

// Synthesizer turns signals, headlines and evidence into a Thesis
type Synthesizer struct {
	generator ai.Generator
	prompts   *ai.PromptBuilder
}

// NewSynthesizer creates a synthesizer over generator
func NewSynthesizer(generator ai.Generator, prompts *ai.PromptBuilder) *Synthesizer {
	return &Synthesizer{generator: generator, prompts: prompts}
}

// Synthesize makes a single model call and repairs its output. It does not retry.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (models.Thesis, error) {
	indicatorsJSON, err := json.Marshal(in.Indicators)
	if err != nil {
		return models.Thesis{}, fmt.Errorf("%w: encode indicators: %v", ErrSynthesisFailed, err)
	}

	prompt, err := s.prompts.BuildThesisPrompt(ai.ThesisPromptData{
		Ticker:         in.Ticker,
		IndicatorsJSON: string(indicatorsJSON),
		Headlines:      FormatHeadlines(in.Headlines),
		Evidences:      FormatEvidence(in.Evidence),
	})
	if err != nil {
		return models.Thesis{}, fmt.Errorf("%w: build prompt: %v", ErrSynthesisFailed, err)
	}

	start := time.Now()
	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Error("thesis generation failed",
			zap.String("ticker", in.Ticker),
			zap.String("provider", s.generator.GetName()),
			zap.Error(err),
		)
		return models.Thesis{}, fmt.Errorf("%w: %s: %w", ErrSynthesisFailed, s.generator.GetName(), err)
	}

	thesis, err := ParseThesis(raw)
	if err != nil {
		logger.Warn("unrepairable thesis payload",
			zap.String("ticker", in.Ticker),
			zap.String("provider", s.generator.GetName()),
			zap.Int("raw_length", len(raw)),
			zap.Error(err),
		)
		return models.Thesis{}, err
	}

	logger.Info("thesis synthesized",
		zap.String("ticker", in.Ticker),
		zap.String("provider", s.generator.GetName()),
		zap.String("viewpoint", string(thesis.Viewpoint)),
		zap.Float64("confidence", thesis.Confidence),
		zap.Int("risks", len(thesis.Risks)),
		zap.Duration("latency", time.Since(start)),
	)
	return thesis, nil
}

// FormatHeadlines renders up to 8 headlines as "- title | source | published | url"
func FormatHeadlines(items []models.NewsItem) []string {
	if len(items) == 0 {
		return []string{"- (no headlines)"}
	}
	if len(items) > maxPromptHeadlines {
		items = items[:maxPromptHeadlines]
	}
	lines := make([]string, 0, len(items))
	for _, h := range items {
		published := ""
		if h.Published != nil {
			published = *h.Published
		}
		lines = append(lines, fmt.Sprintf("- %s | %s | %s | %s", h.Title, h.Source, published, h.URL))
	}
	return lines
}

// FormatEvidence renders up to 8 evidence entries as "- summary | source | url"
func FormatEvidence(evs []models.Evidence) []string {
	if len(evs) == 0 {
		return []string{"- (no evidences)"}
	}
	if len(evs) > maxPromptEvidence {
		evs = evs[:maxPromptEvidence]
	}
	lines := make([]string, 0, len(evs))
	for _, e := range evs {
		summary := strings.TrimSpace(strings.ReplaceAll(deref(e.Summary), "\n", " "))
		lines = append(lines, fmt.Sprintf("- %s | %s | %s", summary, deref(e.Source), deref(e.URL)))
	}
	return lines
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

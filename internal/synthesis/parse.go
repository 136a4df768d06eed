package synthesis

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"github.com/selivandex/thesis-engine/internal/adapters/ai"
	"github.com/selivandex/thesis-engine/pkg/models"
)

const defaultConfidence = 0.5

var validate = validator.New()

// ParseThesis decodes model output into a schema-valid Thesis.
//
// Structural gaps are filled with neutral defaults: a missing viewpoint becomes neutral,
// missing lists become empty, a missing confidence becomes 0.5 and unknown severities
// become medium. Content is never invented, so a risk without a name or rationale, or
// output that is not a JSON object, yields ErrInvalidPayload.
func ParseThesis(raw string) (models.Thesis, error) {
	var payload any
	if err := json.Unmarshal([]byte(ai.ExtractJSON(raw)), &payload); err != nil {
		return models.Thesis{}, invalid("decode: %v", err)
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return models.Thesis{}, invalid("expected object, got %T", payload)
	}
	// {"thesis": {...}} and a bare thesis object are both accepted
	if inner, wrapped := obj["thesis"]; wrapped {
		if inner == nil {
			inner = map[string]any{}
		}
		if obj, ok = inner.(map[string]any); !ok {
			return models.Thesis{}, invalid("thesis: expected object, got %T", inner)
		}
	}

	var (
		thesis models.Thesis
		err    error
	)
	thesis.Viewpoint = parseViewpoint(obj["viewpoint"])
	if thesis.Reasoning, err = parseStrings(obj["reasoning"]); err != nil {
		return models.Thesis{}, invalid("reasoning: %v", err)
	}
	if thesis.Catalysts, err = parseStrings(obj["catalysts"]); err != nil {
		return models.Thesis{}, invalid("catalysts: %v", err)
	}
	if thesis.Risks, err = parseRisks(obj["risks"]); err != nil {
		return models.Thesis{}, invalid("risks: %v", err)
	}
	if thesis.Confidence, err = parseConfidence(obj["confidence_0_1"]); err != nil {
		return models.Thesis{}, invalid("confidence_0_1: %v", err)
	}

	if err := validate.Struct(thesis); err != nil {
		return models.Thesis{}, invalid("%v", err)
	}
	return thesis, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

func parseViewpoint(v any) models.Viewpoint {
	s, ok := v.(string)
	if !ok {
		return models.ViewpointNeutral
	}
	vp := models.Viewpoint(strings.ToLower(strings.TrimSpace(s)))
	if !vp.Valid() {
		return models.ViewpointNeutral
	}
	return vp
}

func parseSeverity(v any) models.Severity {
	s, ok := v.(string)
	if !ok {
		return models.SeverityMedium
	}
	sev := models.Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.Valid() {
		return models.SeverityMedium
	}
	return sev
}

// parseStrings accepts a list of scalars, a single string or null.
func parseStrings(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return []string{}, nil
		}
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			if _, isObj := item.(map[string]any); isObj {
				return nil, fmt.Errorf("item %d: expected string", i)
			}
			s, err := cast.ToStringE(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
}

func parseConfidence(v any) (float64, error) {
	if v == nil {
		return defaultConfidence, nil
	}
	if _, isBool := v.(bool); isBool {
		return 0, fmt.Errorf("expected number, got bool")
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) {
		return defaultConfidence, nil
	}
	return math.Max(0, math.Min(1, f)), nil
}

func parseRisks(v any) ([]models.RiskItem, error) {
	if v == nil {
		return []models.RiskItem{}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list, got %T", v)
	}

	risks := make([]models.RiskItem, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d: expected object, got %T", i, item)
		}
		name, _ := obj["name"].(string)
		rationale, _ := obj["rationale"].(string)
		evidences, err := parseEvidences(obj["evidences"])
		if err != nil {
			return nil, fmt.Errorf("item %d evidences: %w", i, err)
		}
		risks = append(risks, models.RiskItem{
			Name:      strings.TrimSpace(name),
			Rationale: strings.TrimSpace(rationale),
			Severity:  parseSeverity(obj["severity"]),
			Evidences: evidences,
		})
	}
	return risks, nil
}

func parseEvidences(v any) ([]models.Evidence, error) {
	if v == nil {
		return []models.Evidence{}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list, got %T", v)
	}

	out := make([]models.Evidence, 0, len(list))
	for i, item := range list {
		switch e := item.(type) {
		case string:
			out = append(out, models.Evidence{Summary: models.StringPtr(strings.TrimSpace(e))})
		case map[string]any:
			out = append(out, models.Evidence{
				Source:  optionalString(e["source"]),
				URL:     optionalString(e["url"]),
				Quote:   optionalString(e["quote"]),
				Title:   optionalString(e["title"]),
				Summary: optionalString(e["summary"]),
			})
		default:
			return nil, fmt.Errorf("item %d: expected object, got %T", i, item)
		}
	}
	return out, nil
}

func optionalString(v any) *string {
	switch v.(type) {
	case nil, map[string]any, []any:
		return nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil
	}
	return models.StringPtr(strings.TrimSpace(s))
}

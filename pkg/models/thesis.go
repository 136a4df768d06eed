package models

// Viewpoint is the directional call of a thesis.
type Viewpoint string

const (
	ViewpointBullish Viewpoint = "bullish"
	ViewpointBearish Viewpoint = "bearish"
	ViewpointNeutral Viewpoint = "neutral"
)

// Valid reports whether v is one of the known viewpoints.
func (v Viewpoint) Valid() bool {
	switch v {
	case ViewpointBullish, ViewpointBearish, ViewpointNeutral:
		return true
	}
	return false
}

// Severity grades a risk item.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Evidence is an attributable snippet. Optional fields serialize as null rather than being omitted.
type Evidence struct {
	Source  *string `json:"source"`
	URL     *string `json:"url"`
	Quote   *string `json:"quote"`
	Title   *string `json:"title"`
	Summary *string `json:"summary"`
}

// RiskItem is a single named risk with supporting evidence.
type RiskItem struct {
	Name      string     `json:"name" validate:"required"`
	Rationale string     `json:"rationale" validate:"required"`
	Severity  Severity   `json:"severity" validate:"oneof=low medium high"`
	Evidences []Evidence `json:"evidences" validate:"required"`
}

// Thesis is the structured investment viewpoint.
type Thesis struct {
	Viewpoint  Viewpoint  `json:"viewpoint" validate:"oneof=bullish bearish neutral"`
	Reasoning  []string   `json:"reasoning" validate:"required"`
	Catalysts  []string   `json:"catalysts" validate:"required"`
	Risks      []RiskItem `json:"risks" validate:"required,dive"`
	Confidence float64    `json:"confidence_0_1" validate:"gte=0,lte=1"`
}

package models

import "time"

// NewsItem represents a single headline. URL is the identity key.
type NewsItem struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Published *string `json:"published"`
	Source    string  `json:"source"`
	Summary   *string `json:"summary"`
}

// PublishedTime parses Published, returning false when it is absent or malformed.
func (n NewsItem) PublishedTime() (time.Time, bool) {
	if n.Published == nil || *n.Published == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, *n.Published)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SummaryText returns the summary or an empty string.
func (n NewsItem) SummaryText() string {
	if n.Summary == nil {
		return ""
	}
	return *n.Summary
}

// StringPtr returns nil for empty strings.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

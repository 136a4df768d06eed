package models

import "time"

// IndexEntry is one embedded text chunk in a ticker's similarity index.
// DocKey identifies the source headline: its url, or a content hash when it has none.
type IndexEntry struct {
	ID        string
	Ticker    string `badgerhold:"index"`
	DocKey    string
	Text      string
	Vector    []float32
	Source    string
	URL       string
	Published string
	Title     string
	CreatedAt time.Time
}

package models

import "time"

// Report is the unit of caching and of the external response.
type Report struct {
	Ticker      string            `json:"ticker"`
	GeneratedAt time.Time         `json:"date"`
	Indicators  IndicatorSnapshot `json:"indicators"`
	TopNews     []NewsItem        `json:"top_news"`
	Thesis      Thesis            `json:"thesis"`
}

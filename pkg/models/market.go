package models

import "time"

// OHLCV represents a single daily bar.
type OHLCV struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// IndicatorSnapshot is the deterministic signal set derived from a bar sequence.
// All fields are finite; undefined values are reported as 0.
type IndicatorSnapshot struct {
	Price         float64 `json:"price"`
	ChangePct1D   float64 `json:"change_pct_1d"`
	VolumeZScore  float64 `json:"volume_zscore"`
	Volatility20D float64 `json:"volatility_20d"`
	GapOpenPct    float64 `json:"gap_open_pct"`
}

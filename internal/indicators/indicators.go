package indicators

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/selivandex/thesis-engine/pkg/models"
)

const (
	// RollingWindow is the trailing session count for volatility and volume statistics.
	RollingWindow = 20
	// TradingDays annualizes daily volatility.
	TradingDays = 252
)

// Calculator calculates the indicator snapshot from daily bars
type Calculator struct {
	window int
}

// NewCalculator creates new indicator calculator
func NewCalculator() *Calculator {
	return &Calculator{window: RollingWindow}
}

// Compute derives the snapshot with the default window
func Compute(bars []models.OHLCV) (models.IndicatorSnapshot, error) {
	return NewCalculator().Calculate(bars)
}

// Calculate derives all indicators. Bars must be ordered ascending by date.
func (c *Calculator) Calculate(bars []models.OHLCV) (models.IndicatorSnapshot, error) {
	if len(bars) == 0 {
		return models.IndicatorSnapshot{}, fmt.Errorf("empty market data")
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
		volumes[i] = bar.Volume
	}

	return models.IndicatorSnapshot{
		Price:         finite(closes[len(closes)-1]),
		ChangePct1D:   c.ChangePct1D(closes),
		VolumeZScore:  c.VolumeZScore(volumes),
		Volatility20D: c.Volatility(closes),
		GapOpenPct:    c.GapOpenPct(bars),
	}, nil
}

// ChangePct1D is the latest close over the previous close, minus one.
func (c *Calculator) ChangePct1D(closes []float64) float64 {
	n := len(closes)
	if n < 2 {
		return 0
	}
	return finite(closes[n-1]/closes[n-2] - 1)
}

// Volatility is the sample standard deviation of the trailing daily returns, annualized.
func (c *Calculator) Volatility(closes []float64) float64 {
	returns := dailyReturns(closes)
	if len(returns) < c.window {
		return 0
	}
	window := returns[len(returns)-c.window:]
	if !allFinite(window) {
		return 0
	}
	return finite(stat.StdDev(window, nil) * math.Sqrt(TradingDays))
}

// VolumeZScore compares the latest volume against the trailing window including it.
func (c *Calculator) VolumeZScore(volumes []float64) float64 {
	if len(volumes) < c.window {
		return 0
	}
	window := volumes[len(volumes)-c.window:]
	if !allFinite(window) {
		return 0
	}
	mean, std := stat.MeanStdDev(window, nil)
	if std == 0 || !isFinite(std) {
		return 0
	}
	return finite((volumes[len(volumes)-1] - mean) / std)
}

// GapOpenPct is today's open over yesterday's close, minus one.
func (c *Calculator) GapOpenPct(bars []models.OHLCV) float64 {
	n := len(bars)
	if n < 2 {
		return 0
	}
	prevClose := bars[n-2].Close
	if prevClose == 0 {
		return 0
	}
	return finite(bars[n-1].Open/prevClose - 1)
}

// dailyReturns mirrors a percent-change series without its leading undefined element.
func dailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	returns := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		returns[i-1] = closes[i]/closes[i-1] - 1
	}
	return returns
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

// finite collapses NaN and Inf to 0 so undefined values never reach the report.
func finite(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}

package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selivandex/thesis-engine/pkg/models"
)

// generateTestBars builds n ascending bars with close = 100+i, open = previous close + 0.5
// and a volume sequence that varies by day.
func generateTestBars(n int) []models.OHLCV {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.OHLCV, n)
	for i := 0; i < n; i++ {
		closePrice := 100 + float64(i)
		open := closePrice - 0.5
		bars[i] = models.OHLCV{
			Date:   start.AddDate(0, 0, i),
			Open:   open,
			High:   closePrice + 1,
			Low:    open - 1,
			Close:  closePrice,
			Volume: 1_000_000 + float64((i%5)*10_000),
		}
	}
	return bars
}

func sampleStd(values []float64) (mean, std float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / float64(len(values)-1))
}

func TestCalculator_Calculate(t *testing.T) {
	calc := NewCalculator()
	bars := generateTestBars(25)

	snap, err := calc.Calculate(bars)
	require.NoError(t, err)

	assert.Equal(t, 124.0, snap.Price)
	assert.InDelta(t, 124.0/123.0-1, snap.ChangePct1D, 1e-15)
	assert.InDelta(t, 123.5/123.0-1, snap.GapOpenPct, 1e-15)

	returns := make([]float64, 0, 20)
	for i := 5; i < 25; i++ {
		returns = append(returns, bars[i].Close/bars[i-1].Close-1)
	}
	_, retStd := sampleStd(returns)
	assert.InDelta(t, retStd*math.Sqrt(252), snap.Volatility20D, 1e-12)

	volumes := make([]float64, 0, 20)
	for i := 5; i < 25; i++ {
		volumes = append(volumes, bars[i].Volume)
	}
	volMean, volStd := sampleStd(volumes)
	assert.InDelta(t, (bars[24].Volume-volMean)/volStd, snap.VolumeZScore, 1e-12)
}

func TestCalculator_ShortHistory(t *testing.T) {
	calc := NewCalculator()

	t.Run("fewer than 20 bars", func(t *testing.T) {
		snap, err := calc.Calculate(generateTestBars(19))
		require.NoError(t, err)
		assert.Equal(t, 0.0, snap.Volatility20D)
		assert.Equal(t, 0.0, snap.VolumeZScore)
		assert.Equal(t, 118.0, snap.Price)
	})

	t.Run("exactly 20 bars has 19 returns", func(t *testing.T) {
		snap, err := calc.Calculate(generateTestBars(20))
		require.NoError(t, err)
		assert.Equal(t, 0.0, snap.Volatility20D)
		assert.NotEqual(t, 0.0, snap.VolumeZScore)
	})

	t.Run("single bar", func(t *testing.T) {
		snap, err := calc.Calculate(generateTestBars(1))
		require.NoError(t, err)
		assert.Equal(t, 100.0, snap.Price)
		assert.Equal(t, 0.0, snap.ChangePct1D)
		assert.Equal(t, 0.0, snap.GapOpenPct)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := calc.Calculate(nil)
		assert.Error(t, err)
	})
}

func TestCalculator_NonFiniteInputs(t *testing.T) {
	calc := NewCalculator()
	bars := generateTestBars(25)
	bars[23].Close = 0
	bars[10].Volume = math.NaN()

	snap, err := calc.Calculate(bars)
	require.NoError(t, err)

	assert.Equal(t, 0.0, snap.ChangePct1D, "division by a zero close must not leak Inf")
	assert.Equal(t, 0.0, snap.GapOpenPct)
	assert.Equal(t, 0.0, snap.Volatility20D)
	assert.Equal(t, 0.0, snap.VolumeZScore)
}

func TestCalculator_ConstantVolume(t *testing.T) {
	calc := NewCalculator()
	bars := generateTestBars(30)
	for i := range bars {
		bars[i].Volume = 500
	}

	snap, err := calc.Calculate(bars)
	require.NoError(t, err)
	assert.Equal(t, 0.0, snap.VolumeZScore)
}

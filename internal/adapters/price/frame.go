package price

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/selivandex/thesis-engine/pkg/models"
)

// MaxBars is the number of most recent bars kept after normalization.
const MaxBars = 60

// ErrIncompleteColumns means no known shape could produce Open, Close and Volume.
var ErrIncompleteColumns = errors.New("incomplete columns")

// Canonical column names.
const (
	ColOpen     = "Open"
	ColHigh     = "High"
	ColLow      = "Low"
	ColClose    = "Close"
	ColAdjClose = "Adj Close"
	ColVolume   = "Volume"
)

// Column is one labeled series. Label has one element for flat responses and
// several (field, ticker) for multi-level ones. Missing values are NaN.
type Column struct {
	Label  []string
	Values []float64
}

// Frame is a provider response before normalization.
type Frame struct {
	Ticker  string
	Dates   []time.Time
	Columns []Column
}

// Shape tags the known response layouts.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeFlat has canonical single-level labels including Close.
	ShapeFlat
	// ShapeMultiLevel has (field, ticker) labels.
	ShapeMultiLevel
	// ShapeSuffixed has labels like "Open_TSLA".
	ShapeSuffixed
	// ShapeAdjustedOnly is flat but carries "Adj Close" instead of "Close".
	ShapeAdjustedOnly
)

func (s Shape) String() string {
	switch s {
	case ShapeFlat:
		return "flat"
	case ShapeMultiLevel:
		return "multi_level"
	case ShapeSuffixed:
		return "suffixed"
	case ShapeAdjustedOnly:
		return "adjusted_only"
	default:
		return "unknown"
	}
}

// DetectShape classifies a frame.
func DetectShape(f *Frame) Shape {
	if f == nil || len(f.Columns) == 0 {
		return ShapeUnknown
	}

	suffix := "_" + strings.ToUpper(f.Ticker)
	names := make(map[string]bool, len(f.Columns))
	for _, col := range f.Columns {
		switch {
		case len(col.Label) > 1:
			return ShapeMultiLevel
		case len(col.Label) == 1:
			if f.Ticker != "" && strings.HasSuffix(col.Label[0], suffix) {
				return ShapeSuffixed
			}
			names[col.Label[0]] = true
		}
	}

	switch {
	case names[ColClose]:
		return ShapeFlat
	case names[ColAdjClose]:
		return ShapeAdjustedOnly
	case names[ColOpen] || names[ColVolume]:
		// flat labels without any close; normalization reports the missing column
		return ShapeFlat
	}
	return ShapeUnknown
}

// columnSet maps canonical names to series.
type columnSet map[string][]float64

func normalizeFlat(f *Frame) columnSet {
	cols := columnSet{}
	for _, col := range f.Columns {
		if len(col.Label) == 1 {
			cols[col.Label[0]] = col.Values
		}
	}
	return cols
}

func normalizeMultiLevel(f *Frame) columnSet {
	cols := columnSet{}
	for _, col := range f.Columns {
		if len(col.Label) == 0 {
			continue
		}
		// first level is the field; keep the first occurrence per field
		if _, ok := cols[col.Label[0]]; !ok {
			cols[col.Label[0]] = col.Values
		}
	}
	return cols
}

func normalizeSuffixed(f *Frame) columnSet {
	suffix := "_" + strings.ToUpper(f.Ticker)
	cols := columnSet{}
	for _, col := range f.Columns {
		if len(col.Label) != 1 {
			continue
		}
		cols[strings.TrimSuffix(col.Label[0], suffix)] = col.Values
	}
	return cols
}

// Normalize converts any known shape into ascending, de-duplicated bars with
// missing Open/Close/Volume rows dropped, trimmed to the latest MaxBars.
func Normalize(f *Frame) ([]models.OHLCV, error) {
	shape := DetectShape(f)

	var cols columnSet
	switch shape {
	case ShapeFlat, ShapeAdjustedOnly:
		cols = normalizeFlat(f)
	case ShapeMultiLevel:
		cols = normalizeMultiLevel(f)
	case ShapeSuffixed:
		cols = normalizeSuffixed(f)
	default:
		return nil, fmt.Errorf("%w: unrecognized response shape", ErrIncompleteColumns)
	}

	if _, ok := cols[ColClose]; !ok {
		if adj, ok := cols[ColAdjClose]; ok {
			cols[ColClose] = adj
		}
	}

	for _, required := range []string{ColOpen, ColClose, ColVolume} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w for %s: missing %s (shape %s)", ErrIncompleteColumns, f.Ticker, required, shape)
		}
	}

	bars := make([]models.OHLCV, 0, len(f.Dates))
	for i, date := range f.Dates {
		open := valueAt(cols[ColOpen], i)
		closePrice := valueAt(cols[ColClose], i)
		volume := valueAt(cols[ColVolume], i)
		if math.IsNaN(open) || math.IsNaN(closePrice) || math.IsNaN(volume) {
			continue
		}
		bars = append(bars, models.OHLCV{
			Date:   date,
			Open:   open,
			High:   valueAt(cols[ColHigh], i),
			Low:    valueAt(cols[ColLow], i),
			Close:  closePrice,
			Volume: volume,
		})
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	// later rows for the same date win
	deduped := bars[:0]
	for _, bar := range bars {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(bar.Date) {
			deduped[n-1] = bar
			continue
		}
		deduped = append(deduped, bar)
	}

	if len(deduped) > MaxBars {
		deduped = deduped[len(deduped)-MaxBars:]
	}
	return deduped, nil
}

func valueAt(values []float64, i int) float64 {
	if i >= len(values) {
		return math.NaN()
	}
	return values[i]
}

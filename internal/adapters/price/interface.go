package price

import (
	"context"
	"errors"
)

// ErrNoData is returned by providers when the response carries no rows.
var ErrNoData = errors.New("no market data")

// HistoryRequest selects the window and adjustment policy of a history call.
type HistoryRequest struct {
	Range    string // e.g. "6mo", "1y"
	Interval string // e.g. "1d"
	Adjusted bool   // adjusted responses may carry only an adjusted close column
}

// HistoryProvider provides raw daily price history
type HistoryProvider interface {
	// FetchHistory returns the provider response as a labeled frame
	FetchHistory(ctx context.Context, ticker string, req HistoryRequest) (*Frame, error)

	// GetName returns provider name
	GetName() string
}

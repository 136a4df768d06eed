package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/pkg/logger"
)

const yahooChartURL = "https://query1.finance.yahoo.com"

// YahooProvider implements HistoryProvider using the Yahoo Finance chart API
type YahooProvider struct {
	client  *http.Client
	baseURL string
}

// NewYahooProvider creates new Yahoo provider with optional proxy support
func NewYahooProvider(timeout time.Duration, proxyURL string) *YahooProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooProvider{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		baseURL: yahooChartURL,
	}
}

// WithBaseURL points the provider at another host, used by tests
func (y *YahooProvider) WithBaseURL(baseURL string) *YahooProvider {
	y.baseURL = baseURL
	return y
}

func (y *YahooProvider) GetName() string {
	return "yahoo"
}

// yahooChart is the response structure from the chart API; nulls decode to nil.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchHistory fetches daily bars. Adjusted requests return an "Adj Close"
// column in place of Close when the API provides one.
func (y *YahooProvider) FetchHistory(ctx context.Context, ticker string, hr HistoryRequest) (*Frame, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s&includeAdjustedClose=true",
		y.baseURL, url.PathEscape(ticker), url.QueryEscape(hr.Interval), url.QueryEscape(hr.Range))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("yahoo: %w for %s", ErrNoData, ticker)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: %w for %s", ErrNoData, ticker)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	frame := &Frame{
		Ticker: ticker,
		Dates:  make([]time.Time, len(result.Timestamp)),
	}
	for i, ts := range result.Timestamp {
		frame.Dates[i] = time.Unix(ts, 0).UTC()
	}

	frame.Columns = append(frame.Columns,
		Column{Label: []string{ColOpen}, Values: toSeries(quote.Open, len(frame.Dates))},
		Column{Label: []string{ColHigh}, Values: toSeries(quote.High, len(frame.Dates))},
		Column{Label: []string{ColLow}, Values: toSeries(quote.Low, len(frame.Dates))},
		Column{Label: []string{ColVolume}, Values: toSeries(quote.Volume, len(frame.Dates))},
	)

	hasAdj := len(result.Indicators.AdjClose) > 0 && len(result.Indicators.AdjClose[0].AdjClose) > 0
	if hr.Adjusted && hasAdj {
		frame.Columns = append(frame.Columns, Column{
			Label:  []string{ColAdjClose},
			Values: toSeries(result.Indicators.AdjClose[0].AdjClose, len(frame.Dates)),
		})
	} else {
		frame.Columns = append(frame.Columns, Column{
			Label:  []string{ColClose},
			Values: toSeries(quote.Close, len(frame.Dates)),
		})
	}

	logger.Debug("fetched yahoo history",
		zap.String("ticker", ticker),
		zap.String("range", hr.Range),
		zap.Bool("adjusted", hr.Adjusted),
		zap.Int("rows", len(frame.Dates)),
	)

	return frame, nil
}

// toSeries converts nullable values into a NaN-padded series of length n
func toSeries(values []*float64, n int) []float64 {
	series := make([]float64, n)
	for i := range series {
		if i < len(values) && values[i] != nil {
			series[i] = *values[i]
		} else {
			series[i] = math.NaN()
		}
	}
	return series
}

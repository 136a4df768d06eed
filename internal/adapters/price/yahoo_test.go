package price

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartFixture = `{"chart":{"result":[{
  "timestamp":[1735776000,1735862400,1736121600],
  "indicators":{
    "quote":[{"open":[10,11,null],"high":[12,13,14],"low":[9,10,11],"close":[11,12,13],"volume":[100,200,300]}],
    "adjclose":[{"adjclose":[10.5,11.5,12.5]}]
  }}],"error":null}}`

func TestYahooProvider_FetchHistory(t *testing.T) {
	var gotPath, gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRange = r.URL.Query().Get("range")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartFixture))
	}))
	defer srv.Close()

	yp := NewYahooProvider(5*time.Second, "").WithBaseURL(srv.URL)

	t.Run("unadjusted keeps close", func(t *testing.T) {
		frame, err := yp.FetchHistory(context.Background(), "AAPL", HistoryRequest{Range: "6mo", Interval: "1d"})
		require.NoError(t, err)
		assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
		assert.Equal(t, "6mo", gotRange)
		assert.Equal(t, ShapeFlat, DetectShape(frame))

		bars, err := Normalize(frame)
		require.NoError(t, err)
		require.Len(t, bars, 2, "row with null open is dropped")
		assert.Equal(t, 12.0, bars[1].Close)
	})

	t.Run("adjusted returns adj close only", func(t *testing.T) {
		frame, err := yp.FetchHistory(context.Background(), "AAPL", HistoryRequest{Range: "1y", Interval: "1d", Adjusted: true})
		require.NoError(t, err)
		assert.Equal(t, ShapeAdjustedOnly, DetectShape(frame))

		bars, err := Normalize(frame)
		require.NoError(t, err)
		assert.Equal(t, 11.5, bars[1].Close)
	})
}

func TestYahooProvider_Errors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewYahooProvider(time.Second, "").WithBaseURL(srv.URL).
			FetchHistory(context.Background(), "ZZZZ", HistoryRequest{Range: "6mo", Interval: "1d"})
		assert.True(t, errors.Is(err, ErrNoData))
	})

	t.Run("empty result", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
		}))
		defer srv.Close()

		_, err := NewYahooProvider(time.Second, "").WithBaseURL(srv.URL).
			FetchHistory(context.Background(), "ZZZZ", HistoryRequest{Range: "6mo", Interval: "1d"})
		assert.True(t, errors.Is(err, ErrNoData))
	})

	t.Run("api error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
		}))
		defer srv.Close()

		_, err := NewYahooProvider(time.Second, "").WithBaseURL(srv.URL).
			FetchHistory(context.Background(), "ZZZZ", HistoryRequest{Range: "6mo", Interval: "1d"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "No data found")
	})
}

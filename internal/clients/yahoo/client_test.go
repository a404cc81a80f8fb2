package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartFixture = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "BRL=X", "exchangeTimezoneName": "Europe/London", "gmtoffset": 3600},
      "timestamp": [1726441200, 1726527600, 1726614000],
      "indicators": {
        "quote": [{
          "open": [5.61, null, 5.50],
          "high": [5.63, null, 5.52],
          "low": [5.55, null, 5.45],
          "close": [5.60, null, 5.49],
          "volume": [0, null, 0]
        }],
        "adjclose": [{"adjclose": [5.60, null, 5.49]}]
      }
    }],
    "error": null
  }
}`

func TestClient_GetHistoricalPrices(t *testing.T) {
	var gotPath, gotInterval string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotInterval = r.URL.Query().Get("interval")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartFixture))
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	start := time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 9, 20, 0, 0, 0, 0, time.UTC)

	prices, err := client.GetHistoricalPrices(context.Background(), "BRL=X", start, end)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/BRL=X", gotPath)
	assert.Equal(t, "1d", gotInterval)

	// Null day skipped; timestamps at 23:00 UTC belong to the next London day
	require.Len(t, prices, 2)
	assert.Equal(t, "2024-09-16", prices[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-09-18", prices[1].Date.Format("2006-01-02"))
	assert.InDelta(t, 5.60, prices[0].AdjClose, 1e-9)
	assert.InDelta(t, 5.49, prices[1].AdjClose, 1e-9)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(chartFixture))
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	client.backoff = time.Millisecond

	prices, err := client.GetHistoricalPrices(context.Background(), "BRL=X", time.Now().AddDate(0, 0, -5), time.Now())
	require.NoError(t, err)
	assert.Len(t, prices, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	client.backoff = time.Millisecond

	_, err := client.GetHistoricalPrices(context.Background(), "NOPE", time.Now().AddDate(0, 0, -5), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestParseChart_ProviderError(t *testing.T) {
	_, err := parseChart([]byte(`{"chart":{"result":[],"error":{"code":"Bad Request","description":"Invalid input"}}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid input")
}

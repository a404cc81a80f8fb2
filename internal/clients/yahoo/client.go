// Package yahoo provides a client for the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public chart API host
const DefaultBaseURL = "https://query1.finance.yahoo.com"

const maxAttempts = 3

// Client is a Yahoo Finance API client
type Client struct {
	client  *http.Client
	baseURL string
	backoff time.Duration
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		backoff: 500 * time.Millisecond,
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// GetHistoricalPrices returns daily prices for symbol between start and end (inclusive).
// Days on which the provider reports no values are omitted.
func (c *Client) GetHistoricalPrices(ctx context.Context, symbol string, start, end time.Time) ([]HistoricalPrice, error) {
	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("events", "div,splits")
	params.Add("includeAdjustedClose", "true")
	params.Add("period1", strconv.FormatInt(start.Unix(), 10))
	// period2 is exclusive on the provider side
	params.Add("period2", strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10))

	reqURL := c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + params.Encode()

	var body []byte
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var retryable bool
		body, retryable, err = c.fetch(ctx, reqURL)
		if err == nil || !retryable || attempt == maxAttempts {
			break
		}

		// Exponential backoff: 1x, 2x, 4x...
		wait := c.backoff * time.Duration(1<<(attempt-1))
		c.log.Warn().
			Err(err).
			Str("symbol", symbol).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Chart request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	if err != nil {
		return nil, err
	}

	prices, err := parseChart(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse chart for %s: %w", symbol, err)
	}

	c.log.Info().
		Str("symbol", symbol).
		Int("count", len(prices)).
		Msg("Fetched historical prices")

	return prices, nil
}

// fetch performs one request. The bool reports whether a retry may help.
func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("failed to fetch historical data: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("Yahoo Finance API returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return body, false, nil
}

func parseChart(body []byte) ([]HistoricalPrice, error) {
	var result chartResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("Yahoo Finance API error: %s: %s", result.Chart.Error.Code, result.Chart.Error.Description)
	}

	if len(result.Chart.Result) == 0 {
		return []HistoricalPrice{}, nil
	}

	chartData := result.Chart.Result[0]
	if len(chartData.Indicators.Quote) == 0 {
		return []HistoricalPrice{}, nil
	}

	loc := exchangeLocation(chartData.Meta.ExchangeTimezoneName, chartData.Meta.GMTOffset)
	quote := chartData.Indicators.Quote[0]

	var adjCloseData []float64
	if len(chartData.Indicators.AdjClose) > 0 {
		adjCloseData = chartData.Indicators.AdjClose[0].AdjClose
	}

	prices := make([]HistoricalPrice, 0, len(chartData.Timestamp))
	for i, ts := range chartData.Timestamp {
		if i >= len(quote.Close) {
			break
		}

		adjClose := quote.Close[i]
		if i < len(adjCloseData) && adjCloseData[i] != 0 {
			adjClose = adjCloseData[i]
		}

		// Yahoo returns null for missing days
		if adjClose == 0 {
			continue
		}

		volume := int64(0)
		if i < len(quote.Volume) {
			volume = quote.Volume[i]
		}

		local := time.Unix(ts, 0).In(loc)
		prices = append(prices, HistoricalPrice{
			Date:     time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc),
			Open:     valueAt(quote.Open, i),
			High:     valueAt(quote.High, i),
			Low:      valueAt(quote.Low, i),
			Close:    quote.Close[i],
			Volume:   volume,
			AdjClose: adjClose,
		})
	}

	return prices, nil
}

func exchangeLocation(name string, gmtOffset int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", gmtOffset)
}

func valueAt(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

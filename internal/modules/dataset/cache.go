// Package dataset maintains the daily market dataset snapshot handed to the
// batch engine.
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/market-reports/internal/clients/yahoo"
	"github.com/aristath/market-reports/internal/domain"
	"github.com/rs/zerolog"
)

// DateColumn is the first column of every snapshot
const DateColumn = "Date"

// PriceProvider supplies daily price history for one symbol
type PriceProvider interface {
	GetHistoricalPrices(ctx context.Context, symbol string, start, end time.Time) ([]yahoo.HistoricalPrice, error)
}

// Spec selects what goes into a snapshot and where it lives.
// A nil Aliases map keeps provider symbols as column names minus '^'.
type Spec struct {
	Tickers []string
	Aliases map[string]string
	Dir     string
}

// Cache produces at most one snapshot per calendar day
type Cache struct {
	provider PriceProvider
	prefix   string
	start    time.Time
	now      func() time.Time
	log      zerolog.Logger
}

// NewCache creates a dataset cache. start is the first day of history requested.
func NewCache(provider PriceProvider, prefix string, start time.Time, log zerolog.Logger) *Cache {
	return &Cache{
		provider: provider,
		prefix:   prefix,
		start:    start,
		now:      time.Now,
		log:      log.With().Str("module", "dataset_cache").Logger(),
	}
}

// SnapshotName returns the file name of the snapshot for day
func (c *Cache) SnapshotName(day time.Time) string {
	return fmt.Sprintf("%s_%s.csv", c.prefix, day.Format(domain.DateLayout))
}

// Fetch returns the path of today's snapshot, downloading it on a miss.
func (c *Cache) Fetch(ctx context.Context, spec Spec) (string, error) {
	if err := os.MkdirAll(spec.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create dataset directory: %w", err)
	}

	today := c.now()
	path := filepath.Join(spec.Dir, c.SnapshotName(today))

	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		c.log.Debug().Str("path", path).Msg("Dataset cache hit")
		return path, nil
	}

	c.log.Info().
		Strs("tickers", spec.Tickers).
		Str("path", path).
		Msg("Dataset cache miss, fetching history")

	table, err := c.download(ctx, spec, today)
	if err != nil {
		return "", err
	}

	if err := writeAtomic(path, table); err != nil {
		return "", fmt.Errorf("failed to write dataset snapshot: %w", err)
	}

	c.log.Info().
		Str("path", path).
		Int("rows", len(table)-1).
		Msg("Dataset snapshot written")

	return path, nil
}

// download fetches every ticker and assembles a date-aligned table, header first.
func (c *Cache) download(ctx context.Context, spec Spec, today time.Time) ([][]string, error) {
	series := make(map[string]map[string]float64, len(spec.Tickers))
	dates := make(map[string]struct{})

	for _, ticker := range spec.Tickers {
		prices, err := c.provider.GetHistoricalPrices(ctx, ticker, c.start, today)
		if err != nil {
			return nil, domain.NewError(domain.KindProvider, "dataset.fetch",
				fmt.Sprintf("failed to fetch history for %s", ticker), err)
		}
		if len(prices) == 0 {
			c.log.Warn().Str("ticker", ticker).Msg("Provider returned no history")
			continue
		}

		values := make(map[string]float64, len(prices))
		for _, p := range prices {
			day := p.Date.Format(domain.DateLayout)
			values[day] = p.AdjClose
			dates[day] = struct{}{}
		}
		series[ticker] = values
	}

	if len(series) == 0 {
		return nil, domain.Errorf(domain.KindProvider, "dataset.fetch", "no history returned for %s", strings.Join(spec.Tickers, ", "))
	}

	for symbol := range spec.Aliases {
		if _, ok := series[symbol]; !ok {
			return nil, domain.Errorf(domain.KindSchema, "dataset.fetch", "column %q missing from fetched data", symbol)
		}
	}

	tickers := make([]string, 0, len(series))
	for ticker := range series {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	header := []string{DateColumn}
	for _, ticker := range tickers {
		header = append(header, columnName(ticker, spec.Aliases))
	}

	days := make([]string, 0, len(dates))
	for day := range dates {
		days = append(days, day)
	}
	sort.Strings(days)

	table := make([][]string, 0, len(days)+1)
	table = append(table, header)
	for _, day := range days {
		row := make([]string, 0, len(header))
		row = append(row, day)
		for _, ticker := range tickers {
			// Gaps are filled with zero
			row = append(row, strconv.FormatFloat(series[ticker][day], 'f', -1, 64))
		}
		table = append(table, row)
	}

	return table, nil
}

func columnName(ticker string, aliases map[string]string) string {
	if aliases == nil {
		return strings.ReplaceAll(ticker, "^", "")
	}
	if alias, ok := aliases[ticker]; ok {
		return alias
	}
	return ticker
}

// writeAtomic writes via a temp file and rename so concurrent writers of the
// same day never expose a partial file.
func writeAtomic(path string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

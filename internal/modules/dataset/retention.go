package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aristath/market-reports/internal/domain"
)

// Prune deletes snapshots in dir dated more than retentionDays before today.
// Today's snapshot is never removed. Returns the number of files deleted.
func (c *Cache) Prune(dir string, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read dataset directory: %w", err)
	}

	now := c.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	cutoff := today.AddDate(0, 0, -retentionDays)

	removed := 0
	for _, entry := range entries {
		day, ok := c.snapshotDate(entry.Name())
		if !ok || entry.IsDir() || !day.Before(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			c.log.Warn().Err(err).Str("path", path).Msg("Failed to remove old snapshot")
			continue
		}
		removed++
	}

	if removed > 0 {
		c.log.Info().Int("removed", removed).Int("retention_days", retentionDays).Msg("Pruned dataset snapshots")
	}

	return removed, nil
}

// snapshotDate parses prefix_YYYY-MM-DD.csv
func (c *Cache) snapshotDate(name string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, c.prefix+"_")
	if !ok {
		return time.Time{}, false
	}
	rest, ok = strings.CutSuffix(rest, ".csv")
	if !ok {
		return time.Time{}, false
	}
	day, err := time.Parse(domain.DateLayout, rest)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// Package results retrieves engine output and flattens it into named files.
package results

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/rs/zerolog"
)

// Logical parts written by the engine, one subdirectory each
const (
	DailyReturns       = "daily_returns"
	AverageDailyReturn = "average_daily_return"
)

// partPattern matches the data files the engine writes inside a part directory
const partPattern = "part*.csv"

// Parts lists the engine outputs in normalization order
var Parts = []string{DailyReturns, AverageDailyReturn}

// Storage is the subset of the storage gateway used by the collector
type Storage interface {
	Download(ctx context.Context, remotePath, localDir string) error
	Delete(ctx context.Context, remotePath string) error
}

// Collection is the outcome of a successful collect
type Collection struct {
	Dir      string            // Local working directory of the job
	Files    map[string]string // Part name -> normalized file path, for parts found
	Warnings domain.Warnings
}

// FileName returns the normalized file name of a part
func FileName(part string) string {
	return part + ".csv"
}

// Collector downloads /{outputRoot}/{jobId} into {workRoot}/{jobId}
type Collector struct {
	storage    Storage
	outputRoot string
	workRoot   string
	log        zerolog.Logger
}

// NewCollector creates a result collector
func NewCollector(storage Storage, outputRoot, workRoot string, log zerolog.Logger) *Collector {
	return &Collector{
		storage:    storage,
		outputRoot: outputRoot,
		workRoot:   workRoot,
		log:        log.With().Str("module", "result_collector").Logger(),
	}
}

// WorkDir returns the local working directory for jobID
func (c *Collector) WorkDir(jobID string) string {
	return filepath.Join(c.workRoot, jobID)
}

// Collect downloads the job output, deletes the remote copy and normalizes
// each part into a single top-level file.
func (c *Collector) Collect(ctx context.Context, jobID string) (*Collection, error) {
	localDir := c.WorkDir(jobID)
	remoteDir := path.Join(c.outputRoot, jobID)

	if err := os.MkdirAll(localDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	if err := c.storage.Download(ctx, remoteDir, localDir); err != nil {
		return nil, err
	}

	// The remote copy goes as soon as a local copy exists
	if err := c.storage.Delete(ctx, remoteDir); err != nil {
		return nil, err
	}

	collection := &Collection{
		Dir:   localDir,
		Files: make(map[string]string),
	}

	moves, err := c.plan(localDir, &collection.Warnings)
	if err != nil {
		return nil, err
	}

	for _, m := range moves {
		if err := os.Rename(m.src, m.dst); err != nil {
			return nil, fmt.Errorf("failed to move %s: %w", m.src, err)
		}
		if err := os.RemoveAll(m.dir); err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", m.dir, err)
		}
		collection.Files[m.part] = m.dst
	}

	for _, w := range collection.Warnings {
		c.log.Warn().Str("job_id", jobID).Msg(w)
	}
	c.log.Info().
		Str("job_id", jobID).
		Str("dir", localDir).
		Int("files", len(collection.Files)).
		Msg("Results collected")

	return collection, nil
}

type move struct {
	part string
	dir  string
	src  string
	dst  string
}

// plan inspects every part before anything is renamed, so an integrity
// failure leaves the directory exactly as downloaded.
func (c *Collector) plan(localDir string, warnings *domain.Warnings) ([]move, error) {
	var moves []move

	for _, part := range Parts {
		dir := filepath.Join(localDir, part)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			warnings.Addf("output part %s not found", part)
			continue
		}

		matches, err := filepath.Glob(filepath.Join(dir, partPattern))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}

		switch len(matches) {
		case 0:
			warnings.Addf("no data file in output part %s", part)
		case 1:
			moves = append(moves, move{
				part: part,
				dir:  dir,
				src:  matches[0],
				dst:  filepath.Join(localDir, FileName(part)),
			})
		default:
			return nil, domain.Errorf(domain.KindIntegrity, "results.normalize",
				"expected one data file in %s, found %d", part, len(matches))
		}
	}

	return moves, nil
}

// Package engine launches analysis scripts on the batch-compute engine.
package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/aristath/market-reports/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Submitter runs spark-submit synchronously for one job
type Submitter struct {
	runner    utils.CommandRunner
	binary    string
	extraArgs []string
	newID     func() string
	log       zerolog.Logger
}

// NewSubmitter creates a submitter invoking binary with extraArgs placed
// before the script (e.g. --master spark://coordinator:7077).
func NewSubmitter(runner utils.CommandRunner, binary string, extraArgs []string, log zerolog.Logger) *Submitter {
	return &Submitter{
		runner:    runner,
		binary:    binary,
		extraArgs: extraArgs,
		newID:     uuid.NewString,
		log:       log.With().Str("component", "job_submitter").Logger(),
	}
}

// Submit runs scriptPath with (initialDate, finalDate, jobID, datasetPath) and
// returns the generated job id once the engine exits successfully.
func (s *Submitter) Submit(ctx context.Context, scriptPath, initialDate, finalDate, datasetPath string) (string, error) {
	jobID := s.newID()

	info, err := os.Stat(scriptPath)
	if err != nil || info.IsDir() {
		return "", domain.Errorf(domain.KindNotFound, "engine.submit", "script %s not found", scriptPath)
	}

	args := make([]string, 0, len(s.extraArgs)+5)
	args = append(args, s.extraArgs...)
	args = append(args, scriptPath, initialDate, finalDate, jobID, datasetPath)

	s.log.Info().
		Str("job_id", jobID).
		Str("script", scriptPath).
		Str("dataset", datasetPath).
		Msg("Submitting job")

	result, err := s.runner.Run(ctx, s.binary, args...)
	if result.Stdout != "" {
		s.log.Debug().Str("job_id", jobID).Str("stdout", result.Stdout).Msg("Engine output")
	}
	if result.Stderr != "" {
		s.log.Debug().Str("job_id", jobID).Str("stderr", result.Stderr).Msg("Engine diagnostics")
	}

	if err != nil {
		if utils.IsLaunchFailure(err) {
			return "", domain.NewError(domain.KindEngineExecution, "engine.submit",
				fmt.Sprintf("failed to launch %s", s.binary), err)
		}
		return "", domain.Errorf(domain.KindEngineExecution, "engine.submit",
			"job %s failed with return code %d: %s", jobID, result.ExitCode, utils.Truncate(result.Stderr, 2000))
	}

	s.log.Info().Str("job_id", jobID).Msg("Job completed")
	return jobID, nil
}

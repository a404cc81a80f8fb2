package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/market-reports/internal/utils"
)

// CLIBackend drives the cluster filesystem through `hdfs dfs`.
type CLIBackend struct {
	runner   utils.CommandRunner
	binary   string
	nameNode string // e.g. hdfs://coordinator:9000
}

// NewCLIBackend creates a backend that shells out to binary (usually "hdfs")
func NewCLIBackend(runner utils.CommandRunner, binary, nameNode string) *CLIBackend {
	return &CLIBackend{
		runner:   runner,
		binary:   binary,
		nameNode: strings.TrimRight(nameNode, "/"),
	}
}

// Name returns the backend identifier
func (b *CLIBackend) Name() string {
	return "hdfs-cli"
}

func (b *CLIBackend) uri(remotePath string) string {
	return b.nameNode + "/" + strings.TrimLeft(remotePath, "/")
}

// Exists runs `hdfs dfs -test -e`; exit status 1 means absent.
func (b *CLIBackend) Exists(ctx context.Context, remotePath string) (bool, error) {
	result, err := b.runner.Run(ctx, b.binary, "dfs", "-test", "-e", b.uri(remotePath))
	if err == nil {
		return true, nil
	}
	if !utils.IsLaunchFailure(err) && result.ExitCode == 1 {
		return false, nil
	}
	return false, b.failure("test", result, err)
}

// MkdirAll runs `hdfs dfs -mkdir -p`
func (b *CLIBackend) MkdirAll(ctx context.Context, remotePath string) error {
	result, err := b.runner.Run(ctx, b.binary, "dfs", "-mkdir", "-p", b.uri(remotePath))
	if err != nil {
		return b.failure("mkdir", result, err)
	}
	return nil
}

// Put runs `hdfs dfs -put -f`
func (b *CLIBackend) Put(ctx context.Context, localPath, remotePath string) error {
	result, err := b.runner.Run(ctx, b.binary, "dfs", "-put", "-f", localPath, b.uri(remotePath))
	if err != nil {
		return b.failure("put", result, err)
	}
	return nil
}

// Get runs `hdfs dfs -get <uri>/* localDir`. The glob is expanded by the
// hdfs client, not a shell.
func (b *CLIBackend) Get(ctx context.Context, remotePath, localDir string) error {
	result, err := b.runner.Run(ctx, b.binary, "dfs", "-get", b.uri(remotePath)+"/*", localDir)
	if err != nil {
		return b.failure("get", result, err)
	}
	return nil
}

// Remove runs `hdfs dfs -rm -r`
func (b *CLIBackend) Remove(ctx context.Context, remotePath string) error {
	result, err := b.runner.Run(ctx, b.binary, "dfs", "-rm", "-r", b.uri(remotePath))
	if err != nil {
		return b.failure("rm", result, err)
	}
	return nil
}

// failure folds the client's stderr into the error so callers see the diagnostic.
func (b *CLIBackend) failure(op string, result utils.CommandResult, err error) error {
	if utils.IsLaunchFailure(err) {
		return fmt.Errorf("failed to run %s dfs -%s: %w", b.binary, op, err)
	}
	diag := utils.Truncate(result.Stderr, 500)
	if diag == "" {
		diag = utils.Truncate(result.Stdout, 500)
	}
	if diag == "" {
		return fmt.Errorf("%s dfs -%s exited with status %d", b.binary, op, result.ExitCode)
	}
	return fmt.Errorf("%s dfs -%s exited with status %d: %s", b.binary, op, result.ExitCode, diag)
}

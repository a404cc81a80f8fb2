// Package storage moves files between the controller and the cluster filesystem.
//
// Gateway implements the transfer contract (idempotent upload, verified
// download, recursive delete) once; a Backend supplies the primitive
// operations for a concrete filesystem: the hdfs CLI, a native HDFS client,
// S3-compatible object storage, or a local directory.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/rs/zerolog"
)

// Backend is the minimal set of filesystem primitives. Remote paths are
// absolute slash-separated paths such as /output/{jobId}.
type Backend interface {
	Name() string
	Exists(ctx context.Context, remotePath string) (bool, error)
	MkdirAll(ctx context.Context, remotePath string) error
	// Put copies a local file to remotePath, overwriting.
	Put(ctx context.Context, localPath, remotePath string) error
	// Get copies the contents of the remote directory into localDir.
	Get(ctx context.Context, remotePath, localDir string) error
	// Remove deletes remotePath recursively.
	Remove(ctx context.Context, remotePath string) error
}

// Gateway exposes the distributed storage operations used by the pipeline
type Gateway struct {
	backend Backend
	log     zerolog.Logger
}

// NewGateway creates a gateway over backend
func NewGateway(backend Backend, log zerolog.Logger) *Gateway {
	return &Gateway{
		backend: backend,
		log:     log.With().Str("component", "storage_gateway").Str("backend", backend.Name()).Logger(),
	}
}

// Exists reports whether remotePath exists. Backend errors count as absent.
func (g *Gateway) Exists(ctx context.Context, remotePath string) bool {
	ok, err := g.backend.Exists(ctx, remotePath)
	if err != nil {
		g.log.Warn().Err(err).Str("path", remotePath).Msg("Existence check failed, treating as absent")
		return false
	}
	return ok
}

// MkdirAll creates remotePath and any missing parents
func (g *Gateway) MkdirAll(ctx context.Context, remotePath string) error {
	if err := g.backend.MkdirAll(ctx, remotePath); err != nil {
		return storageError("storage.mkdir", fmt.Sprintf("failed to create directory %s", remotePath), err)
	}
	return nil
}

// Upload copies localPath to remotePath. An existing remotePath is left
// untouched and reported as success.
func (g *Gateway) Upload(ctx context.Context, localPath, remotePath string) (string, error) {
	if g.Exists(ctx, remotePath) {
		g.log.Debug().Str("path", remotePath).Msg("Remote file already present, skipping upload")
		return remotePath, nil
	}

	if err := g.MkdirAll(ctx, path.Dir(remotePath)); err != nil {
		return "", err
	}

	if err := g.backend.Put(ctx, localPath, remotePath); err != nil {
		return "", storageError("storage.upload", fmt.Sprintf("failed to upload %s", localPath), err)
	}

	g.log.Info().Str("local", localPath).Str("remote", remotePath).Msg("Uploaded file")
	return remotePath, nil
}

// Download copies the contents of remotePath into localDir.
func (g *Gateway) Download(ctx context.Context, remotePath, localDir string) error {
	if err := g.backend.Get(ctx, remotePath, localDir); err != nil {
		return storageError("storage.download", fmt.Sprintf("failed to download %s", remotePath), err)
	}

	if info, err := os.Stat(localDir); err != nil || !info.IsDir() {
		return domain.Errorf(domain.KindNotFound, "storage.download", "local directory %s not found after download", localDir)
	}

	g.log.Info().Str("remote", remotePath).Str("local", localDir).Msg("Downloaded directory")
	return nil
}

// Delete removes remotePath recursively
func (g *Gateway) Delete(ctx context.Context, remotePath string) error {
	if err := g.backend.Remove(ctx, remotePath); err != nil {
		return storageError("storage.delete", fmt.Sprintf("failed to delete %s", remotePath), err)
	}

	g.log.Info().Str("remote", remotePath).Msg("Deleted remote path")
	return nil
}

// Close releases backend resources when the backend holds any
func (g *Gateway) Close() error {
	if c, ok := g.backend.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func storageError(op, msg string, err error) error {
	return domain.NewError(domain.KindStorage, op, msg, err)
}

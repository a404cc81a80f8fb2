package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/colinmarc/hdfs/v2"
)

// hdfsClient is the subset of *hdfs.Client used by HDFSBackend
type hdfsClient interface {
	Stat(name string) (os.FileInfo, error)
	MkdirAll(dirname string, perm os.FileMode) error
	CopyToRemote(src, dst string) error
	CopyToLocal(src, dst string) error
	Remove(name string) error
	RemoveAll(name string) error
	Walk(root string, walkFn filepath.WalkFunc) error
	Close() error
}

// HDFSBackend talks to the namenode directly over the HDFS RPC protocol.
type HDFSBackend struct {
	client hdfsClient
}

// NewHDFSBackend connects to nameNode (hdfs://host:port or host:port) as user
func NewHDFSBackend(nameNode, user string) (*HDFSBackend, error) {
	addr := strings.TrimPrefix(strings.TrimRight(nameNode, "/"), "hdfs://")

	client, err := hdfs.NewClient(hdfs.ClientOptions{
		Addresses: []string{addr},
		User:      user,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to namenode %s: %w", addr, err)
	}

	return &HDFSBackend{client: client}, nil
}

// Name returns the backend identifier
func (b *HDFSBackend) Name() string {
	return "hdfs-native"
}

// Exists stats the path on the namenode
func (b *HDFSBackend) Exists(ctx context.Context, remotePath string) (bool, error) {
	_, err := b.client.Stat(remotePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// MkdirAll creates the directory and its parents
func (b *HDFSBackend) MkdirAll(ctx context.Context, remotePath string) error {
	return b.client.MkdirAll(remotePath, 0755)
}

// Put uploads localPath, replacing an existing file
func (b *HDFSBackend) Put(ctx context.Context, localPath, remotePath string) error {
	if _, err := b.client.Stat(remotePath); err == nil {
		if err := b.client.Remove(remotePath); err != nil {
			return fmt.Errorf("failed to replace %s: %w", remotePath, err)
		}
	}
	return b.client.CopyToRemote(localPath, remotePath)
}

// Get mirrors the children of remotePath into localDir
func (b *HDFSBackend) Get(ctx context.Context, remotePath, localDir string) error {
	root := path.Clean(remotePath)
	info, err := b.client.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", remotePath)
	}

	return b.client.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		target := filepath.Join(localDir, filepath.FromSlash(rel))
		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		return b.client.CopyToLocal(p, target)
	})
}

// Remove deletes remotePath recursively; a missing path is an error
func (b *HDFSBackend) Remove(ctx context.Context, remotePath string) error {
	if _, err := b.client.Stat(remotePath); err != nil {
		return err
	}
	return b.client.RemoveAll(remotePath)
}

// Close closes the namenode connection
func (b *HDFSBackend) Close() error {
	return b.client.Close()
}

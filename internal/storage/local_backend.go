package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend stores "remote" paths under a root directory on local disk.
// Used in development and tests where no cluster is available.
type LocalBackend struct {
	root string
}

// NewLocalBackend creates a backend rooted at root
func NewLocalBackend(root string) *LocalBackend {
	return &LocalBackend{root: root}
}

// Name returns the backend identifier
func (b *LocalBackend) Name() string {
	return "local"
}

func (b *LocalBackend) resolve(remotePath string) string {
	clean := filepath.Clean("/" + strings.TrimLeft(filepath.FromSlash(remotePath), string(filepath.Separator)))
	return filepath.Join(b.root, clean)
}

// Exists stats the mapped path
func (b *LocalBackend) Exists(ctx context.Context, remotePath string) (bool, error) {
	_, err := os.Stat(b.resolve(remotePath))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// MkdirAll creates the mapped directory
func (b *LocalBackend) MkdirAll(ctx context.Context, remotePath string) error {
	return os.MkdirAll(b.resolve(remotePath), 0755)
}

// Put copies localPath over the mapped path
func (b *LocalBackend) Put(ctx context.Context, localPath, remotePath string) error {
	dst := b.resolve(remotePath)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return copyFile(localPath, dst)
}

// Get copies the children of the mapped directory into localDir
func (b *LocalBackend) Get(ctx context.Context, remotePath, localDir string) error {
	src := b.resolve(remotePath)
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", remotePath)
	}
	return copyTree(src, localDir)
}

// Remove deletes the mapped path recursively. A missing path is an error,
// matching `hdfs dfs -rm -r`.
func (b *LocalBackend) Remove(ctx context.Context, remotePath string) error {
	p := b.resolve(remotePath)
	if _, err := os.Stat(p); err != nil {
		return err
	}
	return os.RemoveAll(p)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyTree copies the contents of srcDir into dstDir, creating dstDir.
func copyTree(srcDir, dstDir string) error {
	return filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dstDir, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(p, target)
	})
}

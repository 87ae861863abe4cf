package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// stagingDir is kept inside the root so Promote is a same-filesystem rename,
// which is atomic on POSIX systems.
const stagingDir = ".staging"

// localStorage implements Storage on the local filesystem under a single
// root directory. It is safe for concurrent use: every key resolves to a
// distinct path and promoted blobs are never rewritten.
type localStorage struct {
	root string
}

// NewLocal creates a filesystem-backed content store rooted at root.
// The root and its staging area are created if missing.
func NewLocal(root string) (Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, stagingDir), 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &localStorage{root: abs}, nil
}

func (l *localStorage) finalPath(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

func (l *localStorage) stagedPath(key string) string {
	return filepath.Join(l.root, stagingDir, filepath.FromSlash(key))
}

// Stage writes the blob under the staging area, creating directories as
// needed. The write goes to the exact key it will later be promoted from.
func (l *localStorage) Stage(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	dst := l.stagedPath(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ObjectInfo{}, fmt.Errorf("create staging path: %w", err)
	}
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("open staged file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return ObjectInfo{}, fmt.Errorf("write staged file: %w", err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         n,
		ContentType:  opt.ContentType,
		LastModified: time.Now(),
		Metadata:     opt.Metadata,
	}, nil
}

// Promote renames the staged blob into its final location.
func (l *localStorage) Promote(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := l.finalPath(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create final path: %w", err)
	}
	if err := os.Rename(l.stagedPath(key), dst); err != nil {
		return fmt.Errorf("promote staged file: %w", err)
	}
	return nil
}

// Discard removes a staged blob. Missing files are ignored so Discard can be
// called unconditionally on error paths.
func (l *localStorage) Discard(ctx context.Context, key string) error {
	if err := os.Remove(l.stagedPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("discard staged file: %w", err)
	}
	return nil
}

// Get opens a promoted blob for reading.
func (l *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(l.finalPath(key))
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, err
	}
	return f, ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		LastModified: st.ModTime(),
	}, nil
}

// Delete removes a promoted blob. A missing file is treated as already
// deleted.
func (l *localStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(l.finalPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// BlobStore persists raw file bytes by key. It knows nothing about the catalog.
type BlobStore interface {
	// Put streams r into the blob at key and returns the number of bytes stored.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete is a no-op for keys that do not exist.
	Delete(ctx context.Context, key string) error
}

// Presigner is implemented by object stores that can hand out direct,
// time-limited download URLs.
type Presigner interface {
	PresignGet(ctx context.Context, key, filename string, expires time.Duration) (string, error)
}

// LocalBlobStore keeps blobs as flat files under a root directory.
type LocalBlobStore struct {
	root string
}

func NewLocalBlobStore(root string) (*LocalBlobStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &LocalBlobStore{root: abs}, nil
}

func (l *LocalBlobStore) Root() string { return l.root }

func (l *LocalBlobStore) path(key string) (string, error) {
	if !validKey(key) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(l.root, key), nil
}

// Put writes into a temp file first so a blob only appears under its key once
// it is complete.
func (l *LocalBlobStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	dst, err := l.path(key)
	if err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(l.root, ".upload-*")
	if err != nil {
		return 0, storageErr("create temp blob", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err != nil {
		cleanup()
		return n, storageErr("write blob", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return n, storageErr("sync blob", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return n, storageErr("close blob", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return n, storageErr("commit blob", err)
	}
	return n, nil
}

func (l *LocalBlobStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, storageErr("open blob", err)
	}
	return f, nil
}

func (l *LocalBlobStore) Delete(_ context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageErr("delete blob", err)
	}
	return nil
}

// validKey accepts the uuid-style keys the catalog generates and nothing that
// could walk out of the root.
func validKey(key string) bool {
	if key == "" || len(key) > 128 || strings.HasPrefix(key, ".") {
		return false
	}
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// storageErr tags err with ErrStorageFull or ErrStorage while keeping the cause.
func storageErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	// Errors coming out of the source reader (size limits, aborted bodies)
	// are the caller's to classify.
	var src sourceError
	if errors.As(err, &src) {
		return fmt.Errorf("%s: %w", op, src.err)
	}
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%s: %w: %w", op, ErrStorageFull, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

type sourceError struct{ err error }

func (e sourceError) Error() string { return e.err.Error() }
func (e sourceError) Unwrap() error { return e.err }

// contextReader stops a copy once ctx is done and marks read-side errors so
// they are not mistaken for storage failures.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.r.Read(p)
	if err != nil && err != io.EOF {
		return n, sourceError{err: err}
	}
	return n, err
}

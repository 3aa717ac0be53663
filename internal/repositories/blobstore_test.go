package repositories

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBlobStore_PutGetDelete(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	content := bytes.Repeat([]byte("fileinpic"), 1000)
	n, err := store.Put(ctx, "3f0c9d5e-blob", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)

	rc, err := store.Get(ctx, "3f0c9d5e-blob")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NoError(t, store.Delete(ctx, "3f0c9d5e-blob"))
	require.NoError(t, store.Delete(ctx, "3f0c9d5e-blob"), "deleting twice is fine")

	_, err = store.Get(ctx, "3f0c9d5e-blob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalBlobStore_RejectsBadKeys(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"", "../etc/passwd", "a/b", ".hidden", `a\b`} {
		_, err := store.Put(ctx, key, bytes.NewReader([]byte("x")))
		assert.Error(t, err, key)
		_, err = store.Get(ctx, key)
		assert.Error(t, err, key)
	}
}

type failingReader struct {
	after int
	err   error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, f.err
	}
	n := min(len(p), f.after)
	for i := range n {
		p[i] = 'x'
	}
	f.after -= n
	return n, nil
}

func TestLocalBlobStore_FailedWriteLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalBlobStore(dir)
	require.NoError(t, err)

	boom := errors.New("client went away")
	_, err = store.Put(context.Background(), "k1", &failingReader{after: 4096, err: boom})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrStorage, "source errors are not storage failures")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no blob and no temp file left behind")
}

func TestLocalBlobStore_CanceledContext(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Put(ctx, "k1", bytes.NewReader([]byte("data")))
	assert.ErrorIs(t, err, context.Canceled)
}

package repositories

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rohits-web03/fileinpic/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBucket is a tiny path-style S3 endpoint holding objects in memory.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := r.URL.Path
	switch r.Method {
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.objects[key] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := b.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	case http.MethodDelete:
		delete(b.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestR2(t *testing.T) (*R2BlobStore, *fakeBucket) {
	t.Helper()
	bucket := &fakeBucket{objects: make(map[string][]byte)}
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)

	store, err := NewR2BlobStore(R2Options{
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		BucketName:      "files",
		Endpoint:        srv.URL,
		SpoolDir:        t.TempDir(),
	}, logging.Discard())
	require.NoError(t, err)
	return store, bucket
}

func TestR2BlobStore_RoundTrip(t *testing.T) {
	store, bucket := newTestR2(t)
	ctx := context.Background()

	content := bytes.Repeat([]byte{0xAB}, 70000)
	n, err := store.Put(ctx, "blob-1", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, content, bucket.objects["/files/blob-1"])

	rc, err := store.Get(ctx, "blob-1")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NoError(t, store.Delete(ctx, "blob-1"))
	assert.NotContains(t, bucket.objects, "/files/blob-1")

	_, err = store.Get(ctx, "blob-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestR2BlobStore_PresignGet(t *testing.T) {
	store, _ := newTestR2(t)

	raw, err := store.PresignGet(context.Background(), "blob-1", "report.pdf", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/files/blob-1", u.Path)
	q := u.Query()
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
	assert.Equal(t, "900", q.Get("X-Amz-Expires"))
	assert.Contains(t, q.Get("response-content-disposition"), "report.pdf")
}

func TestNewR2BlobStore_RequiresBucketAndEndpoint(t *testing.T) {
	_, err := NewR2BlobStore(R2Options{AccountID: "acct"}, logging.Discard())
	assert.Error(t, err)

	_, err = NewR2BlobStore(R2Options{BucketName: "files"}, logging.Discard())
	assert.Error(t, err)
}

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollector_Records(t *testing.T) {
	c := New("")

	c.RecordHTTPRequest("GET", "GET /api/files", 200, 5*time.Millisecond)
	c.RecordHTTPRequest("GET", "GET /api/files", 200, 5*time.Millisecond)
	c.RecordUpload("ok", 500000)
	c.RecordUpload("too_large", 0)
	c.RecordShareDownload("forbidden")
	c.RecordDelete("ok")

	out := scrape(t, c)
	assert.Contains(t, out, `fileinpic_http_requests_total{method="GET",path="GET /api/files",status_code="200"} 2`)
	assert.Contains(t, out, `fileinpic_uploads_total{status="ok"} 1`)
	assert.Contains(t, out, `fileinpic_uploads_total{status="too_large"} 1`)
	assert.Contains(t, out, `fileinpic_uploaded_bytes_total 500000`)
	assert.Contains(t, out, `fileinpic_share_downloads_total{status="forbidden"} 1`)
	assert.Contains(t, out, `fileinpic_deletes_total{status="ok"} 1`)
	assert.Contains(t, out, "go_goroutines")
}

func TestNew_IndependentRegistries(t *testing.T) {
	a := New("x")
	b := New("x")
	a.RecordDelete("ok")

	assert.Contains(t, scrape(t, a), `x_deletes_total{status="ok"} 1`)
	assert.NotContains(t, scrape(t, b), `x_deletes_total{status="ok"}`)
}

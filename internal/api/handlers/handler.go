package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/rohits-web03/fileinpic/internal/config"
	"github.com/rohits-web03/fileinpic/internal/metrics"
	"github.com/rohits-web03/fileinpic/internal/models"
	"github.com/rohits-web03/fileinpic/internal/services"
)

// Deps are the collaborators the handlers need. Google is nil when Google
// sign-in is not configured.
type Deps struct {
	Catalog  *services.Catalog
	Shares   *services.ShareRegistry
	Sessions *services.SessionManager
	Google   *services.GoogleAuth
	Metrics  *metrics.Collector
	Config   config.Config
	Logger   *slog.Logger
}

// Handler serves the HTTP API. It holds no per-request state.
type Handler struct {
	catalog  *services.Catalog
	shares   *services.ShareRegistry
	sessions *services.SessionManager
	google   *services.GoogleAuth
	metrics  *metrics.Collector
	cfg      config.Config
	logger   *slog.Logger
}

func New(d Deps) *Handler {
	m := d.Metrics
	if m == nil {
		m = metrics.New("")
	}
	return &Handler{
		catalog:  d.Catalog,
		shares:   d.Shares,
		sessions: d.Sessions,
		google:   d.Google,
		metrics:  m,
		cfg:      d.Config,
		logger:   d.Logger,
	}
}

// failFunc writes an error response. JSON routes use utils.Fail, the share
// routes answer in plain text.
type failFunc func(w http.ResponseWriter, status int, msg string)

func plainError(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}

// sendFile redirects to a presigned URL when the store offers one and
// otherwise streams the blob as an attachment.
func (h *Handler) sendFile(w http.ResponseWriter, r *http.Request, rec models.FileRecord, fail failFunc) {
	ctx := r.Context()
	if url, ok, err := h.catalog.DownloadURL(ctx, rec); err != nil {
		h.logger.Warn("presign failed, streaming instead", "id", rec.ID, "error", err)
	} else if ok {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	_, body, err := h.catalog.OpenRecord(ctx, rec)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			fail(w, http.StatusNotFound, "File not found")
			return
		}
		fail(w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", attachment(rec.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(rec.Filesize, 10))
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if _, err := io.Copy(w, body); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn("download interrupted", "id", rec.ID, "error", err)
	}
}

// attachment builds a Content-Disposition value. Non-ASCII names are sent as
// RFC 2231 filename* parameters.
func attachment(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

func (h *Handler) fileLookupFailed(w http.ResponseWriter, err error, fail failFunc) {
	if errors.Is(err, services.ErrNotFound) {
		fail(w, http.StatusNotFound, "File not found")
		return
	}
	h.logger.Error("file lookup failed", "error", err)
	fail(w, http.StatusInternalServerError, "Failed to query file")
}

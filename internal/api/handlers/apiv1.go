package handlers

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/rohits-web03/fileinpic/internal/utils"
)

// POST /api/v1/files/upload
// APIUpload godoc
// @Summary Upload a file as the raw request body
// @Description The filename comes from the Content-Disposition header.
// @Tags API v1
// @Accept octet-stream
// @Produce json
// @Param X-API-Key header string true "API key"
// @Param Content-Disposition header string true "attachment; filename=\"name.ext\""
// @Success 200 {object} UploadResponse
// @Failure 400 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Failure 413 {object} utils.Payload
// @Router /api/v1/files/upload [post]
func (h *Handler) APIUpload(w http.ResponseWriter, r *http.Request) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Disposition"))
	if err != nil || params["filename"] == "" {
		utils.Fail(w, http.StatusBadRequest, "Content-Disposition header with a filename is required")
		return
	}
	if limit := h.cfg.MaxUploadSize; limit > 0 {
		if r.ContentLength > limit {
			h.metrics.RecordUpload("too_large", 0)
			utils.Fail(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit+1)
	}

	rec, err := h.catalog.Create(r.Context(), params["filename"], r.Body)
	if err != nil {
		h.uploadFailed(w, err)
		return
	}

	h.metrics.RecordUpload("ok", rec.Filesize)
	utils.JSONResponse(w, http.StatusOK, UploadResponse{
		OK:  true,
		ID:  rec.ID,
		URL: "/api/v1/files/public/download/" + strconv.FormatInt(rec.ID, 10),
	})
}

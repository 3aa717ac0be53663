package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/rohits-web03/fileinpic/internal/models"
	"github.com/rohits-web03/fileinpic/internal/services"
	"github.com/rohits-web03/fileinpic/internal/utils"
)

// multipartOverhead leaves room for part headers and boundaries on top of the
// per-file limit.
const multipartOverhead = 1 << 20

type UploadResponse struct {
	OK  bool   `json:"ok"`
	ID  int64  `json:"id"`
	URL string `json:"url,omitempty"`
}

type ConfigResponse struct {
	AuthToken string `json:"authToken,omitempty"`
	Host      string `json:"host,omitempty"`
}

type ShareDetailsResponse struct {
	ShareToken    string `json:"share_token"`
	SharePassword string `json:"share_password"`
}

// GET /api/files
// ListFiles godoc
// @Summary List stored files
// @Description Returns every file newest first, or only files whose name contains the search term (case-insensitive).
// @Tags Files
// @Produce json
// @Param search query string false "Filename substring"
// @Success 200 {array} models.FileRecord
// @Failure 500 {object} utils.Payload
// @Router /api/files [get]
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	records, err := h.catalog.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.logger.Error("list files failed", "error", err)
		utils.Fail(w, http.StatusInternalServerError, "Failed to list files")
		return
	}
	utils.JSONResponse(w, http.StatusOK, records)
}

// POST /api/upload
// UploadFile godoc
// @Summary Upload a file
// @Description Streams the multipart field "image" into storage and records it in the catalog.
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param Auth-Token header string true "Upload secret"
// @Param image formData file true "File to upload"
// @Success 200 {object} UploadResponse
// @Failure 400 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Failure 413 {object} utils.Payload
// @Failure 507 {object} utils.Payload
// @Router /api/upload [post]
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	if limit := h.cfg.MaxUploadSize; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		utils.Fail(w, http.StatusBadRequest, "Invalid file upload form")
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.uploadFailed(w, err)
			return
		}
		if part.FormName() != "image" || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		rec, err := h.catalog.Create(r.Context(), part.FileName(), part)
		_ = part.Close()
		if err != nil {
			h.uploadFailed(w, err)
			return
		}
		h.metrics.RecordUpload("ok", rec.Filesize)
		utils.JSONResponse(w, http.StatusOK, UploadResponse{OK: true, ID: rec.ID})
		return
	}

	h.metrics.RecordUpload("no_file", 0)
	utils.Fail(w, http.StatusBadRequest, "No file provided")
}

func (h *Handler) uploadFailed(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, services.ErrTooLarge), errors.As(err, &tooBig):
		h.metrics.RecordUpload("too_large", 0)
		utils.Fail(w, http.StatusRequestEntityTooLarge, "File too large")
	case errors.Is(err, services.ErrInvalid):
		h.metrics.RecordUpload("invalid", 0)
		utils.Fail(w, http.StatusBadRequest, "Invalid filename")
	case errors.Is(err, services.ErrStorageFull):
		h.metrics.RecordUpload("storage_full", 0)
		utils.Fail(w, http.StatusInsufficientStorage, "Storage is full")
	case errors.Is(err, services.ErrStorage):
		h.metrics.RecordUpload("error", 0)
		utils.Fail(w, http.StatusInternalServerError, "Failed to store file")
	default:
		// The request body itself broke: aborted upload or malformed form.
		h.logger.Warn("upload aborted", "error", err)
		h.metrics.RecordUpload("aborted", 0)
		utils.Fail(w, http.StatusBadRequest, "Upload failed")
	}
}

// GET /api/download/{id}
// DownloadFile godoc
// @Summary Download a file
// @Tags Files
// @Produce octet-stream
// @Param id path int true "File ID"
// @Success 200 {file} binary
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/download/{id} [get]
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.recordFromPath(w, r)
	if !ok {
		return
	}
	h.sendFile(w, r, rec, utils.Fail)
}

func (h *Handler) recordFromPath(w http.ResponseWriter, r *http.Request) (models.FileRecord, bool) {
	id, err := utils.ParseID(r.PathValue("id"))
	if err != nil {
		utils.Fail(w, http.StatusBadRequest, "Invalid file ID")
		return models.FileRecord{}, false
	}
	rec, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.fileLookupFailed(w, err, utils.Fail)
		return models.FileRecord{}, false
	}
	return rec, true
}

// DELETE /api/delete/{id}
// DeleteFile godoc
// @Summary Delete a file
// @Description Removes the file, its bytes and its share link.
// @Tags Files
// @Produce json
// @Param Auth-Token header string true "Upload secret"
// @Param id path int true "File ID"
// @Success 200 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/delete/{id} [delete]
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r.PathValue("id"))
	if err != nil {
		utils.Fail(w, http.StatusBadRequest, "Invalid file ID")
		return
	}

	if err := h.catalog.Delete(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			h.metrics.RecordDelete("not_found")
			utils.Fail(w, http.StatusNotFound, "File not found")
			return
		}
		h.metrics.RecordDelete("error")
		utils.Fail(w, http.StatusInternalServerError, "Failed to delete file")
		return
	}

	h.metrics.RecordDelete("ok")
	utils.JSONResponse(w, http.StatusOK, utils.Payload{OK: true})
}

// GET /api/config
// GetConfig godoc
// @Summary Client configuration
// @Description Returns the upload secret and public host for the browser client.
// @Tags Files
// @Produce json
// @Success 200 {object} ConfigResponse
// @Router /api/config [get]
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	utils.JSONResponse(w, http.StatusOK, ConfigResponse{
		AuthToken: h.cfg.AuthToken,
		Host:      h.cfg.Host,
	})
}

// GET /api/file/share-details?id=
// ShareDetails godoc
// @Summary Current share link of a file
// @Description Both fields are empty when the file has never been shared.
// @Tags Share
// @Produce json
// @Param id query int true "File ID"
// @Success 200 {object} ShareDetailsResponse
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/file/share-details [get]
func (h *Handler) ShareDetails(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r.URL.Query().Get("id"))
	if err != nil {
		utils.Fail(w, http.StatusBadRequest, "File ID is required")
		return
	}
	if _, err := h.catalog.Get(r.Context(), id); err != nil {
		h.fileLookupFailed(w, err, utils.Fail)
		return
	}

	link, _, err := h.shares.LookupByFile(r.Context(), id)
	if err != nil {
		h.logger.Error("share lookup failed", "id", id, "error", err)
		utils.Fail(w, http.StatusInternalServerError, "Failed to query file")
		return
	}
	utils.JSONResponse(w, http.StatusOK, ShareDetailsResponse{
		ShareToken:    link.Token,
		SharePassword: link.Password,
	})
}

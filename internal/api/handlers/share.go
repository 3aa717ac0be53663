package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rohits-web03/fileinpic/internal/services"
	"github.com/rohits-web03/fileinpic/internal/utils"
)

// fileID accepts an id sent either as a JSON number or as a string.
type fileID int64

func (f *fileID) UnmarshalJSON(b []byte) error {
	id, err := utils.ParseID(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*f = fileID(id)
	return nil
}

type ShareRequest struct {
	FileID   fileID `json:"file_id" swaggertype:"integer"`
	Password string `json:"password"`
}

type ShareResponse struct {
	OK         bool   `json:"ok"`
	ShareToken string `json:"share_token"`
	ShareLink  string `json:"share_link"`
}

type ShareInfoResponse struct {
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
}

// POST /api/share
// CreateShare godoc
// @Summary Create or update a file's share link
// @Description The first call mints the token. Later calls keep it and only replace the password. An empty password makes the link open.
// @Tags Share
// @Accept json
// @Produce json
// @Param Auth-Token header string false "Upload secret, when shares require it"
// @Param body body ShareRequest true "File and optional password"
// @Success 200 {object} ShareResponse
// @Failure 400 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/share [post]
func (h *Handler) CreateShare(w http.ResponseWriter, r *http.Request) {
	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID == 0 {
		utils.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	link, err := h.shares.IssueOrUpdate(r.Context(), int64(req.FileID), req.Password)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.Fail(w, http.StatusNotFound, "File not found")
			return
		}
		h.logger.Error("share link update failed", "file_id", req.FileID, "error", err)
		utils.Fail(w, http.StatusInternalServerError, "Failed to update share link")
		return
	}

	utils.JSONResponse(w, http.StatusOK, ShareResponse{
		OK:         true,
		ShareToken: link.Token,
		ShareLink:  h.cfg.Host + "/share.html?file=" + link.Token,
	})
}

// GET /api/share/info?file=
// ShareInfo godoc
// @Summary Describe a shared file
// @Description Works without the share password so the recipient can see what they are about to download.
// @Tags Share
// @Produce json
// @Param file query string true "Share token"
// @Success 200 {object} ShareInfoResponse
// @Failure 400 {string} string "Invalid share file token"
// @Failure 404 {string} string "File not found"
// @Router /api/share/info [get]
func (h *Handler) ShareInfo(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("file")
	if token == "" {
		plainError(w, http.StatusBadRequest, "Invalid share file token")
		return
	}

	rec, err := h.shares.Resolve(r.Context(), token)
	if err != nil {
		h.fileLookupFailed(w, err, plainError)
		return
	}
	utils.JSONResponse(w, http.StatusOK, ShareInfoResponse{Filename: rec.Filename, Filesize: rec.Filesize})
}

// GET /api/share/download?file=&password=
// ShareDownload godoc
// @Summary Download a shared file
// @Tags Share
// @Produce octet-stream
// @Param file query string true "Share token"
// @Param password query string false "Share password"
// @Success 200 {file} binary
// @Failure 403 {string} string "Invalid password"
// @Failure 404 {string} string "File not found"
// @Router /api/share/download [get]
func (h *Handler) ShareDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("file")
	if token == "" {
		plainError(w, http.StatusBadRequest, "Invalid share file token")
		return
	}

	rec, err := h.shares.Redeem(r.Context(), token, q.Get("password"))
	switch {
	case err == nil:
	case errors.Is(err, services.ErrUnauthorized):
		h.metrics.RecordShareDownload("forbidden")
		plainError(w, http.StatusForbidden, "Invalid password")
		return
	case errors.Is(err, services.ErrNotFound):
		h.metrics.RecordShareDownload("not_found")
		plainError(w, http.StatusNotFound, "File not found")
		return
	default:
		h.metrics.RecordShareDownload("error")
		h.fileLookupFailed(w, err, plainError)
		return
	}

	h.metrics.RecordShareDownload("ok")
	h.logger.Info("share download", "id", rec.ID)
	h.sendFile(w, r, rec, plainError)
}

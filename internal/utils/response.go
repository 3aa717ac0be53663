package utils

import (
	"encoding/json"
	"net/http"
)

// Payload is the envelope for results that carry no other data and for every
// JSON error.
type Payload struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// JSONResponse sends v as JSON with the given status.
func JSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Fail sends {"ok":false,"message":msg}.
func Fail(w http.ResponseWriter, status int, msg string) {
	JSONResponse(w, status, Payload{OK: false, Message: msg})
}

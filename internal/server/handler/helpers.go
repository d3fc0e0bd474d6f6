package handler

import (
	"encoding/json"
	"net/http"
)

// errorBody is the shape of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON encodes v onto the response with the given status. The payloads
// written here are known-good shapes, so encoding failures are not handled
// beyond the truncated response the client will reject.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

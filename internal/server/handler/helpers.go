package handler

import (
	"encoding/json"
	"net/http"
)

// writeJSON encodes v and writes it with the given status. An encode failure
// degrades to a plain 500; the payloads here are maps of scalars, so that
// path is effectively unreachable.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

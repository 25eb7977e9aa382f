package http

import (
	"encoding/json"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/studyhub-gh/backoffice/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the engine's error taxonomy onto HTTP statuses. Local,
// recoverable errors are 4xx; repository failures are 500s the client may
// simply retry.
func writeError(w http.ResponseWriter, err error) {
	var ve validation.Errors
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "missing required fields",
			"fields": ve,
		})
		return
	}
	switch {
	case errors.Is(err, apperr.ErrInvalidFileType):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
	case errors.Is(err, apperr.ErrFileTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, apperr.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, apperr.ErrSuperseded):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, apperr.ErrNoSelection),
		errors.Is(err, apperr.ErrNoDraft),
		errors.Is(err, apperr.ErrUnknownField):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case apperr.IsRepo(err):
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

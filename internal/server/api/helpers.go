package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Danz17/txmtc-relay/pkg/models"
)

func writeJSON(w http.ResponseWriter, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(data)
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, data)
}

func respondErrorJSON(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, models.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// respondServiceError maps the shared error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is an internal error; vault and persistence
// failures land here on purpose instead of being swallowed.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		respondErrorJSON(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		respondErrorJSON(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrConflict):
		respondErrorJSON(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		respondErrorJSON(w, http.StatusUnauthorized, err.Error())
	default:
		respondErrorJSON(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

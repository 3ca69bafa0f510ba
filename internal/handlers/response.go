package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"session-tracker/internal/presence"
	"session-tracker/internal/services"
)

// Response is the envelope every REST endpoint returns.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   any  `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, message any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   message,
	})
}

// statusFor maps the presence error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, presence.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, presence.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, presence.ErrConflict), errors.Is(err, presence.ErrFull):
		return http.StatusConflict
	case errors.Is(err, presence.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrJournalDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

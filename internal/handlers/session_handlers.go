package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"session-tracker/internal/auth"
	"session-tracker/internal/models"
	"session-tracker/internal/services"
	"session-tracker/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type SessionHandlers struct {
	sessionService *services.SessionService
}

func NewSessionHandlers(sessionService *services.SessionService) *SessionHandlers {
	return &SessionHandlers{sessionService: sessionService}
}

func (h *SessionHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessages(err))
		return
	}

	creator, _ := auth.AddressFromContext(r.Context())
	state, err := h.sessionService.CreateSession(r.Context(), &req, creator)
	if err != nil {
		logger.Error("Create session error: %v", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, state)
}

func (h *SessionHandlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	writeJSON(w, http.StatusOK, h.sessionService.ListSessions(r.Context(), all))
}

func (h *SessionHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	state, err := h.sessionService.GetSession(r.Context(), sessionIDParam(r))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *SessionHandlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	requester, ok := auth.AddressFromContext(r.Context())
	if !ok {
		requester = r.Header.Get("X-User-Address")
	}

	if err := h.sessionService.DeactivateSession(r.Context(), sessionIDParam(r), requester); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "session closed"})
}

func (h *SessionHandlers) GetSessionEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.sessionService.SessionEvents(r.Context(), sessionIDParam(r), limit)
	if err != nil {
		logger.Error("Load session events error: %v", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *SessionHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessionService.Stats())
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func sessionIDParam(r *http.Request) models.SessionID {
	return models.SessionID(chi.URLParam(r, "id"))
}

func validationMessages(err error) any {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	fields := make(map[string]string)
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			fields[e.Field()] = "field is required"
		case "min":
			fields[e.Field()] = "must be at least " + e.Param()
		case "max":
			fields[e.Field()] = "must be at most " + e.Param()
		default:
			fields[e.Field()] = "validation failed on " + e.Tag()
		}
	}
	return fields
}

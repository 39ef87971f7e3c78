package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Rrens/chat-memory/internal/api/response"
	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/Rrens/chat-memory/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

func sessionIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// serviceError maps service errors onto the response envelope
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		response.NotFound(w, "session not found")
	case errors.Is(err, service.ErrProviderUnavailable):
		response.BadRequest(w, err.Error())
	case errors.Is(err, service.ErrIndexUnavailable):
		response.ServiceUnavailable(w, err.Error())
	default:
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		response.InternalError(w, err.Error())
	}
}

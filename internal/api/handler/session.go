package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Rrens/chat-memory/internal/api/middleware"
	"github.com/Rrens/chat-memory/internal/api/response"
	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/google/uuid"
)

// SessionService is what the session endpoints need
type SessionService interface {
	Create(ctx context.Context, accountID uuid.UUID, req domain.SessionCreate) (*domain.ChatSession, error)
	List(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.ChatSession, error)
	Get(ctx context.Context, accountID, sessionID uuid.UUID) (*domain.ChatSession, error)
	Delete(ctx context.Context, accountID, sessionID uuid.UUID) error
	Messages(ctx context.Context, accountID, sessionID uuid.UUID, limit int) ([]domain.Message, error)
}

// SessionHandler handles session endpoints
type SessionHandler struct {
	sessions SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// List returns the caller's sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	sessions, err := h.sessions.List(r.Context(), accountID, intQuery(r, "limit", 20), intQuery(r, "offset", 0))
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, sessions)
}

// Create starts a new session. The body is optional.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.SessionCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	session, err := h.sessions.Create(r.Context(), accountID, req)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.Created(w, session)
}

// Get returns one session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	sessionID, ok := sessionIDParam(r)
	if !ok {
		response.BadRequest(w, "invalid session ID")
		return
	}

	session, err := h.sessions.Get(r.Context(), accountID, sessionID)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, session)
}

// Delete removes a session
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	sessionID, ok := sessionIDParam(r)
	if !ok {
		response.BadRequest(w, "invalid session ID")
		return
	}

	if err := h.sessions.Delete(r.Context(), accountID, sessionID); err != nil {
		serviceError(w, r, err)
		return
	}

	response.NoContent(w)
}

// Messages returns the session history
func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	sessionID, ok := sessionIDParam(r)
	if !ok {
		response.BadRequest(w, "invalid session ID")
		return
	}

	messages, err := h.sessions.Messages(r.Context(), accountID, sessionID, intQuery(r, "limit", 0))
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, messages)
}

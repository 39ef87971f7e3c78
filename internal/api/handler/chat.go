package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Rrens/chat-memory/internal/api/middleware"
	"github.com/Rrens/chat-memory/internal/api/response"
	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/google/uuid"
)

// ChatService is what the chat endpoints need
type ChatService interface {
	HandleTurn(ctx context.Context, accountID, sessionID uuid.UUID, req domain.ChatRequest) (*domain.ChatResponse, error)
	ContextSnapshot(ctx context.Context, accountID, sessionID uuid.UUID) (*domain.ContextSnapshot, error)
}

// ChatHandler handles chat turn endpoints
type ChatHandler struct {
	chat ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Send handles one user message and returns the assistant reply
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
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

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	result, err := h.chat.HandleTurn(r.Context(), accountID, sessionID, req)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, result)
}

// Context returns the context the next turn would be generated from
func (h *ChatHandler) Context(w http.ResponseWriter, r *http.Request) {
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

	snapshot, err := h.chat.ContextSnapshot(r.Context(), accountID, sessionID)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, snapshot)
}

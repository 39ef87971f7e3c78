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

// KnowledgeService is what the knowledge endpoint needs
type KnowledgeService interface {
	Upsert(ctx context.Context, accountID uuid.UUID, chunks []domain.KnowledgeChunk) error
}

// KnowledgeHandler handles knowledge ingestion
type KnowledgeHandler struct {
	knowledge KnowledgeService
}

// NewKnowledgeHandler creates a new knowledge handler
func NewKnowledgeHandler(knowledge KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{knowledge: knowledge}
}

type upsertKnowledgeRequest struct {
	Chunks []domain.KnowledgeChunk `json:"chunks" validate:"required,min=1,max=500,dive"`
}

// Upsert indexes a batch of chunks for the caller's account
func (h *KnowledgeHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req upsertKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := h.knowledge.Upsert(r.Context(), accountID, req.Chunks); err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, map[string]any{"indexed": len(req.Chunks)})
}

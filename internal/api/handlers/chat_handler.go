package handlers

import (
	"context"
	"net/http"

	"github.com/quillai/quill/internal/api/response"
	"github.com/quillai/quill/internal/api/validation"
	"github.com/quillai/quill/internal/models"
)

// ChatService answers questions about a finished analysis.
type ChatService interface {
	Ask(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error)
}

// ChatHandler handles POST /v1/chat.
type ChatHandler struct {
	service ChatService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(service ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// Chat handles POST /v1/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest

	if err := validation.DecodeJSON(r, &req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	resp, err := h.service.Ask(r.Context(), req)
	if err != nil {
		response.RespondServiceError(w, r, err, "Failed to answer question")

		return
	}

	response.RespondJSON(w, http.StatusOK, resp)
}

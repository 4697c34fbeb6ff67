package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"suzy-backend/internal/middleware"
	"suzy-backend/internal/models"
)

type chatService interface {
	ListPaths() []models.ChatPathInfo
	StartConversation(ctx context.Context, userID uuid.UUID, pathType models.ChatPathType) (*models.ChatConversation, error)
	GetConversation(ctx context.Context, userID, id uuid.UUID) (*models.ConversationDetail, error)
	ProcessMessage(ctx context.Context, userID, conversationID uuid.UUID, message string) (*models.ChatReply, error)
}

type ChatHandler struct {
	chat chatService
}

func NewChatHandler(chat chatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) Paths(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"paths": h.chat.ListPaths()})
}

func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.StartConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	conv, err := h.chat.StartConversation(r.Context(), middleware.GetUserID(r.Context()), req.PathType)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "conversation")
	if !ok {
		return
	}

	detail, err := h.chat.GetConversation(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "conversation")
	if !ok {
		return
	}
	var req models.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := h.chat.ProcessMessage(r.Context(), middleware.GetUserID(r.Context()), id, req.Message)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

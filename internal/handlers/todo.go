package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"suzy-backend/internal/middleware"
	"suzy-backend/internal/models"
)

type todoService interface {
	List(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID) ([]models.Todo, error)
	Create(ctx context.Context, userID uuid.UUID, req models.CreateTodoRequest) (*models.Todo, error)
	Update(ctx context.Context, userID, id uuid.UUID, req models.UpdateTodoRequest) (*models.Todo, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type TodoHandler struct {
	todos todoService
}

func NewTodoHandler(todos todoService) *TodoHandler {
	return &TodoHandler{todos: todos}
}

func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	var sessionID *uuid.UUID
	if raw := r.URL.Query().Get("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
			return
		}
		sessionID = &id
	}

	todos, err := h.todos.List(r.Context(), middleware.GetUserID(r.Context()), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if todos == nil {
		todos = []models.Todo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"todos": todos})
}

func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	todo, err := h.todos.Create(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, todo)
}

func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "todo")
	if !ok {
		return
	}
	var req models.UpdateTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	todo, err := h.todos.Update(r.Context(), middleware.GetUserID(r.Context()), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "todo")
	if !ok {
		return
	}

	if err := h.todos.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Todo deleted"})
}

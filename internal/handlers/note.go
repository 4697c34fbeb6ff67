package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"suzy-backend/internal/middleware"
	"suzy-backend/internal/models"
)

type noteService interface {
	CreateNote(ctx context.Context, userID uuid.UUID, req models.CreateNoteRequest) (*models.Note, error)
	ListNotes(ctx context.Context, userID uuid.UUID, categoryID *uuid.UUID) ([]models.Note, error)
	GetNote(ctx context.Context, userID, id uuid.UUID) (*models.Note, error)
	UpdateNote(ctx context.Context, userID, id uuid.UUID, req models.UpdateNoteRequest) (*models.Note, error)
	DeleteNote(ctx context.Context, userID, id uuid.UUID) error
	CreateCategory(ctx context.Context, userID uuid.UUID, req models.CreateCategoryRequest) (*models.Category, error)
	ListCategories(ctx context.Context, userID uuid.UUID) ([]models.Category, error)
	DeleteCategory(ctx context.Context, userID, id uuid.UUID) error
}

type NoteHandler struct {
	notes noteService
}

func NewNoteHandler(notes noteService) *NoteHandler {
	return &NoteHandler{notes: notes}
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	var categoryID *uuid.UUID
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid category ID", r))
			return
		}
		categoryID = &id
	}

	notes, err := h.notes.ListNotes(r.Context(), middleware.GetUserID(r.Context()), categoryID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notes": notes})
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	note, err := h.notes.CreateNote(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "note")
	if !ok {
		return
	}

	note, err := h.notes.GetNote(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "note")
	if !ok {
		return
	}
	var req models.UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	note, err := h.notes.UpdateNote(r.Context(), middleware.GetUserID(r.Context()), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "note")
	if !ok {
		return
	}

	if err := h.notes.DeleteNote(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Note deleted"})
}

func (h *NoteHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.notes.ListCategories(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

func (h *NoteHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	category, err := h.notes.CreateCategory(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *NoteHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "category")
	if !ok {
		return
	}

	if err := h.notes.DeleteCategory(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Category deleted"})
}

package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"suzy-backend/internal/middleware"
	"suzy-backend/internal/models"
)

type mockExamService interface {
	Generate(ctx context.Context, userID uuid.UUID, req models.GenerateMockExamRequest) (*models.GeneratedMockExam, error)
	Submit(ctx context.Context, userID uuid.UUID, req models.SubmitMockExamRequest) (*models.MockExam, error)
	History(ctx context.Context, userID uuid.UUID) ([]models.MockExam, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.MockExam, error)
}

type MockExamHandler struct {
	exams mockExamService
}

func NewMockExamHandler(exams mockExamService) *MockExamHandler {
	return &MockExamHandler{exams: exams}
}

func (h *MockExamHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateMockExamRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	exam, err := h.exams.Generate(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exam)
}

func (h *MockExamHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitMockExamRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	exam, err := h.exams.Submit(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exam)
}

func (h *MockExamHandler) History(w http.ResponseWriter, r *http.Request) {
	exams, err := h.exams.History(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if exams == nil {
		exams = []models.MockExam{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exams": exams})
}

func (h *MockExamHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "mock exam")
	if !ok {
		return
	}

	exam, err := h.exams.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exam)
}

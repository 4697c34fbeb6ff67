package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"suzy-backend/internal/middleware"
	"suzy-backend/internal/models"
)

type sessionService interface {
	CreateSession(ctx context.Context, userID uuid.UUID, userName string, req models.CreateSessionRequest) (*models.CreateSessionResult, error)
	JoinSession(ctx context.Context, userID uuid.UUID, userName string, req models.JoinSessionRequest) (*models.JoinResult, error)
	LeaveSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.LeaveResult, error)
	DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error
	ListPublicSessions(ctx context.Context) ([]models.SessionSummary, error)
	ListAvailableSessions(ctx context.Context, userID uuid.UUID) ([]models.SessionSummary, error)
	ListMySessions(ctx context.Context, userID uuid.UUID) ([]models.SessionSummary, error)
	GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.SessionDetail, error)
}

type SessionHandler struct {
	sessions sessionService
}

func NewSessionHandler(sessions sessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func displayName(r *http.Request) string {
	if name := middleware.GetUserName(r.Context()); name != "" {
		return name
	}
	return "Anonymous"
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	res, err := h.sessions.CreateSession(ctx, middleware.GetUserID(ctx), displayName(r), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Join answers 200 for declined joins too; callers branch on success.
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req models.JoinSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	res, err := h.sessions.JoinSession(ctx, middleware.GetUserID(ctx), displayName(r), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "session")
	if !ok {
		return
	}

	res, err := h.sessions.LeaveSession(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "session")
	if !ok {
		return
	}

	if err := h.sessions.DeleteSession(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session deleted"})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "session")
	if !ok {
		return
	}

	detail, err := h.sessions.GetSession(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *SessionHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.ListPublicSessions(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *SessionHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.ListAvailableSessions(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *SessionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.ListMySessions(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

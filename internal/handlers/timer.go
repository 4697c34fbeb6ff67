package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"suzy-backend/internal/middleware"
	"suzy-backend/internal/models"
)

type timerService interface {
	StartTimer(ctx context.Context, userID, sessionID uuid.UUID, kind models.TimerKind) (*models.TimerResult, error)
	EndTimer(ctx context.Context, userID, sessionID uuid.UUID) (*models.TimerResult, error)
	GetTimerStats(ctx context.Context, userID, sessionID uuid.UUID) (*models.TimerStats, error)
	ParticipantStudyTimes(ctx context.Context, userID, sessionID uuid.UUID) ([]models.ParticipantStudyTime, error)
	RecalculateParticipantStudyTimes(ctx context.Context, userID uuid.UUID) (*models.RecalculateResult, error)
}

type TimerHandler struct {
	timers timerService
}

func NewTimerHandler(timers timerService) *TimerHandler {
	return &TimerHandler{timers: timers}
}

// writeTimerResult maps a declined start or end to 400 with the same body.
func writeTimerResult(w http.ResponseWriter, res *models.TimerResult) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}

func (h *TimerHandler) start(w http.ResponseWriter, r *http.Request, kind models.TimerKind) {
	id, ok := urlID(w, r, "session")
	if !ok {
		return
	}

	res, err := h.timers.StartTimer(r.Context(), middleware.GetUserID(r.Context()), id, kind)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeTimerResult(w, res)
}

func (h *TimerHandler) StartStudy(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, models.TimerKindStudy)
}

func (h *TimerHandler) StartBreak(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, models.TimerKindBreak)
}

func (h *TimerHandler) End(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "session")
	if !ok {
		return
	}

	res, err := h.timers.EndTimer(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeTimerResult(w, res)
}

func (h *TimerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "session")
	if !ok {
		return
	}

	stats, err := h.timers.GetTimerStats(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *TimerHandler) ParticipantStudyTimes(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "session")
	if !ok {
		return
	}

	totals, err := h.timers.ParticipantStudyTimes(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"participants": totals})
}

func (h *TimerHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	res, err := h.timers.RecalculateParticipantStudyTimes(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

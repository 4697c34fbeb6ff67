package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"suzy-backend/internal/middleware"
	"suzy-backend/internal/models"
)

type analyticsService interface {
	GetTodayAnalytics(ctx context.Context, userID uuid.UUID) (*models.DailyAnalytics, error)
	GetWeeklySummary(ctx context.Context, userID uuid.UUID) (*models.WeeklySummary, error)
	ForceRegenerate(ctx context.Context, userID uuid.UUID) (*models.DailyAnalytics, error)
}

type AnalyticsHandler struct {
	analytics analyticsService
}

func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func (h *AnalyticsHandler) Today(w http.ResponseWriter, r *http.Request) {
	daily, err := h.analytics.GetTodayAnalytics(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, daily)
}

func (h *AnalyticsHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	weekly, err := h.analytics.GetWeeklySummary(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, weekly)
}

func (h *AnalyticsHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	daily, err := h.analytics.ForceRegenerate(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, daily)
}

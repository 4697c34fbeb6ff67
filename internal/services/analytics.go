package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"suzy-backend/internal/models"
	"suzy-backend/internal/repository"
)

const dateLayout = "2006-01-02"

type AnalyticsService struct {
	repo  repository.AnalyticsRepository
	cache Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewAnalyticsService(repo repository.AnalyticsRepository, cache Cache, ttl time.Duration) *AnalyticsService {
	return &AnalyticsService{repo: repo, cache: cache, ttl: ttl, now: time.Now}
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekStart is the first day of the trailing seven-day window ending today.
func weekStart(today time.Time) time.Time {
	return today.AddDate(0, 0, -6)
}

func todayKey(userID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("analytics:today:%s:%s", userID, day.Format(dateLayout))
}

func weeklyKey(userID uuid.UUID, week time.Time) string {
	return fmt.Sprintf("analytics:weekly:%s:%s", userID, week.Format(dateLayout))
}

// fresh reports whether a cached aggregate built at builtAt still reflects
// the source rows. An open timer keeps accruing minutes, so persisted rows
// are never fresh while one runs; the short-lived Redis copy still is.
func fresh(builtAt time.Time, mark *models.ActivityMark, tolerateOpenTimer bool) bool {
	if mark.LatestChange != nil && mark.LatestChange.After(builtAt) {
		return false
	}
	return tolerateOpenTimer || !mark.HasOpenTimer
}

func timerMinutes(t models.TimerSample, now time.Time) int {
	if t.EndTime != nil {
		return t.DurationMinutes
	}
	return floorMinutes(t.StartTime, now)
}

func averageExamPercent(exams []models.ExamSample) *float64 {
	total, n := 0.0, 0
	for _, e := range exams {
		if e.TotalQuestions == 0 {
			continue
		}
		total += float64(e.Score) / float64(e.TotalQuestions) * 100
		n++
	}
	if n == 0 {
		return nil
	}
	avg := total / float64(n)
	return &avg
}

func productivityScore(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

func buildDaily(userID uuid.UUID, day time.Time, w *models.ActivityWindow, now time.Time) *models.DailyAnalytics {
	a := &models.DailyAnalytics{UserID: userID, Date: day}
	for _, t := range w.Timers {
		minutes := timerMinutes(t, now)
		switch t.SessionType {
		case models.TimerKindStudy:
			a.TotalStudyMinutes += minutes
			if t.EndTime != nil && t.PlannedMinutes > 0 && t.DurationMinutes < t.PlannedMinutes {
				a.FocusInterruptions++
			}
		case models.TimerKindBreak:
			a.TotalBreakMinutes += minutes
		}
	}
	for _, td := range w.Todos {
		a.TotalTodos++
		if td.IsCompleted {
			a.CompletedTodos++
		}
	}
	a.FlashcardsReviewed = len(w.ReviewTimes)
	a.MockExamScore = averageExamPercent(w.Exams)
	return a
}

func buildWeekly(userID uuid.UUID, start time.Time, w *models.ActivityWindow, now time.Time) *models.WeeklySummary {
	s := &models.WeeklySummary{UserID: userID, WeekStart: start}
	studyByDay := map[string]int{}
	for _, t := range w.Timers {
		minutes := timerMinutes(t, now)
		switch t.SessionType {
		case models.TimerKindStudy:
			s.TotalStudyMinutes += minutes
			studyByDay[t.StartTime.UTC().Format(dateLayout)] += minutes
		case models.TimerKindBreak:
			s.TotalBreakMinutes += minutes
		}
	}

	activeDays := 0
	for _, m := range studyByDay {
		if m > 0 {
			activeDays++
		}
	}
	if activeDays == 0 {
		activeDays = 7
	}
	s.AverageStudyTimePerDay = float64(s.TotalStudyMinutes) / float64(activeDays)

	for _, td := range w.Todos {
		s.TotalTodos++
		if td.IsCompleted {
			s.CompletedTodos++
		}
	}
	s.ProductivityScore = productivityScore(s.CompletedTodos, s.TotalTodos)
	s.FlashcardsReviewed = len(w.ReviewTimes)
	s.AverageMockExamScore = averageExamPercent(w.Exams)
	return s
}

// dailyBreakdown splits a window into one entry per day, oldest first.
func dailyBreakdown(w *models.ActivityWindow, days int, now time.Time) []models.DailyBreakdown {
	out := make([]models.DailyBreakdown, days)
	index := map[string]int{}
	for i := 0; i < days; i++ {
		date := w.From.AddDate(0, 0, i).Format(dateLayout)
		out[i].Date = date
		index[date] = i
	}

	for _, t := range w.Timers {
		i, ok := index[t.StartTime.UTC().Format(dateLayout)]
		if !ok {
			continue
		}
		switch t.SessionType {
		case models.TimerKindStudy:
			out[i].TotalStudyMinutes += timerMinutes(t, now)
		case models.TimerKindBreak:
			out[i].TotalBreakMinutes += timerMinutes(t, now)
		}
	}
	for _, td := range w.Todos {
		i, ok := index[td.CreatedAt.UTC().Format(dateLayout)]
		if !ok {
			continue
		}
		out[i].TotalTodos++
		if td.IsCompleted {
			out[i].CompletedTodos++
		}
	}
	return out
}

func (s *AnalyticsService) cacheGet(ctx context.Context, key string, dst any) bool {
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("analytics cache read failed")
		return false
	}
	return ok
}

func (s *AnalyticsService) cacheSet(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("analytics cache write failed")
	}
}

// GetTodayAnalytics returns the caller's aggregate for the current UTC day,
// rebuilding it when any source row changed after it was built.
func (s *AnalyticsService) GetTodayAnalytics(ctx context.Context, userID uuid.UUID) (*models.DailyAnalytics, error) {
	now := s.now()
	day := utcDay(now)
	key := todayKey(userID, day)

	mark, err := s.repo.ActivityMark(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("activity mark: %w", err)
	}

	var cached models.DailyAnalytics
	if s.cacheGet(ctx, key, &cached) && fresh(cached.CreatedAt, mark, true) {
		return &cached, nil
	}

	row, err := s.repo.GetDaily(ctx, userID, day)
	switch {
	case err == nil && fresh(row.CreatedAt, mark, false):
		s.cacheSet(ctx, key, row)
		return row, nil
	case err == nil:
		if err := s.repo.DeleteDaily(ctx, userID, day); err != nil {
			return nil, fmt.Errorf("drop stale analytics: %w", err)
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("get analytics: %w", err)
	}

	window, err := s.repo.LoadWindow(ctx, userID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}
	a := buildDaily(userID, day, window, now)
	if err := s.repo.SaveDaily(ctx, a); err != nil {
		return nil, fmt.Errorf("save analytics: %w", err)
	}
	analyticsRegenerations.WithLabelValues("daily").Inc()
	s.cacheSet(ctx, key, a)
	return a, nil
}

// GetWeeklySummary returns the trailing seven-day summary ending today.
func (s *AnalyticsService) GetWeeklySummary(ctx context.Context, userID uuid.UUID) (*models.WeeklySummary, error) {
	now := s.now()
	today := utcDay(now)
	start := weekStart(today)
	key := weeklyKey(userID, start)

	mark, err := s.repo.ActivityMark(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("activity mark: %w", err)
	}

	var cached models.WeeklySummary
	if s.cacheGet(ctx, key, &cached) && fresh(cached.GeneratedAt, mark, true) {
		return &cached, nil
	}

	row, err := s.repo.GetWeekly(ctx, userID, start)
	switch {
	case err == nil && fresh(row.GeneratedAt, mark, false):
		s.cacheSet(ctx, key, row)
		return row, nil
	case err == nil:
		if err := s.repo.DeleteWeekly(ctx, userID, start); err != nil {
			return nil, fmt.Errorf("drop stale summary: %w", err)
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("get summary: %w", err)
	}

	window, err := s.repo.LoadWindow(ctx, userID, start, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}
	summary := buildWeekly(userID, start, window, now)
	if err := s.repo.SaveWeekly(ctx, summary); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}
	analyticsRegenerations.WithLabelValues("weekly").Inc()
	s.cacheSet(ctx, key, summary)
	return summary, nil
}

// LastSevenDays is the per-day view of the trailing week, computed live.
func (s *AnalyticsService) LastSevenDays(ctx context.Context, userID uuid.UUID) ([]models.DailyBreakdown, error) {
	now := s.now()
	today := utcDay(now)
	window, err := s.repo.LoadWindow(ctx, userID, weekStart(today), today.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}
	return dailyBreakdown(window, 7, now), nil
}

func (s *AnalyticsService) RecentTimers(ctx context.Context, userID uuid.UUID, limit int) ([]models.TimerSession, error) {
	timers, err := s.repo.RecentTimers(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent timers: %w", err)
	}
	return timers, nil
}

// Invalidate drops the caller's cached aggregates from Redis and Postgres.
func (s *AnalyticsService) Invalidate(ctx context.Context, userID uuid.UUID) error {
	today := utcDay(s.now())
	start := weekStart(today)

	if err := s.cache.Del(ctx, todayKey(userID, today), weeklyKey(userID, start)); err != nil {
		log.Warn().Err(err).Str("userId", userID.String()).Msg("analytics cache delete failed")
	}
	if err := s.repo.DeleteDaily(ctx, userID, today); err != nil {
		return fmt.Errorf("drop analytics: %w", err)
	}
	if err := s.repo.DeleteWeekly(ctx, userID, start); err != nil {
		return fmt.Errorf("drop summary: %w", err)
	}
	return nil
}

func (s *AnalyticsService) ForceRegenerate(ctx context.Context, userID uuid.UUID) (*models.DailyAnalytics, error) {
	if err := s.Invalidate(ctx, userID); err != nil {
		return nil, err
	}
	return s.GetTodayAnalytics(ctx, userID)
}

// Refresh is the background side of a best-effort analytics update.
func (s *AnalyticsService) Refresh(ctx context.Context, userID uuid.UUID) error {
	_, err := s.ForceRegenerate(ctx, userID)
	return err
}

package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suzy-backend/internal/models"
	"suzy-backend/internal/repository"
)

type fakeAnalyticsRepo struct {
	daily       map[string]*models.DailyAnalytics
	weekly      map[string]*models.WeeklySummary
	mark        models.ActivityMark
	window      models.ActivityWindow
	windowLoads int
	recent      []models.TimerSession
}

func newFakeAnalyticsRepo() *fakeAnalyticsRepo {
	return &fakeAnalyticsRepo{daily: map[string]*models.DailyAnalytics{}, weekly: map[string]*models.WeeklySummary{}}
}

func rowKey(userID uuid.UUID, day time.Time) string {
	return userID.String() + day.Format(dateLayout)
}

func (r *fakeAnalyticsRepo) GetDaily(ctx context.Context, userID uuid.UUID, date time.Time) (*models.DailyAnalytics, error) {
	a, ok := r.daily[rowKey(userID, date)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAnalyticsRepo) SaveDaily(ctx context.Context, a *models.DailyAnalytics) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	cp := *a
	r.daily[rowKey(a.UserID, a.Date)] = &cp
	return nil
}

func (r *fakeAnalyticsRepo) DeleteDaily(ctx context.Context, userID uuid.UUID, date time.Time) error {
	delete(r.daily, rowKey(userID, date))
	return nil
}

func (r *fakeAnalyticsRepo) GetWeekly(ctx context.Context, userID uuid.UUID, weekStart time.Time) (*models.WeeklySummary, error) {
	w, ok := r.weekly[rowKey(userID, weekStart)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *fakeAnalyticsRepo) SaveWeekly(ctx context.Context, w *models.WeeklySummary) error {
	w.ID = uuid.New()
	w.GeneratedAt = time.Now()
	cp := *w
	r.weekly[rowKey(w.UserID, w.WeekStart)] = &cp
	return nil
}

func (r *fakeAnalyticsRepo) DeleteWeekly(ctx context.Context, userID uuid.UUID, weekStart time.Time) error {
	delete(r.weekly, rowKey(userID, weekStart))
	return nil
}

func (r *fakeAnalyticsRepo) ActivityMark(ctx context.Context, userID uuid.UUID) (*models.ActivityMark, error) {
	m := r.mark
	return &m, nil
}

func (r *fakeAnalyticsRepo) LoadWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) (*models.ActivityWindow, error) {
	r.windowLoads++
	w := r.window
	w.From, w.To = from, to
	return &w, nil
}

func (r *fakeAnalyticsRepo) RecentTimers(ctx context.Context, userID uuid.UUID, limit int) ([]models.TimerSession, error) {
	if len(r.recent) > limit {
		return r.recent[:limit], nil
	}
	return r.recent, nil
}

func (r *fakeAnalyticsRepo) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// memCache is a Cache over a map of JSON blobs; TTLs are ignored.
type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *memCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *memCache) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestProductivityScore(t *testing.T) {
	assert.Equal(t, 0.0, productivityScore(0, 0))
	assert.Equal(t, 0.0, productivityScore(0, 4))
	assert.Equal(t, 100.0, productivityScore(4, 4))
	assert.Equal(t, 50.0, productivityScore(1, 2))
}

func TestFresh(t *testing.T) {
	built := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	assert.True(t, fresh(built, &models.ActivityMark{}, false))
	assert.True(t, fresh(built, &models.ActivityMark{LatestChange: ptrTime(built.Add(-time.Minute))}, false))
	assert.False(t, fresh(built, &models.ActivityMark{LatestChange: ptrTime(built.Add(time.Second))}, true))

	open := &models.ActivityMark{HasOpenTimer: true}
	assert.False(t, fresh(built, open, false))
	assert.True(t, fresh(built, open, true))
}

func TestBuildDaily(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	day := utcDay(now)
	w := &models.ActivityWindow{
		Timers: []models.TimerSample{
			{StartTime: now.Add(-3 * time.Hour), EndTime: ptrTime(now.Add(-150 * time.Minute)), DurationMinutes: 30, SessionType: models.TimerKindStudy, PlannedMinutes: 25},
			{StartTime: now.Add(-2 * time.Hour), EndTime: ptrTime(now.Add(-110 * time.Minute)), DurationMinutes: 10, SessionType: models.TimerKindStudy, PlannedMinutes: 25},
			{StartTime: now.Add(-100 * time.Minute), EndTime: ptrTime(now.Add(-95 * time.Minute)), DurationMinutes: 5, SessionType: models.TimerKindBreak},
			{StartTime: now.Add(-20 * time.Minute), SessionType: models.TimerKindStudy, PlannedMinutes: 25},
		},
		Todos:       []models.TodoSample{{IsCompleted: true}, {IsCompleted: false}},
		ReviewTimes: []time.Time{now, now},
		Exams: []models.ExamSample{
			{Score: 8, TotalQuestions: 10},
			{Score: 6, TotalQuestions: 10},
			{Score: 0, TotalQuestions: 0},
		},
	}

	a := buildDaily(uuid.New(), day, w, now)
	assert.Equal(t, 60, a.TotalStudyMinutes)
	assert.Equal(t, 5, a.TotalBreakMinutes)
	assert.Equal(t, 1, a.FocusInterruptions)
	assert.Equal(t, 1, a.CompletedTodos)
	assert.Equal(t, 2, a.TotalTodos)
	assert.Equal(t, 2, a.FlashcardsReviewed)
	require.NotNil(t, a.MockExamScore)
	assert.InDelta(t, 70.0, *a.MockExamScore, 0.001)
}

func TestBuildWeekly_AveragesOverActiveDays(t *testing.T) {
	now := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	start := weekStart(utcDay(now))
	w := &models.ActivityWindow{
		Timers: []models.TimerSample{
			{StartTime: start.Add(9 * time.Hour), EndTime: ptrTime(start.Add(10 * time.Hour)), DurationMinutes: 60, SessionType: models.TimerKindStudy},
			{StartTime: start.AddDate(0, 0, 2).Add(9 * time.Hour), EndTime: ptrTime(start.AddDate(0, 0, 2).Add(10 * time.Hour)), DurationMinutes: 30, SessionType: models.TimerKindStudy},
		},
		Todos: []models.TodoSample{{IsCompleted: true}, {IsCompleted: true}},
	}

	s := buildWeekly(uuid.New(), start, w, now)
	assert.Equal(t, 90, s.TotalStudyMinutes)
	assert.InDelta(t, 45.0, s.AverageStudyTimePerDay, 0.001)
	assert.Equal(t, 100.0, s.ProductivityScore)
	assert.Nil(t, s.AverageMockExamScore)

	empty := buildWeekly(uuid.New(), start, &models.ActivityWindow{}, now)
	assert.Zero(t, empty.AverageStudyTimePerDay)
	assert.Zero(t, empty.ProductivityScore)
}

func TestDailyBreakdown(t *testing.T) {
	now := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	from := weekStart(utcDay(now))
	w := &models.ActivityWindow{
		From: from,
		Timers: []models.TimerSample{
			{StartTime: now.Add(-time.Hour), EndTime: ptrTime(now), DurationMinutes: 60, SessionType: models.TimerKindStudy},
			{StartTime: from.Add(time.Hour), EndTime: ptrTime(from.Add(70 * time.Minute)), DurationMinutes: 10, SessionType: models.TimerKindBreak},
		},
		Todos: []models.TodoSample{{CreatedAt: now, IsCompleted: true}},
	}

	days := dailyBreakdown(w, 7, now)
	require.Len(t, days, 7)
	assert.Equal(t, "2026-03-02", days[0].Date)
	assert.Equal(t, 10, days[0].TotalBreakMinutes)
	assert.Equal(t, "2026-03-08", days[6].Date)
	assert.Equal(t, 60, days[6].TotalStudyMinutes)
	assert.Equal(t, 1, days[6].CompletedTodos)
}

func newTestAnalytics(repo *fakeAnalyticsRepo, cache Cache, now time.Time) *AnalyticsService {
	svc := NewAnalyticsService(repo, cache, time.Minute)
	svc.now = func() time.Time { return now }
	return svc
}

func TestGetTodayAnalytics_ServesCachedWhileNothingChanged(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	repo.window.Timers = []models.TimerSample{
		{StartTime: time.Now().Add(-time.Hour), EndTime: ptrTime(time.Now()), DurationMinutes: 45, SessionType: models.TimerKindStudy},
	}
	cache := newMemCache()
	svc := newTestAnalytics(repo, cache, time.Now())
	userID := uuid.New()

	first, err := svc.GetTodayAnalytics(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 45, first.TotalStudyMinutes)

	second, err := svc.GetTodayAnalytics(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, first.TotalStudyMinutes, second.TotalStudyMinutes)
	assert.Equal(t, 1, repo.windowLoads)
}

func TestGetTodayAnalytics_RebuildsAfterSourceChange(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	cache := newMemCache()
	svc := newTestAnalytics(repo, cache, time.Now())
	userID := uuid.New()

	first, err := svc.GetTodayAnalytics(context.Background(), userID)
	require.NoError(t, err)
	assert.Zero(t, first.CompletedTodos)

	repo.window.Todos = []models.TodoSample{{IsCompleted: true}}
	repo.mark.LatestChange = ptrTime(time.Now().Add(time.Second))

	second, err := svc.GetTodayAnalytics(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, second.CompletedTodos)
	assert.Equal(t, 2, repo.windowLoads)
}

func TestGetTodayAnalytics_OpenTimerBypassesStoredRow(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	svc := newTestAnalytics(repo, newMemCache(), time.Now())
	userID := uuid.New()

	_, err := svc.GetTodayAnalytics(context.Background(), userID)
	require.NoError(t, err)

	// With the Redis copy gone, an open timer forces a rebuild.
	repo.mark.HasOpenTimer = true
	svc.cache = newMemCache()
	_, err = svc.GetTodayAnalytics(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.windowLoads)
}

func TestGetWeeklySummary_CachesAndRebuilds(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	svc := newTestAnalytics(repo, newMemCache(), time.Now())
	userID := uuid.New()

	_, err := svc.GetWeeklySummary(context.Background(), userID)
	require.NoError(t, err)
	_, err = svc.GetWeeklySummary(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.windowLoads)

	require.NoError(t, svc.Invalidate(context.Background(), userID))
	assert.Empty(t, repo.weekly)
	_, err = svc.GetWeeklySummary(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.windowLoads)
}

func TestForceRegenerate(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	cache := newMemCache()
	svc := newTestAnalytics(repo, cache, time.Now())
	userID := uuid.New()

	_, err := svc.GetTodayAnalytics(context.Background(), userID)
	require.NoError(t, err)
	repo.window.ReviewTimes = []time.Time{time.Now()}

	a, err := svc.ForceRegenerate(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, a.FlashcardsReviewed)
	assert.Equal(t, 2, repo.windowLoads)

	require.NoError(t, svc.Refresh(context.Background(), userID))
	assert.Equal(t, 3, repo.windowLoads)
}

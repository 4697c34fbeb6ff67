package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"suzy-backend/internal/models"
)

type AnalyticsRepository interface {
	GetDaily(ctx context.Context, userID uuid.UUID, date time.Time) (*models.DailyAnalytics, error)
	SaveDaily(ctx context.Context, a *models.DailyAnalytics) error
	DeleteDaily(ctx context.Context, userID uuid.UUID, date time.Time) error
	GetWeekly(ctx context.Context, userID uuid.UUID, weekStart time.Time) (*models.WeeklySummary, error)
	SaveWeekly(ctx context.Context, w *models.WeeklySummary) error
	DeleteWeekly(ctx context.Context, userID uuid.UUID, weekStart time.Time) error
	ActivityMark(ctx context.Context, userID uuid.UUID) (*models.ActivityMark, error)
	LoadWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) (*models.ActivityWindow, error)
	RecentTimers(ctx context.Context, userID uuid.UUID, limit int) ([]models.TimerSession, error)
	PruneBefore(ctx context.Context, before time.Time) (int64, error)
}

type AnalyticsRepo struct {
	pool *pgxpool.Pool
}

func NewAnalyticsRepo(pool *pgxpool.Pool) *AnalyticsRepo {
	return &AnalyticsRepo{pool: pool}
}

// Daily cache

func (r *AnalyticsRepo) GetDaily(ctx context.Context, userID uuid.UUID, date time.Time) (*models.DailyAnalytics, error) {
	a := &models.DailyAnalytics{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, date, total_study_minutes, total_break_minutes, completed_todos, total_todos,
			flashcards_reviewed, mock_exam_score, focus_interruptions, created_at
		FROM study_analytics WHERE user_id = $1 AND date = $2
	`, userID, date).Scan(
		&a.ID, &a.UserID, &a.Date, &a.TotalStudyMinutes, &a.TotalBreakMinutes, &a.CompletedTodos, &a.TotalTodos,
		&a.FlashcardsReviewed, &a.MockExamScore, &a.FocusInterruptions, &a.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (r *AnalyticsRepo) SaveDaily(ctx context.Context, a *models.DailyAnalytics) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO study_analytics (id, user_id, date, total_study_minutes, total_break_minutes, completed_todos,
			total_todos, flashcards_reviewed, mock_exam_score, focus_interruptions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, date) DO UPDATE SET
			total_study_minutes = EXCLUDED.total_study_minutes,
			total_break_minutes = EXCLUDED.total_break_minutes,
			completed_todos = EXCLUDED.completed_todos,
			total_todos = EXCLUDED.total_todos,
			flashcards_reviewed = EXCLUDED.flashcards_reviewed,
			mock_exam_score = EXCLUDED.mock_exam_score,
			focus_interruptions = EXCLUDED.focus_interruptions,
			created_at = NOW()
		RETURNING id, created_at
	`, uuid.New(), a.UserID, a.Date, a.TotalStudyMinutes, a.TotalBreakMinutes, a.CompletedTodos,
		a.TotalTodos, a.FlashcardsReviewed, a.MockExamScore, a.FocusInterruptions,
	).Scan(&a.ID, &a.CreatedAt)
}

func (r *AnalyticsRepo) DeleteDaily(ctx context.Context, userID uuid.UUID, date time.Time) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM study_analytics WHERE user_id = $1 AND date = $2", userID, date)
	return err
}

// Weekly cache

func (r *AnalyticsRepo) GetWeekly(ctx context.Context, userID uuid.UUID, weekStart time.Time) (*models.WeeklySummary, error) {
	w := &models.WeeklySummary{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, week_start, total_study_minutes, total_break_minutes, average_study_time_per_day,
			completed_todos, total_todos, productivity_score, flashcards_reviewed, average_mock_exam_score, generated_at
		FROM weekly_summaries WHERE user_id = $1 AND week_start = $2
	`, userID, weekStart).Scan(
		&w.ID, &w.UserID, &w.WeekStart, &w.TotalStudyMinutes, &w.TotalBreakMinutes, &w.AverageStudyTimePerDay,
		&w.CompletedTodos, &w.TotalTodos, &w.ProductivityScore, &w.FlashcardsReviewed, &w.AverageMockExamScore, &w.GeneratedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return w, nil
}

func (r *AnalyticsRepo) SaveWeekly(ctx context.Context, w *models.WeeklySummary) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO weekly_summaries (id, user_id, week_start, total_study_minutes, total_break_minutes,
			average_study_time_per_day, completed_todos, total_todos, productivity_score, flashcards_reviewed,
			average_mock_exam_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, week_start) DO UPDATE SET
			total_study_minutes = EXCLUDED.total_study_minutes,
			total_break_minutes = EXCLUDED.total_break_minutes,
			average_study_time_per_day = EXCLUDED.average_study_time_per_day,
			completed_todos = EXCLUDED.completed_todos,
			total_todos = EXCLUDED.total_todos,
			productivity_score = EXCLUDED.productivity_score,
			flashcards_reviewed = EXCLUDED.flashcards_reviewed,
			average_mock_exam_score = EXCLUDED.average_mock_exam_score,
			generated_at = NOW()
		RETURNING id, generated_at
	`, uuid.New(), w.UserID, w.WeekStart, w.TotalStudyMinutes, w.TotalBreakMinutes,
		w.AverageStudyTimePerDay, w.CompletedTodos, w.TotalTodos, w.ProductivityScore, w.FlashcardsReviewed,
		w.AverageMockExamScore,
	).Scan(&w.ID, &w.GeneratedAt)
}

func (r *AnalyticsRepo) DeleteWeekly(ctx context.Context, userID uuid.UUID, weekStart time.Time) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM weekly_summaries WHERE user_id = $1 AND week_start = $2", userID, weekStart)
	return err
}

// Source rows

// ActivityMark returns the newest change across every table the aggregates
// are derived from. GREATEST skips NULLs, so users with no rows get nil.
func (r *AnalyticsRepo) ActivityMark(ctx context.Context, userID uuid.UUID) (*models.ActivityMark, error) {
	m := &models.ActivityMark{}
	err := r.pool.QueryRow(ctx, `
		SELECT GREATEST(
			(SELECT MAX(updated_at) FROM timer_sessions WHERE user_id = $1),
			(SELECT MAX(updated_at) FROM todo_items WHERE user_id = $1),
			(SELECT MAX(reviewed_at) FROM flashcard_reviews WHERE user_id = $1),
			(SELECT MAX(taken_at) FROM mock_exams WHERE user_id = $1)
		),
		EXISTS (SELECT 1 FROM timer_sessions WHERE user_id = $1 AND end_time IS NULL)
	`, userID).Scan(&m.LatestChange, &m.HasOpenTimer)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *AnalyticsRepo) LoadWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) (*models.ActivityWindow, error) {
	w := &models.ActivityWindow{From: from, To: to}

	rows, err := r.pool.Query(ctx, `
		SELECT t.start_time, t.end_time, t.duration_minutes, t.session_type, s.study_duration
		FROM timer_sessions t
		JOIN study_sessions s ON s.id = t.study_session_id
		WHERE t.user_id = $1 AND t.start_time >= $2 AND t.start_time < $3
		ORDER BY t.start_time
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var ts models.TimerSample
		if err := rows.Scan(&ts.StartTime, &ts.EndTime, &ts.DurationMinutes, &ts.SessionType, &ts.PlannedMinutes); err != nil {
			rows.Close()
			return nil, err
		}
		w.Timers = append(w.Timers, ts)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT created_at, is_completed FROM todo_items
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var td models.TodoSample
		if err := rows.Scan(&td.CreatedAt, &td.IsCompleted); err != nil {
			rows.Close()
			return nil, err
		}
		w.Todos = append(w.Todos, td)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT reviewed_at FROM flashcard_reviews
		WHERE user_id = $1 AND reviewed_at >= $2 AND reviewed_at < $3
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			rows.Close()
			return nil, err
		}
		w.ReviewTimes = append(w.ReviewTimes, at)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT taken_at, score, total_questions FROM mock_exams
		WHERE user_id = $1 AND taken_at >= $2 AND taken_at < $3
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ex models.ExamSample
		if err := rows.Scan(&ex.TakenAt, &ex.Score, &ex.TotalQuestions); err != nil {
			return nil, err
		}
		w.Exams = append(w.Exams, ex)
	}
	return w, rows.Err()
}

func (r *AnalyticsRepo) RecentTimers(ctx context.Context, userID uuid.UUID, limit int) ([]models.TimerSession, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+timerColumns+`
		FROM timer_sessions WHERE user_id = $1 ORDER BY start_time DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	timers := []models.TimerSession{}
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, err
		}
		timers = append(timers, *t)
	}
	return timers, rows.Err()
}

func (r *AnalyticsRepo) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	daily, err := r.pool.Exec(ctx, "DELETE FROM study_analytics WHERE date < $1", before)
	if err != nil {
		return 0, err
	}
	weekly, err := r.pool.Exec(ctx, "DELETE FROM weekly_summaries WHERE week_start < $1", before)
	if err != nil {
		return daily.RowsAffected(), err
	}
	return daily.RowsAffected() + weekly.RowsAffected(), nil
}

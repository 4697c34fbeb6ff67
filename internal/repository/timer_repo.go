package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"suzy-backend/internal/models"
)

// Timer rows live on SessionRepo so they can share the session's row lock.

const timerColumns = `id, study_session_id, user_id, user_name, start_time, end_time,
	duration_minutes, session_type, is_completed, notes, updated_at`

func scanTimer(row scanner) (*models.TimerSession, error) {
	t := &models.TimerSession{}
	err := row.Scan(
		&t.ID, &t.StudySessionID, &t.UserID, &t.UserName, &t.StartTime, &t.EndTime,
		&t.DurationMinutes, &t.SessionType, &t.IsCompleted, &t.Notes, &t.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (r *SessionRepo) GetOpenTimer(ctx context.Context, sessionID, userID uuid.UUID) (*models.TimerSession, error) {
	return scanTimer(r.db.QueryRow(ctx, "SELECT "+timerColumns+`
		FROM timer_sessions WHERE study_session_id = $1 AND user_id = $2 AND end_time IS NULL`,
		sessionID, userID))
}

// CreateTimer inserts an open timer. It returns ErrOpenTimerExists when the
// timer_sessions_one_open index already holds a row for the pair.
func (r *SessionRepo) CreateTimer(ctx context.Context, t *models.TimerSession) error {
	t.ID = uuid.New()
	query := `INSERT INTO timer_sessions (id, study_session_id, user_id, user_name, start_time, session_type, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (study_session_id, user_id) WHERE end_time IS NULL DO NOTHING
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		t.ID, t.StudySessionID, t.UserID, t.UserName, t.StartTime, t.SessionType, t.Notes,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) || IsUniqueViolation(err, "timer_sessions_one_open") {
		return ErrOpenTimerExists
	}
	return err
}

func (r *SessionRepo) CloseTimer(ctx context.Context, t *models.TimerSession) error {
	return requireAffected(r.db.Exec(ctx, `
		UPDATE timer_sessions
		SET end_time = $1, duration_minutes = $2, is_completed = $3, notes = $4, updated_at = NOW()
		WHERE id = $5 AND end_time IS NULL
	`, t.EndTime, t.DurationMinutes, t.IsCompleted, t.Notes, t.ID))
}

func (r *SessionRepo) CloseOpenTimersForSession(ctx context.Context, sessionID uuid.UUID, at time.Time, note string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE timer_sessions
		SET end_time = $1,
			duration_minutes = GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($1 - start_time)) / 60))::INT,
			is_completed = TRUE,
			notes = $2,
			updated_at = NOW()
		WHERE study_session_id = $3 AND end_time IS NULL
	`, at, note, sessionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *SessionRepo) ListTimers(ctx context.Context, sessionID, userID uuid.UUID) ([]models.TimerSession, error) {
	rows, err := r.db.Query(ctx, "SELECT "+timerColumns+`
		FROM timer_sessions WHERE study_session_id = $1 AND user_id = $2
		ORDER BY start_time DESC`, sessionID, userID)
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

func (r *SessionRepo) ParticipantStudyTimes(ctx context.Context, sessionID uuid.UUID) ([]models.ParticipantStudyTime, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.user_id, p.user_name,
			COALESCE(SUM(t.duration_minutes) FILTER (WHERE t.session_type = 'study' AND t.end_time IS NOT NULL), 0)::INT
		FROM study_session_participants p
		LEFT JOIN timer_sessions t ON t.study_session_id = p.study_session_id AND t.user_id = p.user_id
		WHERE p.study_session_id = $1
		GROUP BY p.user_id, p.user_name
		ORDER BY 3 DESC, p.user_name ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := []models.ParticipantStudyTime{}
	for rows.Next() {
		var pt models.ParticipantStudyTime
		if err := rows.Scan(&pt.UserID, &pt.UserName, &pt.TotalStudyMinutes); err != nil {
			return nil, err
		}
		totals = append(totals, pt)
	}
	return totals, rows.Err()
}

func (r *SessionRepo) StudyTotalsForUser(ctx context.Context, userID uuid.UUID) ([]models.SessionStudyTotal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.study_session_id,
			COALESCE(SUM(t.duration_minutes) FILTER (WHERE t.session_type = 'study' AND t.end_time IS NOT NULL), 0)::INT
		FROM study_session_participants p
		LEFT JOIN timer_sessions t ON t.study_session_id = p.study_session_id AND t.user_id = p.user_id
		WHERE p.user_id = $1
		GROUP BY p.study_session_id
		ORDER BY p.study_session_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := []models.SessionStudyTotal{}
	for rows.Next() {
		var st models.SessionStudyTotal
		if err := rows.Scan(&st.SessionID, &st.TotalStudyMinutes); err != nil {
			return nil, err
		}
		totals = append(totals, st)
	}
	return totals, rows.Err()
}

// CloseStaleTimers caps timers left running since before openedBefore.
func (r *SessionRepo) CloseStaleTimers(ctx context.Context, openedBefore time.Time, maxMinutes int, note string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE timer_sessions
		SET end_time = start_time + make_interval(mins => $1),
			duration_minutes = $1,
			is_completed = FALSE,
			notes = $2,
			updated_at = NOW()
		WHERE end_time IS NULL AND start_time < $3
	`, maxMinutes, note, openedBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

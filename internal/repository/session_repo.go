package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"suzy-backend/internal/models"
)

// SessionStore covers study sessions, their participants and their timers.
// All three are mutated together, so they share one transactional store.
type SessionStore interface {
	WithTx(ctx context.Context, fn func(SessionStore) error) error

	CreateSession(ctx context.Context, s *models.StudySession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.StudySession, error)
	GetSessionForUpdate(ctx context.Context, id uuid.UUID) (*models.StudySession, error)
	GetActiveSessionByInviteCode(ctx context.Context, code string) (*models.StudySession, error)
	ListPublicSessions(ctx context.Context) ([]models.StudySession, error)
	ListActiveSessions(ctx context.Context) ([]models.StudySession, error)
	ListSessionsForUser(ctx context.Context, userID uuid.UUID) ([]models.StudySession, error)
	MarkSessionStarted(ctx context.Context, id uuid.UUID, at time.Time) error
	EndSession(ctx context.Context, id uuid.UUID, at time.Time) error
	RecountParticipants(ctx context.Context, id uuid.UUID) (int, error)
	DeleteTodosBySession(ctx context.Context, id uuid.UUID) error

	GetParticipant(ctx context.Context, sessionID, userID uuid.UUID) (*models.Participant, error)
	ListActiveParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error)
	CountActiveParticipants(ctx context.Context, sessionID uuid.UUID) (int, error)
	AddParticipant(ctx context.Context, p *models.Participant) error
	RejoinParticipant(ctx context.Context, participantID uuid.UUID, at time.Time) error
	MarkParticipantLeft(ctx context.Context, participantID uuid.UUID, at time.Time) error
	SetHost(ctx context.Context, participantID uuid.UUID) error
	DeleteParticipants(ctx context.Context, sessionID uuid.UUID) error
	TouchParticipant(ctx context.Context, sessionID, userID uuid.UUID, at time.Time) error

	GetOpenTimer(ctx context.Context, sessionID, userID uuid.UUID) (*models.TimerSession, error)
	CreateTimer(ctx context.Context, t *models.TimerSession) error
	CloseTimer(ctx context.Context, t *models.TimerSession) error
	CloseOpenTimersForSession(ctx context.Context, sessionID uuid.UUID, at time.Time, note string) (int64, error)
	ListTimers(ctx context.Context, sessionID, userID uuid.UUID) ([]models.TimerSession, error)
	ParticipantStudyTimes(ctx context.Context, sessionID uuid.UUID) ([]models.ParticipantStudyTime, error)
	StudyTotalsForUser(ctx context.Context, userID uuid.UUID) ([]models.SessionStudyTotal, error)
	CloseStaleTimers(ctx context.Context, openedBefore time.Time, maxMinutes int, note string) (int64, error)
}

type SessionRepo struct {
	db   DBTX
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{db: pool, pool: pool}
}

// WithTx runs fn against a transaction-bound copy. Nested calls reuse the
// outer transaction.
func (r *SessionRepo) WithTx(ctx context.Context, fn func(SessionStore) error) error {
	if r.pool == nil {
		return fn(r)
	}
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&SessionRepo{db: tx})
	})
}

const sessionColumns = `id, title, description, creator_user_id, created_at, started_at, ended_at,
	is_active, is_public, max_participants, current_participants, timer_type,
	study_duration, break_duration, invite_code`

func scanSession(row scanner) (*models.StudySession, error) {
	s := &models.StudySession{}
	err := row.Scan(
		&s.ID, &s.Title, &s.Description, &s.CreatorUserID, &s.CreatedAt, &s.StartedAt, &s.EndedAt,
		&s.IsActive, &s.IsPublic, &s.MaxParticipants, &s.CurrentParticipants, &s.TimerType,
		&s.StudyDuration, &s.BreakDuration, &s.InviteCode,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (r *SessionRepo) querySessions(ctx context.Context, query string, args ...any) ([]models.StudySession, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []models.StudySession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepo) CreateSession(ctx context.Context, s *models.StudySession) error {
	s.ID = uuid.New()
	s.IsActive = true

	query := `INSERT INTO study_sessions (id, title, description, creator_user_id, is_active, is_public,
		max_participants, current_participants, timer_type, study_duration, break_duration, invite_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING created_at`

	return r.db.QueryRow(ctx, query,
		s.ID, s.Title, s.Description, s.CreatorUserID, s.IsActive, s.IsPublic,
		s.MaxParticipants, s.CurrentParticipants, s.TimerType, s.StudyDuration, s.BreakDuration, s.InviteCode,
	).Scan(&s.CreatedAt)
}

func (r *SessionRepo) GetSession(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	return scanSession(r.db.QueryRow(ctx, "SELECT "+sessionColumns+" FROM study_sessions WHERE id = $1", id))
}

func (r *SessionRepo) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	return scanSession(r.db.QueryRow(ctx, "SELECT "+sessionColumns+" FROM study_sessions WHERE id = $1 FOR UPDATE", id))
}

func (r *SessionRepo) GetActiveSessionByInviteCode(ctx context.Context, code string) (*models.StudySession, error) {
	return scanSession(r.db.QueryRow(ctx,
		"SELECT "+sessionColumns+" FROM study_sessions WHERE invite_code = $1 AND is_active = TRUE", code))
}

func (r *SessionRepo) ListPublicSessions(ctx context.Context) ([]models.StudySession, error) {
	return r.querySessions(ctx, "SELECT "+sessionColumns+` FROM study_sessions
		WHERE is_active = TRUE AND is_public = TRUE AND current_participants < max_participants
		ORDER BY created_at DESC`)
}

func (r *SessionRepo) ListActiveSessions(ctx context.Context) ([]models.StudySession, error) {
	return r.querySessions(ctx, "SELECT "+sessionColumns+` FROM study_sessions
		WHERE is_active = TRUE ORDER BY created_at DESC`)
}

func (r *SessionRepo) ListSessionsForUser(ctx context.Context, userID uuid.UUID) ([]models.StudySession, error) {
	return r.querySessions(ctx, "SELECT "+sessionColumns+` FROM study_sessions s
		WHERE s.is_active = TRUE AND EXISTS (
			SELECT 1 FROM study_session_participants p
			WHERE p.study_session_id = s.id AND p.user_id = $1 AND p.left_at IS NULL
		) ORDER BY s.created_at DESC`, userID)
}

func (r *SessionRepo) MarkSessionStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx,
		"UPDATE study_sessions SET started_at = $1 WHERE id = $2 AND started_at IS NULL", at, id)
	return err
}

func (r *SessionRepo) EndSession(ctx context.Context, id uuid.UUID, at time.Time) error {
	return requireAffected(r.db.Exec(ctx,
		"UPDATE study_sessions SET is_active = FALSE, ended_at = $1 WHERE id = $2", at, id))
}

// RecountParticipants rewrites current_participants from the participant rows.
func (r *SessionRepo) RecountParticipants(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		UPDATE study_sessions SET current_participants = (
			SELECT COUNT(*) FROM study_session_participants
			WHERE study_session_id = $1 AND left_at IS NULL
		) WHERE id = $1
		RETURNING current_participants
	`, id).Scan(&count)
	return count, notFound(err)
}

func (r *SessionRepo) DeleteTodosBySession(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, "DELETE FROM todo_items WHERE study_session_id = $1", id)
	return err
}

// Participants

const participantColumns = `id, study_session_id, user_id, user_name, joined_at, left_at, is_host, last_activity_at`

func scanParticipant(row scanner) (*models.Participant, error) {
	p := &models.Participant{}
	err := row.Scan(&p.ID, &p.StudySessionID, &p.UserID, &p.UserName, &p.JoinedAt, &p.LeftAt, &p.IsHost, &p.LastActivityAt)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *SessionRepo) GetParticipant(ctx context.Context, sessionID, userID uuid.UUID) (*models.Participant, error) {
	return scanParticipant(r.db.QueryRow(ctx, "SELECT "+participantColumns+`
		FROM study_session_participants WHERE study_session_id = $1 AND user_id = $2`, sessionID, userID))
}

// ListActiveParticipants orders by joined_at then id, which is also the
// host-transfer order.
func (r *SessionRepo) ListActiveParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	rows, err := r.db.Query(ctx, "SELECT "+participantColumns+`
		FROM study_session_participants
		WHERE study_session_id = $1 AND left_at IS NULL
		ORDER BY joined_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := []models.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

func (r *SessionRepo) CountActiveParticipants(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM study_session_participants WHERE study_session_id = $1 AND left_at IS NULL",
		sessionID).Scan(&count)
	return count, err
}

func (r *SessionRepo) AddParticipant(ctx context.Context, p *models.Participant) error {
	p.ID = uuid.New()
	query := `INSERT INTO study_session_participants (id, study_session_id, user_id, user_name, is_host)
		VALUES ($1, $2, $3, $4, $5) RETURNING joined_at`
	return r.db.QueryRow(ctx, query, p.ID, p.StudySessionID, p.UserID, p.UserName, p.IsHost).Scan(&p.JoinedAt)
}

func (r *SessionRepo) RejoinParticipant(ctx context.Context, participantID uuid.UUID, at time.Time) error {
	return requireAffected(r.db.Exec(ctx,
		"UPDATE study_session_participants SET left_at = NULL, joined_at = $1 WHERE id = $2",
		at, participantID))
}

// MarkParticipantLeft also drops the host flag so the one-host index holds
// once the flag moves to someone else.
func (r *SessionRepo) MarkParticipantLeft(ctx context.Context, participantID uuid.UUID, at time.Time) error {
	return requireAffected(r.db.Exec(ctx,
		"UPDATE study_session_participants SET left_at = $1, is_host = FALSE WHERE id = $2",
		at, participantID))
}

func (r *SessionRepo) SetHost(ctx context.Context, participantID uuid.UUID) error {
	return requireAffected(r.db.Exec(ctx,
		"UPDATE study_session_participants SET is_host = TRUE WHERE id = $1", participantID))
}

func (r *SessionRepo) DeleteParticipants(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.db.Exec(ctx, "DELETE FROM study_session_participants WHERE study_session_id = $1", sessionID)
	return err
}

func (r *SessionRepo) TouchParticipant(ctx context.Context, sessionID, userID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE study_session_participants SET last_activity_at = $1
		WHERE study_session_id = $2 AND user_id = $3`, at, sessionID, userID)
	return err
}

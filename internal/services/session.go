package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"suzy-backend/internal/models"
	"suzy-backend/internal/repository"
)

const (
	inviteCodeAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeLength     = 8
	inviteCodeConstraint = "study_sessions_invite_code_key"
	inviteCodeAttempts   = 5

	msgInvalidInviteCode = "Invalid invite code for private session"
	msgSessionNotFound   = "Session not found"
	msgSessionFull       = "Session is full"
	msgAlreadyInSession  = "Already in session"
	msgJoined            = "Joined session successfully"
	msgNotInSession      = "You are not in this session"
	msgLeft              = "Left session successfully"
	msgNotParticipant    = "You are not a participant in this session"
)

type SessionService struct {
	store      repository.SessionStore
	events     EventPublisher
	now        func() time.Time
	inviteCode func() (string, error)
}

func NewSessionService(store repository.SessionStore, events EventPublisher) *SessionService {
	return &SessionService{
		store:      store,
		events:     events,
		now:        time.Now,
		inviteCode: generateInviteCode,
	}
}

func generateInviteCode() (string, error) {
	size := big.NewInt(int64(len(inviteCodeAlphabet)))
	code := make([]byte, inviteCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		code[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

func validateCreateSession(req *models.CreateSessionRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	if req.MaxParticipants == 0 {
		req.MaxParticipants = 10
	}
	if req.TimerType == "" {
		req.TimerType = models.TimerPomodoro
	}
	if req.StudyDuration == 0 {
		req.StudyDuration = 25
	}
	if req.BreakDuration == 0 {
		req.BreakDuration = 5
	}

	fields := map[string]string{}
	if req.Title == "" {
		fields["title"] = "Title is required"
	} else if utf8.RuneCountInString(req.Title) > 200 {
		fields["title"] = "Title must be at most 200 characters"
	}
	if req.MaxParticipants < 1 || req.MaxParticipants > 50 {
		fields["maxParticipants"] = "Must be between 1 and 50"
	}
	if !req.TimerType.Valid() {
		fields["timerType"] = "Must be pomodoro, flowmodoro or custom"
	}
	if req.StudyDuration < 1 || req.StudyDuration > 240 {
		fields["studyDuration"] = "Must be between 1 and 240 minutes"
	}
	if req.BreakDuration < 1 || req.BreakDuration > 240 {
		fields["breakDuration"] = "Must be between 1 and 240 minutes"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// CreateSession stores the session and its host participant in one
// transaction, drawing a fresh invite code whenever the last one collided.
func (s *SessionService) CreateSession(ctx context.Context, userID uuid.UUID, userName string, req models.CreateSessionRequest) (*models.CreateSessionResult, error) {
	if err := validateCreateSession(&req); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= inviteCodeAttempts; attempt++ {
		session := &models.StudySession{
			Title:               req.Title,
			Description:         req.Description,
			CreatorUserID:       userID,
			IsPublic:            req.IsPublic,
			MaxParticipants:     req.MaxParticipants,
			CurrentParticipants: 1,
			TimerType:           req.TimerType,
			StudyDuration:       req.StudyDuration,
			BreakDuration:       req.BreakDuration,
		}
		if !req.IsPublic {
			code, err := s.inviteCode()
			if err != nil {
				return nil, err
			}
			session.InviteCode = &code
		}

		err := s.store.WithTx(ctx, func(tx repository.SessionStore) error {
			if err := tx.CreateSession(ctx, session); err != nil {
				return err
			}
			return tx.AddParticipant(ctx, &models.Participant{
				StudySessionID: session.ID,
				UserID:         userID,
				UserName:       userName,
				IsHost:         true,
			})
		})
		if repository.IsUniqueViolation(err, inviteCodeConstraint) {
			log.Warn().Int("attempt", attempt).Msg("invite code collision, regenerating")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}

		log.Info().Str("sessionId", session.ID.String()).Str("userId", userID.String()).
			Bool("public", session.IsPublic).Msg("study session created")
		return &models.CreateSessionResult{SessionID: session.ID, InviteCode: session.InviteCode}, nil
	}

	return nil, &ConflictError{Message: "Could not allocate a unique invite code, please retry"}
}

func declineJoin(reason, message string) *models.JoinResult {
	sessionDeclines.WithLabelValues(reason).Inc()
	return &models.JoinResult{Success: false, Message: message}
}

// resolveJoinTarget finds the session a join request points at. A nil id
// with a nil error means the request was declined with the returned result.
func (s *SessionService) resolveJoinTarget(ctx context.Context, userID uuid.UUID, req models.JoinSessionRequest, code string) (uuid.UUID, *models.JoinResult, error) {
	switch {
	case req.SessionID != nil:
		session, err := s.store.GetSession(ctx, *req.SessionID)
		if errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, declineJoin("not_found", msgSessionNotFound), nil
		}
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("get session: %w", err)
		}
		if !session.IsActive {
			return uuid.Nil, declineJoin("not_found", msgSessionNotFound), nil
		}
		if !session.IsPublic && session.CreatorUserID != userID {
			if code == "" || session.InviteCode == nil || *session.InviteCode != code {
				return uuid.Nil, declineJoin("invalid_code", msgInvalidInviteCode), nil
			}
		}
		return session.ID, nil, nil

	case code != "":
		session, err := s.store.GetActiveSessionByInviteCode(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, declineJoin("not_found", msgSessionNotFound), nil
		}
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("get session by code: %w", err)
		}
		return session.ID, nil, nil
	}

	return uuid.Nil, declineJoin("not_found", msgSessionNotFound), nil
}

// JoinSession admits the caller by session id or invite code. Business-rule
// failures come back as a declined result, not an error.
func (s *SessionService) JoinSession(ctx context.Context, userID uuid.UUID, userName string, req models.JoinSessionRequest) (*models.JoinResult, error) {
	code := strings.ToUpper(strings.TrimSpace(req.InviteCode))

	sessionID, declined, err := s.resolveJoinTarget(ctx, userID, req, code)
	if err != nil || declined != nil {
		return declined, err
	}

	var result *models.JoinResult
	joined := false
	err = s.store.WithTx(ctx, func(tx repository.SessionStore) error {
		session, err := tx.GetSessionForUpdate(ctx, sessionID)
		if errors.Is(err, repository.ErrNotFound) {
			result = declineJoin("not_found", msgSessionNotFound)
			return nil
		}
		if err != nil {
			return err
		}
		if !session.IsActive {
			result = declineJoin("not_found", msgSessionNotFound)
			return nil
		}

		existing, err := tx.GetParticipant(ctx, sessionID, userID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if existing != nil && existing.Active() {
			result = &models.JoinResult{Success: true, SessionID: &session.ID, Message: msgAlreadyInSession}
			return nil
		}

		active, err := tx.CountActiveParticipants(ctx, sessionID)
		if err != nil {
			return err
		}
		if active >= session.MaxParticipants {
			result = declineJoin("full", msgSessionFull)
			return nil
		}

		if existing != nil {
			err = tx.RejoinParticipant(ctx, existing.ID, s.now())
		} else {
			err = tx.AddParticipant(ctx, &models.Participant{
				StudySessionID: sessionID,
				UserID:         userID,
				UserName:       userName,
				IsHost:         session.CreatorUserID == userID,
			})
		}
		if err != nil {
			return err
		}

		if _, err := tx.RecountParticipants(ctx, sessionID); err != nil {
			return err
		}
		joined = true
		result = &models.JoinResult{Success: true, SessionID: &session.ID, Message: msgJoined}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("join session: %w", err)
	}

	if joined {
		log.Info().Str("sessionId", sessionID.String()).Str("userId", userID.String()).Msg("participant joined")
		s.events.Publish(ctx, models.EventParticipantJoined, models.SessionEvent{
			SessionID: sessionID, UserID: userID, UserName: userName, At: s.now(),
		})
	}
	return result, nil
}

// LeaveSession marks the caller as gone. A departing host hands the flag to
// the earliest-joined remaining participant; the last one out ends the session.
func (s *SessionService) LeaveSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.LeaveResult, error) {
	var (
		result      *models.LeaveResult
		leaver      *models.Participant
		closedTimer *models.TimerSession
	)
	now := s.now()

	err := s.store.WithTx(ctx, func(tx repository.SessionStore) error {
		session, err := tx.GetSessionForUpdate(ctx, sessionID)
		if errors.Is(err, repository.ErrNotFound) {
			return &NotFoundError{Message: msgSessionNotFound}
		}
		if err != nil {
			return err
		}
		if !session.IsActive {
			return &NotFoundError{Message: msgSessionNotFound}
		}

		p, err := tx.GetParticipant(ctx, sessionID, userID)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !p.Active()) {
			sessionDeclines.WithLabelValues("not_member").Inc()
			result = &models.LeaveResult{Success: false, Message: msgNotInSession}
			return nil
		}
		if err != nil {
			return err
		}
		leaver = p

		open, err := tx.GetOpenTimer(ctx, sessionID, userID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if open != nil {
			closeTimer(open, now, true, "Closed on leave")
			if err := tx.CloseTimer(ctx, open); err != nil {
				return err
			}
			closedTimer = open
		}

		if err := tx.MarkParticipantLeft(ctx, p.ID, now); err != nil {
			return err
		}

		remaining, err := tx.ListActiveParticipants(ctx, sessionID)
		if err != nil {
			return err
		}

		result = &models.LeaveResult{Success: true, Message: msgLeft}
		switch {
		case len(remaining) == 0:
			if err := tx.EndSession(ctx, sessionID, now); err != nil {
				return err
			}
			result.SessionEnded = true
		case p.IsHost:
			next := remaining[0]
			if err := tx.SetHost(ctx, next.ID); err != nil {
				return err
			}
			result.NewHostUserID = &next.UserID
		}

		_, err = tx.RecountParticipants(ctx, sessionID)
		return err
	})
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, err
		}
		return nil, fmt.Errorf("leave session: %w", err)
	}
	if !result.Success {
		return result, nil
	}

	log.Info().Str("sessionId", sessionID.String()).Str("userId", userID.String()).
		Bool("sessionEnded", result.SessionEnded).Msg("participant left")

	if closedTimer != nil {
		s.events.Publish(ctx, models.EventTimerEnded, timerEvent(closedTimer, now))
	}
	s.events.Publish(ctx, models.EventParticipantLeft, models.SessionEvent{
		SessionID: sessionID, UserID: userID, UserName: leaver.UserName, At: now,
	})
	switch {
	case result.SessionEnded:
		s.events.Publish(ctx, models.EventSessionEnded, models.SessionEvent{SessionID: sessionID, UserID: userID, At: now})
	case result.NewHostUserID != nil:
		s.events.Publish(ctx, models.EventHostTransferred, models.SessionEvent{SessionID: sessionID, UserID: *result.NewHostUserID, At: now})
	}
	return result, nil
}

// DeleteSession soft-deletes a session. Only its active host may do so.
func (s *SessionService) DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	now := s.now()
	err := s.store.WithTx(ctx, func(tx repository.SessionStore) error {
		session, err := tx.GetSessionForUpdate(ctx, sessionID)
		if errors.Is(err, repository.ErrNotFound) {
			return &NotFoundError{Message: msgSessionNotFound}
		}
		if err != nil {
			return err
		}
		if !session.IsActive {
			return &NotFoundError{Message: msgSessionNotFound}
		}

		p, err := tx.GetParticipant(ctx, sessionID, userID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if p == nil || !p.Active() || !p.IsHost {
			return &ForbiddenError{Message: "Only the session host can delete this session"}
		}

		if _, err := tx.CloseOpenTimersForSession(ctx, sessionID, now, "Closed on session delete"); err != nil {
			return err
		}
		if err := tx.DeleteTodosBySession(ctx, sessionID); err != nil {
			return err
		}
		if err := tx.DeleteParticipants(ctx, sessionID); err != nil {
			return err
		}
		if err := tx.EndSession(ctx, sessionID, now); err != nil {
			return err
		}
		_, err = tx.RecountParticipants(ctx, sessionID)
		return err
	})
	if err != nil {
		var nf *NotFoundError
		var fb *ForbiddenError
		if errors.As(err, &nf) || errors.As(err, &fb) {
			return err
		}
		return fmt.Errorf("delete session: %w", err)
	}

	log.Info().Str("sessionId", sessionID.String()).Str("userId", userID.String()).Msg("study session deleted")
	s.events.Publish(ctx, models.EventSessionEnded, models.SessionEvent{SessionID: sessionID, UserID: userID, At: now})
	return nil
}

func summarize(sessions []models.StudySession, showCode func(models.StudySession) bool) []models.SessionSummary {
	out := make([]models.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		sum := models.SessionSummary{StudySession: sess, RequiresCode: !sess.IsPublic}
		if !showCode(sess) {
			sum.InviteCode = nil
		}
		out = append(out, sum)
	}
	return out
}

func (s *SessionService) ListPublicSessions(ctx context.Context) ([]models.SessionSummary, error) {
	sessions, err := s.store.ListPublicSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list public sessions: %w", err)
	}
	return summarize(sessions, func(models.StudySession) bool { return false }), nil
}

// ListAvailableSessions returns every active session; invite codes are only
// revealed to the session's creator.
func (s *SessionService) ListAvailableSessions(ctx context.Context, userID uuid.UUID) ([]models.SessionSummary, error) {
	sessions, err := s.store.ListActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return summarize(sessions, func(sess models.StudySession) bool { return sess.CreatorUserID == userID }), nil
}

func (s *SessionService) ListMySessions(ctx context.Context, userID uuid.UUID) ([]models.SessionSummary, error) {
	sessions, err := s.store.ListSessionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list my sessions: %w", err)
	}
	return summarize(sessions, func(models.StudySession) bool { return true }), nil
}

func (s *SessionService) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.SessionDetail, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !session.IsActive) {
		return nil, &NotFoundError{Message: msgSessionNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	participants, err := s.store.ListActiveParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	member := false
	for _, p := range participants {
		if p.UserID == userID {
			member = true
			break
		}
	}
	if !session.IsPublic && !member {
		return nil, &ForbiddenError{Message: msgNotParticipant}
	}
	if !member {
		session.InviteCode = nil
	}

	return &models.SessionDetail{StudySession: *session, Participants: participants}, nil
}

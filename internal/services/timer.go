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

const (
	msgTimerAlreadyActive = "You already have an active timer session"
	msgNoActiveTimer      = "No active timer session found"
)

type TimerService struct {
	store  repository.SessionStore
	events EventPublisher
	now    func() time.Time
}

func NewTimerService(store repository.SessionStore, events EventPublisher) *TimerService {
	return &TimerService{store: store, events: events, now: time.Now}
}

// floorMinutes returns the whole minutes between start and end, never negative.
func floorMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

func closeTimer(t *models.TimerSession, at time.Time, completed bool, note string) {
	t.EndTime = &at
	t.DurationMinutes = floorMinutes(t.StartTime, at)
	t.IsCompleted = completed
	t.Notes = &note
}

func timerEvent(t *models.TimerSession, at time.Time) models.SessionEvent {
	ev := models.SessionEvent{
		SessionID: t.StudySessionID,
		UserID:    t.UserID,
		UserName:  t.UserName,
		TimerID:   &t.ID,
		TimerKind: t.SessionType,
		At:        at,
	}
	if t.EndTime != nil {
		minutes := t.DurationMinutes
		ev.Minutes = &minutes
	}
	return ev
}

func declineTimer(kind models.TimerKind, message string) *models.TimerResult {
	label := string(kind)
	if label == "" {
		label = "unknown"
	}
	timerEvents.WithLabelValues("declined", label).Inc()
	return &models.TimerResult{Success: false, Message: message}
}

// StartTimer opens a study or break timer for the caller. At most one timer
// per participant may be open in a session.
func (s *TimerService) StartTimer(ctx context.Context, userID, sessionID uuid.UUID, kind models.TimerKind) (*models.TimerResult, error) {
	var (
		result *models.TimerResult
		timer  *models.TimerSession
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
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if p == nil || !p.Active() {
			return &ForbiddenError{Message: msgNotParticipant}
		}

		if _, err := tx.GetOpenTimer(ctx, sessionID, userID); err == nil {
			result = declineTimer(kind, msgTimerAlreadyActive)
			return nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		note := "Timer started by user"
		if kind == models.TimerKindBreak {
			note = "Break timer started"
		}
		timer = &models.TimerSession{
			StudySessionID: sessionID,
			UserID:         userID,
			UserName:       p.UserName,
			StartTime:      now,
			SessionType:    kind,
			Notes:          &note,
		}
		if err := tx.CreateTimer(ctx, timer); errors.Is(err, repository.ErrOpenTimerExists) {
			result = declineTimer(kind, msgTimerAlreadyActive)
			timer = nil
			return nil
		} else if err != nil {
			return err
		}

		if err := tx.TouchParticipant(ctx, sessionID, userID, now); err != nil {
			return err
		}
		if err := tx.MarkSessionStarted(ctx, sessionID, now); err != nil {
			return err
		}

		result = &models.TimerResult{
			Success:        true,
			TimerSessionID: &timer.ID,
			StartedAt:      &timer.StartTime,
			SessionType:    kind,
		}
		return nil
	})
	if err != nil {
		var nf *NotFoundError
		var fb *ForbiddenError
		if errors.As(err, &nf) || errors.As(err, &fb) {
			return nil, err
		}
		return nil, fmt.Errorf("start timer: %w", err)
	}

	if timer != nil {
		timerEvents.WithLabelValues("started", string(kind)).Inc()
		log.Info().Str("sessionId", sessionID.String()).Str("userId", userID.String()).
			Str("kind", string(kind)).Msg("timer started")
		s.events.Publish(ctx, models.EventTimerStarted, timerEvent(timer, now))
	}
	return result, nil
}

// EndTimer closes the caller's open timer, crediting whole elapsed minutes.
func (s *TimerService) EndTimer(ctx context.Context, userID, sessionID uuid.UUID) (*models.TimerResult, error) {
	var (
		result *models.TimerResult
		timer  *models.TimerSession
	)
	now := s.now()

	err := s.store.WithTx(ctx, func(tx repository.SessionStore) error {
		open, err := tx.GetOpenTimer(ctx, sessionID, userID)
		if errors.Is(err, repository.ErrNotFound) {
			result = declineTimer("", msgNoActiveTimer)
			return nil
		}
		if err != nil {
			return err
		}

		closeTimer(open, now, true, "Timer stopped by user")
		if err := tx.CloseTimer(ctx, open); errors.Is(err, repository.ErrNotFound) {
			result = declineTimer(open.SessionType, msgNoActiveTimer)
			return nil
		} else if err != nil {
			return err
		}
		if err := tx.TouchParticipant(ctx, sessionID, userID, now); err != nil {
			return err
		}

		timer = open
		minutes := open.DurationMinutes
		result = &models.TimerResult{
			Success:         true,
			TimerSessionID:  &open.ID,
			DurationMinutes: &minutes,
			SessionType:     open.SessionType,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("end timer: %w", err)
	}

	if timer != nil {
		timerEvents.WithLabelValues("ended", string(timer.SessionType)).Inc()
		log.Info().Str("sessionId", sessionID.String()).Str("userId", userID.String()).
			Int("minutes", timer.DurationMinutes).Msg("timer ended")
		s.events.Publish(ctx, models.EventTimerEnded, timerEvent(timer, now))
	}
	return result, nil
}

// summarizeTimers totals closed timers and reports the open one, if any.
func summarizeTimers(timers []models.TimerSession, now time.Time) *models.TimerStats {
	stats := &models.TimerStats{Sessions: timers, TotalSessions: len(timers)}
	if stats.Sessions == nil {
		stats.Sessions = []models.TimerSession{}
	}

	for _, t := range timers {
		if t.Open() {
			stats.ActiveSession = &models.ActiveTimer{
				ID:             t.ID,
				SessionType:    t.SessionType,
				StartTime:      t.StartTime,
				ElapsedMinutes: floorMinutes(t.StartTime, now),
			}
			continue
		}
		switch t.SessionType {
		case models.TimerKindStudy:
			stats.TotalStudyTimeMinutes += t.DurationMinutes
			if t.IsCompleted {
				stats.CompletedStudySessions++
			}
		case models.TimerKindBreak:
			stats.TotalBreakTimeMinutes += t.DurationMinutes
			if t.IsCompleted {
				stats.CompletedBreakSessions++
			}
		}
	}
	return stats
}

func (s *TimerService) GetTimerStats(ctx context.Context, userID, sessionID uuid.UUID) (*models.TimerStats, error) {
	if _, err := s.store.GetSession(ctx, sessionID); errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: msgSessionNotFound}
	} else if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	timers, err := s.store.ListTimers(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	return summarizeTimers(timers, s.now()), nil
}

// ParticipantStudyTimes lists every participant's study total. Private
// sessions are visible to their active participants only.
func (s *TimerService) ParticipantStudyTimes(ctx context.Context, userID, sessionID uuid.UUID) ([]models.ParticipantStudyTime, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: msgSessionNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if !session.IsPublic {
		p, err := s.store.GetParticipant(ctx, sessionID, userID)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !p.Active()) {
			return nil, &ForbiddenError{Message: msgNotParticipant}
		}
		if err != nil {
			return nil, fmt.Errorf("get participant: %w", err)
		}
	}

	totals, err := s.store.ParticipantStudyTimes(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("participant study times: %w", err)
	}
	return totals, nil
}

// RecalculateParticipantStudyTimes recomputes the caller's study total in
// every session they have joined, straight from the timer rows.
func (s *TimerService) RecalculateParticipantStudyTimes(ctx context.Context, userID uuid.UUID) (*models.RecalculateResult, error) {
	totals, err := s.store.StudyTotalsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recalculate study times: %w", err)
	}
	log.Info().Str("userId", userID.String()).Int("sessions", len(totals)).Msg("recalculated study times")
	return &models.RecalculateResult{UpdatedCount: len(totals), Totals: totals}, nil
}

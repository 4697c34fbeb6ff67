package models

import (
	"time"

	"github.com/google/uuid"
)

type TimerKind string

const (
	TimerKindStudy TimerKind = "study"
	TimerKindBreak TimerKind = "break"
)

type TimerSession struct {
	ID              uuid.UUID  `json:"id"`
	StudySessionID  uuid.UUID  `json:"studySessionId"`
	UserID          uuid.UUID  `json:"userId"`
	UserName        string     `json:"userName"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	DurationMinutes int        `json:"durationMinutes"`
	SessionType     TimerKind  `json:"sessionType"`
	IsCompleted     bool       `json:"isCompleted"`
	Notes           *string    `json:"notes,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Open reports whether the timer is still running.
func (t *TimerSession) Open() bool {
	return t.EndTime == nil
}

// TimerResult is the start/end payload; declines carry Success=false and Message.
type TimerResult struct {
	Success         bool       `json:"success"`
	Message         string     `json:"message,omitempty"`
	TimerSessionID  *uuid.UUID `json:"timerSessionId,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	DurationMinutes *int       `json:"durationMinutes,omitempty"`
	SessionType     TimerKind  `json:"sessionType,omitempty"`
}

type ActiveTimer struct {
	ID             uuid.UUID `json:"id"`
	SessionType    TimerKind `json:"sessionType"`
	StartTime      time.Time `json:"startTime"`
	ElapsedMinutes int       `json:"elapsedMinutes"`
}

type TimerStats struct {
	TotalStudyTimeMinutes  int            `json:"totalStudyTimeMinutes"`
	TotalBreakTimeMinutes  int            `json:"totalBreakTimeMinutes"`
	CompletedStudySessions int            `json:"completedStudySessions"`
	CompletedBreakSessions int            `json:"completedBreakSessions"`
	TotalSessions          int            `json:"totalSessions"`
	ActiveSession          *ActiveTimer   `json:"activeSession"`
	Sessions               []TimerSession `json:"sessions"`
}

type ParticipantStudyTime struct {
	UserID            uuid.UUID `json:"userId"`
	UserName          string    `json:"userName"`
	TotalStudyMinutes int       `json:"totalStudyMinutes"`
}

type SessionStudyTotal struct {
	SessionID         uuid.UUID `json:"sessionId"`
	TotalStudyMinutes int       `json:"totalStudyMinutes"`
}

type RecalculateResult struct {
	UpdatedCount int                 `json:"updatedCount"`
	Totals       []SessionStudyTotal `json:"totals"`
}

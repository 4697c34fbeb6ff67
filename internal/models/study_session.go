package models

import (
	"time"

	"github.com/google/uuid"
)

type TimerType string

const (
	TimerPomodoro   TimerType = "pomodoro"
	TimerFlowmodoro TimerType = "flowmodoro"
	TimerCustom     TimerType = "custom"
)

func (t TimerType) Valid() bool {
	switch t {
	case TimerPomodoro, TimerFlowmodoro, TimerCustom:
		return true
	}
	return false
}

type StudySession struct {
	ID                  uuid.UUID  `json:"id"`
	Title               string     `json:"title"`
	Description         *string    `json:"description,omitempty"`
	CreatorUserID       uuid.UUID  `json:"creatorUserId"`
	CreatedAt           time.Time  `json:"createdAt"`
	StartedAt           *time.Time `json:"startedAt,omitempty"`
	EndedAt             *time.Time `json:"endedAt,omitempty"`
	IsActive            bool       `json:"isActive"`
	IsPublic            bool       `json:"isPublic"`
	MaxParticipants     int        `json:"maxParticipants"`
	CurrentParticipants int        `json:"currentParticipants"`
	TimerType           TimerType  `json:"timerType"`
	StudyDuration       int        `json:"studyDuration"`
	BreakDuration       int        `json:"breakDuration"`
	InviteCode          *string    `json:"inviteCode,omitempty"`
}

type Participant struct {
	ID             uuid.UUID  `json:"id"`
	StudySessionID uuid.UUID  `json:"studySessionId"`
	UserID         uuid.UUID  `json:"userId"`
	UserName       string     `json:"userName"`
	JoinedAt       time.Time  `json:"joinedAt"`
	LeftAt         *time.Time `json:"leftAt,omitempty"`
	IsHost         bool       `json:"isHost"`
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty"`
}

// Active reports whether the participant has not left.
func (p *Participant) Active() bool {
	return p.LeftAt == nil
}

type CreateSessionRequest struct {
	Title           string    `json:"title"`
	Description     *string   `json:"description"`
	IsPublic        bool      `json:"isPublic"`
	MaxParticipants int       `json:"maxParticipants"`
	TimerType       TimerType `json:"timerType"`
	StudyDuration   int       `json:"studyDuration"`
	BreakDuration   int       `json:"breakDuration"`
}

type CreateSessionResult struct {
	SessionID  uuid.UUID `json:"sessionId"`
	InviteCode *string   `json:"inviteCode,omitempty"`
}

type JoinSessionRequest struct {
	SessionID  *uuid.UUID `json:"sessionId"`
	InviteCode string     `json:"inviteCode"`
}

// JoinResult is returned for both accepted and declined joins.
type JoinResult struct {
	Success   bool       `json:"success"`
	SessionID *uuid.UUID `json:"sessionId,omitempty"`
	Message   string     `json:"message,omitempty"`
}

type LeaveResult struct {
	Success       bool       `json:"success"`
	Message       string     `json:"message"`
	NewHostUserID *uuid.UUID `json:"newHostUserId,omitempty"`
	SessionEnded  bool       `json:"sessionEnded"`
}

type SessionSummary struct {
	StudySession
	RequiresCode bool `json:"requiresCode"`
}

type SessionDetail struct {
	StudySession
	Participants []Participant `json:"participants"`
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const JobTypeAnalyticsRefresh = "analytics-refresh"

type Job struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         string          `json:"type"`
	ReferenceID  *uuid.UUID      `json:"reference_id"`
	ConfigJSON   json.RawMessage `json:"config"`
	Status       string          `json:"status"` // "pending" | "processing" | "completed" | "failed"
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventHostTransferred   = "host_transferred"
	EventSessionEnded      = "session_ended"
	EventTimerStarted      = "timer_started"
	EventTimerEnded        = "timer_ended"
)

type SessionEvent struct {
	SessionID uuid.UUID  `json:"sessionId"`
	UserID    uuid.UUID  `json:"userId"`
	UserName  string     `json:"userName,omitempty"`
	TimerID   *uuid.UUID `json:"timerId,omitempty"`
	TimerKind TimerKind  `json:"timerKind,omitempty"`
	Minutes   *int       `json:"minutes,omitempty"`
	At        time.Time  `json:"at"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type Todo struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"userId"`
	StudySessionID *uuid.UUID `json:"studySessionId,omitempty"`
	Task           string     `json:"task"`
	IsCompleted    bool       `json:"isCompleted"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	SortOrder      int        `json:"sortOrder"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type CreateTodoRequest struct {
	Task           string     `json:"task"`
	StudySessionID *uuid.UUID `json:"studySessionId"`
	SortOrder      *int       `json:"sortOrder"`
}

type UpdateTodoRequest struct {
	Task        *string `json:"task"`
	IsCompleted *bool   `json:"isCompleted"`
	SortOrder   *int    `json:"sortOrder"`
}

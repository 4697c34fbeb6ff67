package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ChatPathType int

const (
	PathStudyTimeAnalysis ChatPathType = iota + 1
	PathFocusAndPauses
	PathFlashcardProgress
	PathTodoProductivity
	PathWeeklySummary
	PathMockExamReview
)

type ChatConversation struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"userId"`
	PathType    ChatPathType `json:"pathType"`
	CurrentStep int          `json:"currentStep"`
	IsCompleted bool         `json:"isCompleted"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

type ChatMessage struct {
	ID             uuid.UUID       `json:"id"`
	ConversationID uuid.UUID       `json:"conversationId"`
	Content        string          `json:"content"`
	IsFromUser     bool            `json:"isFromUser"`
	DataContext    json.RawMessage `json:"dataContext,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type ChatPathInfo struct {
	Type        ChatPathType `json:"type"`
	Title       string       `json:"title"`
	Icon        string       `json:"icon"`
	Description string       `json:"description"`
	Questions   []string     `json:"questions"`
}

type StartConversationRequest struct {
	PathType ChatPathType `json:"pathType"`
}

type SendMessageRequest struct {
	Message string `json:"message"`
}

type ChatReply struct {
	Response    string `json:"response"`
	CurrentStep int    `json:"currentStep"`
	IsCompleted bool   `json:"isCompleted"`
}

type ConversationDetail struct {
	ChatConversation
	Messages []ChatMessage `json:"messages"`
}

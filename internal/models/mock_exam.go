package models

import (
	"time"

	"github.com/google/uuid"
)

type MockExam struct {
	ID             uuid.UUID          `json:"id"`
	UserID         uuid.UUID          `json:"userId"`
	Subject        string             `json:"subject"`
	Score          int                `json:"score"`
	TotalQuestions int                `json:"totalQuestions"`
	Sources        []string           `json:"sources"`
	TakenAt        time.Time          `json:"takenAt"`
	Questions      []MockExamQuestion `json:"questions,omitempty"`
}

// Percent returns the score as a percentage of the question count.
func (e *MockExam) Percent() float64 {
	if e.TotalQuestions == 0 {
		return 0
	}
	return float64(e.Score) / float64(e.TotalQuestions) * 100
}

type MockExamQuestion struct {
	ID            uuid.UUID `json:"id"`
	MockExamID    uuid.UUID `json:"mockExamId"`
	Position      int       `json:"position"`
	QuestionText  string    `json:"questionText"`
	Options       []string  `json:"options"`
	CorrectAnswer string    `json:"correctAnswer"`
	UserAnswer    string    `json:"userAnswer"`
	IsCorrect     bool      `json:"isCorrect"`
}

// GeneratedQuestion is a question as produced by the model, before answering.
type GeneratedQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// GenerateMockExamRequest draws on the notes in NoteIDs, or on every note
// filed under CategoryID. Text is appended to whatever the notes supply.
type GenerateMockExamRequest struct {
	Subject    string      `json:"subject"`
	Text       string      `json:"text"`
	Sources    []string    `json:"sources"`
	NoteIDs    []uuid.UUID `json:"noteIds"`
	CategoryID *uuid.UUID  `json:"categoryId"`
}

type GeneratedMockExam struct {
	Subject   string              `json:"subject"`
	Sources   []string            `json:"sources"`
	Questions []GeneratedQuestion `json:"questions"`
}

type AnsweredQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	UserAnswer    string   `json:"userAnswer"`
}

type SubmitMockExamRequest struct {
	Subject   string             `json:"subject"`
	Sources   []string           `json:"sources"`
	Questions []AnsweredQuestion `json:"questions"`
}

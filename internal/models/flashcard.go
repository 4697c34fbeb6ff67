package models

import (
	"time"

	"github.com/google/uuid"
)

type FlashcardDeck struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"userId"`
	Title      string    `json:"title"`
	SourceText string    `json:"-"`
	CardCount  int       `json:"cardCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

type FlashcardCard struct {
	ID             uuid.UUID  `json:"id"`
	DeckID         uuid.UUID  `json:"deckId"`
	Front          string     `json:"front"`
	Back           string     `json:"back"`
	IntervalDays   int        `json:"intervalDays"`
	EaseFactor     float64    `json:"easeFactor"`
	Repetitions    int        `json:"repetitions"`
	NextReviewAt   time.Time  `json:"nextReviewAt"`
	LastReviewedAt *time.Time `json:"lastReviewedAt,omitempty"`
}

type DeckDetail struct {
	FlashcardDeck
	Cards []FlashcardCard `json:"cards"`
}

// GenerateFlashcardsRequest takes its source from NoteID when set,
// otherwise from Text.
type GenerateFlashcardsRequest struct {
	Title    string     `json:"title"`
	Text     string     `json:"text"`
	NoteID   *uuid.UUID `json:"noteId"`
	NumCards int        `json:"numCards"`
}

type CardRatingRequest struct {
	Rating int `json:"rating"` // 0=Again, 1=Hard, 2=Good, 3=Easy
}

type DeckStats struct {
	TotalCards  int     `json:"totalCards"`
	Mastered    int     `json:"mastered"`
	Learning    int     `json:"learning"`
	New         int     `json:"new"`
	DueToday    int     `json:"dueToday"`
	MasteryRate float64 `json:"masteryRate"`
}

// CardSchedule is the SM-2 state of a card.
type CardSchedule struct {
	IntervalDays int
	EaseFactor   float64
	Repetitions  int
}

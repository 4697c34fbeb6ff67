package models

import (
	"time"

	"github.com/google/uuid"
)

// Note is a user's text-only study note.
type Note struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"userId"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	CategoryIDs []uuid.UUID `json:"categoryIds"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type Category struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Name      string    `json:"name"`
	NoteCount int       `json:"noteCount"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateNoteRequest struct {
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	CategoryIDs []uuid.UUID `json:"categoryIds"`
}

// UpdateNoteRequest is a partial update. A non-nil CategoryIDs replaces
// every category of the note.
type UpdateNoteRequest struct {
	Title       *string      `json:"title"`
	Content     *string      `json:"content"`
	CategoryIDs *[]uuid.UUID `json:"categoryIds"`
}

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

// SourceMaterial is the text a generator works from plus the names of the
// notes it came from.
type SourceMaterial struct {
	Text  string
	Names []string
	Label string
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"suzy-backend/internal/models"
	"suzy-backend/internal/repository"
)

const (
	categoryNameConstraint = "uq_categories_user_name"
	maxNoteTitle           = 200
	maxNoteContent         = 100000
	maxCategoryName        = 100
	maxSourceNotes         = 20

	msgNoteNotFound     = "Note not found"
	msgCategoryNotFound = "Category not found"
)

// NoteSource turns the caller's notes into generator input.
type NoteSource interface {
	ResolveSources(ctx context.Context, userID uuid.UUID, noteIDs []uuid.UUID, categoryID *uuid.UUID) (*models.SourceMaterial, error)
}

type NoteService struct {
	repo repository.NoteRepository
}

func NewNoteService(repo repository.NoteRepository) *NoteService {
	return &NoteService{repo: repo}
}

func validateNote(title, content string) (string, string, error) {
	title, content = strings.TrimSpace(title), strings.TrimSpace(content)
	fields := map[string]string{}
	switch {
	case title == "":
		fields["title"] = "Title is required"
	case utf8.RuneCountInString(title) > maxNoteTitle:
		fields["title"] = "Title must be at most 200 characters"
	}
	switch {
	case content == "":
		fields["content"] = "Content is required"
	case utf8.RuneCountInString(content) > maxNoteContent:
		fields["content"] = "Content must be at most 100000 characters"
	}
	if len(fields) > 0 {
		return "", "", &ValidationError{Fields: fields}
	}
	return title, content, nil
}

// ownedCategories checks every id names one of the caller's categories and
// drops duplicates.
func (s *NoteService) ownedCategories(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return []uuid.UUID{}, nil
	}
	categories, err := s.repo.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	owned := make(map[uuid.UUID]bool, len(categories))
	for _, c := range categories {
		owned[c.ID] = true
	}

	seen := map[uuid.UUID]bool{}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !owned[id] {
			return nil, &ValidationError{Fields: map[string]string{"categoryIds": "Unknown category " + id.String()}}
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *NoteService) CreateNote(ctx context.Context, userID uuid.UUID, req models.CreateNoteRequest) (*models.Note, error) {
	title, content, err := validateNote(req.Title, req.Content)
	if err != nil {
		return nil, err
	}
	categoryIDs, err := s.ownedCategories(ctx, userID, req.CategoryIDs)
	if err != nil {
		return nil, err
	}

	note := &models.Note{UserID: userID, Title: title, Content: content, CategoryIDs: categoryIDs}
	if err := s.repo.CreateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	return note, nil
}

func (s *NoteService) ListNotes(ctx context.Context, userID uuid.UUID, categoryID *uuid.UUID) ([]models.Note, error) {
	notes, err := s.repo.ListNotes(ctx, userID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

func (s *NoteService) GetNote(ctx context.Context, userID, id uuid.UUID) (*models.Note, error) {
	note, err := s.repo.GetNote(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: msgNoteNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return note, nil
}

func (s *NoteService) UpdateNote(ctx context.Context, userID, id uuid.UUID, req models.UpdateNoteRequest) (*models.Note, error) {
	note, err := s.GetNote(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	title, content := note.Title, note.Content
	if req.Title != nil {
		title = *req.Title
	}
	if req.Content != nil {
		content = *req.Content
	}
	if note.Title, note.Content, err = validateNote(title, content); err != nil {
		return nil, err
	}
	if req.CategoryIDs != nil {
		if note.CategoryIDs, err = s.ownedCategories(ctx, userID, *req.CategoryIDs); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateNote(ctx, note); errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: msgNoteNotFound}
	} else if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return note, nil
}

func (s *NoteService) DeleteNote(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.DeleteNote(ctx, id, userID); errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: msgNoteNotFound}
	} else if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

func (s *NoteService) CreateCategory(ctx context.Context, userID uuid.UUID, req models.CreateCategoryRequest) (*models.Category, error) {
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return nil, &ValidationError{Fields: map[string]string{"name": "Category name cannot be empty"}}
	case utf8.RuneCountInString(name) > maxCategoryName:
		return nil, &ValidationError{Fields: map[string]string{"name": "Category name must be at most 100 characters"}}
	}

	category := &models.Category{UserID: userID, Name: name}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		if repository.IsUniqueViolation(err, categoryNameConstraint) {
			return nil, &ConflictError{Message: "A category with this name already exists"}
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

func (s *NoteService) ListCategories(ctx context.Context, userID uuid.UUID) ([]models.Category, error) {
	categories, err := s.repo.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// DeleteCategory unfiles the category's notes without deleting them.
func (s *NoteService) DeleteCategory(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.DeleteCategory(ctx, id, userID); errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: msgCategoryNotFound}
	} else if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// ResolveSources gathers the caller's notes named by noteIDs, or every note
// filed under categoryID, into one block of text. Other users' notes are
// reported as not found.
func (s *NoteService) ResolveSources(ctx context.Context, userID uuid.UUID, noteIDs []uuid.UUID, categoryID *uuid.UUID) (*models.SourceMaterial, error) {
	material := &models.SourceMaterial{}
	var notes []models.Note

	switch {
	case len(noteIDs) > 0:
		if len(noteIDs) > maxSourceNotes {
			return nil, &ValidationError{Fields: map[string]string{"noteIds": "At most 20 notes can be used at once"}}
		}
		found, err := s.repo.GetNotesByIDs(ctx, userID, noteIDs)
		if err != nil {
			return nil, fmt.Errorf("get notes: %w", err)
		}
		byID := make(map[uuid.UUID]models.Note, len(found))
		for _, n := range found {
			byID[n.ID] = n
		}
		seen := map[uuid.UUID]bool{}
		for _, id := range noteIDs {
			n, ok := byID[id]
			if !ok {
				return nil, &NotFoundError{Message: msgNoteNotFound}
			}
			if !seen[id] {
				seen[id] = true
				notes = append(notes, n)
			}
		}
		if len(notes) == 1 {
			material.Label = notes[0].Title
		}

	case categoryID != nil:
		category, err := s.repo.GetCategory(ctx, *categoryID, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: msgCategoryNotFound}
		}
		if err != nil {
			return nil, fmt.Errorf("get category: %w", err)
		}
		if notes, err = s.repo.ListNotes(ctx, userID, categoryID); err != nil {
			return nil, fmt.Errorf("list notes: %w", err)
		}
		if len(notes) == 0 {
			return nil, &ValidationError{Fields: map[string]string{"categoryId": "This category has no notes"}}
		}
		if len(notes) > maxSourceNotes {
			notes = notes[:maxSourceNotes]
		}
		material.Label = category.Name

	default:
		return nil, &ValidationError{Fields: map[string]string{"noteIds": "Select at least one note or a category"}}
	}

	var b strings.Builder
	material.Names = make([]string, 0, len(notes))
	for i, n := range notes {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## ")
		b.WriteString(n.Title)
		b.WriteString("\n")
		b.WriteString(n.Content)
		material.Names = append(material.Names, n.Title)
	}
	material.Text = b.String()
	return material, nil
}

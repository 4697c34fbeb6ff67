package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"suzy-backend/internal/models"
	"suzy-backend/internal/repository"
)

const maxTaskLength = 500

type TodoService struct {
	todos    repository.TodoRepository
	sessions repository.SessionStore
	refresh  RefreshEnqueuer
	now      func() time.Time
}

func NewTodoService(todos repository.TodoRepository, sessions repository.SessionStore, refresh RefreshEnqueuer) *TodoService {
	return &TodoService{todos: todos, sessions: sessions, refresh: refresh, now: time.Now}
}

func validateTask(task string) (string, error) {
	task = strings.TrimSpace(task)
	switch {
	case task == "":
		return "", &ValidationError{Fields: map[string]string{"task": "Task is required"}}
	case utf8.RuneCountInString(task) > maxTaskLength:
		return "", &ValidationError{Fields: map[string]string{"task": "Task must be at most 500 characters"}}
	}
	return task, nil
}

// List returns the caller's todos for a session, or the ones not tied to
// any session when sessionID is nil.
func (s *TodoService) List(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID) ([]models.Todo, error) {
	var (
		todos []models.Todo
		err   error
	)
	if sessionID != nil {
		todos, err = s.todos.ListBySession(ctx, userID, *sessionID)
	} else {
		todos, err = s.todos.ListUnscoped(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

func (s *TodoService) Create(ctx context.Context, userID uuid.UUID, req models.CreateTodoRequest) (*models.Todo, error) {
	task, err := validateTask(req.Task)
	if err != nil {
		return nil, err
	}

	if req.StudySessionID != nil {
		p, err := s.sessions.GetParticipant(ctx, *req.StudySessionID, userID)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !p.Active()) {
			return nil, &ForbiddenError{Message: msgNotParticipant}
		}
		if err != nil {
			return nil, fmt.Errorf("check participant: %w", err)
		}
	}

	todo := &models.Todo{UserID: userID, StudySessionID: req.StudySessionID, Task: task}
	if req.SortOrder != nil {
		todo.SortOrder = *req.SortOrder
	}
	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}
	return todo, nil
}

// Update applies a partial update. Toggling completion stamps or clears
// completed_at and schedules an analytics refresh.
func (s *TodoService) Update(ctx context.Context, userID, id uuid.UUID, req models.UpdateTodoRequest) (*models.Todo, error) {
	todo, err := s.todos.GetByID(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Todo not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("get todo: %w", err)
	}

	if req.Task != nil {
		task, err := validateTask(*req.Task)
		if err != nil {
			return nil, err
		}
		todo.Task = task
	}
	if req.SortOrder != nil {
		todo.SortOrder = *req.SortOrder
	}

	completionChanged := req.IsCompleted != nil && *req.IsCompleted != todo.IsCompleted
	if completionChanged {
		todo.IsCompleted = *req.IsCompleted
		if todo.IsCompleted {
			now := s.now()
			todo.CompletedAt = &now
		} else {
			todo.CompletedAt = nil
		}
	}

	if err := s.todos.Update(ctx, todo); errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Todo not found"}
	} else if err != nil {
		return nil, fmt.Errorf("update todo: %w", err)
	}

	if completionChanged {
		s.refresh.Enqueue(ctx, userID, "todo_completion")
	}
	return todo, nil
}

func (s *TodoService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.todos.Delete(ctx, id, userID); errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: "Todo not found"}
	} else if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

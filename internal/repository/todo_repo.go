package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"suzy-backend/internal/models"
)

type TodoRepository interface {
	ListBySession(ctx context.Context, userID, sessionID uuid.UUID) ([]models.Todo, error)
	ListUnscoped(ctx context.Context, userID uuid.UUID) ([]models.Todo, error)
	ListCreatedBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Todo, error)
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Todo, error)
	Create(ctx context.Context, t *models.Todo) error
	Update(ctx context.Context, t *models.Todo) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type TodoRepo struct {
	pool *pgxpool.Pool
}

func NewTodoRepo(pool *pgxpool.Pool) *TodoRepo {
	return &TodoRepo{pool: pool}
}

const todoColumns = `id, user_id, study_session_id, task, is_completed, completed_at, sort_order, created_at, updated_at`

func scanTodo(row scanner) (*models.Todo, error) {
	t := &models.Todo{}
	err := row.Scan(&t.ID, &t.UserID, &t.StudySessionID, &t.Task, &t.IsCompleted, &t.CompletedAt,
		&t.SortOrder, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (r *TodoRepo) list(ctx context.Context, query string, args ...any) ([]models.Todo, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := []models.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, *t)
	}
	return todos, rows.Err()
}

func (r *TodoRepo) ListBySession(ctx context.Context, userID, sessionID uuid.UUID) ([]models.Todo, error) {
	return r.list(ctx, "SELECT "+todoColumns+` FROM todo_items
		WHERE user_id = $1 AND study_session_id = $2
		ORDER BY sort_order ASC, created_at ASC`, userID, sessionID)
}

func (r *TodoRepo) ListUnscoped(ctx context.Context, userID uuid.UUID) ([]models.Todo, error) {
	return r.list(ctx, "SELECT "+todoColumns+` FROM todo_items
		WHERE user_id = $1 AND study_session_id IS NULL
		ORDER BY sort_order ASC, created_at ASC`, userID)
}

func (r *TodoRepo) ListCreatedBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Todo, error) {
	return r.list(ctx, "SELECT "+todoColumns+` FROM todo_items
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC`, userID, from, to)
}

func (r *TodoRepo) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Todo, error) {
	return scanTodo(r.pool.QueryRow(ctx, "SELECT "+todoColumns+" FROM todo_items WHERE id = $1 AND user_id = $2", id, userID))
}

func (r *TodoRepo) Create(ctx context.Context, t *models.Todo) error {
	t.ID = uuid.New()
	query := `INSERT INTO todo_items (id, user_id, study_session_id, task, sort_order)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query, t.ID, t.UserID, t.StudySessionID, t.Task, t.SortOrder).
		Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TodoRepo) Update(ctx context.Context, t *models.Todo) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE todo_items
		SET task = $1, is_completed = $2, completed_at = $3, sort_order = $4, updated_at = NOW()
		WHERE id = $5 AND user_id = $6
		RETURNING updated_at
	`, t.Task, t.IsCompleted, t.CompletedAt, t.SortOrder, t.ID, t.UserID).Scan(&t.UpdatedAt)
	return notFound(err)
}

func (r *TodoRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return requireAffected(r.pool.Exec(ctx, "DELETE FROM todo_items WHERE id = $1 AND user_id = $2", id, userID))
}

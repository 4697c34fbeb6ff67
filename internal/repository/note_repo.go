package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"suzy-backend/internal/models"
)

type NoteRepository interface {
	CreateNote(ctx context.Context, n *models.Note) error
	GetNote(ctx context.Context, id, userID uuid.UUID) (*models.Note, error)
	ListNotes(ctx context.Context, userID uuid.UUID, categoryID *uuid.UUID) ([]models.Note, error)
	GetNotesByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.Note, error)
	UpdateNote(ctx context.Context, n *models.Note) error
	DeleteNote(ctx context.Context, id, userID uuid.UUID) error

	CreateCategory(ctx context.Context, c *models.Category) error
	GetCategory(ctx context.Context, id, userID uuid.UUID) (*models.Category, error)
	ListCategories(ctx context.Context, userID uuid.UUID) ([]models.Category, error)
	DeleteCategory(ctx context.Context, id, userID uuid.UUID) error
}

type NoteRepo struct {
	pool *pgxpool.Pool
}

func NewNoteRepo(pool *pgxpool.Pool) *NoteRepo {
	return &NoteRepo{pool: pool}
}

const noteSelect = `
	SELECT n.id, n.user_id, n.title, n.content, n.created_at, n.updated_at,
		COALESCE(array_agg(nc.category_id) FILTER (WHERE nc.category_id IS NOT NULL), '{}')
	FROM notes n
	LEFT JOIN note_categories nc ON nc.note_id = n.id`

func scanNote(row scanner) (*models.Note, error) {
	n := &models.Note{}
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt, &n.CategoryIDs)
	if err != nil {
		return nil, notFound(err)
	}
	return n, nil
}

func (r *NoteRepo) listNotes(ctx context.Context, query string, args ...any) ([]models.Note, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

func setNoteCategories(ctx context.Context, tx pgx.Tx, noteID uuid.UUID, categoryIDs []uuid.UUID) error {
	if _, err := tx.Exec(ctx, "DELETE FROM note_categories WHERE note_id = $1", noteID); err != nil {
		return err
	}
	for _, id := range categoryIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO note_categories (note_id, category_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, noteID, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *NoteRepo) CreateNote(ctx context.Context, n *models.Note) error {
	n.ID = uuid.New()
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO notes (id, user_id, title, content) VALUES ($1, $2, $3, $4)
			RETURNING created_at, updated_at
		`, n.ID, n.UserID, n.Title, n.Content).Scan(&n.CreatedAt, &n.UpdatedAt)
		if err != nil {
			return err
		}
		return setNoteCategories(ctx, tx, n.ID, n.CategoryIDs)
	})
}

func (r *NoteRepo) GetNote(ctx context.Context, id, userID uuid.UUID) (*models.Note, error) {
	return scanNote(r.pool.QueryRow(ctx, noteSelect+`
		WHERE n.id = $1 AND n.user_id = $2
		GROUP BY n.id`, id, userID))
}

// ListNotes returns the user's notes, newest edit first. A non-nil
// categoryID keeps only notes filed under it.
func (r *NoteRepo) ListNotes(ctx context.Context, userID uuid.UUID, categoryID *uuid.UUID) ([]models.Note, error) {
	return r.listNotes(ctx, noteSelect+`
		WHERE n.user_id = $1 AND ($2::uuid IS NULL OR EXISTS (
			SELECT 1 FROM note_categories f WHERE f.note_id = n.id AND f.category_id = $2
		))
		GROUP BY n.id
		ORDER BY n.updated_at DESC`, userID, categoryID)
}

func (r *NoteRepo) GetNotesByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.Note, error) {
	return r.listNotes(ctx, noteSelect+`
		WHERE n.user_id = $1 AND n.id = ANY($2)
		GROUP BY n.id
		ORDER BY n.created_at ASC`, userID, ids)
}

func (r *NoteRepo) UpdateNote(ctx context.Context, n *models.Note) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE notes SET title = $1, content = $2, updated_at = NOW()
			WHERE id = $3 AND user_id = $4
			RETURNING updated_at
		`, n.Title, n.Content, n.ID, n.UserID).Scan(&n.UpdatedAt)
		if err != nil {
			return notFound(err)
		}
		return setNoteCategories(ctx, tx, n.ID, n.CategoryIDs)
	})
}

func (r *NoteRepo) DeleteNote(ctx context.Context, id, userID uuid.UUID) error {
	return requireAffected(r.pool.Exec(ctx, "DELETE FROM notes WHERE id = $1 AND user_id = $2", id, userID))
}

// Categories

const categorySelect = `
	SELECT c.id, c.user_id, c.name, c.created_at, COUNT(nc.note_id)
	FROM categories c
	LEFT JOIN note_categories nc ON nc.category_id = c.id`

func scanCategory(row scanner) (*models.Category, error) {
	c := &models.Category{}
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt, &c.NoteCount); err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (r *NoteRepo) CreateCategory(ctx context.Context, c *models.Category) error {
	c.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO categories (id, user_id, name) VALUES ($1, $2, $3)
		RETURNING created_at
	`, c.ID, c.UserID, c.Name).Scan(&c.CreatedAt)
}

func (r *NoteRepo) GetCategory(ctx context.Context, id, userID uuid.UUID) (*models.Category, error) {
	return scanCategory(r.pool.QueryRow(ctx, categorySelect+`
		WHERE c.id = $1 AND c.user_id = $2
		GROUP BY c.id`, id, userID))
}

func (r *NoteRepo) ListCategories(ctx context.Context, userID uuid.UUID) ([]models.Category, error) {
	rows, err := r.pool.Query(ctx, categorySelect+`
		WHERE c.user_id = $1
		GROUP BY c.id
		ORDER BY c.name ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// DeleteCategory removes the category and its note mappings. The notes stay.
func (r *NoteRepo) DeleteCategory(ctx context.Context, id, userID uuid.UUID) error {
	return requireAffected(r.pool.Exec(ctx, "DELETE FROM categories WHERE id = $1 AND user_id = $2", id, userID))
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"suzy-backend/internal/models"
)

type MockExamRepository interface {
	Create(ctx context.Context, e *models.MockExam) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.MockExam, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.MockExam, error)
}

type MockExamRepo struct {
	pool *pgxpool.Pool
}

func NewMockExamRepo(pool *pgxpool.Pool) *MockExamRepo {
	return &MockExamRepo{pool: pool}
}

func (r *MockExamRepo) Create(ctx context.Context, e *models.MockExam) error {
	e.ID = uuid.New()
	if e.Sources == nil {
		e.Sources = []string{}
	}

	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO mock_exams (id, user_id, subject, score, total_questions, sources)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING taken_at
		`, e.ID, e.UserID, e.Subject, e.Score, e.TotalQuestions, e.Sources).Scan(&e.TakenAt)
		if err != nil {
			return err
		}

		for i := range e.Questions {
			q := &e.Questions[i]
			q.ID = uuid.New()
			q.MockExamID = e.ID
			_, err := tx.Exec(ctx, `
				INSERT INTO mock_exam_questions (id, mock_exam_id, position, question_text, options,
					correct_answer, user_answer, is_correct)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, q.ID, e.ID, q.Position, q.QuestionText, q.Options, q.CorrectAnswer, q.UserAnswer, q.IsCorrect)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ListByUser returns exams newest first, without their questions.
func (r *MockExamRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.MockExam, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, subject, score, total_questions, sources, taken_at
		FROM mock_exams WHERE user_id = $1 ORDER BY taken_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exams := []models.MockExam{}
	for rows.Next() {
		var e models.MockExam
		if err := rows.Scan(&e.ID, &e.UserID, &e.Subject, &e.Score, &e.TotalQuestions, &e.Sources, &e.TakenAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

func (r *MockExamRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.MockExam, error) {
	e := &models.MockExam{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, subject, score, total_questions, sources, taken_at
		FROM mock_exams WHERE id = $1
	`, id).Scan(&e.ID, &e.UserID, &e.Subject, &e.Score, &e.TotalQuestions, &e.Sources, &e.TakenAt)
	if err != nil {
		return nil, notFound(err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, mock_exam_id, position, question_text, options, correct_answer, user_answer, is_correct
		FROM mock_exam_questions WHERE mock_exam_id = $1 ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var q models.MockExamQuestion
		err := rows.Scan(&q.ID, &q.MockExamID, &q.Position, &q.QuestionText, &q.Options,
			&q.CorrectAnswer, &q.UserAnswer, &q.IsCorrect)
		if err != nil {
			return nil, err
		}
		e.Questions = append(e.Questions, q)
	}
	return e, rows.Err()
}

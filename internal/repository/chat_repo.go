package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"suzy-backend/internal/models"
)

type ChatRepository interface {
	CreateConversation(ctx context.Context, c *models.ChatConversation) error
	GetConversation(ctx context.Context, id uuid.UUID) (*models.ChatConversation, error)
	UpdateProgress(ctx context.Context, c *models.ChatConversation) error
	AddMessage(ctx context.Context, m *models.ChatMessage) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.ChatMessage, error)
}

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func (r *ChatRepo) CreateConversation(ctx context.Context, c *models.ChatConversation) error {
	c.ID = uuid.New()
	if c.CurrentStep == 0 {
		c.CurrentStep = 1
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO chat_conversations (id, user_id, path_type, current_step)
		VALUES ($1, $2, $3, $4) RETURNING started_at
	`, c.ID, c.UserID, c.PathType, c.CurrentStep).Scan(&c.StartedAt)
}

func (r *ChatRepo) GetConversation(ctx context.Context, id uuid.UUID) (*models.ChatConversation, error) {
	c := &models.ChatConversation{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, path_type, current_step, is_completed, started_at, completed_at
		FROM chat_conversations WHERE id = $1
	`, id).Scan(&c.ID, &c.UserID, &c.PathType, &c.CurrentStep, &c.IsCompleted, &c.StartedAt, &c.CompletedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (r *ChatRepo) UpdateProgress(ctx context.Context, c *models.ChatConversation) error {
	return requireAffected(r.pool.Exec(ctx, `
		UPDATE chat_conversations SET current_step = $1, is_completed = $2, completed_at = $3
		WHERE id = $4
	`, c.CurrentStep, c.IsCompleted, c.CompletedAt, c.ID))
}

func (r *ChatRepo) AddMessage(ctx context.Context, m *models.ChatMessage) error {
	m.ID = uuid.New()
	var dataContext any
	if len(m.DataContext) > 0 {
		dataContext = m.DataContext
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (id, conversation_id, content, is_from_user, data_context)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at
	`, m.ID, m.ConversationID, m.Content, m.IsFromUser, dataContext).Scan(&m.CreatedAt)
}

func (r *ChatRepo) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, content, is_from_user, data_context, created_at
		FROM chat_messages WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		var dataContext []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Content, &m.IsFromUser, &dataContext, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.DataContext = dataContext
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

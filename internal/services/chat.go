package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"suzy-backend/internal/models"
	"suzy-backend/internal/repository"
)

const (
	chatFallbackText = "Sorry, I couldn't generate a response right now. Please try again! 😊"
	maxReplyRunes    = 300
)

// analyticsReader is the slice of AnalyticsService the chat snapshots use.
type analyticsReader interface {
	GetTodayAnalytics(ctx context.Context, userID uuid.UUID) (*models.DailyAnalytics, error)
	GetWeeklySummary(ctx context.Context, userID uuid.UUID) (*models.WeeklySummary, error)
	LastSevenDays(ctx context.Context, userID uuid.UUID) ([]models.DailyBreakdown, error)
	RecentTimers(ctx context.Context, userID uuid.UUID, limit int) ([]models.TimerSession, error)
}

type ChatService struct {
	repo       repository.ChatRepository
	analytics  analyticsReader
	todos      repository.TodoRepository
	flashcards repository.FlashcardRepository
	exams      repository.MockExamRepository
	ai         Completer
	now        func() time.Time
}

func NewChatService(
	repo repository.ChatRepository,
	analytics analyticsReader,
	todos repository.TodoRepository,
	flashcards repository.FlashcardRepository,
	exams repository.MockExamRepository,
	ai Completer,
) *ChatService {
	return &ChatService{
		repo:       repo,
		analytics:  analytics,
		todos:      todos,
		flashcards: flashcards,
		exams:      exams,
		ai:         ai,
		now:        time.Now,
	}
}

func (s *ChatService) ListPaths() []models.ChatPathInfo {
	return ListChatPaths()
}

func (s *ChatService) StartConversation(ctx context.Context, userID uuid.UUID, pathType models.ChatPathType) (*models.ChatConversation, error) {
	if _, ok := lookupPath(pathType); !ok {
		return nil, &ValidationError{Fields: map[string]string{"pathType": "Unknown chat path"}}
	}

	conv := &models.ChatConversation{UserID: userID, PathType: pathType, CurrentStep: 1}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

func (s *ChatService) ownedConversation(ctx context.Context, userID, id uuid.UUID) (*models.ChatConversation, error) {
	conv, err := s.repo.GetConversation(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Conversation not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	return conv, nil
}

func (s *ChatService) GetConversation(ctx context.Context, userID, id uuid.UUID) (*models.ConversationDetail, error) {
	conv, err := s.ownedConversation(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return &models.ConversationDetail{ChatConversation: *conv, Messages: messages}, nil
}

func buildChatPrompt(path chatPath, step int, userMessage string, data []byte) string {
	var b strings.Builder

	b.WriteString("You are Suzy, a friendly and motivating AI study assistant.\n\n")
	b.WriteString(`RESPONSE RULES:
- Keep responses under 100 words
- Use a friendly, encouraging tone
- Include relevant emojis (✅ 📊 🕐 🔁 ❗)
- Provide 1 core insight per response
- End with an actionable suggestion when appropriate
`)
	b.WriteString("\nCONVERSATION CONTEXT:\n")
	b.WriteString(fmt.Sprintf("- Chat Path: %s\n", path.info.Title))
	b.WriteString(fmt.Sprintf("- Current Step: %d of %d\n", step, path.questionCount()))
	b.WriteString(fmt.Sprintf("- User Message: %q\n", userMessage))
	b.WriteString("\nUSER DATA:\n")
	b.Write(data)
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Based on the user's data and message, provide a helpful response that follows the conversation path for %s.\n", path.info.Title))
	b.WriteString(path.instruction(step))

	return b.String()
}

// truncateReply caps a reply at maxReplyRunes, ending it with "...".
func truncateReply(text string) string {
	runes := []rune(text)
	if len(runes) <= maxReplyRunes {
		return text
	}
	return string(runes[:maxReplyRunes-3]) + "..."
}

// ProcessMessage records the user's turn, asks the model for Suzy's reply
// and advances the conversation. Completion failures degrade to a fixed
// fallback reply; data access failures are returned.
func (s *ChatService) ProcessMessage(ctx context.Context, userID, conversationID uuid.UUID, message string) (*models.ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &ValidationError{Fields: map[string]string{"message": "Message is required"}}
	}

	conv, err := s.ownedConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	path, ok := lookupPath(conv.PathType)
	if !ok {
		return nil, fmt.Errorf("conversation %s has unknown path %d", conv.ID, conv.PathType)
	}

	if err := s.repo.AddMessage(ctx, &models.ChatMessage{
		ConversationID: conv.ID,
		Content:        message,
		IsFromUser:     true,
	}); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	snapshot, err := path.snapshot(ctx, s, userID)
	if err != nil {
		return nil, fmt.Errorf("gather chat data: %w", err)
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode chat data: %w", err)
	}

	reply := chatFallbackText
	text, err := s.ai.Complete(ctx, buildChatPrompt(path, conv.CurrentStep, message, data))
	switch {
	case err != nil:
		chatFallbacks.Inc()
		log.Error().Err(err).Str("conversationId", conv.ID.String()).Msg("chat completion failed, using fallback")
	case strings.TrimSpace(text) == "":
		chatFallbacks.Inc()
		log.Warn().Str("conversationId", conv.ID.String()).Msg("chat completion empty, using fallback")
	default:
		reply = truncateReply(strings.TrimSpace(text))
	}

	if err := s.repo.AddMessage(ctx, &models.ChatMessage{
		ConversationID: conv.ID,
		Content:        reply,
		IsFromUser:     false,
		DataContext:    data,
	}); err != nil {
		return nil, fmt.Errorf("save reply: %w", err)
	}

	conv.CurrentStep++
	if !conv.IsCompleted && conv.CurrentStep > path.questionCount() {
		now := s.now()
		conv.IsCompleted = true
		conv.CompletedAt = &now
	}
	if err := s.repo.UpdateProgress(ctx, conv); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}

	return &models.ChatReply{Response: reply, CurrentStep: conv.CurrentStep, IsCompleted: conv.IsCompleted}, nil
}

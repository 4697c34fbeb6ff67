package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"suzy-backend/internal/models"
	"suzy-backend/internal/repository"
)

const (
	defaultFlashcards = 5
	maxFlashcards     = 20
)

type FlashcardService struct {
	repo    repository.FlashcardRepository
	notes   NoteSource
	ai      Completer
	refresh RefreshEnqueuer
}

func NewFlashcardService(repo repository.FlashcardRepository, notes NoteSource, ai Completer, refresh RefreshEnqueuer) *FlashcardService {
	return &FlashcardService{repo: repo, notes: notes, ai: ai, refresh: refresh}
}

func buildFlashcardPrompt(numCards int, content string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Generate exactly %d flashcards based on the following note content.\n", numCards))
	b.WriteString("Return the result strictly as a JSON array in the following format:\n")
	b.WriteString(`[
  { "question": "What is ...?", "answer": "..." }
]
`)
	b.WriteString("Questions must be under 20 words. Answers must be under 60 words and self-contained.\n")
	b.WriteString("\n---CONTENT---\n")
	b.WriteString(content)
	b.WriteString("\n---END---\n")

	return b.String()
}

// parseFlashcards reads the model's JSON array, dropping incomplete cards.
func parseFlashcards(raw string, limit int) ([]models.FlashcardCard, error) {
	type cardJSON struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}

	var parsed []cardJSON
	if err := json.Unmarshal([]byte(jsonArray(stripFences(raw))), &parsed); err != nil {
		return nil, fmt.Errorf("decode flashcards: %w", err)
	}

	cards := make([]models.FlashcardCard, 0, len(parsed))
	for _, c := range parsed {
		front, back := strings.TrimSpace(c.Question), strings.TrimSpace(c.Answer)
		if front == "" || back == "" {
			continue
		}
		cards = append(cards, models.FlashcardCard{Front: front, Back: back})
		if len(cards) == limit {
			break
		}
	}
	return cards, nil
}

func (s *FlashcardService) Generate(ctx context.Context, userID uuid.UUID, req models.GenerateFlashcardsRequest) (*models.DeckDetail, error) {
	text := strings.TrimSpace(req.Text)
	title := strings.TrimSpace(req.Title)
	if req.NoteID != nil {
		material, err := s.notes.ResolveSources(ctx, userID, []uuid.UUID{*req.NoteID}, nil)
		if err != nil {
			return nil, err
		}
		text = material.Text
		if title == "" {
			title = material.Label
		}
	}

	fields := map[string]string{}
	if text == "" {
		fields["text"] = "Source text is required"
	}
	if req.NumCards == 0 {
		req.NumCards = defaultFlashcards
	}
	if req.NumCards < 1 || req.NumCards > maxFlashcards {
		fields["numCards"] = "Must be between 1 and 20"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if title == "" {
		title = "Flashcards"
	}

	raw, err := s.ai.Complete(ctx, buildFlashcardPrompt(req.NumCards, text))
	if err != nil {
		log.Error().Err(err).Str("userId", userID.String()).Msg("flashcard generation failed")
		return nil, &UpstreamError{Message: "Failed to generate flashcards, please try again", Err: err}
	}

	cards, err := parseFlashcards(raw, req.NumCards)
	if err != nil || len(cards) == 0 {
		log.Warn().Err(err).Str("userId", userID.String()).Msg("model returned no usable flashcards")
		return nil, &UpstreamError{Message: "The AI response did not contain valid flashcards", Err: err}
	}

	deck := &models.FlashcardDeck{UserID: userID, Title: title, SourceText: text}
	if err := s.repo.CreateDeck(ctx, deck, cards); err != nil {
		return nil, fmt.Errorf("create deck: %w", err)
	}

	log.Info().Str("deckId", deck.ID.String()).Int("cards", len(cards)).Msg("flashcard deck generated")
	return &models.DeckDetail{FlashcardDeck: *deck, Cards: cards}, nil
}

func (s *FlashcardService) ListDecks(ctx context.Context, userID uuid.UUID) ([]models.FlashcardDeck, error) {
	decks, err := s.repo.ListDecks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	return decks, nil
}

func (s *FlashcardService) ownedDeck(ctx context.Context, userID, deckID uuid.UUID) (*models.FlashcardDeck, error) {
	deck, err := s.repo.GetDeck(ctx, deckID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Deck not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("get deck: %w", err)
	}
	if deck.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	return deck, nil
}

func (s *FlashcardService) GetDeck(ctx context.Context, userID, deckID uuid.UUID) (*models.DeckDetail, error) {
	deck, err := s.ownedDeck(ctx, userID, deckID)
	if err != nil {
		return nil, err
	}
	cards, err := s.repo.GetCards(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("get cards: %w", err)
	}
	return &models.DeckDetail{FlashcardDeck: *deck, Cards: cards}, nil
}

func (s *FlashcardService) DeckStats(ctx context.Context, userID, deckID uuid.UUID) (*models.DeckStats, error) {
	if _, err := s.ownedDeck(ctx, userID, deckID); err != nil {
		return nil, err
	}
	stats, err := s.repo.GetDeckStats(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("deck stats: %w", err)
	}
	return stats, nil
}

// nextSchedule is SM-2 on a 0-3 scale (0=Again, 1=Hard, 2=Good, 3=Easy).
func nextSchedule(s models.CardSchedule, rating int) models.CardSchedule {
	if rating < 2 {
		// Again or Hard: reset
		s.Repetitions = 0
		s.IntervalDays = 1
	} else {
		s.Repetitions++
		switch s.Repetitions {
		case 1:
			s.IntervalDays = 1
		case 2:
			s.IntervalDays = 6
		default:
			s.IntervalDays = int(math.Round(float64(s.IntervalDays) * s.EaseFactor))
		}
	}

	// EF' = EF + (0.1 - (3 - rating) * (0.08 + (3 - rating) * 0.02))
	s.EaseFactor = s.EaseFactor + (0.1 - float64(3-rating)*(0.08+float64(3-rating)*0.02))
	if s.EaseFactor < 1.3 {
		s.EaseFactor = 1.3
	}
	return s
}

func (s *FlashcardService) RateCard(ctx context.Context, userID, cardID uuid.UUID, rating int) (*models.FlashcardCard, error) {
	if rating < 0 || rating > 3 {
		return nil, &ValidationError{Fields: map[string]string{"rating": "Must be between 0 and 3"}}
	}

	card, err := s.repo.RateCard(ctx, cardID, userID, rating, func(cur models.CardSchedule) models.CardSchedule {
		return nextSchedule(cur, rating)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Card not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("rate card: %w", err)
	}

	s.refresh.Enqueue(ctx, userID, "flashcard_review")
	return card, nil
}

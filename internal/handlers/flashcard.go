package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"suzy-backend/internal/middleware"
	"suzy-backend/internal/models"
)

type flashcardService interface {
	Generate(ctx context.Context, userID uuid.UUID, req models.GenerateFlashcardsRequest) (*models.DeckDetail, error)
	ListDecks(ctx context.Context, userID uuid.UUID) ([]models.FlashcardDeck, error)
	GetDeck(ctx context.Context, userID, deckID uuid.UUID) (*models.DeckDetail, error)
	DeckStats(ctx context.Context, userID, deckID uuid.UUID) (*models.DeckStats, error)
	RateCard(ctx context.Context, userID, cardID uuid.UUID, rating int) (*models.FlashcardCard, error)
}

type FlashcardHandler struct {
	flashcards flashcardService
}

func NewFlashcardHandler(flashcards flashcardService) *FlashcardHandler {
	return &FlashcardHandler{flashcards: flashcards}
}

func (h *FlashcardHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateFlashcardsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	deck, err := h.flashcards.Generate(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, deck)
}

func (h *FlashcardHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := h.flashcards.ListDecks(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if decks == nil {
		decks = []models.FlashcardDeck{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"decks": decks})
}

func (h *FlashcardHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "deck")
	if !ok {
		return
	}

	deck, err := h.flashcards.GetDeck(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deck)
}

func (h *FlashcardHandler) DeckStats(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "deck")
	if !ok {
		return
	}

	stats, err := h.flashcards.DeckStats(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *FlashcardHandler) RateCard(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "card")
	if !ok {
		return
	}
	var req models.CardRatingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	card, err := h.flashcards.RateCard(r.Context(), middleware.GetUserID(r.Context()), id, req.Rating)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

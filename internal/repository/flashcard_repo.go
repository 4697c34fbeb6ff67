package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"suzy-backend/internal/models"
)

type FlashcardRepository interface {
	CreateDeck(ctx context.Context, d *models.FlashcardDeck, cards []models.FlashcardCard) error
	GetDeck(ctx context.Context, id uuid.UUID) (*models.FlashcardDeck, error)
	ListDecks(ctx context.Context, userID uuid.UUID) ([]models.FlashcardDeck, error)
	GetCards(ctx context.Context, deckID uuid.UUID) ([]models.FlashcardCard, error)
	RateCard(ctx context.Context, cardID, userID uuid.UUID, rating int, next func(models.CardSchedule) models.CardSchedule) (*models.FlashcardCard, error)
	GetDeckStats(ctx context.Context, deckID uuid.UUID) (*models.DeckStats, error)
	CountDecks(ctx context.Context, userID uuid.UUID) (int, error)
	CountReviews(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error)
}

type FlashcardRepo struct {
	pool *pgxpool.Pool
}

func NewFlashcardRepo(pool *pgxpool.Pool) *FlashcardRepo {
	return &FlashcardRepo{pool: pool}
}

// Deck operations

func (r *FlashcardRepo) CreateDeck(ctx context.Context, d *models.FlashcardDeck, cards []models.FlashcardCard) error {
	d.ID = uuid.New()
	d.CardCount = len(cards)

	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO flashcard_decks (id, user_id, title, source_text, card_count)
			VALUES ($1, $2, $3, $4, $5) RETURNING created_at
		`, d.ID, d.UserID, d.Title, d.SourceText, d.CardCount).Scan(&d.CreatedAt)
		if err != nil {
			return err
		}

		nextReview := time.Now().AddDate(0, 0, 1)
		for i := range cards {
			cards[i].ID = uuid.New()
			cards[i].DeckID = d.ID
			cards[i].IntervalDays = 1
			cards[i].EaseFactor = 2.5
			cards[i].NextReviewAt = nextReview

			_, err := tx.Exec(ctx, `
				INSERT INTO flashcard_cards (id, deck_id, front, back, interval_days, ease_factor, repetitions, next_review_at)
				VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
			`, cards[i].ID, d.ID, cards[i].Front, cards[i].Back, cards[i].IntervalDays, cards[i].EaseFactor, nextReview)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *FlashcardRepo) GetDeck(ctx context.Context, id uuid.UUID) (*models.FlashcardDeck, error) {
	d := &models.FlashcardDeck{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, title, source_text, card_count, created_at
		FROM flashcard_decks WHERE id = $1
	`, id).Scan(&d.ID, &d.UserID, &d.Title, &d.SourceText, &d.CardCount, &d.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func (r *FlashcardRepo) ListDecks(ctx context.Context, userID uuid.UUID) ([]models.FlashcardDeck, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, title, source_text, card_count, created_at
		FROM flashcard_decks WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	decks := []models.FlashcardDeck{}
	for rows.Next() {
		var d models.FlashcardDeck
		if err := rows.Scan(&d.ID, &d.UserID, &d.Title, &d.SourceText, &d.CardCount, &d.CreatedAt); err != nil {
			return nil, err
		}
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

// Card operations

func (r *FlashcardRepo) GetCards(ctx context.Context, deckID uuid.UUID) ([]models.FlashcardCard, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, deck_id, front, back, interval_days, ease_factor, repetitions, next_review_at, last_reviewed_at
		FROM flashcard_cards WHERE deck_id = $1 ORDER BY next_review_at ASC
	`, deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []models.FlashcardCard{}
	for rows.Next() {
		var c models.FlashcardCard
		err := rows.Scan(&c.ID, &c.DeckID, &c.Front, &c.Back,
			&c.IntervalDays, &c.EaseFactor, &c.Repetitions, &c.NextReviewAt, &c.LastReviewedAt)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// RateCard locks the card, applies next to its schedule and records the
// review. Cards in decks owned by someone else are reported as not found.
func (r *FlashcardRepo) RateCard(ctx context.Context, cardID, userID uuid.UUID, rating int, next func(models.CardSchedule) models.CardSchedule) (*models.FlashcardCard, error) {
	card := &models.FlashcardCard{}
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT c.id, c.deck_id, c.front, c.back, c.interval_days, c.ease_factor, c.repetitions
			FROM flashcard_cards c
			JOIN flashcard_decks d ON d.id = c.deck_id
			WHERE c.id = $1 AND d.user_id = $2
			FOR UPDATE OF c
		`, cardID, userID).Scan(&card.ID, &card.DeckID, &card.Front, &card.Back,
			&card.IntervalDays, &card.EaseFactor, &card.Repetitions)
		if err != nil {
			return notFound(err)
		}

		s := next(models.CardSchedule{
			IntervalDays: card.IntervalDays,
			EaseFactor:   card.EaseFactor,
			Repetitions:  card.Repetitions,
		})
		now := time.Now()
		card.IntervalDays = s.IntervalDays
		card.EaseFactor = s.EaseFactor
		card.Repetitions = s.Repetitions
		card.NextReviewAt = now.AddDate(0, 0, s.IntervalDays)
		card.LastReviewedAt = &now

		_, err = tx.Exec(ctx, `
			UPDATE flashcard_cards SET interval_days = $1, ease_factor = $2, repetitions = $3,
				next_review_at = $4, last_reviewed_at = $5 WHERE id = $6
		`, card.IntervalDays, card.EaseFactor, card.Repetitions, card.NextReviewAt, now, cardID)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO flashcard_reviews (id, card_id, user_id, rating, reviewed_at)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New(), cardID, userID, rating, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (r *FlashcardRepo) GetDeckStats(ctx context.Context, deckID uuid.UUID) (*models.DeckStats, error) {
	stats := &models.DeckStats{}
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE repetitions >= 3 AND ease_factor >= 2.5),
			COUNT(*) FILTER (WHERE repetitions > 0 AND (repetitions < 3 OR ease_factor < 2.5)),
			COUNT(*) FILTER (WHERE repetitions = 0),
			COUNT(*) FILTER (WHERE next_review_at <= CURRENT_DATE)
		FROM flashcard_cards WHERE deck_id = $1
	`, deckID).Scan(&stats.TotalCards, &stats.Mastered, &stats.Learning, &stats.New, &stats.DueToday)
	if err != nil {
		return nil, err
	}

	if stats.TotalCards > 0 {
		stats.MasteryRate = float64(stats.Mastered) / float64(stats.TotalCards) * 100
	}
	return stats, nil
}

func (r *FlashcardRepo) CountDecks(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM flashcard_decks WHERE user_id = $1", userID).Scan(&n)
	return n, err
}

func (r *FlashcardRepo) CountReviews(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM flashcard_reviews
		WHERE user_id = $1 AND reviewed_at >= $2 AND reviewed_at < $3
	`, userID, from, to).Scan(&n)
	return n, err
}

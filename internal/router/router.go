package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"suzy-backend/internal/handlers"
	"suzy-backend/internal/middleware"
	"suzy-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	aiLimiter middleware.Limiter,
	aiLimitPerMin int,
	sessionHandler *handlers.SessionHandler,
	timerHandler *handlers.TimerHandler,
	todoHandler *handlers.TodoHandler,
	noteHandler *handlers.NoteHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	chatHandler *handlers.ChatHandler,
	flashcardHandler *handlers.FlashcardHandler,
	mockExamHandler *handlers.MockExamHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	chatLimiter := middleware.NewRateLimiter(aiLimiter, "chat", aiLimitPerMin)
	flashcardLimiter := middleware.NewRateLimiter(aiLimiter, "flashcards", aiLimitPerMin)
	examLimiter := middleware.NewRateLimiter(aiLimiter, "mock-exams", aiLimitPerMin)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Sessions & Timers ────
		r.Route("/sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", sessionHandler.Create)
			r.Get("/public", sessionHandler.ListPublic)
			r.Get("/available", sessionHandler.ListAvailable)
			r.Get("/mine", sessionHandler.ListMine)
			r.Post("/join", sessionHandler.Join)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Delete)
				r.Post("/leave", sessionHandler.Leave)
				r.Get("/participants/study-times", timerHandler.ParticipantStudyTimes)

				r.Post("/timer/start", timerHandler.StartStudy)
				r.Post("/timer/break/start", timerHandler.StartBreak)
				r.Post("/timer/end", timerHandler.End)
				r.Get("/timer/stats", timerHandler.Stats)
			})
		})

		r.Route("/timers", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/recalculate", timerHandler.Recalculate)
		})

		// ──── Todos ────
		r.Route("/todos", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", todoHandler.List)
			r.Post("/", todoHandler.Create)
			r.Put("/{id}", todoHandler.Update)
			r.Delete("/{id}", todoHandler.Delete)
		})

		// ──── Notes & Categories ────
		r.Route("/notes", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", noteHandler.List)
			r.Post("/", noteHandler.Create)
			r.Get("/{id}", noteHandler.Get)
			r.Put("/{id}", noteHandler.Update)
			r.Delete("/{id}", noteHandler.Delete)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", noteHandler.ListCategories)
			r.Post("/", noteHandler.CreateCategory)
			r.Delete("/{id}", noteHandler.DeleteCategory)
		})

		// ──── Analytics ────
		r.Route("/analytics", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/today", analyticsHandler.Today)
			r.Get("/weekly", analyticsHandler.Weekly)
			r.Post("/regenerate", analyticsHandler.Regenerate)
		})

		// ──── Chat ────
		r.Route("/chat", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/paths", chatHandler.Paths)
			r.Post("/conversation/start", chatHandler.Start)
			r.Get("/conversation/{id}", chatHandler.Get)
			r.With(chatLimiter.Middleware).Post("/conversation/{id}/message", chatHandler.SendMessage)
		})

		// ──── Flashcards ────
		r.Route("/flashcards", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.With(flashcardLimiter.Middleware).Post("/generate", flashcardHandler.Generate)
			r.Get("/decks", flashcardHandler.ListDecks)
			r.Get("/decks/{id}", flashcardHandler.GetDeck)
			r.Get("/decks/{id}/stats", flashcardHandler.DeckStats)
			r.Post("/cards/{id}/rating", flashcardHandler.RateCard)
		})

		// ──── Mock Exams ────
		r.Route("/mock-exams", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.With(examLimiter.Middleware).Post("/generate", mockExamHandler.Generate)
			r.Post("/", mockExamHandler.Submit)
			r.Get("/", mockExamHandler.History)
			r.Get("/{id}", mockExamHandler.Get)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}

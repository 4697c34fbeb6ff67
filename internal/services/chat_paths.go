package services

import (
	"context"

	"github.com/google/uuid"

	"suzy-backend/internal/models"
)

const wrapUpInstruction = "Provide encouragement and wrap up the conversation."

// snapshotFunc gathers the user data a path's prompt is grounded on.
type snapshotFunc func(ctx context.Context, s *ChatService, userID uuid.UUID) (map[string]any, error)

// chatPath is one conversation variant: its questions, the instruction for
// each step and the data it reads.
type chatPath struct {
	info         models.ChatPathInfo
	instructions []string
	snapshot     snapshotFunc
}

func (p chatPath) questionCount() int {
	return len(p.info.Questions)
}

func (p chatPath) instruction(step int) string {
	if step < 1 || step > len(p.instructions) {
		return wrapUpInstruction
	}
	return p.instructions[step-1]
}

var chatPathOrder = []models.ChatPathType{
	models.PathStudyTimeAnalysis,
	models.PathFocusAndPauses,
	models.PathFlashcardProgress,
	models.PathTodoProductivity,
	models.PathWeeklySummary,
	models.PathMockExamReview,
}

var chatPaths = map[models.ChatPathType]chatPath{
	models.PathStudyTimeAnalysis: {
		info: models.ChatPathInfo{
			Type:        models.PathStudyTimeAnalysis,
			Title:       "Study Time Analysis",
			Icon:        "📊",
			Description: "Get insights about your study patterns and time management",
			Questions:   []string{"Analyze my study time.", "What should I do next?", "Give me a plan."},
		},
		instructions: []string{
			"Analyze their study time patterns. Focus on total time, consistency, and any notable trends.",
			"Suggest specific improvements based on their study patterns.",
			"Provide a concrete, actionable study plan for tomorrow or this week.",
		},
		snapshot: studyTimeSnapshot,
	},
	models.PathFocusAndPauses: {
		info: models.ChatPathInfo{
			Type:        models.PathFocusAndPauses,
			Title:       "Focus & Pauses",
			Icon:        "🎯",
			Description: "Learn about your focus patterns and how to improve concentration",
			Questions:   []string{"Was I focused this week?", "How do I focus better?", "Okay, give me a focus checklist."},
		},
		instructions: []string{
			"Evaluate their focus quality this week based on study sessions and break patterns.",
			"Give specific tips for improving focus and managing distractions.",
			"Create a practical focus checklist they can use during study sessions.",
		},
		snapshot: focusSnapshot,
	},
	models.PathFlashcardProgress: {
		info: models.ChatPathInfo{
			Type:        models.PathFlashcardProgress,
			Title:       "Flashcard Progress",
			Icon:        "🃏",
			Description: "Review your flashcard learning progress and retention",
			Questions:   []string{"How's my flashcard progress?", "What should I do?"},
		},
		instructions: []string{
			"Review their flashcard usage and learning progress.",
			"Suggest how to optimize their flashcard study routine.",
		},
		snapshot: flashcardSnapshot,
	},
	models.PathTodoProductivity: {
		info: models.ChatPathInfo{
			Type:        models.PathTodoProductivity,
			Title:       "To-Do Productivity",
			Icon:        "✅",
			Description: "Analyze your task completion and productivity habits",
			Questions:   []string{"Did I complete my tasks?", "How can I be more productive?"},
		},
		instructions: []string{
			"Analyze their task completion rate and productivity patterns.",
			"Provide specific strategies to improve productivity and task management.",
		},
		snapshot: todoSnapshot,
	},
	models.PathWeeklySummary: {
		info: models.ChatPathInfo{
			Type:        models.PathWeeklySummary,
			Title:       "Weekly Summary",
			Icon:        "📈",
			Description: "Get a comprehensive overview of your week's progress",
			Questions:   []string{"Give me a weekly summary.", "Okay, what now?", "Yes, generate a plan."},
		},
		instructions: []string{
			"Provide a comprehensive overview of their week's study progress.",
			"Suggest next steps based on their weekly performance.",
			"Generate a specific plan for the upcoming week.",
		},
		snapshot: weeklySnapshot,
	},
	models.PathMockExamReview: {
		info: models.ChatPathInfo{
			Type:        models.PathMockExamReview,
			Title:       "Mock Exam Review",
			Icon:        "📝",
			Description: "Review your mock exam performance and get targeted advice",
			Questions:   []string{"How did I do in my last mock exam?", "What should I focus on?", "Yes, create quiz."},
		},
		instructions: []string{
			"Review their mock exam performance.",
			"Identify areas for improvement based on exam results.",
			"Offer to create a targeted quiz for weak areas.",
		},
		snapshot: mockExamSnapshot,
	},
}

func lookupPath(t models.ChatPathType) (chatPath, bool) {
	p, ok := chatPaths[t]
	return p, ok
}

func ListChatPaths() []models.ChatPathInfo {
	out := make([]models.ChatPathInfo, 0, len(chatPathOrder))
	for _, t := range chatPathOrder {
		out = append(out, chatPaths[t].info)
	}
	return out
}

// Snapshots

func studyTimeSnapshot(ctx context.Context, s *ChatService, userID uuid.UUID) (map[string]any, error) {
	today, err := s.analytics.GetTodayAnalytics(ctx, userID)
	if err != nil {
		return nil, err
	}
	days, err := s.analytics.LastSevenDays(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"today": today, "last7Days": days}, nil
}

func focusSnapshot(ctx context.Context, s *ChatService, userID uuid.UUID) (map[string]any, error) {
	days, err := s.analytics.LastSevenDays(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.analytics.RecentTimers(ctx, userID, 10)
	if err != nil {
		return nil, err
	}

	sessions := make([]map[string]any, 0, len(recent))
	for _, t := range recent {
		sessions = append(sessions, map[string]any{
			"type":            t.SessionType,
			"startTime":       t.StartTime,
			"durationMinutes": t.DurationMinutes,
			"completed":       t.IsCompleted,
		})
	}
	return map[string]any{"last7Days": days, "recentSessions": sessions}, nil
}

func flashcardSnapshot(ctx context.Context, s *ChatService, userID uuid.UUID) (map[string]any, error) {
	today := utcDay(s.now())
	reviewed, err := s.flashcards.CountReviews(ctx, userID, weekStart(today), today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	decks, err := s.flashcards.CountDecks(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"flashcardsReviewedThisWeek": reviewed, "deckCount": decks}, nil
}

func todoSnapshot(ctx context.Context, s *ChatService, userID uuid.UUID) (map[string]any, error) {
	today := utcDay(s.now())
	tomorrow := today.AddDate(0, 0, 1)

	todayTodos, err := s.todos.ListCreatedBetween(ctx, userID, today, tomorrow)
	if err != nil {
		return nil, err
	}
	weekTodos, err := s.todos.ListCreatedBetween(ctx, userID, weekStart(today), tomorrow)
	if err != nil {
		return nil, err
	}

	tasks := make([]map[string]any, 0, len(todayTodos))
	for _, t := range todayTodos {
		tasks = append(tasks, map[string]any{"task": t.Task, "completed": t.IsCompleted})
	}
	todayDone, weekDone := countCompleted(todayTodos), countCompleted(weekTodos)
	return map[string]any{
		"today": map[string]any{"completed": todayDone, "total": len(todayTodos), "tasks": tasks},
		"thisWeek": map[string]any{
			"completed":         weekDone,
			"total":             len(weekTodos),
			"productivityScore": productivityScore(weekDone, len(weekTodos)),
		},
	}, nil
}

func countCompleted(todos []models.Todo) int {
	n := 0
	for _, t := range todos {
		if t.IsCompleted {
			n++
		}
	}
	return n
}

func weeklySnapshot(ctx context.Context, s *ChatService, userID uuid.UUID) (map[string]any, error) {
	summary, err := s.analytics.GetWeeklySummary(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"weeklySummary": summary}, nil
}

func mockExamSnapshot(ctx context.Context, s *ChatService, userID uuid.UUID) (map[string]any, error) {
	exams, err := s.exams.ListByUser(ctx, userID, 5)
	if err != nil {
		return nil, err
	}

	recent := make([]map[string]any, 0, len(exams))
	for _, e := range exams {
		recent = append(recent, map[string]any{
			"subject":        e.Subject,
			"score":          e.Score,
			"totalQuestions": e.TotalQuestions,
			"percentage":     e.Percent(),
			"takenAt":        e.TakenAt,
		})
	}
	return map[string]any{"recentMockExams": recent}, nil
}

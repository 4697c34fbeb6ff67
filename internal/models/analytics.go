package models

import (
	"time"

	"github.com/google/uuid"
)

type DailyAnalytics struct {
	ID                 uuid.UUID `json:"id"`
	UserID             uuid.UUID `json:"userId"`
	Date               time.Time `json:"date"`
	TotalStudyMinutes  int       `json:"totalStudyMinutes"`
	TotalBreakMinutes  int       `json:"totalBreakMinutes"`
	CompletedTodos     int       `json:"completedTodos"`
	TotalTodos         int       `json:"totalTodos"`
	FlashcardsReviewed int       `json:"flashcardsReviewed"`
	MockExamScore      *float64  `json:"mockExamScore"`
	FocusInterruptions int       `json:"focusInterruptions"`
	CreatedAt          time.Time `json:"createdAt"`
}

type WeeklySummary struct {
	ID                     uuid.UUID `json:"id"`
	UserID                 uuid.UUID `json:"userId"`
	WeekStart              time.Time `json:"weekStart"`
	TotalStudyMinutes      int       `json:"totalStudyMinutes"`
	TotalBreakMinutes      int       `json:"totalBreakMinutes"`
	AverageStudyTimePerDay float64   `json:"averageStudyTimePerDay"`
	CompletedTodos         int       `json:"completedTodos"`
	TotalTodos             int       `json:"totalTodos"`
	ProductivityScore      float64   `json:"productivityScore"`
	FlashcardsReviewed     int       `json:"flashcardsReviewed"`
	AverageMockExamScore   *float64  `json:"averageMockExamScore"`
	GeneratedAt            time.Time `json:"generatedAt"`
}

// TimerSample is the slice of a timer row the aggregator needs.
type TimerSample struct {
	StartTime       time.Time
	EndTime         *time.Time
	DurationMinutes int
	SessionType     TimerKind
	PlannedMinutes  int
}

type TodoSample struct {
	CreatedAt   time.Time
	IsCompleted bool
}

type ExamSample struct {
	TakenAt        time.Time
	Score          int
	TotalQuestions int
}

// ActivityWindow holds the authoritative rows for one user over [From, To).
type ActivityWindow struct {
	From        time.Time
	To          time.Time
	Timers      []TimerSample
	Todos       []TodoSample
	ReviewTimes []time.Time
	Exams       []ExamSample
}

// DailyBreakdown is one day of the chat snapshot's 7-day list.
type DailyBreakdown struct {
	Date              string `json:"date"`
	TotalStudyMinutes int    `json:"totalStudyMinutes"`
	TotalBreakMinutes int    `json:"totalBreakMinutes"`
	CompletedTodos    int    `json:"completedTodos"`
	TotalTodos        int    `json:"totalTodos"`
}

// ActivityMark tells the aggregator whether a cached row can still be served.
type ActivityMark struct {
	LatestChange *time.Time
	HasOpenTimer bool
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"suzy-backend/internal/models"
	"suzy-backend/internal/repository"
)

const (
	mockExamQuestions  = 10
	mockExamOptions    = 4
	mockExamHistoryMax = 50
)

type MockExamService struct {
	repo    repository.MockExamRepository
	notes   NoteSource
	ai      Completer
	refresh RefreshEnqueuer
}

func NewMockExamService(repo repository.MockExamRepository, notes NoteSource, ai Completer, refresh RefreshEnqueuer) *MockExamService {
	return &MockExamService{repo: repo, notes: notes, ai: ai, refresh: refresh}
}

func buildMockExamPrompt(content string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Based on the following text, generate exactly %d multiple-choice questions for a test. ", mockExamQuestions))
	b.WriteString(fmt.Sprintf("Each question must have %d options. ", mockExamOptions))
	b.WriteString("Format the entire output as a single, valid JSON array. ")
	b.WriteString(`Each object in the array should have three properties: "questionText" (string), "options" (an array of 4 strings), `)
	b.WriteString(`and "correctAnswer" (a string that exactly matches one of the options). `)
	b.WriteString("Do not include any text, markdown or formatting outside of the JSON array.\n\n---TEXT---\n")
	b.WriteString(content)
	return b.String()
}

// parseMockExam keeps only questions with four options and an answer that
// is one of them.
func parseMockExam(raw string) ([]models.GeneratedQuestion, error) {
	type questionJSON struct {
		QuestionText  string   `json:"questionText"`
		Options       []string `json:"options"`
		CorrectAnswer string   `json:"correctAnswer"`
	}

	var parsed []questionJSON
	if err := json.Unmarshal([]byte(jsonArray(stripFences(raw))), &parsed); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}

	var valid []models.GeneratedQuestion
	for _, q := range parsed {
		text := strings.TrimSpace(q.QuestionText)
		if text == "" || len(q.Options) != mockExamOptions {
			continue
		}
		answer := strings.TrimSpace(q.CorrectAnswer)
		found := false
		for _, opt := range q.Options {
			if strings.TrimSpace(opt) == answer {
				found = true
				break
			}
		}
		if !found {
			continue
		}
		valid = append(valid, models.GeneratedQuestion{Question: text, Options: q.Options, CorrectAnswer: answer})
		if len(valid) == mockExamQuestions {
			break
		}
	}
	return valid, nil
}

// Generate asks the model for a fresh exam. Nothing is stored until the
// answers are submitted.
func (s *MockExamService) Generate(ctx context.Context, userID uuid.UUID, req models.GenerateMockExamRequest) (*models.GeneratedMockExam, error) {
	text := strings.TrimSpace(req.Text)
	subject := strings.TrimSpace(req.Subject)
	sources := []string{}
	if len(req.NoteIDs) > 0 || req.CategoryID != nil {
		material, err := s.notes.ResolveSources(ctx, userID, req.NoteIDs, req.CategoryID)
		if err != nil {
			return nil, err
		}
		if text != "" {
			text = material.Text + "\n\n" + text
		} else {
			text = material.Text
		}
		sources = append(sources, material.Names...)
		if subject == "" {
			subject = material.Label
		}
	}
	sources = append(sources, req.Sources...)

	if text == "" {
		return nil, &ValidationError{Fields: map[string]string{"text": "Source text is required"}}
	}

	raw, err := s.ai.Complete(ctx, buildMockExamPrompt(text))
	if err != nil {
		log.Error().Err(err).Str("userId", userID.String()).Msg("mock exam generation failed")
		return nil, &UpstreamError{Message: "Failed to generate the mock exam, please try again", Err: err}
	}

	questions, err := parseMockExam(raw)
	if err != nil || len(questions) == 0 {
		log.Warn().Err(err).Str("userId", userID.String()).Msg("model returned no usable questions")
		return nil, &UpstreamError{Message: "AI returned an empty or invalid list of questions", Err: err}
	}

	if subject == "" {
		subject = "Mock Test"
	}
	return &models.GeneratedMockExam{Subject: subject, Sources: sources, Questions: questions}, nil
}

// scoreAnswers marks each question and returns the number answered exactly right.
func scoreAnswers(answered []models.AnsweredQuestion) ([]models.MockExamQuestion, int) {
	questions := make([]models.MockExamQuestion, len(answered))
	score := 0
	for i, a := range answered {
		correct := strings.TrimSpace(a.UserAnswer) == strings.TrimSpace(a.CorrectAnswer)
		if correct {
			score++
		}
		questions[i] = models.MockExamQuestion{
			Position:      i + 1,
			QuestionText:  a.Question,
			Options:       a.Options,
			CorrectAnswer: a.CorrectAnswer,
			UserAnswer:    a.UserAnswer,
			IsCorrect:     correct,
		}
		if questions[i].Options == nil {
			questions[i].Options = []string{}
		}
	}
	return questions, score
}

func (s *MockExamService) Submit(ctx context.Context, userID uuid.UUID, req models.SubmitMockExamRequest) (*models.MockExam, error) {
	if len(req.Questions) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"questions": "At least one answered question is required"}}
	}

	questions, score := scoreAnswers(req.Questions)
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "Mock Test"
	}
	exam := &models.MockExam{
		UserID:         userID,
		Subject:        subject,
		Score:          score,
		TotalQuestions: len(questions),
		Sources:        req.Sources,
		Questions:      questions,
	}
	if err := s.repo.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("save mock exam: %w", err)
	}

	log.Info().Str("examId", exam.ID.String()).Int("score", score).Int("total", exam.TotalQuestions).Msg("mock exam submitted")
	s.refresh.Enqueue(ctx, userID, "mock_exam")
	return exam, nil
}

func (s *MockExamService) History(ctx context.Context, userID uuid.UUID) ([]models.MockExam, error) {
	exams, err := s.repo.ListByUser(ctx, userID, mockExamHistoryMax)
	if err != nil {
		return nil, fmt.Errorf("list mock exams: %w", err)
	}
	return exams, nil
}

func (s *MockExamService) Get(ctx context.Context, userID, id uuid.UUID) (*models.MockExam, error) {
	exam, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Mock exam not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("get mock exam: %w", err)
	}
	if exam.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	return exam, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suzy-backend/internal/models"
)

func questionJSON(text, answer string, options ...string) string {
	return fmt.Sprintf(`{"questionText":%q,"options":["%s"],"correctAnswer":%q}`, text, strings.Join(options, `","`), answer)
}

func TestParseMockExam(t *testing.T) {
	raw := "```json\n[" + strings.Join([]string{
		questionJSON("Capital of France?", "Paris", "Paris", "Rome", "Madrid", "Berlin"),
		questionJSON("Three options", "A", "A", "B", "C"),
		questionJSON("Answer not listed", "E", "A", "B", "C", "D"),
		questionJSON("  ", "A", "A", "B", "C", "D"),
	}, ",") + "]\n```"

	questions, err := parseMockExam(raw)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "Capital of France?", questions[0].Question)
	assert.Equal(t, "Paris", questions[0].CorrectAnswer)
}

func TestParseMockExam_CapsQuestionCount(t *testing.T) {
	var items []string
	for i := 0; i < 12; i++ {
		items = append(items, questionJSON(fmt.Sprintf("Q%d", i), "A", "A", "B", "C", "D"))
	}
	questions, err := parseMockExam("[" + strings.Join(items, ",") + "]")
	require.NoError(t, err)
	assert.Len(t, questions, mockExamQuestions)
}

func TestScoreAnswers(t *testing.T) {
	questions, score := scoreAnswers([]models.AnsweredQuestion{
		{Question: "Q1", Options: []string{"A", "B"}, CorrectAnswer: "A", UserAnswer: " A "},
		{Question: "Q2", Options: []string{"A", "B"}, CorrectAnswer: "B", UserAnswer: "A"},
		{Question: "Q3", CorrectAnswer: "B"},
	})
	assert.Equal(t, 1, score)
	require.Len(t, questions, 3)
	assert.True(t, questions[0].IsCorrect)
	assert.False(t, questions[1].IsCorrect)
	assert.Equal(t, 3, questions[2].Position)
	assert.NotNil(t, questions[2].Options)
}

func TestMockExamGenerate(t *testing.T) {
	ai := &stubCompleter{text: "[" + questionJSON("Q", "A", "A", "B", "C", "D") + "]"}
	svc := NewMockExamService(&fakeExamRepo{}, nil, ai, &recordingEnqueuer{})

	exam, err := svc.Generate(context.Background(), uuid.New(), models.GenerateMockExamRequest{Text: "Photosynthesis"})
	require.NoError(t, err)
	assert.Equal(t, "Mock Test", exam.Subject)
	assert.NotNil(t, exam.Sources)
	assert.Len(t, exam.Questions, 1)
	assert.Contains(t, ai.prompts[0], "exactly 10 multiple-choice questions")

	_, err = svc.Generate(context.Background(), uuid.New(), models.GenerateMockExamRequest{})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	svc = NewMockExamService(&fakeExamRepo{}, nil, &stubCompleter{err: errors.New("down")}, &recordingEnqueuer{})
	_, err = svc.Generate(context.Background(), uuid.New(), models.GenerateMockExamRequest{Text: "x"})
	var up *UpstreamError
	assert.ErrorAs(t, err, &up)
}

func TestMockExamSubmitAndHistory(t *testing.T) {
	repo := &fakeExamRepo{}
	refresh := &recordingEnqueuer{}
	svc := NewMockExamService(repo, nil, &stubCompleter{}, refresh)
	user := uuid.New()

	_, err := svc.Submit(context.Background(), user, models.SubmitMockExamRequest{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	exam, err := svc.Submit(context.Background(), user, models.SubmitMockExamRequest{
		Subject: "Biology",
		Sources: []string{"chapter 3"},
		Questions: []models.AnsweredQuestion{
			{Question: "Q1", Options: []string{"A", "B", "C", "D"}, CorrectAnswer: "A", UserAnswer: "A"},
			{Question: "Q2", Options: []string{"A", "B", "C", "D"}, CorrectAnswer: "B", UserAnswer: "C"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, exam.Score)
	assert.Equal(t, 2, exam.TotalQuestions)
	assert.InDelta(t, 50.0, exam.Percent(), 0.001)
	assert.Equal(t, []string{"mock_exam"}, refresh.reasons)

	history, err := svc.History(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []string{"chapter 3"}, history[0].Sources)

	got, err := svc.Get(context.Background(), user, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, "Biology", got.Subject)

	_, err = svc.Get(context.Background(), uuid.New(), exam.ID)
	var fb *ForbiddenError
	assert.ErrorAs(t, err, &fb)

	_, err = svc.Get(context.Background(), user, uuid.New())
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestMockExamGenerate_FromNotes(t *testing.T) {
	ctx := context.Background()
	notes := NewNoteService(newFakeNoteRepo())
	owner := uuid.New()
	chem := createCategory(t, notes, owner, "Chemistry")
	bonds := createNote(t, notes, owner, "Bonds", "Covalent bonds share electrons.", chem)
	createNote(t, notes, owner, "Acids", "pH below 7.", chem)
	ai := &stubCompleter{text: "[" + questionJSON("Q", "A", "A", "B", "C", "D") + "]"}
	svc := NewMockExamService(&fakeExamRepo{}, notes, ai, &recordingEnqueuer{})

	exam, err := svc.Generate(ctx, owner, models.GenerateMockExamRequest{CategoryID: &chem, Sources: []string{"2024 paper"}})
	require.NoError(t, err)
	assert.Equal(t, "Chemistry", exam.Subject)
	assert.ElementsMatch(t, []string{"Bonds", "Acids", "2024 paper"}, exam.Sources)
	assert.Contains(t, ai.prompts[0], "Covalent bonds share electrons.")
	assert.Contains(t, ai.prompts[0], "pH below 7.")

	exam, err = svc.Generate(ctx, owner, models.GenerateMockExamRequest{Subject: "Quiz", NoteIDs: []uuid.UUID{bonds}, Text: "Extra reading"})
	require.NoError(t, err)
	assert.Equal(t, "Quiz", exam.Subject)
	assert.Equal(t, []string{"Bonds"}, exam.Sources)
	assert.Contains(t, ai.prompts[1], "Covalent bonds share electrons.\n\nExtra reading")

	_, err = svc.Generate(ctx, uuid.New(), models.GenerateMockExamRequest{CategoryID: &chem})
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

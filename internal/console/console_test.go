package console

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-placement/internal/i18n"
	"github.com/stemsi/exstem-placement/internal/model"
	"github.com/stemsi/exstem-placement/internal/resume"
)

type fakeBackend struct {
	mu        sync.Mutex
	forms     []model.Form
	deadline  *time.Time
	answered  []model.ID
	created   []model.Applicant
	answers   []model.AnswerRequest
	finished  int
	questions []model.Question
}

func (f *fakeBackend) ListForms(context.Context) ([]model.Form, error) {
	return f.forms, nil
}

func (f *fakeBackend) CreateSubmission(_ context.Context, _ model.ID, applicant model.Applicant) (*model.CreatedSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, applicant)
	return &model.CreatedSubmission{ID: "90", Deadline: f.deadline, Questions: f.questions}, nil
}

func (f *fakeBackend) GetSubmission(_ context.Context, id model.ID) (*model.Submission, error) {
	return &model.Submission{ID: id, Deadline: f.deadline, AnsweredQuestionIDs: f.answered}, nil
}

func (f *fakeBackend) FetchQuestions(context.Context, model.ID, model.ID) (*model.QuestionSet, error) {
	return &model.QuestionSet{Questions: f.questions, Deadline: f.deadline}, nil
}

func (f *fakeBackend) SubmitAnswer(_ context.Context, _ model.ID, answer model.AnswerRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answer)
	return nil
}

func (f *fakeBackend) Finish(context.Context, model.ID) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished++
	return json.RawMessage(`{ "score": 1 }`), nil
}

func newBackend() *fakeBackend {
	return &fakeBackend{
		forms: []model.Form{{ID: "3", Title: "General English"}, {ID: "4"}},
		questions: []model.Question{
			{ID: "31", Type: model.QuestionTypeChoice, Prompt: "She ___ to school.", Choices: []model.Choice{
				{ID: "1", Label: "go", Value: "go"},
				{ID: "2", Label: "goes", Value: "goes"},
			}},
			{ID: "32", Type: model.QuestionTypeText, Prompt: "Introduce yourself."},
		},
	}
}

func config(backend *fakeBackend, store resume.Store) Config {
	return Config{
		Backend:      backend,
		Store:        store,
		Translator:   i18n.MustNew(),
		Lang:         i18n.English,
		TickInterval: 10 * time.Millisecond,
		Log:          zerolog.Nop(),
	}
}

func TestRunCompletesAttempt(t *testing.T) {
	backend := newBackend()
	store := resume.NewMemoryStore()

	input := strings.Join([]string{
		"2",
		"Aung", "nope", "Lt",
		"Aung", "aung@example.com", "Lt",
		"5",
		"2",
		"   ",
		"  I like tea.  ",
	}, "\n") + "\n"

	var out bytes.Buffer
	err := Run(context.Background(), strings.NewReader(input), &out, config(backend, store))
	require.NoError(t, err)

	text := out.String()
	require.Contains(t, text, "1. General English")
	require.Contains(t, text, "2. Untitled form")
	require.Contains(t, text, "Please fill in your Name, Email & Rank correctly.")
	require.Contains(t, text, "Question 1/2")
	require.Contains(t, text, "Enter a number from 1 to 2.")
	require.Contains(t, text, "Please type an answer.")
	require.Contains(t, text, "Completed")
	require.Contains(t, text, `{"score":1}`)

	require.Equal(t, []model.Applicant{{Name: "Aung", Email: "aung@example.com", Rank: "Lt"}}, backend.created)
	require.Equal(t, []model.AnswerRequest{
		{QuestionID: "31", Value: "goes"},
		{QuestionID: "32", Value: "I like tea."},
	}, backend.answers)
	require.Equal(t, 1, backend.finished)
	_, ok := store.Load(context.Background(), "4")
	require.False(t, ok, "a finished attempt leaves no record")
}

func TestRunWithoutForms(t *testing.T) {
	backend := newBackend()
	backend.forms = nil

	var out bytes.Buffer
	err := Run(context.Background(), strings.NewReader(""), &out, config(backend, nil))
	require.NoError(t, err)
	require.Contains(t, out.String(), "No test is published yet.")
}

func TestRunEOFKeepsAttemptResumable(t *testing.T) {
	backend := newBackend()
	store := resume.NewMemoryStore()

	input := "1\nAung\naung@example.com\nLt\n1\n"
	var out bytes.Buffer
	err := Run(context.Background(), strings.NewReader(input), &out, config(backend, store))
	require.NoError(t, err)

	rec, ok := store.Load(context.Background(), "3")
	require.True(t, ok)
	require.Equal(t, model.ID("90"), rec.SubmissionID)
	require.Zero(t, backend.finished)
}

func TestRunResumesAtNextQuestion(t *testing.T) {
	backend := newBackend()
	backend.answered = []model.ID{"31"}
	store := resume.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "3", model.ResumeRecord{ExamID: "3", SubmissionID: "90"}))

	cfg := config(backend, store)
	cfg.ExamID = "3"

	var out bytes.Buffer
	err := Run(context.Background(), strings.NewReader("fine\n\n"), &out, cfg)
	require.NoError(t, err)

	text := out.String()
	require.Contains(t, text, "Resuming your test…")
	require.NotContains(t, text, "She ___ to school.")
	require.Contains(t, text, "Question 2/2")
	require.Equal(t, []model.AnswerRequest{{QuestionID: "32", Value: "fine"}}, backend.answers)
	require.Equal(t, 1, backend.finished)
}

func TestRunFinishesOnDeadlineWhileWaiting(t *testing.T) {
	backend := newBackend()
	deadline := time.Now().Add(150 * time.Millisecond)
	backend.deadline = &deadline
	store := resume.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "3", model.ResumeRecord{ExamID: "3", SubmissionID: "90"}))

	cfg := config(backend, store)
	cfg.ExamID = "3"

	// Input that never arrives.
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := Run(ctx, pr, &out, cfg)
	require.NoError(t, err)
	require.Contains(t, out.String(), "Time left 0:")
	require.Contains(t, out.String(), "Completed")
	require.Equal(t, 1, backend.finished)
	require.Empty(t, backend.answers)
}

func TestParseChoice(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int
		ok   bool
	}{
		{in: "1", want: 1, ok: true},
		{in: " 3 ", want: 3, ok: true},
		{in: "0"},
		{in: "4"},
		{in: "b"},
		{in: ""},
	} {
		n, ok := parseChoice(tc.in, 3)
		require.Equal(t, tc.ok, ok, tc.in)
		require.Equal(t, tc.want, n, tc.in)
	}
}

func TestResultSummary(t *testing.T) {
	require.Empty(t, resultSummary(nil))
	require.Empty(t, resultSummary(json.RawMessage(`{}`)))
	require.Empty(t, resultSummary(json.RawMessage(`null`)))
	require.Equal(t, `{"level":"B1"}`, resultSummary(json.RawMessage(`{ "level": "B1" }`)))
}

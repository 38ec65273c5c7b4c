package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-placement/internal/config"
	"github.com/stemsi/exstem-placement/internal/handler"
	"github.com/stemsi/exstem-placement/internal/i18n"
	"github.com/stemsi/exstem-placement/internal/middleware"
	"github.com/stemsi/exstem-placement/internal/model"
	"github.com/stemsi/exstem-placement/internal/resume"
	"github.com/stemsi/exstem-placement/internal/response"
	"github.com/stemsi/exstem-placement/internal/service"
	"github.com/stemsi/exstem-placement/internal/session"
	"github.com/stemsi/exstem-placement/internal/validator"
	ws "github.com/stemsi/exstem-placement/internal/websocket"
)

type backend struct {
	mu      sync.Mutex
	answers []model.AnswerRequest
}

func (b *backend) ListForms(context.Context) ([]model.Form, error) {
	return []model.Form{{ID: "5", Title: "Placement A"}, {ID: "6"}}, nil
}

func (b *backend) CreateSubmission(context.Context, model.ID, model.Applicant) (*model.CreatedSubmission, error) {
	return &model.CreatedSubmission{
		ID: "70",
		Questions: []model.Question{
			{ID: "1", Type: model.QuestionTypeChoice, Prompt: "Pick", Choices: []model.Choice{{ID: "1", Label: "Yes", Value: "y"}}},
			{ID: "2", Type: model.QuestionTypeText, Prompt: "Write"},
		},
	}, nil
}

func (b *backend) GetSubmission(_ context.Context, id model.ID) (*model.Submission, error) {
	return &model.Submission{ID: id}, nil
}

func (b *backend) FetchQuestions(context.Context, model.ID, model.ID) (*model.QuestionSet, error) {
	return &model.QuestionSet{}, nil
}

func (b *backend) SubmitAnswer(_ context.Context, _ model.ID, answer model.AnswerRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answers = append(b.answers, answer)
	return nil
}

func (b *backend) Finish(context.Context, model.ID) (json.RawMessage, error) {
	return json.RawMessage(`{"level":"B2"}`), nil
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func setup(t *testing.T, limiter *middleware.RateLimiter) http.Handler {
	t.Helper()
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	runner := service.NewRunnerService(ctx, &backend{}, resume.NewMemoryStore(), service.RunnerOptions{TickInterval: time.Hour}, zerolog.Nop())
	t.Cleanup(func() {
		runner.CloseAll()
		cancel()
	})

	tr := i18n.MustNew()
	cfg := &config.Config{GinMode: "test", AuthCookie: "wa_token", Language: "en"}
	return SetupRouter(&Handlers{
		Runner: handler.NewRunnerHandler(runner, tr),
		WS:     handler.NewWSHandler(runner, tr, zerolog.Nop(), nil),
	}, limiter, cfg)
}

func call(t *testing.T, h http.Handler, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func view(t *testing.T, env envelope) session.View {
	t.Helper()
	var v session.View
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

var validApplicant = model.Applicant{Name: "Hla", Email: "hla@example.com", Rank: "Sergeant"}

func TestHealth(t *testing.T) {
	code, _ := call(t, setup(t, nil), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
}

func TestListFormsFillsUntitled(t *testing.T) {
	code, env := call(t, setup(t, nil), http.MethodGet, "/api/v1/forms?lang=en", "", nil)
	require.Equal(t, http.StatusOK, code)

	var data struct {
		Forms []model.Form `json:"forms"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, []model.Form{{ID: "5", Title: "Placement A"}, {ID: "6", Title: "Untitled form"}}, data.Forms)
}

func TestSessionRequiresToken(t *testing.T) {
	code, env := call(t, setup(t, nil), http.MethodGet, "/api/v1/exams/5/session", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, response.ErrTokenRequired, env.Error.Code)
}

func TestInvalidExamID(t *testing.T) {
	code, env := call(t, setup(t, nil), http.MethodGet, "/api/v1/exams/b@d/session", "tok", nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, response.ErrInvalidID, env.Error.Code)
}

func TestStartValidatesApplicant(t *testing.T) {
	code, env := call(t, setup(t, nil), http.MethodPost, "/api/v1/exams/5/start", "tok",
		model.Applicant{Name: "Hla", Email: "not-an-email"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, response.ErrValidation, env.Error.Code)
	require.Contains(t, env.Error.Fields, "email")
	require.Contains(t, env.Error.Fields, "rank")
}

func TestAttemptOverHTTP(t *testing.T) {
	h := setup(t, nil)

	code, env := call(t, h, http.MethodGet, "/api/v1/exams/5/session", "tok", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, session.PhaseNotStarted, view(t, env).Phase)

	code, env = call(t, h, http.MethodPost, "/api/v1/exams/5/answer", "tok", handler.AnswerRequest{Value: "y"})
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, response.ErrSessionNotActive, env.Error.Code)

	code, env = call(t, h, http.MethodPost, "/api/v1/exams/5/start", "tok", validApplicant)
	require.Equal(t, http.StatusOK, code)
	v := view(t, env)
	require.Equal(t, session.PhaseActive, v.Phase)
	require.Equal(t, "Question 1/2", v.ProgressText)
	require.Equal(t, model.ID("1"), v.Question.ID)

	// Another owner has its own session.
	code, env = call(t, h, http.MethodGet, "/api/v1/exams/5/session", "other", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, session.PhaseNotStarted, view(t, env).Phase)

	code, env = call(t, h, http.MethodPost, "/api/v1/exams/5/start", "tok", validApplicant)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, response.ErrSessionStarted, env.Error.Code)
	require.Equal(t, session.PhaseActive, view(t, env).Phase)

	code, env = call(t, h, http.MethodPost, "/api/v1/exams/5/answer", "tok", handler.AnswerRequest{Value: "y"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, view(t, env).Index)

	code, env = call(t, h, http.MethodPost, "/api/v1/exams/5/answer", "tok", handler.AnswerRequest{Value: "   "})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, response.ErrInvalidPayload, env.Error.Code)
	require.Equal(t, "Please type an answer.", env.Error.Message)
	require.Equal(t, 1, view(t, env).Index)

	code, env = call(t, h, http.MethodPost, "/api/v1/exams/5/answer", "tok", handler.AnswerRequest{Value: " done "})
	require.Equal(t, http.StatusOK, code)
	v = view(t, env)
	require.Equal(t, session.PhaseFinished, v.Phase)
	require.JSONEq(t, `{"level":"B2"}`, string(v.Result))

	code, env = call(t, h, http.MethodPost, "/api/v1/exams/5/finish", "tok", nil)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, response.ErrSessionEnded, env.Error.Code)
}

func TestStartIsRateLimited(t *testing.T) {
	h := setup(t, middleware.NewRateLimiter(1, time.Hour))

	code, _ := call(t, h, http.MethodPost, "/api/v1/exams/5/start", "tok", validApplicant)
	require.Equal(t, http.StatusOK, code)

	code, env := call(t, h, http.MethodPost, "/api/v1/exams/5/start", "tok", validApplicant)
	require.Equal(t, http.StatusTooManyRequests, code)
	require.Equal(t, response.ErrRateLimitExceeded, env.Error.Code)
}

func TestStreamPushesStateAndAcceptsActions(t *testing.T) {
	srv := httptest.NewServer(setup(t, nil))
	t.Cleanup(srv.Close)

	start := httptest.NewRequest(http.MethodPost, "/api/v1/exams/5/start", strings.NewReader(`{"name":"Hla","email":"hla@example.com","rank":"Sgt"}`))
	start.Header.Set("Authorization", "Bearer tok")
	start.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Config.Handler.ServeHTTP(w, start)
	require.Equal(t, http.StatusOK, w.Code)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/exams/5/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer tok"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	type event struct {
		Event ws.Event     `json:"event"`
		View  session.View `json:"view"`
		Code  string       `json:"code"`
	}
	next := func(want ws.Event, match func(event) bool) event {
		t.Helper()
		for {
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
			var ev event
			require.NoError(t, conn.ReadJSON(&ev))
			if ev.Event == want && (match == nil || match(ev)) {
				return ev
			}
		}
	}

	first := next(ws.EventState, nil)
	require.Equal(t, session.PhaseActive, first.View.Phase)

	require.NoError(t, conn.WriteJSON(ws.RequestPayload{Action: ws.ActionPing}))
	next(ws.EventPong, nil)

	require.NoError(t, conn.WriteJSON(ws.RequestPayload{Action: ws.ActionAnswer, Value: "y"}))
	next(ws.EventState, func(ev event) bool { return ev.View.Index == 1 && !ev.View.Busy })

	require.NoError(t, conn.WriteJSON(ws.RequestPayload{Action: "jump"}))
	failure := next(ws.EventError, nil)
	require.Equal(t, string(response.ErrInvalidPayload), failure.Code)

	require.NoError(t, conn.WriteJSON(ws.RequestPayload{Action: ws.ActionFinish}))
	done := next(ws.EventState, func(ev event) bool { return ev.View.Phase == session.PhaseFinished })
	require.JSONEq(t, `{"level":"B2"}`, string(done.View.Result))
}

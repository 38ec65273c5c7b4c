//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-placement/internal/apiclient"
	"github.com/stemsi/exstem-placement/internal/config"
	"github.com/stemsi/exstem-placement/internal/handler"
	"github.com/stemsi/exstem-placement/internal/i18n"
	"github.com/stemsi/exstem-placement/internal/model"
	"github.com/stemsi/exstem-placement/internal/resume"
	"github.com/stemsi/exstem-placement/internal/router"
	"github.com/stemsi/exstem-placement/internal/service"
	"github.com/stemsi/exstem-placement/internal/session"
	"github.com/stemsi/exstem-placement/internal/validator"
)

const studentToken = "e2e-student-token"

// examBackend imitates the exam service the runner talks to.
type examBackend struct {
	mu          sync.Mutex
	duration    time.Duration
	nextID      int
	submissions map[string]*submission
}

type submission struct {
	deadline time.Time
	answered []model.ID
	finished *time.Time
}

var formQuestions = []model.Question{
	{ID: "101", Type: model.QuestionTypeChoice, Prompt: "I ___ a student.", Choices: []model.Choice{
		{ID: "1", Label: "am", Value: "am"},
		{ID: "2", Label: "is", Value: "is"},
	}},
	{ID: "102", Type: model.QuestionTypeChoice, Prompt: "They ___ here yesterday.", Choices: []model.Choice{
		{ID: "3", Label: "were", Value: "were"},
		{ID: "4", Label: "was", Value: "was"},
	}},
	{ID: "103", Type: model.QuestionTypeText, Prompt: "Describe your unit."},
}

func newExamBackend(duration time.Duration) *examBackend {
	return &examBackend{duration: duration, submissions: make(map[string]*submission)}
}

func (b *examBackend) handler() http.Handler {
	r := gin.New()
	api := r.Group("/api/eng")
	api.Use(func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer "+studentToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}
		c.Next()
	})

	api.GET("/forms/", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{{"id": 1, "title": "General Placement"}})
	})

	api.POST("/submissions/", func(c *gin.Context) {
		var req model.CreateSubmissionRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.AnonEmail == "" {
			c.JSON(http.StatusBadRequest, gin.H{"anon_email": []string{"This field is required."}})
			return
		}
		b.mu.Lock()
		b.nextID++
		n := b.nextID
		sub := &submission{deadline: time.Now().Add(b.duration)}
		b.submissions[strconv.Itoa(n)] = sub
		b.mu.Unlock()

		c.JSON(http.StatusCreated, gin.H{"id": n, "deadline": sub.deadline, "questions": formQuestions})
	})

	api.GET("/submissions/:id/", func(c *gin.Context) {
		sub, ok := b.lookup(c)
		if !ok {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{
			"id":                    c.Param("id"),
			"deadline":              sub.deadline,
			"finished_at":           sub.finished,
			"answered_question_ids": sub.answered,
		})
	})

	api.POST("/forms/:form/questions/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"questions": formQuestions})
	})

	api.POST("/submissions/:id/answer/", func(c *gin.Context) {
		sub, ok := b.lookup(c)
		if !ok {
			return
		}
		var req model.AnswerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if time.Now().After(sub.deadline) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": apiclient.TimeUpSignal})
			return
		}
		sub.answered = append(sub.answered, req.QuestionID)
		c.Status(http.StatusNoContent)
	})

	api.POST("/submissions/:id/finish/", func(c *gin.Context) {
		sub, ok := b.lookup(c)
		if !ok {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub.finished == nil {
			now := time.Now()
			sub.finished = &now
		}
		c.JSON(http.StatusOK, gin.H{"answered": len(sub.answered), "total": len(formQuestions)})
	})

	return r
}

func (b *examBackend) lookup(c *gin.Context) (*submission, bool) {
	b.mu.Lock()
	sub, ok := b.submissions[c.Param("id")]
	b.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	}
	return sub, ok
}

// runnerStack is one instance of the placement runner.
type runnerStack struct {
	server *httptest.Server
	runner *service.RunnerService
	cancel context.CancelFunc
}

func (s *runnerStack) stop() {
	s.server.Close()
	s.runner.CloseAll()
	s.cancel()
}

func startRunner(t *testing.T, backendURL string, store resume.Store) *runnerStack {
	t.Helper()
	cfg := &config.Config{GinMode: gin.TestMode, AuthCookie: "wa_token", Language: "en"}
	log := zerolog.Nop()

	ctx, cancel := context.WithCancel(context.Background())
	client := apiclient.NewClient(backendURL+"/api", &http.Client{Timeout: 5 * time.Second}, "", log)
	runner := service.NewRunnerService(ctx, client, store, service.RunnerOptions{TickInterval: 50 * time.Millisecond}, log)

	tr := i18n.MustNew()
	r := router.SetupRouter(&router.Handlers{
		Runner: handler.NewRunnerHandler(runner, tr),
		WS:     handler.NewWSHandler(runner, tr, log, nil),
	}, nil, cfg)

	return &runnerStack{server: httptest.NewServer(r), runner: runner, cancel: cancel}
}

func openStore(t *testing.T) resume.Store {
	t.Helper()
	_ = godotenv.Load("../../.env")

	cfg := config.Load()
	if os.Getenv("RESUME_BACKEND") == "" {
		cfg.ResumeBackend = config.ResumeBackendSQLite
		cfg.SQLitePath = filepath.Join(t.TempDir(), "e2e.db")
	}

	store, closeStore, err := resume.Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(closeStore)
	return store
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

// ─── Helpers ───────────────────────────────────────────────────────────

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func makeRequest(t *testing.T, method, url string, body any) (int, envelope) {
	t.Helper()
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(b)
	}

	req, err := http.NewRequest(method, url, reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "wa_token", Value: studentToken})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func viewOf(t *testing.T, env envelope) session.View {
	t.Helper()
	var v session.View
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func examURL(base, action string) string {
	return fmt.Sprintf("%s/api/v1/exams/1/%s", base, action)
}

var applicant = model.Applicant{Name: "Kyaw", Email: "kyaw@example.com", Rank: "Corporal"}

// ─── Tests ─────────────────────────────────────────────────────────────

func TestFullAttempt(t *testing.T) {
	backend := httptest.NewServer(newExamBackend(time.Hour).handler())
	defer backend.Close()

	stack := startRunner(t, backend.URL, openStore(t))
	defer stack.stop()

	code, env := makeRequest(t, http.MethodGet, stack.server.URL+"/api/v1/forms", nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(env.Data), "General Placement")

	code, env = makeRequest(t, http.MethodPost, examURL(stack.server.URL, "start"), applicant)
	require.Equal(t, http.StatusOK, code)
	v := viewOf(t, env)
	require.Equal(t, session.PhaseActive, v.Phase)
	require.Equal(t, 3, v.Total)
	require.NotEmpty(t, v.Countdown)

	for _, value := range []string{"am", "were", "I serve in the signals unit."} {
		code, env = makeRequest(t, http.MethodPost, examURL(stack.server.URL, "answer"), handler.AnswerRequest{Value: value})
		require.Equal(t, http.StatusOK, code, env.Error)
	}

	v = viewOf(t, env)
	require.Equal(t, session.PhaseFinished, v.Phase)
	require.JSONEq(t, `{"answered":3,"total":3}`, string(v.Result))
}

func TestResumeAfterRestart(t *testing.T) {
	backend := httptest.NewServer(newExamBackend(time.Hour).handler())
	defer backend.Close()
	store := openStore(t)

	first := startRunner(t, backend.URL, store)
	code, _ := makeRequest(t, http.MethodPost, examURL(first.server.URL, "start"), applicant)
	require.Equal(t, http.StatusOK, code)
	code, _ = makeRequest(t, http.MethodPost, examURL(first.server.URL, "answer"), handler.AnswerRequest{Value: "am"})
	require.Equal(t, http.StatusOK, code)
	first.stop()

	second := startRunner(t, backend.URL, store)
	defer second.stop()

	code, env := makeRequest(t, http.MethodGet, examURL(second.server.URL, "session"), nil)
	require.Equal(t, http.StatusOK, code)
	v := viewOf(t, env)
	require.Equal(t, session.PhaseActive, v.Phase)
	require.Equal(t, 1, v.Index)
	require.Equal(t, model.ID("102"), v.Question.ID)
}

func TestDeadlineFinishesAttempt(t *testing.T) {
	backend := httptest.NewServer(newExamBackend(700 * time.Millisecond).handler())
	defer backend.Close()

	stack := startRunner(t, backend.URL, openStore(t))
	defer stack.stop()

	code, _ := makeRequest(t, http.MethodPost, examURL(stack.server.URL, "start"), applicant)
	require.Equal(t, http.StatusOK, code)

	require.Eventually(t, func() bool {
		_, env := makeRequest(t, http.MethodGet, examURL(stack.server.URL, "session"), nil)
		return viewOf(t, env).Phase == session.PhaseFinished
	}, 5*time.Second, 100*time.Millisecond)
}

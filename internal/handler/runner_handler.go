package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-placement/internal/i18n"
	"github.com/stemsi/exstem-placement/internal/middleware"
	"github.com/stemsi/exstem-placement/internal/model"
	"github.com/stemsi/exstem-placement/internal/response"
	"github.com/stemsi/exstem-placement/internal/service"
	"github.com/stemsi/exstem-placement/internal/session"
	"github.com/stemsi/exstem-placement/internal/validator"
)

// RunnerHandler exposes placement sessions over HTTP.
type RunnerHandler struct {
	runner *service.RunnerService
	tr     *i18n.Translator
}

// NewRunnerHandler creates a new RunnerHandler.
func NewRunnerHandler(runner *service.RunnerService, tr *i18n.Translator) *RunnerHandler {
	return &RunnerHandler{runner: runner, tr: tr}
}

// AnswerRequest is the body of POST .../answer.
type AnswerRequest struct {
	Value string `json:"value"`
}

// ListForms godoc
// GET /api/v1/forms
func (h *RunnerHandler) ListForms(c *gin.Context) {
	forms, err := h.runner.ListForms(c.Request.Context())
	if err != nil {
		response.FailWithState(c, http.StatusBadGateway, response.ErrUpstream,
			h.tr.T(middleware.GetLang(c), i18n.KeyFormsFailed), nil)
		return
	}

	titled := make([]model.Form, len(forms))
	for i, f := range forms {
		if f.Title == "" {
			f.Title = h.tr.T(middleware.GetLang(c), i18n.KeyUntitledForm)
		}
		titled[i] = f
	}
	response.Success(c, http.StatusOK, gin.H{"forms": titled})
}

// GetSession godoc
// GET /api/v1/exams/:exam_id/session
// Opens the caller's session, resuming a stored attempt, and returns its view.
func (h *RunnerHandler) GetSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, h.view(c, sess))
}

// Start godoc
// POST /api/v1/exams/:exam_id/start
func (h *RunnerHandler) Start(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var applicant model.Applicant
	if fields := validator.Bind(c, &applicant); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.runner.Start(c.Request.Context(), middleware.GetOwner(c), examID, applicant)
	if sess == nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal)
		return
	}
	h.respond(c, sess, err, response.ErrStartFailed)
}

// Answer godoc
// POST /api/v1/exams/:exam_id/answer
func (h *RunnerHandler) Answer(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidPayload, fields)
		return
	}

	err := sess.Answer(c.Request.Context(), req.Value)
	h.respond(c, sess, err, response.ErrAnswerFailed)
}

// Finish godoc
// POST /api/v1/exams/:exam_id/finish
func (h *RunnerHandler) Finish(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	err := sess.Finish(c.Request.Context())
	h.respond(c, sess, err, response.ErrFinishFailed)
}

func (h *RunnerHandler) session(c *gin.Context) (*session.Session, bool) {
	examID, ok := examIDParam(c)
	if !ok {
		return nil, false
	}

	sess, err := h.runner.Session(c.Request.Context(), middleware.GetOwner(c), examID)
	if err != nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal)
		return nil, false
	}
	return sess, true
}

func (h *RunnerHandler) view(c *gin.Context, sess *session.Session) session.View {
	return sess.View(h.tr, middleware.GetLang(c))
}

// respond writes the session view, attaching an error when err is one the
// user should see. Failures that moved the session to a terminal state are
// already described by the view.
func (h *RunnerHandler) respond(c *gin.Context, sess *session.Session, err error, failCode response.ErrCode) {
	if err == nil {
		response.Success(c, http.StatusOK, h.view(c, sess))
		return
	}

	lang := middleware.GetLang(c)
	var sessErr *session.Error
	if errors.As(err, &sessErr) {
		status := http.StatusBadGateway
		if errors.Is(err, session.ErrEmptyAnswer) {
			status, failCode = http.StatusBadRequest, response.ErrInvalidPayload
		}
		response.FailWithState(c, status, failCode, sessErr.Notice.Text(h.tr, lang), h.view(c, sess))
		return
	}

	if status, code, ok := stateFailure(err); ok {
		response.FailWithState(c, status, code, "", h.view(c, sess))
		return
	}

	if session.Terminal(sess.State()) {
		response.Success(c, http.StatusOK, h.view(c, sess))
		return
	}
	response.FailWithState(c, http.StatusBadGateway, response.ErrUpstream, "", h.view(c, sess))
}

func stateFailure(err error) (int, response.ErrCode, bool) {
	switch {
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict, response.ErrSessionBusy, true
	case errors.Is(err, session.ErrNotActive):
		return http.StatusConflict, response.ErrSessionNotActive, true
	case errors.Is(err, session.ErrAlreadyStarted):
		return http.StatusConflict, response.ErrSessionStarted, true
	case errors.Is(err, session.ErrTerminal):
		return http.StatusConflict, response.ErrSessionEnded, true
	case errors.Is(err, session.ErrNoQuestion):
		return http.StatusConflict, response.ErrNoQuestionPending, true
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone, response.ErrSessionClosed, true
	}
	return 0, "", false
}

func examIDParam(c *gin.Context) (model.ID, bool) {
	examID, err := model.ParseID(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return "", false
	}
	return examID, true
}

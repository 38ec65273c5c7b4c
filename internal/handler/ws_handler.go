package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-placement/internal/i18n"
	"github.com/stemsi/exstem-placement/internal/middleware"
	"github.com/stemsi/exstem-placement/internal/response"
	"github.com/stemsi/exstem-placement/internal/service"
	"github.com/stemsi/exstem-placement/internal/session"
	ws "github.com/stemsi/exstem-placement/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams session views and accepts actions over a WebSocket.
type WSHandler struct {
	runner   *service.RunnerService
	tr       *i18n.Translator
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(runner *service.RunnerService, tr *i18n.Translator, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		runner:   runner,
		tr:       tr,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ExamStream godoc
// WS /ws/v1/exams/:exam_id/stream
// Pushes the session view on every change and countdown tick. Clients send
// answer, finish and ping actions.
func (h *WSHandler) ExamStream(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}
	owner := middleware.GetOwner(c)
	lang := middleware.GetLang(c)

	sess, err := h.runner.Session(c.Request.Context(), owner, examID)
	if err != nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	wsLog := h.log.With().Str("owner", owner).Str("exam_id", examID.String()).Logger()
	wsLog.Info().Msg("Applicant connected")

	// Views are coalesced: a slow client gets the latest one, not a backlog.
	updates := make(chan struct{}, 1)
	notify := func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	}
	unsubscribe := sess.Subscribe(func(session.State) { notify() })
	defer unsubscribe()

	actions := make(chan ws.RequestPayload)
	go func() {
		defer close(actions)
		for {
			var msg ws.RequestPayload
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				} else {
					wsLog.Debug().Msg("Connection closed")
				}
				return
			}
			select {
			case actions <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	failures := make(chan ws.ErrorResponse, 4)

	notify()
	for {
		select {
		case <-updates:
			if err := ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, View: sess.View(h.tr, lang)}); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed")
				return
			}

		case failure := <-failures:
			if err := ws.WriteTyped(conn, failure); err != nil {
				return
			}

		case msg, open := <-actions:
			if !open {
				return
			}
			switch msg.Action {
			case ws.ActionPing:
				if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
					return
				}
			case ws.ActionAnswer, ws.ActionFinish:
				go h.apply(ctx, sess, msg, lang, failures)
			default:
				wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
				_ = ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
			}
		}
	}
}

// apply runs one action; the resulting state reaches the client through the
// subscription, and failures are reported separately.
func (h *WSHandler) apply(ctx context.Context, sess *session.Session, msg ws.RequestPayload, lang i18n.Lang, failures chan<- ws.ErrorResponse) {
	var err error
	code := response.ErrAnswerFailed
	switch msg.Action {
	case ws.ActionAnswer:
		err = sess.Answer(ctx, msg.Value)
	case ws.ActionFinish:
		code = response.ErrFinishFailed
		err = sess.Finish(ctx)
	}
	if err == nil || session.Terminal(sess.State()) {
		return
	}

	failure := ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: err.Error()}
	var sessErr *session.Error
	if errors.As(err, &sessErr) {
		failure.Error = sessErr.Notice.Text(h.tr, lang)
		if errors.Is(err, session.ErrEmptyAnswer) {
			failure.Code = string(response.ErrInvalidPayload)
		}
	} else if _, stateCode, ok := stateFailure(err); ok {
		failure.Code = string(stateCode)
		failure.Error = response.GetMessage(stateCode)
	}

	select {
	case failures <- failure:
	case <-ctx.Done():
	}
}

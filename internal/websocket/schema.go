package websocket

import (
	"github.com/stemsi/exstem-placement/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionFinish Action = "finish"
	ActionPing   Action = "ping"
)

// RequestPayload is every message a client may send. Value is only read for
// ActionAnswer.
type RequestPayload struct {
	Action Action `json:"action"`
	Value  string `json:"value,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState Event = "state"
	EventError Event = "error"
	EventPong  Event = "pong"
)

// StateResponse carries the latest session view. It is sent on connect, on
// every transition and on every countdown tick.
type StateResponse struct {
	Event Event        `json:"event"`
	View  session.View `json:"view"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

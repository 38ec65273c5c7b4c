package session

import (
	"errors"

	"github.com/stemsi/exstem-placement/internal/apiclient"
	"github.com/stemsi/exstem-placement/internal/i18n"
)

var (
	ErrBusy           = errors.New("a request for this session is already in flight")
	ErrNotActive      = errors.New("session is not active")
	ErrAlreadyStarted = errors.New("session already started")
	ErrNoQuestion     = errors.New("no question left to answer")
	ErrTerminal       = errors.New("session already ended")
	ErrClosed         = errors.New("session closed")
	ErrEmptyAnswer    = errors.New("answer is empty")
)

// Notice is a user-facing message attached to a state.
type Notice struct {
	Key i18n.Key
	// Detail is the server's primary message, shown after the localized text.
	Detail string
}

// Text renders the notice in lang.
func (n Notice) Text(tr *i18n.Translator, lang i18n.Lang) string {
	text := tr.T(lang, n.Key)
	if n.Detail == "" {
		return text
	}
	return text + ": " + n.Detail
}

// Error is a recoverable failure: the state did not advance and the user may
// retry.
type Error struct {
	Notice Notice
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Notice.Key)
	}
	return string(e.Notice.Key) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func noticeFor(key i18n.Key, err error) *Notice {
	n := &Notice{Key: key}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		n.Detail = apiErr.Message()
	}
	return n
}

func stateError(st State) error {
	switch st.(type) {
	case Finished, Expired:
		return ErrTerminal
	case Submitting:
		return ErrBusy
	case Active:
		return ErrAlreadyStarted
	default:
		return ErrNotActive
	}
}

package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// TimeUpSignal is the marker the backend uses when an answer arrives after the
// submission deadline.
const TimeUpSignal = "TIME_UP"

// ErrServiceUnavailable wraps transport failures (DNS, refused, timeout).
var ErrServiceUnavailable = errors.New("exam service unavailable")

// APIError is a non-2xx response from the exam backend.
type APIError struct {
	StatusCode int
	// Body is the decoded JSON payload, or nil when the body was not JSON.
	Body any
	// Raw is the undecoded response body.
	Raw string

	message string
}

// NewAPIError builds an APIError from a response status and body.
func NewAPIError(status int, raw []byte) *APIError {
	e := &APIError{
		StatusCode: status,
		Raw:        strings.TrimSpace(string(raw)),
	}
	if json.Valid(raw) {
		_ = json.Unmarshal(raw, &e.Body)
		e.message = primaryMessage(raw)
	} else {
		e.message = e.Raw
	}
	return e
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.message
}

// Message returns the primary human-readable message of the body: the
// "detail" field, else the first field's first message, else the raw text.
func (e *APIError) Message() string {
	return e.message
}

// IsTimeUp reports whether the server rejected the request because the
// submission deadline has already elapsed.
func (e *APIError) IsTimeUp() bool {
	return strings.Contains(e.Raw, TimeUpSignal)
}

// IsTimeUp reports whether err carries the deadline-elapsed signal.
func IsTimeUp(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsTimeUp()
}

// primaryMessage walks a JSON body in document order so that "first field"
// means the first field the server wrote, not a random map key.
func primaryMessage(raw []byte) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return ""
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		if s, isStr := tok.(string); isStr {
			return s
		}
		return string(bytes.TrimSpace(raw))
	}

	switch delim {
	case '[':
		var first any
		if dec.More() && dec.Decode(&first) == nil {
			return messageOf(first)
		}
		return ""
	case '{':
	default:
		return ""
	}

	var first string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			break
		}
		key, _ := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			break
		}

		if key == "detail" {
			if msg := messageOf(value); msg != "" {
				return msg
			}
		}
		if first == "" {
			first = messageOf(value)
		}
	}
	return first
}

func messageOf(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

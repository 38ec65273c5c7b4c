package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Session state ─────────────────────────────────────────────────
	ErrSessionBusy       ErrCode = "SESSION_BUSY"
	ErrSessionNotActive  ErrCode = "SESSION_NOT_ACTIVE"
	ErrSessionStarted    ErrCode = "SESSION_ALREADY_STARTED"
	ErrSessionEnded      ErrCode = "SESSION_ENDED"
	ErrSessionClosed     ErrCode = "SESSION_CLOSED"
	ErrNoQuestionPending ErrCode = "NO_QUESTION_PENDING"

	// ─── Exam service ──────────────────────────────────────────────────
	ErrStartFailed  ErrCode = "START_FAILED"
	ErrAnswerFailed ErrCode = "ANSWER_FAILED"
	ErrFinishFailed ErrCode = "FINISH_FAILED"
	ErrUpstream     ErrCode = "UPSTREAM_ERROR"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "Sign in to take the placement test."
	case ErrTokenExpired:
		return "Your sign-in has expired. Sign in again."

	case ErrValidation:
		return "Validation failed. Check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrSessionBusy:
		return "Your previous request is still being saved."
	case ErrSessionNotActive:
		return "The test has not started."
	case ErrSessionStarted:
		return "The test has already started."
	case ErrSessionEnded:
		return "The test has already ended."
	case ErrSessionClosed:
		return "This test session was closed. Reload to continue."
	case ErrNoQuestionPending:
		return "All questions are answered."

	case ErrStartFailed:
		return "Could not start test."
	case ErrAnswerFailed:
		return "Failed to save answer. Try again."
	case ErrFinishFailed:
		return "Could not finish test."
	case ErrUpstream:
		return "The exam service is unavailable."

	case ErrRateLimitExceeded:
		return "Too many requests. Try again later."

	case ErrNotFound:
		return "Resource not found."
	case ErrInternal:
		return "Internal server error."
	default:
		return "Unexpected error."
	}
}

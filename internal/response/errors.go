package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Session ───────────────────────────────────────────────────────
	ErrSessionRequired ErrCode = "SESSION_REQUIRED"
	ErrSessionInvalid  ErrCode = "SESSION_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrInvalidInput   ErrCode = "INVALID_INPUT"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Quiz-specific ─────────────────────────────────────────────────
	ErrInvalidData         ErrCode = "INVALID_DATA"
	ErrFeedbackUnavailable ErrCode = "FEEDBACK_UNAVAILABLE"
	ErrUnknownAction       ErrCode = "UNKNOWN_ACTION"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Session ───────────────────────────────────────────────────────
	case ErrSessionRequired:
		return "No quiz session. Answer a question first."
	case ErrSessionInvalid:
		return "Quiz session is invalid or expired."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrInvalidInput:
		return "Invalid input"
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Quiz-specific ─────────────────────────────────────────────────
	case ErrInvalidData:
		return "Invalid data"
	case ErrFeedbackUnavailable:
		return "Feedback could not be generated. Please try again later."
	case ErrUnknownAction:
		return "Unknown action."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "Unexpected error."
	}
}

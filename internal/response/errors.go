package response

// ErrCode identifies an API error independently of its message.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrUnknownEptID       ErrCode = "UNKNOWN_EPT_ID"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidSection ErrCode = "INVALID_SECTION"

	// ─── Registration ──────────────────────────────────────────────────
	ErrNoBooking          ErrCode = "NO_BOOKING"
	ErrDuplicateBooking   ErrCode = "DUPLICATE_BOOKING"
	ErrDateFull           ErrCode = "DATE_FULL"
	ErrUnknownTestDate    ErrCode = "UNKNOWN_TEST_DATE"
	ErrRefugeeDate        ErrCode = "REFUGEE_DATE_ONLY"
	ErrAttendanceRequired ErrCode = "ATTENDANCE_NOT_CONFIRMED"

	// ─── Test delivery ─────────────────────────────────────────────────
	ErrTestNotAvailable  ErrCode = "TEST_NOT_AVAILABLE"
	ErrTestNotFound      ErrCode = "TEST_NOT_FOUND"
	ErrAlreadySubmitted  ErrCode = "ALREADY_SUBMITTED"
	ErrInvalidSubmission ErrCode = "INVALID_SUBMISSION"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrUnknownEptID:
		return "Invalid EPT ID."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or has expired."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "The request payload is invalid."
	case ErrInvalidSection:
		return "Unknown test section."

	case ErrNoBooking:
		return "No booking was found for this EPT ID."
	case ErrDuplicateBooking:
		return "A booking already exists for this EPT ID."
	case ErrDateFull:
		return "This date is fully booked. Please choose another date."
	case ErrUnknownTestDate:
		return "The selected date is not offered."
	case ErrRefugeeDate:
		return "This date is reserved for refugee candidates."
	case ErrAttendanceRequired:
		return "Please confirm that you will attend on the selected date."

	case ErrTestNotAvailable:
		return "Your test is not available at this time."
	case ErrTestNotFound:
		return "No test is scheduled for this section and date."
	case ErrAlreadySubmitted:
		return "This section has already been submitted."
	case ErrInvalidSubmission:
		return "The submission could not be accepted."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrNotFound:
		return "Resource not found."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}

package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrLoginInvalidated   ErrCode = "LOGIN_INVALIDATED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden           ErrCode = "FORBIDDEN"
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrStaffAccessOnly     ErrCode = "STAFF_ACCESS_ONLY"
	ErrAdminAccessOnly     ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrInvalidState      ErrCode = "INVALID_STATE"
	ErrPaperNotAvailable ErrCode = "PAPER_NOT_AVAILABLE"
	ErrPaperNotDraft     ErrCode = "PAPER_NOT_DRAFT"
	ErrPaperNotPublished ErrCode = "PAPER_NOT_PUBLISHED"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"
	ErrNotPaperOwner     ErrCode = "NOT_PAPER_OWNER"

	// ─── Grading ───────────────────────────────────────────────────────
	ErrNotSubmitted     ErrCode = "NOT_SUBMITTED"
	ErrAlreadyPublished ErrCode = "ALREADY_PUBLISHED"

	// ─── Store ─────────────────────────────────────────────────────────
	ErrStoreUnavailable ErrCode = "STORE_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is not valid."
	case ErrLoginInvalidated:
		return "Your login has been invalidated. Please sign in again."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrCandidateAccessOnly:
		return "This resource is restricted to candidates."
	case ErrStaffAccessOnly:
		return "This resource is restricted to instructors."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "The request payload is not valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrInvalidState:
		return "This operation is not allowed in the attempt's current state."
	case ErrPaperNotAvailable:
		return "This paper is not currently available to you."
	case ErrPaperNotDraft:
		return "This paper is no longer a draft."
	case ErrPaperNotPublished:
		return "This paper has not been published."
	case ErrNoQuestions:
		return "This paper has no questions."
	case ErrNotPaperOwner:
		return "You are not the owner of this paper."

	// ─── Grading ───────────────────────────────────────────────────────
	case ErrNotSubmitted:
		return "The attempt has not been submitted yet."
	case ErrAlreadyPublished:
		return "A result has already been published for this attempt."

	// ─── Store ─────────────────────────────────────────────────────────
	case ErrStoreUnavailable:
		return "The document store is temporarily unavailable. Please retry."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}

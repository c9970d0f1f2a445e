package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// Authentication.
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// Authorization.
	ErrStaffAccessOnly ErrCode = "STAFF_ACCESS_ONLY"

	// Validation.
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// Resources.
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// Watches.
	ErrSectionLimit       ErrCode = "SECTION_LIMIT_REACHED"
	ErrSectionUnreachable ErrCode = "SECTION_UNREACHABLE"
	ErrSectionNotOffered  ErrCode = "SECTION_NOT_OFFERED"
	ErrAlreadyWatching    ErrCode = "ALREADY_WATCHING"

	// Rate limiting.
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// Server.
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Incorrect username or password."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrStaffAccessOnly:
		return "This resource is restricted to staff."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "That username or email is already taken."
	case ErrSectionLimit:
		return "You have reached the maximum number of monitored sections. Remove one from your profile to add another."
	case ErrSectionUnreachable:
		return "We were unable to download this section's page. The SSC may be down for maintenance or under heavy load; please try again in a couple hours."
	case ErrSectionNotOffered:
		return "This section does not appear to exist. Please check your entry for errors and try again."
	case ErrAlreadyWatching:
		return "You are already monitoring this section."
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}

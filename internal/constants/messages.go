package constants

// Error messages used in API responses.
// These are the human-readable messages returned in the "message" field.
const (
	// Common messages
	MsgInvalidRequestBody = "Invalid request body"
	MsgInternalError      = "An internal error occurred"

	// Shortener-specific messages
	MsgInvalidURL        = "Invalid URL (must be an absolute http or https URL)"
	MsgLinkNotFound      = "Link not found"
	MsgInvalidDateRange  = "from and to must be YYYY-MM-DD dates with from <= to"
	MsgMissingDateRange  = "from and to are required (YYYY-MM-DD)"
	MsgReversedDateRange = "from must be <= to"
	MsgDateRangeTooLarge = "date range must cover at most 366 days"
	MsgExpiryInPast      = "expiresAt must be in the future"
	MsgWelcome           = "Welcome to the URL shortener. POST /api/shorten with {\"url\": \"...\"} to create a short link."
)

package constants

// Error codes used in API responses.
// These are the machine-readable codes returned in the "error" field.
const (
	// Common error codes
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInternalError  = "INTERNAL_ERROR"

	// Shortener-specific codes
	CodeInvalidURL       = "INVALID_URL"
	CodeLinkNotFound     = "LINK_NOT_FOUND"
	CodeInvalidDateRange = "INVALID_DATE_RANGE"

	// Success codes
	CodeLinkCreated      = "LINK_CREATED"
	CodeStatsFound       = "STATS_FOUND"
	CodeDailyStatsFound  = "DAILY_STATS_FOUND"
	CodeServiceAvailable = "SERVICE_AVAILABLE"
)

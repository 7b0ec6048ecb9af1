package constants

import "net/http"

// APIError is the error body written by httputils.WriteAPIError.
type APIError struct {
	Code    string
	Message string
	Status  int
}

func (e APIError) Error() string {
	return e.Code + ": " + e.Message
}

// WithMessage keeps the code and status but replaces the message.
func (e APIError) WithMessage(message string) APIError {
	e.Message = message
	return e
}

func badRequest(code, msg string) APIError {
	return APIError{Code: code, Message: msg, Status: http.StatusBadRequest}
}

// Invalid input maps to 400, unknown codes to 404, everything else to 500.
var (
	ErrInvalidRequestBody = badRequest(CodeInvalidRequest, MsgInvalidRequestBody)
	ErrInvalidURL         = badRequest(CodeInvalidURL, MsgInvalidURL)
	ErrExpiryInPast       = badRequest(CodeInvalidRequest, MsgExpiryInPast)
	ErrInvalidDateRange   = badRequest(CodeInvalidDateRange, MsgInvalidDateRange)
	ErrMissingDateRange   = badRequest(CodeInvalidDateRange, MsgMissingDateRange)
	ErrReversedDateRange  = badRequest(CodeInvalidDateRange, MsgReversedDateRange)
	ErrDateRangeTooLarge  = badRequest(CodeInvalidDateRange, MsgDateRangeTooLarge)

	ErrLinkNotFound = APIError{Code: CodeLinkNotFound, Message: MsgLinkNotFound, Status: http.StatusNotFound}

	ErrInternalError = APIError{Code: CodeInternalError, Message: MsgInternalError, Status: http.StatusInternalServerError}
)

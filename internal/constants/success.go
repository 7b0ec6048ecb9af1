package constants

import "net/http"

// APISuccess is the code and status written by httputils.WriteAPISuccess.
type APISuccess struct {
	Code   string
	Status int
}

var (
	SuccessLinkCreated      = APISuccess{Code: CodeLinkCreated, Status: http.StatusCreated}
	SuccessStatsFound       = APISuccess{Code: CodeStatsFound, Status: http.StatusOK}
	SuccessDailyStatsFound  = APISuccess{Code: CodeDailyStatsFound, Status: http.StatusOK}
	SuccessServiceAvailable = APISuccess{Code: CodeServiceAvailable, Status: http.StatusOK}
)

package dto

import (
	"net/http"

	"github.com/finbooks/backend/internal/domain/shared"
)

// Transport-level error codes that have no domain counterpart
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes. Domain codes
// carry business-rule violations and map mostly to 422; transport codes map
// to their usual statuses.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeInternal:     http.StatusInternalServerError,

	shared.CodeInvalidInput:        http.StatusBadRequest,
	shared.CodeNotFound:            http.StatusNotFound,
	shared.CodeAlreadyExists:       http.StatusConflict,
	shared.CodeConcurrencyConflict: http.StatusConflict,
	shared.CodeInvalidState:        http.StatusUnprocessableEntity,
	shared.CodeNegativeResult:      http.StatusUnprocessableEntity,
	shared.CodeOverpaymentRejected: http.StatusUnprocessableEntity,
	shared.CodeExceedsBalance:      http.StatusUnprocessableEntity,
	shared.CodeExceedsRefundable:   http.StatusUnprocessableEntity,
	shared.CodeSequencerExhausted:  http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes used across the ledger
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeInvalidState        = "INVALID_STATE"
	CodeNegativeResult      = "NEGATIVE_RESULT"
	CodeOverpaymentRejected = "OVERPAYMENT_REJECTED"
	CodeExceedsBalance      = "EXCEEDS_BALANCE"
	CodeExceedsRefundable   = "EXCEEDS_REFUNDABLE"
	CodeSequencerExhausted  = "SEQUENCER_EXHAUSTED"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrSequencerExhausted  = NewDomainError(CodeSequencerExhausted, "Document number allocation retries exhausted")
)

// IsDomainErrorWithCode reports whether err is a DomainError carrying the given code
func IsDomainErrorWithCode(err error, code string) bool {
	de, ok := err.(*DomainError)
	return ok && de.Code == code
}

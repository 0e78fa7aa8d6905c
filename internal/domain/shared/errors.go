package shared

import "fmt"

// Error codes shared by every layer. HTTP status mapping lives in the dto package.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeLedgerUnavailable   = "LEDGER_UNAVAILABLE"
	CodeLedgerRejected      = "LEDGER_REJECTED"
	CodePersistence         = "PERSISTENCE_ERROR"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeAlreadyExists       = "ALREADY_EXISTS"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code,
// so callers can write errors.Is(err, shared.ErrNotFound).
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error carrying a cause
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// NewValidationError reports malformed or missing input
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError reports an unknown item or code
func NewNotFoundError(format string, args ...any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf(format, args...))
}

// NewInvalidTransitionError reports a lifecycle rule violation
func NewInvalidTransitionError(format string, args ...any) *DomainError {
	return NewDomainError(CodeInvalidTransition, fmt.Sprintf(format, args...))
}

// NewLedgerUnavailableError reports a transient ledger problem (network, timeout, identity)
func NewLedgerUnavailableError(message string, cause error) *DomainError {
	return WrapDomainError(CodeLedgerUnavailable, message, cause)
}

// NewLedgerRejectedError reports the ledger's own refusal of an operation
func NewLedgerRejectedError(message string, cause error) *DomainError {
	return WrapDomainError(CodeLedgerRejected, message, cause)
}

// NewPersistenceError reports a local storage failure
func NewPersistenceError(message string, cause error) *DomainError {
	return WrapDomainError(CodePersistence, message, cause)
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput        = NewDomainError(CodeValidation, "Invalid input provided")
	ErrInvalidTransition   = NewDomainError(CodeInvalidTransition, "Transition not allowed in current status")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrForbidden           = NewDomainError(CodeForbidden, "Access to this resource is forbidden")
	ErrLedgerUnavailable   = NewDomainError(CodeLedgerUnavailable, "Ledger network unavailable")
	ErrLedgerRejected      = NewDomainError(CodeLedgerRejected, "Ledger rejected the operation")
	ErrPersistence         = NewDomainError(CodePersistence, "Local storage failure")
)

package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeExtraction         = "EXTRACTION_ERROR"
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrCodeCountMismatch      = "COUNT_MISMATCH"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAccessDenied       = "ACCESS_DENIED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyQuery         = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrInvalidChunkConfig = NewDomainError(ErrCodeValidation, "chunk overlap must be non-negative and smaller than chunk size")
	ErrDimensionMismatch  = NewDomainError(ErrCodeValidation, "vector dimension does not match index dimension")
)

// Extraction errors
var (
	ErrUnreadableDocument = NewDomainError(ErrCodeExtraction, "document bytes could not be parsed")
)

// Backend errors
var (
	ErrStoreUnavailable     = NewDomainError(ErrCodeBackendUnavailable, "document store unreachable")
	ErrIndexUnavailable     = NewDomainError(ErrCodeBackendUnavailable, "vector index unreachable")
	ErrEmbeddingUnavailable = NewDomainError(ErrCodeBackendUnavailable, "embedding service unreachable")
)

// Not found errors
var (
	ErrBlobNotFound       = NewDomainError(ErrCodeNotFound, "document not found in store")
	ErrCollectionNotFound = NewDomainError(ErrCodeNotFound, "vector collection not found")
)

// Access errors
var (
	ErrStoreAccessDenied = NewDomainError(ErrCodeAccessDenied, "document store rejected credentials")
)

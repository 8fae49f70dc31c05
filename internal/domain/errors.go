package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeModelUnavailable = "MODEL_UNAVAILABLE"
	ErrCodeProcessing       = "PROCESSING_ERROR"
	ErrCodeRateLimit        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalServer   = "INTERNAL_SERVER_ERROR"
)

var (
	// ErrModelUnavailable means the model handle is not loaded, its load
	// failed, or the backend is currently refusing calls.
	ErrModelUnavailable = errors.New("model is not loaded or failed to load")

	// ErrGenerationTimeout means generation did not finish, or was not
	// admitted, within the configured bound.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrBusy is returned when a download or load is already in progress.
	ErrBusy = errors.New("model operation already in progress")
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// ValidationErrors collects every failed field of one submission.
type ValidationErrors []*ValidationError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// GenerationError wraps a failure raised by the inference backend while
// producing a completion.
type GenerationError struct {
	Backend string
	Err     error
}

// Error implements the error interface
func (e *GenerationError) Error() string {
	return fmt.Sprintf("error generating response (%s): %v", e.Backend, e.Err)
}

// Unwrap returns the underlying backend error
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, detail, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// Classify maps an error from the pipeline onto the externally visible
// outcome. exposeDetail is false for unexpected errors, whose text must only
// reach the logs.
func Classify(err error) (status int, code string, exposeDetail bool) {
	var (
		ve  *ValidationError
		ves ValidationErrors
		ge  *GenerationError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ves):
		return http.StatusBadRequest, ErrCodeInvalidInput, true
	case errors.Is(err, ErrModelUnavailable):
		return http.StatusServiceUnavailable, ErrCodeModelUnavailable, true
	case errors.Is(err, ErrGenerationTimeout), errors.As(err, &ge):
		return http.StatusServiceUnavailable, ErrCodeProcessing, true
	default:
		return http.StatusInternalServerError, ErrCodeInternalServer, false
	}
}

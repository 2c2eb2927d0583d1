// Package errors provides structured error handling for the application.
// Every failure surfaced to a caller is an AppError carrying a code and,
// for pipeline failures, the stage that produced it.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents an error code
type ErrorCode string

const (
	// Pipeline taxonomy
	CodeConfiguration    ErrorCode = "CONFIGURATION_ERROR"
	CodeUpstream         ErrorCode = "UPSTREAM_ERROR"
	CodeParse            ErrorCode = "PARSE_ERROR"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeStateConflict    ErrorCode = "STATE_CONFLICT"
	CodeGenerationFailed ErrorCode = "GENERATION_FAILED"

	// General purpose
	CodeBadRequest    ErrorCode = "BAD_REQUEST"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeDatabaseError ErrorCode = "DATABASE_ERROR"
	CodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// Stage identifies the pipeline step that failed.
type Stage string

const (
	StageNone       Stage = ""
	StageDetection  Stage = "detection"
	StageSynthesis  Stage = "synthesis"
	StageAssessment Stage = "assessment"
	StageCommit     Stage = "commit"
)

// AppError represents an application error with structured information
type AppError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Details  string                 `json:"details,omitempty"`
	Stage    Stage                  `json:"stage,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Cause    error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	prefix := string(e.Code)
	if e.Stage != StageNone {
		prefix = fmt.Sprintf("%s[%s]", e.Code, e.Stage)
	}
	msg := fmt.Sprintf("%s: %s", prefix, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the appropriate HTTP status code
func (e *AppError) StatusCode() int {
	switch e.Code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeStateConflict:
		return http.StatusConflict
	case CodeParse, CodeValidationFailed, CodeGenerationFailed:
		// A generation failure caused by the provider itself is a gateway problem.
		if e.Code == CodeGenerationFailed && Is(e.Cause, CodeUpstream) {
			return http.StatusBadGateway
		}
		return http.StatusUnprocessableEntity
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether re-invoking the operation may succeed.
func (e *AppError) Retryable() bool {
	return Is(e, CodeUpstream) || Is(e, CodeParse) || Is(e, CodeStateConflict)
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithCause adds a cause error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithStage tags the error with a pipeline stage
func (e *AppError) WithStage(stage Stage) *AppError {
	e.Stage = stage
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewConfigurationError reports a missing or invalid setting. It is fatal at startup.
func NewConfigurationError(setting, details string) *AppError {
	return NewAppError(CodeConfiguration, "Invalid configuration", details).
		WithMetadata("setting", setting)
}

// NewUpstreamError wraps a provider failure (network, auth, quota, timeout).
func NewUpstreamError(provider string, cause error) *AppError {
	return NewAppError(
		CodeUpstream,
		"Generative model call failed",
		fmt.Sprintf("provider %s", provider),
	).WithCause(cause)
}

// NewParseError reports model output that could not be decoded.
func NewParseError(reason, details string) *AppError {
	return NewAppError(CodeParse, reason, details)
}

// NewValidationError creates a validation error
func NewValidationError(details string) *AppError {
	return NewAppError(CodeValidationFailed, "Validation failed", details)
}

// NewStateConflictError reports a concurrent modification that was refused.
func NewStateConflictError(resource string) *AppError {
	return NewAppError(
		CodeStateConflict,
		"State conflict",
		fmt.Sprintf("%s was modified concurrently", resource),
	).WithMetadata("resource", resource)
}

// NewGenerationError wraps a failure of one generation stage.
func NewGenerationError(stage Stage, cause error) *AppError {
	return NewAppError(CodeGenerationFailed, "No recipe produced", "").
		WithStage(stage).
		WithCause(cause)
}

// NewBadRequestError creates a bad request error
func NewBadRequestError(message string) *AppError {
	return NewAppError(CodeBadRequest, message, "")
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource, id string) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s not found", resource), id).
		WithMetadata("id", id)
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *AppError {
	return NewAppError(
		CodeDatabaseError,
		"Database operation failed",
		fmt.Sprintf("Failed to %s", operation),
	).WithCause(cause)
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return NewAppError(CodeInternal, message, "")
}

// Wrap wraps an error as an internal error if it's not already an AppError
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(message).WithCause(err)
}

// Is reports whether any AppError in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// StageOf returns the first stage tag found in err's chain.
func StageOf(err error) Stage {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return StageNone
		}
		if appErr.Stage != StageNone {
			return appErr.Stage
		}
		err = appErr.Cause
	}
	return StageNone
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

// ErrorDetails represents the error details in API responses
type ErrorDetails struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Stage     Stage                  `json:"stage,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// ToErrorResponse converts an AppError to an API error response
func ToErrorResponse(err *AppError, requestID string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetails{
			Code:      err.Code,
			Message:   err.Message,
			Details:   err.Details,
			Stage:     StageOf(err),
			Retryable: err.Retryable(),
			Metadata:  err.Metadata,
			RequestID: requestID,
			Timestamp: fmt.Sprintf("%d", time.Now().Unix()),
		},
	}
}

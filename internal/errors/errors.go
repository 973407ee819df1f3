package errors

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	CategoryClient ErrorCategory = "client"
	CategoryServer ErrorCategory = "server"
)

// Common error codes
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInvalidID       = "INVALID_ID"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeRouteNotFound   = "ROUTE_NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeEmailExists     = "EMAIL_EXISTS"
	CodeIncorrectCode   = "INCORRECT_CODE"
	CodeCodeExpired     = "CODE_EXPIRED"

	CodeInternalError = "INTERNAL_ERROR"
	CodeDatabaseError = "DATABASE_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code       string
	Message    string
	Category   ErrorCategory
	HTTPStatus int
	Cause      error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the symbolic error code
func (e *AppError) ErrorCode() string {
	return e.Code
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause sets the underlying cause of the error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// ErrorResponse is the JSON structure returned to clients
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the HTTP status as a number in Code.
type ErrorBody struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// New creates a new AppError
func New(code string, message string, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Category:   category,
		HTTPStatus: httpStatus,
	}
}

// Client error constructors

func BadRequest(message string) *AppError {
	return New(CodeInvalidRequest, message, CategoryClient, http.StatusBadRequest)
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message, CategoryClient, http.StatusBadRequest)
}

func InvalidID(id string) *AppError {
	return New(CodeInvalidID, fmt.Sprintf("Invalid Id: %s", id), CategoryClient, http.StatusBadRequest)
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, CategoryClient, http.StatusUnauthorized)
}

func Forbidden(message string) *AppError {
	return New(CodeForbidden, message, CategoryClient, http.StatusForbidden)
}

func NotFound(message string) *AppError {
	return New(CodeNotFound, message, CategoryClient, http.StatusNotFound)
}

func RouteNotFound(url string) *AppError {
	return New(CodeRouteNotFound, fmt.Sprintf("Unable to find route: %s", url), CategoryClient, http.StatusNotFound)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, CategoryClient, http.StatusConflict)
}

func EmailExists(email string) *AppError {
	return New(CodeEmailExists, fmt.Sprintf("User with mail %s already exist.", email), CategoryClient, http.StatusConflict)
}

func IncorrectCode(message string) *AppError {
	return New(CodeIncorrectCode, message, CategoryClient, http.StatusConflict)
}

func CodeExpired(message string) *AppError {
	return New(CodeCodeExpired, message, CategoryClient, http.StatusConflict)
}

// Server error constructors

func InternalError(message string) *AppError {
	return New(CodeInternalError, message, CategoryServer, http.StatusInternalServerError)
}

func DatabaseError(message string) *AppError {
	return New(CodeDatabaseError, message, CategoryServer, http.StatusInternalServerError)
}

// FromValidation turns ozzo-validation field errors into a 400. Any other
// error from a validator is an internal error.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if goerrors.As(err, &fieldErrs) {
		return ValidationError("Validation error: " + fieldErrs.Error())
	}
	return InternalError("validation failed").WithCause(err)
}

// AsAppError returns err as an *AppError, wrapping unknown errors as internal errors
func AsAppError(err error) *AppError {
	var appErr *AppError
	if goerrors.As(err, &appErr) {
		return appErr
	}
	return InternalError("an unexpected error occurred").WithCause(err)
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, requestID string, err error) {
	appErr := AsAppError(err)

	resp := ErrorResponse{
		Error: ErrorBody{
			Code:      appErr.HTTPStatus,
			Message:   appErr.Message,
			RequestID: requestID,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set(RequestIDHeader, requestID)
	}
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes a JSON response with the request ID header
func WriteJSON(w http.ResponseWriter, requestID string, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set(RequestIDHeader, requestID)
	}
	w.WriteHeader(status)
	if data == nil {
		return
	}
	json.NewEncoder(w).Encode(data)
}

// IsClientError returns true if the error is a client error
func IsClientError(err error) bool {
	var appErr *AppError
	if !goerrors.As(err, &appErr) {
		return false
	}
	return appErr.Category == CategoryClient
}

// IsServerError returns true for server errors and for anything that is not an AppError
func IsServerError(err error) bool {
	var appErr *AppError
	if !goerrors.As(err, &appErr) {
		return true
	}
	return appErr.Category == CategoryServer
}

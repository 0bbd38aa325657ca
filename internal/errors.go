package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount        ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidReferenceCode ErrorCode = "INVALID_REFERENCE_CODE"

	ErrCodeMissingAPIKey       ErrorCode = "MISSING_API_KEY"
	ErrCodeInvalidAPIKey       ErrorCode = "INVALID_API_KEY"
	ErrCodeMissingGatewayToken ErrorCode = "MISSING_GATEWAY_TOKEN"
	ErrCodeInvalidGatewayToken ErrorCode = "INVALID_GATEWAY_TOKEN"

	ErrCodeTransactionNotFound     ErrorCode = "TRANSACTION_NOT_FOUND"
	ErrCodeReferenceCodeExists     ErrorCode = "REFERENCE_CODE_EXISTS"
	ErrCodeTransactionCreateFailed ErrorCode = "TRANSACTION_CREATE_FAILED"
	ErrCodeStoreWriteFailed        ErrorCode = "STORE_WRITE_FAILED"
	ErrCodeDeliveryInProgress      ErrorCode = "DELIVERY_IN_PROGRESS"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			messages := make([]string, len(validationErrors.Errors))
			for i, err := range validationErrors.Errors {
				messages[i] = err.Message
			}
			return strings.Join(messages, "; ")
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches two AppErrors by code so wrapped sentinels compare with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

var (
	ErrMissingAPIKey       = NewUnauthorizedError("Unauthorized: missing internal API key", ErrCodeMissingAPIKey)
	ErrInvalidAPIKey       = NewUnauthorizedError("Unauthorized: invalid internal API key", ErrCodeInvalidAPIKey)
	ErrMissingGatewayToken = NewUnauthorizedError("Unauthorized: missing gateway authorization", ErrCodeMissingGatewayToken)
	ErrInvalidGatewayToken = NewUnauthorizedError("Unauthorized: invalid gateway token", ErrCodeInvalidGatewayToken)

	ErrTransactionNotFound = NewNotFoundError("Transaction not found", ErrCodeTransactionNotFound)
	ErrReferenceCodeExists = NewConflictError("Transaction with this reference code already exists", ErrCodeReferenceCodeExists)
	ErrDeliveryInProgress  = NewConflictError("Webhook delivery is already being processed", ErrCodeDeliveryInProgress)

	ErrTransactionCreate = &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodeTransactionCreateFailed,
		Message:    "Failed to create transaction",
		StatusCode: http.StatusInternalServerError,
	}
	ErrStoreWrite = &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodeStoreWriteFailed,
		Message:    "Failed to persist transaction",
		StatusCode: http.StatusInternalServerError,
	}
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}

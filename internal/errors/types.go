package errors

import (
	"errors"
	"fmt"

	"github.com/telaak/serial-gsm-rest/internal/models"
)

// ErrorCode represents a categorized error type
type ErrorCode string

const (
	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeMissingConfig ErrorCode = "MISSING_CONFIG"

	// Modem errors
	ErrCodeDeviceCommand ErrorCode = "DEVICE_COMMAND"
	ErrCodeTransmission  ErrorCode = "TRANSMISSION"
	ErrCodePartialSend   ErrorCode = "PARTIAL_SEND"

	// Storage errors
	ErrCodeStorage ErrorCode = "STORAGE"

	// Shared errors
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeWebSocket     ErrorCode = "WEBSOCKET"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// GetCode extracts the error code from an error. Send errors often wrap an
// AppError cause; the outermost classification wins.
func GetCode(err error) ErrorCode {
	var psErr *PartialSendError
	if errors.As(err, &psErr) {
		return ErrCodePartialSend
	}
	var txErr *TransmissionError
	if errors.As(err, &txErr) {
		return ErrCodeTransmission
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalError
}

// IsNotFound reports whether err represents a missing row or device index
func IsNotFound(err error) bool {
	return GetCode(err) == ErrCodeNotFound
}

// TransmissionError reports a single segment transmission the device did not
// accept. It carries the partial result the device returned.
type TransmissionError struct {
	Result models.TransmissionResult
	Cause  error
}

func (e *TransmissionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: transmission to %s failed: %v", ErrCodeTransmission, e.Result.Recipient, e.Cause)
	}
	return fmt.Sprintf("%s: transmission to %s failed: %s", ErrCodeTransmission, e.Result.Recipient, e.Result.Response)
}

func (e *TransmissionError) Unwrap() error {
	return e.Cause
}

// PartialSendError reports a multipart send where at least one segment
// failed. Sent holds the segments that reached the network; they are not
// retracted, so callers must treat failure as possibly-partially-delivered.
type PartialSendError struct {
	Sent  []models.TransmissionResult
	Cause error
}

func (e *PartialSendError) Error() string {
	return fmt.Sprintf("%s: %d segment(s) sent before failure: %v", ErrCodePartialSend, len(e.Sent), e.Cause)
}

func (e *PartialSendError) Unwrap() error {
	return e.Cause
}

package protocol

import (
	"errors"
	"time"
)

// Core protocol errors
var (
	// Connection errors

	ErrConnectionClosed      = errors.New("connection is closed")
	ErrConnectionTimeout     = errors.New("connection timeout")
	ErrMaxConnectionsReached = errors.New("maximum connections reached")

	// Message errors

	ErrMessageTooLarge       = errors.New("message too large")
	ErrInvalidMessage        = errors.New("invalid message")
	ErrSerializationFailed   = errors.New("message serialization failed")
	ErrDeserializationFailed = errors.New("message deserialization failed")

	// Stream errors

	ErrStreamClosed = errors.New("stream is closed")

	// Transport errors

	ErrTransportClosed = errors.New("transport is closed")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrListenFailed    = errors.New("listen failed")
	ErrDialFailed      = errors.New("dial failed")

	// Configuration errors

	ErrInvalidConfig = errors.New("invalid configuration")

	// Generic errors

	ErrInternalError = errors.New("internal error")
	ErrUnknownError  = errors.New("unknown error")
)

// ErrorCode represents a numeric error code for efficient error handling
type ErrorCode int

const (
	// Success

	ErrorCodeSuccess ErrorCode = 0

	// Connection error codes (1000-1999)

	ErrorCodeConnectionClosed      ErrorCode = 1001
	ErrorCodeConnectionTimeout     ErrorCode = 1002
	ErrorCodeMaxConnectionsReached ErrorCode = 1006

	// Message error codes (3000-3999)

	ErrorCodeMessageTooLarge       ErrorCode = 3001
	ErrorCodeInvalidMessage        ErrorCode = 3003
	ErrorCodeSerializationFailed   ErrorCode = 3005
	ErrorCodeDeserializationFailed ErrorCode = 3006

	// Stream error codes (4000-4999)

	ErrorCodeStreamClosed ErrorCode = 4001

	// Transport error codes (7000-7999)

	ErrorCodeTransportClosed ErrorCode = 7002
	ErrorCodeInvalidAddress  ErrorCode = 7004
	ErrorCodeListenFailed    ErrorCode = 7006
	ErrorCodeDialFailed      ErrorCode = 7007

	// Generic error codes (9000-9999)

	ErrorCodeInvalidConfig ErrorCode = 9001
	ErrorCodeInternalError ErrorCode = 9003
	ErrorCodeUnknownError  ErrorCode = 9999
)

// Error represents a protocol-specific error with additional context
type Error struct {
	Code      ErrorCode
	Message   string
	Cause     error
	Timestamp int64
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewProtocolError creates a new protocol error
func NewProtocolError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now().Unix(),
	}
}

// IsTemporary checks if the error is temporary and the operation can be retried
func (e *Error) IsTemporary() bool {
	switch e.Code {
	case ErrorCodeConnectionTimeout,
		ErrorCodeMaxConnectionsReached:
		return true
	default:
		return false
	}
}

// IsFatal checks if the error is fatal and the connection should be closed
func (e *Error) IsFatal() bool {
	switch e.Code {
	case ErrorCodeConnectionClosed,
		ErrorCodeStreamClosed,
		ErrorCodeTransportClosed:
		return true
	default:
		return false
	}
}

// Error mapping from standard errors to error codes
var errorCodeMap = map[error]ErrorCode{
	ErrConnectionClosed:      ErrorCodeConnectionClosed,
	ErrConnectionTimeout:     ErrorCodeConnectionTimeout,
	ErrMaxConnectionsReached: ErrorCodeMaxConnectionsReached,

	ErrMessageTooLarge:       ErrorCodeMessageTooLarge,
	ErrInvalidMessage:        ErrorCodeInvalidMessage,
	ErrSerializationFailed:   ErrorCodeSerializationFailed,
	ErrDeserializationFailed: ErrorCodeDeserializationFailed,

	ErrStreamClosed: ErrorCodeStreamClosed,

	ErrTransportClosed: ErrorCodeTransportClosed,
	ErrInvalidAddress:  ErrorCodeInvalidAddress,
	ErrListenFailed:    ErrorCodeListenFailed,
	ErrDialFailed:      ErrorCodeDialFailed,

	ErrInvalidConfig: ErrorCodeInvalidConfig,
	ErrInternalError: ErrorCodeInternalError,
	ErrUnknownError:  ErrorCodeUnknownError,
}

// GetErrorCode returns the error code for a given error
func GetErrorCode(err error) ErrorCode {
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		return protocolErr.Code
	}

	return ErrorCodeUnknownError
}

// WrapError wraps a standard error into a protocol Error
func WrapError(err error, message string) *Error {
	code := GetErrorCode(err)
	return NewProtocolError(code, message, err)
}

package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidErrorRecord is returned when an error record is malformed.
var ErrInvalidErrorRecord = errors.New("invalid error record")

// ErrorType classifies a job error for retry decisions.
type ErrorType string

// Error types recorded against ingestion jobs. Network, timeout, rate-limit,
// and infrastructure errors are transient; validation and parsing errors are
// permanent and never retried.
const (
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeRateLimited    ErrorType = "rate_limited"
	ErrorTypeInfrastructure ErrorType = "infrastructure"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeParsing        ErrorType = "parsing"
)

// ErrorRecord captures a single failure observed while executing a job.
type ErrorRecord struct {
	ErrorID    string    `json:"error_id"`
	Timestamp  time.Time `json:"timestamp"`
	Type       ErrorType `json:"error_type"`
	Message    string    `json:"message"`
	StackTrace string    `json:"stack_trace,omitempty"`
	RetryCount int       `json:"retry_count"`
}

// NewErrorRecord builds a validated record stamped with the given time.
func NewErrorRecord(errorID string, at time.Time, errType ErrorType, message string) (ErrorRecord, error) {
	if errorID == "" {
		return ErrorRecord{}, fmt.Errorf("%w: error id is required", ErrInvalidErrorRecord)
	}
	if message == "" {
		return ErrorRecord{}, fmt.Errorf("%w: message is required", ErrInvalidErrorRecord)
	}
	switch errType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimited,
		ErrorTypeInfrastructure, ErrorTypeValidation, ErrorTypeParsing:
	default:
		return ErrorRecord{}, fmt.Errorf("%w: unknown error type %q", ErrInvalidErrorRecord, errType)
	}
	return ErrorRecord{
		ErrorID:   errorID,
		Timestamp: at.UTC(),
		Type:      errType,
		Message:   message,
	}, nil
}

// IsRetryable reports whether the error type is transient.
func (r ErrorRecord) IsRetryable() bool {
	switch r.Type {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimited, ErrorTypeInfrastructure:
		return true
	default:
		return false
	}
}

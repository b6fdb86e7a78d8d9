package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Category sentinels.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrRateLimit    = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid  = fmt.Errorf("authentication failed")
	ErrBackend      = fmt.Errorf("backend error")
)

// Sentinel errors for the domain layer.
var (
	ErrNetwork         = fmt.Errorf("network unreachable")
	ErrCircuitOpen     = fmt.Errorf("backend circuit open")
	ErrInvalidMode     = fmt.Errorf("unknown request mode")
	ErrEmptyUtterance  = fmt.Errorf("utterance is empty")
	ErrRequestInFlight = fmt.Errorf("a request is already in flight")
	ErrMalformedSource = fmt.Errorf("citation source has neither document id nor chunk id")
	ErrSearchFailed    = fmt.Errorf("search failed")
	ErrAnswerFailed    = fmt.Errorf("question answering failed")
	ErrUploadFailed    = fmt.Errorf("upload failed")
	ErrUploadPartial   = fmt.Errorf("upload partially failed")
	ErrFileRejected    = fmt.Errorf("file rejected")
	ErrConfigLoad      = fmt.Errorf("failed to load configuration")
	ErrDecryption      = fmt.Errorf("decryption failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Orchestrator.Submit")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// TransportError is the normalized failure raised by the backend transport.
// Status is 0 when no HTTP response was received.
type TransportError struct {
	Status    int
	Code      string // backend-provided code, if any
	Message   string
	RequestID string
	Err       error // underlying network error when Status == 0
}

func (e *TransportError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("transport: %v", e.Err)
	case e.Code != "":
		return fmt.Sprintf("backend %d %s: %s", e.Status, e.Code, e.Message)
	default:
		return fmt.Sprintf("backend %d: %s", e.Status, e.Message)
	}
}

// Unwrap maps the HTTP status onto a category sentinel so callers can use errors.Is.
func (e *TransportError) Unwrap() []error {
	var cat error
	switch {
	case e.Status == 0:
		cat = ErrNetwork
	case e.Status == http.StatusRequestTimeout || e.Status == http.StatusGatewayTimeout:
		cat = ErrTimeout
	case e.Status == http.StatusTooManyRequests:
		cat = ErrRateLimit
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		cat = ErrAuthInvalid
	case e.Status == http.StatusNotFound:
		cat = ErrNotFound
	case e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity ||
		e.Status == http.StatusRequestEntityTooLarge:
		cat = ErrInvalidInput
	case e.Status == http.StatusBadGateway || e.Status == http.StatusServiceUnavailable:
		cat = ErrNetwork
	default:
		cat = ErrBackend
	}
	if e.Err != nil {
		return []error{cat, e.Err}
	}
	return []error{cat}
}

// Retryable reports whether the request may succeed if sent again.
func (e *TransportError) Retryable() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// ErrorCode is the stable error kind surfaced in conversation state.
type ErrorCode string

const (
	CodeUploadError          ErrorCode = "UPLOAD_ERROR"
	CodeUploadPartialFailure ErrorCode = "UPLOAD_PARTIAL_FAILURE"
	CodeSearchError          ErrorCode = "SEARCH_ERROR"
	CodeLLMError             ErrorCode = "LLM_ERROR"
	CodeNetworkError         ErrorCode = "NETWORK_ERROR"
	CodeValidationError      ErrorCode = "VALIDATION_ERROR"
	CodeUnknown              ErrorCode = "UNKNOWN_ERROR"
)

// codePrecedence is walked in order, so a search failure caused by a network
// error still reports SEARCH_ERROR.
var codePrecedence = []struct {
	err  error
	code ErrorCode
}{
	{ErrUploadPartial, CodeUploadPartialFailure},
	{ErrUploadFailed, CodeUploadError},
	{ErrSearchFailed, CodeSearchError},
	{ErrAnswerFailed, CodeLLMError},
	{ErrFileRejected, CodeValidationError},
	{ErrInvalidInput, CodeValidationError},
	{ErrInvalidMode, CodeValidationError},
	{ErrEmptyUtterance, CodeValidationError},
	{ErrMalformedSource, CodeValidationError},
	{ErrNetwork, CodeNetworkError},
	{ErrCircuitOpen, CodeNetworkError},
	{ErrTimeout, CodeNetworkError},
}

// ErrorCodeOf returns the error code for err, or CodeUnknown when nothing matches.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, p := range codePrecedence {
		if errors.Is(err, p.err) {
			return p.code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e)
}

// StateError is the structured error held in conversation state.
type StateError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStateError builds a StateError stamped with now.
func NewStateError(code ErrorCode, message string, now time.Time) *StateError {
	return &StateError{Code: code, Message: message, Timestamp: now}
}

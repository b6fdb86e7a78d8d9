// Package uxerror translates raw errors into user-friendly messages with
// recovery hints for the TUI and the one-shot CLI.
package uxerror

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docchat/internal/adapter/tui/theme"
	"docchat/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string           // short heading, e.g. "Backend Unreachable"
	Message string           // one-liner explanation
	Hints   []string         // actionable recovery suggestions
	Code    domain.ErrorCode // stable error kind
	Raw     string           // original error text (for debug)
}

// Render formats the FriendlyError for display in the message list.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

// Order matters: specific causes before the operation they happened in.
var patterns = []errorPattern{
	{
		match:   is(context.Canceled),
		produce: constantError("Request Cancelled", "The request was cancelled before the backend answered.", nil),
	},
	{
		match:   is(domain.ErrCircuitOpen),
		produce: constantError("Backend Paused", "Recent requests kept failing, so calls are paused for a moment.", []string{"Wait a few seconds and try again", "Run 'docchat doctor' to check the backend"}),
	},
	{
		match:   is(domain.ErrAuthInvalid),
		produce: constantError("Authentication Failed", "The backend rejected the API key.", []string{"Check backend.api_key or DOCCHAT_API_KEY", "Set DOCCHAT_CONFIG_KEY if the key is encrypted"}),
	},
	{
		match:   is(domain.ErrRateLimit),
		produce: constantError("Rate Limited", "The backend is receiving too many requests.", []string{"Wait a moment before retrying", "Lower backend.rate_limit in config"}),
	},
	{
		match:   anyOf(is(domain.ErrTimeout), is(context.DeadlineExceeded)),
		produce: constantError("Request Timed Out", "The backend took too long to respond.", []string{"Try a shorter question", "Increase backend.timeout in config"}),
	},
	{
		match:   is(domain.ErrNetwork),
		produce: constantError("Backend Unreachable", "Could not reach the document service.", []string{"Check that the backend is running", "Verify backend.base_url or DOCCHAT_BACKEND_URL", "Run 'docchat doctor'"}),
	},
	{
		match:   is(domain.ErrUploadPartial),
		produce: fromErr("Some Uploads Failed", []string{"Check the listed files", "Only .pdf and .txt files are accepted"}),
	},
	{
		match:   is(domain.ErrUploadFailed),
		produce: fromErr("Upload Failed", []string{"Check the file type and size limits", "Run /docs to see what was indexed"}),
	},
	{
		match:   is(domain.ErrNotFound),
		produce: constantError("Not Found", "The document no longer exists on the backend.", []string{"Run /docs to refresh the list"}),
	},
	{
		match:   is(domain.ErrRequestInFlight),
		produce: constantError("Request In Progress", "Wait for the current answer before asking again.", []string{"Use /cancel to abort it"}),
	},
	{
		match:   anyOf(is(domain.ErrInvalidInput), is(domain.ErrInvalidMode), is(domain.ErrEmptyUtterance), is(domain.ErrFileRejected)),
		produce: fromErr("Invalid Input", nil),
	},
	{
		match:   is(domain.ErrConfigLoad),
		produce: fromErr("Configuration Error", []string{"Check ~/.docchat/config.yaml", "Run 'docchat config init' to write defaults"}),
	},
	{
		match:   is(domain.ErrDecryption),
		produce: constantError("Decryption Failed", "An encrypted config value could not be decrypted.", []string{"Check DOCCHAT_CONFIG_KEY"}),
	},

	// External errors without a sentinel.
	{
		match:   containsAny("connection refused", "dial tcp", "no such host"),
		produce: constantError("Backend Unreachable", "Could not reach the document service.", []string{"Check that the backend is running", "Verify backend.base_url in config"}),
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Code: domain.CodeUnknown, Raw: "nil"}
	}

	for _, p := range patterns {
		if p.match(err) {
			fe := p.produce(err)
			fe.Code = domain.ErrorCodeOf(err)
			return fe
		}
	}

	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Run with DOCCHAT_LOGGER_LEVEL=debug for more details"},
		Code:    domain.ErrorCodeOf(err),
		Raw:     err.Error(),
	}
}

// ForState renders the banner text for an error held in conversation state.
func ForState(se *domain.StateError) string {
	if se == nil {
		return ""
	}
	return fmt.Sprintf("%s %s: %s", theme.SymbolError, se.Code, se.Message)
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func anyOf(fns ...func(error) bool) func(error) bool {
	return func(err error) bool {
		for _, fn := range fns {
			if fn(err) {
				return true
			}
		}
		return false
	}
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}

// fromErr uses the error text itself as the message.
func fromErr(title string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: err.Error(),
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}

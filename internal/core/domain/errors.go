package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ReplyError is a command failure reported to the client as an error frame.
type ReplyError struct {
	Prefix  string // Error prefix (e.g., "ERR", "NOAUTH")
	Message string // Client-visible message
	Cause   error  // Underlying error (if any), never sent to the client
}

// Error returns the text placed in the error frame.
func (e *ReplyError) Error() string {
	if e.Prefix == "" {
		return e.Message
	}
	return e.Prefix + " " + e.Message
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *ReplyError) Unwrap() error {
	return e.Cause
}

// Is matches another ReplyError with the same prefix and message.
func (e *ReplyError) Is(target error) bool {
	t, ok := target.(*ReplyError)
	if !ok {
		return false
	}
	return e.Prefix == t.Prefix && e.Message == t.Message
}

// NewReplyError creates a ReplyError with the given prefix and message.
func NewReplyError(prefix, message string) *ReplyError {
	return &ReplyError{Prefix: prefix, Message: message}
}

// Errorf creates an "ERR" ReplyError with a formatted message.
func Errorf(format string, args ...any) *ReplyError {
	return NewReplyError("ERR", fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *ReplyError) WithCause(cause error) *ReplyError {
	return &ReplyError{
		Prefix:  e.Prefix,
		Message: e.Message,
		Cause:   cause,
	}
}

// AsReplyError extracts a ReplyError from err's chain.
func AsReplyError(err error) (*ReplyError, bool) {
	var re *ReplyError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// ============================================================================
// Request Errors
// ============================================================================

var (
	// ErrSyntax indicates an unknown or conflicting command modifier.
	ErrSyntax = NewReplyError("ERR", "syntax error")

	// ErrNotInteger indicates an argument that must be an integer is not.
	ErrNotInteger = NewReplyError("ERR", "value is not an integer or out of range")

	// ErrInvalidRequest indicates a request element that is not a bulk string.
	ErrInvalidRequest = NewReplyError("ERR", "invalid request")

	// ErrEmptyRequest indicates a request array with no elements.
	ErrEmptyRequest = NewReplyError("ERR", "empty request")
)

// ============================================================================
// Authentication Errors
// ============================================================================

var (
	// ErrNoAuth indicates a command was issued before AUTH succeeded.
	ErrNoAuth = NewReplyError("NOAUTH", "Authentication required.")

	// ErrInvalidPassword indicates AUTH was given the wrong password.
	ErrInvalidPassword = NewReplyError("WRONGPASS", "invalid username-password pair or user is disabled.")

	// ErrAuthNotConfigured indicates AUTH was called with no password set.
	ErrAuthNotConfigured = NewReplyError("ERR",
		"AUTH <password> called without any password configured for the default user. Are you sure your configuration is correct?")
)

// ============================================================================
// Constructors
// ============================================================================

// maxArgsPreview bounds the argument echo in unknown command errors.
const maxArgsPreview = 128

// WrongArity reports a wrong number of arguments for the named command.
func WrongArity(name string) *ReplyError {
	return Errorf("wrong number of arguments for '%s' command", strings.ToLower(name))
}

// UnknownCommand reports an unknown verb, echoing the leading arguments.
func UnknownCommand(name string, args [][]byte) *ReplyError {
	var sb strings.Builder
	for _, a := range args {
		if sb.Len()+len(a) > maxArgsPreview {
			break
		}
		sb.WriteByte('\'')
		sb.Write(a)
		sb.WriteString("' ")
	}
	return Errorf("unknown command '%s', with args beginning with: %s", name, sb.String())
}

// UnknownSubcommand reports an unknown subcommand of a container command.
func UnknownSubcommand(name, sub string) *ReplyError {
	return Errorf("unknown subcommand '%s'. Try %s HELP.", sub, strings.ToUpper(name))
}

// InvalidExpire reports an expire time that overflows when converted to an
// absolute instant.
func InvalidExpire(name string) *ReplyError {
	return Errorf("invalid expire time in '%s' command", strings.ToLower(name))
}

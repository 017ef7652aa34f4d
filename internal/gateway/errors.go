package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"storyvox/internal/services"
)

// Kind classifies a gateway failure.
type Kind int

const (
	// KindExternalFailure covers a tool that ran and failed: a non-zero exit or a
	// non-2xx response.
	KindExternalFailure Kind = iota
	// KindUnavailable covers a tool that could not be reached at all: binary not
	// found or network unreachable.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	default:
		return "external_failure"
	}
}

// Error is returned by every gateway invocation that does not succeed.
type Error struct {
	Kind      Kind
	Operation Operation
	Tool      string
	Detail    string
	// StatusCode is set for HTTP invocations that received a response.
	StatusCode int
	// RetryAfter carries the server's Retry-After hint when one was sent.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Operation))
	if e.Tool != "" {
		b.WriteString(" (")
		b.WriteString(e.Tool)
		b.WriteByte(')')
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the classification marker and the underlying cause.
func (e *Error) Unwrap() []error {
	marker := services.ErrExternalTool
	if e.Kind == KindUnavailable {
		marker = services.ErrUnavailable
	}
	if e.Err == nil {
		return []error{marker}
	}
	return []error{marker, e.Err}
}

// IsUnavailable reports whether err is a gateway error of KindUnavailable.
func IsUnavailable(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Kind == KindUnavailable
}

// StatusCode returns the HTTP status carried by a gateway error, or 0.
func StatusCode(err error) int {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.StatusCode
	}
	return 0
}

// Reason renders err as a short single-line reason suitable for events.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	return truncate(strings.Join(strings.Fields(err.Error()), " "), 300)
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func timeoutCause(op Operation, err error) error {
	return fmt.Errorf("%w: %s exceeded its time limit: %w", services.ErrTimeout, op, err)
}

// Package faults defines the coded errors raised by the harness components.
package faults

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// TailKey is the context key holding the last lines of a log. It is
// rendered after the other context, one line per log line.
const TailKey = "tail"

// Code identifies the kind of failure.
type Code string

// Failure codes.
const (
	CodeSpawnFailed   Code = "SPAWN_FAILED"
	CodeBuildTimeout  Code = "BUILD_TIMEOUT"
	CodeBuildFailed   Code = "BUILD_FAILED"
	CodeNotReady      Code = "NOT_READY"
	CodeProcessGone   Code = "PROCESS_GONE"
	CodeLogContent    Code = "LOG_CONTENT"
	CodeParseFailed   Code = "PARSE_FAILED"
	CodePortStillOpen Code = "PORT_STILL_OPEN"
	CodeInvalidConfig Code = "INVALID_CONFIG"
)

// Error is a coded failure with diagnostic context.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	Cause   error          `json:"cause,omitempty"`
}

// New creates a coded error.
func New(code Code, message string, context map[string]any) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: context,
	}
}

// Wrap creates a coded error with a cause.
func Wrap(code Code, message string, cause error, context map[string]any) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: context,
		Cause:   cause,
	}
}

// Error implements the error interface. Context keys are rendered sorted;
// the log tail, if any, comes last.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		if k != TailKey {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	if len(keys) > 0 {
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			switch v := e.Context[k].(type) {
			case string:
				fmt.Fprintf(&b, "%s=%q", k, v)
			default:
				fmt.Fprintf(&b, "%s=%v", k, v)
			}
		}
		b.WriteString(")")
	}

	if tail, ok := e.Context[TailKey]; ok {
		var lines []string
		switch v := tail.(type) {
		case string:
			lines = strings.Split(v, "\n")
		case []string:
			lines = v
		}
		if len(lines) > 0 {
			b.WriteString("\n--- log tail ---")
			for _, l := range lines {
				b.WriteString("\n  " + l)
			}
		}
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HasCode reports whether any error in err's chain is a *Error with the given code.
func HasCode(err error, code Code) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	if fe.Code == code {
		return true
	}
	return fe.Cause != nil && HasCode(fe.Cause, code)
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

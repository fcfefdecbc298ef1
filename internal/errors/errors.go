package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code is a stable, machine-readable error type. Callers branch on codes, never
// on message text.
type Code int

const (
	CodeSuccess  Code = 0
	CodeInternal Code = 1
	CodeUsage    Code = 2

	// Quoting path.
	CodeValidation       Code = 10
	CodeRouteUnsupported Code = 11
	CodeProvider         Code = 12
	CodeNoQuotes         Code = 13
	CodeIneligible       Code = 14
	CodeNeedGas          Code = 15

	// Execution path.
	CodeExpiredQuote Code = 20
	CodeSubmission   Code = 21
	CodeSettlement   Code = 22

	// Transport.
	CodeUnavailable Code = 30
	CodeRateLimited Code = 31
	CodeAuth        Code = 32
)

// Error is a typed engine error carrying a stable code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func HasCode(err error, code Code) bool {
	if e, ok := As(err); ok {
		return e.Code == code
	}
	return false
}

// Retryable reports whether the failure is transient. Validation and
// eligibility failures never clear on retry; transport failures may.
func Retryable(err error) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	switch e.Code {
	case CodeUnavailable, CodeRateLimited:
		return true
	default:
		return false
	}
}

// Aggregate combines per-provider failures into a single NoQuotes error whose
// message enumerates each provider's reason. Reasons are ordered by provider
// name so the message is stable across runs.
func Aggregate(reasons map[string]error) *Error {
	parts := make([]string, 0, len(reasons))
	for name, err := range reasons {
		parts = append(parts, fmt.Sprintf("%s: %v", name, err))
	}
	sort.Strings(parts)
	return New(CodeNoQuotes, "no provider returned a quote ("+strings.Join(parts, "; ")+")")
}

// ExitCode maps an error to a process exit code for the CLI layer.
func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if e, ok := As(err); ok {
		return int(e.Code)
	}
	return int(CodeInternal)
}

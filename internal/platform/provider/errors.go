package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a provider CLI failure.
type ErrorCode string

const (
	CodeNotFound      ErrorCode = "not-found"
	CodeAlreadyExists ErrorCode = "already-exists"
	CodeRateLimited   ErrorCode = "rate-limited"
	CodeTransient     ErrorCode = "transient"
	CodeUnknown       ErrorCode = "unknown"
)

// CLIError is a classified failure of one provider CLI invocation.
type CLIError struct {
	Op     string
	Code   ErrorCode
	Stderr string
	Err    error
}

func (e *CLIError) Error() string {
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	return fmt.Sprintf("provider %s: %s: %s", e.Op, e.Code, detail)
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// notFoundSignatures and friends match the error vocabulary of common
// control-plane CLIs. Matching is case-insensitive.
var (
	notFoundSignatures = []string{
		"not found",
		"notfound",
		"does not exist",
		"no such resource",
		"404",
	}
	alreadyExistsSignatures = []string{
		"already exists",
		"alreadyexists",
		"duplicate",
		"409",
	}
	rateLimitSignatures = []string{
		"rate limit",
		"too many requests",
		"quota exceeded",
		"429",
	}
	transientSignatures = []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"temporarily unavailable",
		"service unavailable",
		"internal error",
		"internal server error",
		"try again",
		"eof",
		"500",
		"502",
		"503",
	}
)

// classify maps CLI stderr onto an error code.
func classify(stderr string) ErrorCode {
	lower := strings.ToLower(stderr)
	switch {
	case matchesAny(lower, notFoundSignatures):
		return CodeNotFound
	case matchesAny(lower, alreadyExistsSignatures):
		return CodeAlreadyExists
	case matchesAny(lower, rateLimitSignatures):
		return CodeRateLimited
	case matchesAny(lower, transientSignatures):
		return CodeTransient
	default:
		return CodeUnknown
	}
}

func matchesAny(s string, signatures []string) bool {
	for _, sig := range signatures {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}

func isCode(err error, codes ...ErrorCode) bool {
	if err == nil {
		return false
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		for _, code := range codes {
			if cliErr.Code == code {
				return true
			}
		}
	}
	return false
}

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	return isCode(err, CodeNotFound)
}

// IsAlreadyExists checks if an error indicates the resource already exists.
func IsAlreadyExists(err error) bool {
	return isCode(err, CodeAlreadyExists)
}

// IsRateLimited checks if an error indicates rate limiting.
func IsRateLimited(err error) bool {
	return isCode(err, CodeRateLimited)
}

// IsTransient checks if an error is worth retrying. Rate limiting counts:
// it clears on its own once the window passes.
func IsTransient(err error) bool {
	return isCode(err, CodeTransient, CodeRateLimited)
}

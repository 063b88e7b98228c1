package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classify failures across the pipeline. Call sites wrap
// errors with one of these markers so callers can pick a recovery policy
// without string matching.
var (
	// ErrTransient marks gateway errors and timeouts worth a bounded retry.
	ErrTransient = errors.New("transient failure")
	// ErrParse marks malformed model JSON or missing DOM structure; callers
	// degrade to a conservative default instead of failing the run.
	ErrParse = errors.New("parse error")
	// ErrSessionInvalid marks a platform demand for re-authentication.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrUnavailable marks a candidate whose asynchronous preparation window
	// elapsed; the caller skips it and falls back to the next candidate.
	ErrUnavailable = errors.New("resource unavailable")
	ErrTimeout     = errors.New("timeout")
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrConfig      = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetriable reports whether err represents a transient condition that
// warrants an automatic retry at the call site.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout) {
		return true
	}
	message := strings.ToLower(err.Error())
	for _, code := range []string{"502", "503", "504", "429"} {
		if strings.Contains(message, code) {
			return true
		}
	}
	for _, token := range []string{
		"timeout",
		"deadline exceeded",
		"gateway",
		"connection reset",
		"connection refused",
		"temporary failure",
	} {
		if strings.Contains(message, token) {
			return true
		}
	}
	return false
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

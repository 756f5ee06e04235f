package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotConfigured     = errors.New("invocation function is not configured")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrUnknownStage      = errors.New("unknown stage")
	ErrValidationFailed  = errors.New("project validation failed")
	ErrRunNotFound       = errors.New("run not found")
)

// UnparsableResponseError is returned when no interpretation strategy could
// make sense of a model response. Raw holds the untouched text.
type UnparsableResponseError struct {
	Stage  Stage
	Raw    string
	Reason string
}

func (e *UnparsableResponseError) Error() string {
	if e.Stage == "" {
		return "unparsable response: " + e.Reason
	}
	return fmt.Sprintf("unparsable %s response: %s", e.Stage, e.Reason)
}

// RateLimitError is raised by transports when the provider throttles a call.
type RateLimitError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("rate limited (%d): %s", e.StatusCode, e.Message)
	}
	return "rate limited: " + e.Message
}

// InvocationError wraps a non rate-limit failure of the invocation function.
type InvocationError struct {
	Stage    Stage
	Attempts int
	Err      error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s (attempt %d): %v", e.Stage, e.Attempts, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// StageError marks the pipeline stage that terminated a run.
type StageError struct {
	State State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

var rateLimitMarkers = []string{"rate limit", "too many requests", "429", "resource_exhausted"}

// IsRateLimit reports whether err is a throttling signal from the provider.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

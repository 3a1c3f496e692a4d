package models

import (
	"errors"
	"fmt"
	"time"
)

// Pipeline error taxonomy. Every failure crossing a component boundary is
// wrapped in exactly one of these kinds so the orchestrator can pick the
// retry policy from the type alone:
//
//	TransientSourceError     retry the fetch next cycle
//	TransientLLMError        bounded retry with backoff
//	PermanentExtractionError mark seen, log, skip
//	TransientPublishError    bounded retry
//	RateLimitError           cooldown, then a single retry
//	PersistenceError         fatal, the process must stop

// TransientSourceError wraps a recoverable fetch failure from a source
// adapter (network error, 5xx, malformed page).
type TransientSourceError struct {
	Source string
	Err    error
}

func (e *TransientSourceError) Error() string {
	return fmt.Sprintf("source %s: transient failure: %v", e.Source, e.Err)
}

func (e *TransientSourceError) Unwrap() error { return e.Err }

// TransientLLMError wraps a recoverable LLM transport failure (timeout,
// 5xx, connection reset). Retried with backoff up to the configured bound.
type TransientLLMError struct {
	Provider string
	Err      error
}

func (e *TransientLLMError) Error() string {
	return fmt.Sprintf("llm %s: transient failure: %v", e.Provider, e.Err)
}

func (e *TransientLLMError) Unwrap() error { return e.Err }

// PermanentExtractionError marks an item as unprocessable: the response
// was malformed beyond recovery, auth was rejected, or retries are
// exhausted. The item is marked seen with a failure flag and skipped.
type PermanentExtractionError struct {
	ItemID string
	Reason string
	Err    error
}

func (e *PermanentExtractionError) Error() string {
	msg := "extraction failed permanently"
	if e.ItemID != "" {
		msg += " for " + e.ItemID
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PermanentExtractionError) Unwrap() error { return e.Err }

// TransientPublishError wraps a recoverable publish failure (network
// error, 5xx from the platform).
type TransientPublishError struct {
	StatusCode int
	Err        error
}

func (e *TransientPublishError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("publish: transient failure (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("publish: transient failure: %v", e.Err)
}

func (e *TransientPublishError) Unwrap() error { return e.Err }

// RateLimitError reports a rate-limit response from any external service.
// RetryAfter is the service-suggested wait, zero when not provided.
type RateLimitError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded, retry after %v", e.Service, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limit exceeded", e.Service)
}

// PersistenceError wraps a seen-set or post-record storage failure. The
// process cannot guarantee dedup correctness past one of these, so it is
// fatal by policy.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsTransient reports whether the error is any of the retryable kinds.
// Rate limits are handled separately and are not counted here.
func IsTransient(err error) bool {
	var src *TransientSourceError
	var llm *TransientLLMError
	var pub *TransientPublishError
	return errors.As(err, &src) || errors.As(err, &llm) || errors.As(err, &pub)
}

// IsRateLimit reports whether the error chain contains a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// AsRateLimit extracts the RateLimitError from the chain, if present.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// IsPermanent reports whether the error chain contains a
// PermanentExtractionError.
func IsPermanent(err error) bool {
	var perm *PermanentExtractionError
	return errors.As(err, &perm)
}

// IsPersistence reports whether the error chain contains a
// PersistenceError.
func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}

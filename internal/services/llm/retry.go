package llm

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// transportBackoff is the wait before re-attempting a failed API call
// inside the service. Rate limits are not retried here; they surface as
// typed errors so the pipeline can apply its cooldown policy.
func transportBackoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * 2 * time.Second
}

// isRateLimitSignal checks if an error is a provider rate limit error.
// Matches 429 status codes, RESOURCE_EXHAUSTED (Gemini) and
// rate_limit/overloaded (Anthropic) markers.
func isRateLimitSignal(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "resource_exhausted") ||
		strings.Contains(errStr, "rate_limit") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "quota")
}

// isAuthSignal checks for credential rejections. These never succeed on
// retry.
func isAuthSignal(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "authentication") ||
		strings.Contains(errStr, "permission_denied") ||
		strings.Contains(errStr, "api key")
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// extractRetryDelay parses the API-suggested retry delay from a rate
// limit error. Returns 0 if no delay is found in the error message.
//
// Example error message:
// "Error 429, Message: ... Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED"
func extractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}

	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}

	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

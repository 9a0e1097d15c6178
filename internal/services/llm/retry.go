package llm

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RetryConfig controls the rate-limit retry behaviour of a generation call
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// NewDefaultRetryConfig returns the retry settings used when the caller
// does not supply its own
func NewDefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        5,
		InitialBackoff:    45 * time.Second,
		MaxBackoff:        90 * time.Second,
		BackoffMultiplier: 1.5,
	}
}

// IsRateLimitError reports whether an error from a provider indicates a
// rate limit or quota exhaustion
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota")
}

var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses a server-suggested retry delay out of a rate
// limit error message, returning 0 when none is present
func ExtractRetryDelay(err error) time.Duration {
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

// CalculateBackoff returns the wait before the given attempt, preferring
// the server-suggested delay over the exponential schedule
func (c *RetryConfig) CalculateBackoff(attempt int, err error) time.Duration {
	if suggested := ExtractRetryDelay(err); suggested > 0 {
		if suggested > c.MaxBackoff {
			return c.MaxBackoff
		}
		return suggested
	}

	backoff := float64(c.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= c.BackoffMultiplier
	}
	if backoff > float64(c.MaxBackoff) {
		return c.MaxBackoff
	}
	return time.Duration(backoff)
}

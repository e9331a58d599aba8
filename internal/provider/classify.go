package provider

import (
	"context"
	"errors"
	"strings"
)

// Substrings that mark an error as a rate limit. Matching is case-insensitive.
var rateLimitMarkers = []string{
	"429",
	"rate limit",
	"rate_limit",
	"ratelimit",
	"too many requests",
}

// Substrings that mark an error as worth trying on another backend.
var transientMarkers = []string{
	"overloaded",
	"capacity",
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"503 service unavailable",
	"502 bad gateway",
	"500 internal",
}

// IsRateLimit reports whether err signals that the backend is throttling us.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code == 429 {
		return true
	}
	return containsAny(strings.ToLower(err.Error()), rateLimitMarkers)
}

// IsTransient reports whether another backend might succeed where this one
// failed: auth problems, rate limits, server errors, overload and timeouts.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Code {
		case 401, 403, 429, 500, 502, 503, 504, 529:
			return true
		}
	}
	if IsRateLimit(err) {
		return true
	}
	return containsAny(strings.ToLower(err.Error()), transientMarkers)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

package providers

import (
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vanshchauhan21/forge/internal/backoff"
)

// RetryPolicy controls the SSE client's exponential backoff with jitter.
// The delay itself is computed by internal/backoff.ComputeBackoff; this type
// adds MaxAttempts and a retryable HTTP status-code allow-list on top.
type RetryPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Factor         float64
	MaxAttempts    int
	Jitter         float64
	StatusCodes    map[int]bool
}

// DefaultRetryPolicy returns the policy implied by spec §6's documented
// environment-variable defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Factor:         2,
		MaxAttempts:    3,
		Jitter:         0.1,
		StatusCodes:    map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true},
	}
}

// RetryPolicyFromEnv reads FORGE_RETRY_* environment overrides, falling
// back to DefaultRetryPolicy for any unset or unparsable value.
func RetryPolicyFromEnv() RetryPolicy {
	p := DefaultRetryPolicy()
	if v, ok := os.LookupEnv("FORGE_RETRY_INITIAL_BACKOFF_MS"); ok {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			p.InitialBackoff = time.Duration(ms) * time.Millisecond
		}
	}
	if v, ok := os.LookupEnv("FORGE_RETRY_BACKOFF_FACTOR"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			p.Factor = f
		}
	}
	if v, ok := os.LookupEnv("FORGE_RETRY_MAX_BACKOFF_MS"); ok {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			p.MaxBackoff = time.Duration(ms) * time.Millisecond
		}
	}
	if v, ok := os.LookupEnv("FORGE_RETRY_MAX_ATTEMPTS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.MaxAttempts = n
		}
	}
	if v, ok := os.LookupEnv("FORGE_RETRY_STATUS_CODES"); ok {
		codes := map[int]bool{}
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if n, err := strconv.Atoi(part); err == nil {
				codes[n] = true
			}
		}
		if len(codes) > 0 {
			p.StatusCodes = codes
		}
	}
	return p
}

// Retryable reports whether the given HTTP status is on the policy's
// allow-list.
func (p RetryPolicy) Retryable(status int) bool {
	return p.StatusCodes[status]
}

// Backoff computes the delay before attempt n+1 (attempts are 1-indexed).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.backoffWithRand(attempt, rand.Float64()) // #nosec G404 -- jitter, not a security primitive
}

// backoffWithRand defers to backoff.ComputeBackoffWithRand for the actual
// base+jitter formula, so the SSE client and every other retrying caller in
// this tree share one implementation. A zero MaxBackoff is treated as
// uncapped rather than a zero-length backoff.
func (p RetryPolicy) backoffWithRand(attempt int, r float64) time.Duration {
	maxMs := math.MaxFloat64
	if p.MaxBackoff > 0 {
		maxMs = float64(p.MaxBackoff.Milliseconds())
	}
	return backoff.ComputeBackoffWithRand(backoff.BackoffPolicy{
		InitialMs: float64(p.InitialBackoff.Milliseconds()),
		MaxMs:     maxMs,
		Factor:    p.Factor,
		Jitter:    p.Jitter,
	}, attempt, r)
}

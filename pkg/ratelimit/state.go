// Package ratelimit tracks the Ishmael Insights request quota reported in the
// X-RateLimit-Remaining and X-RateLimit-Reset response headers and gates
// requests before the quota runs out.
//
// State lives in Redis so several processes sharing one API key also share
// one view of the quota.
package ratelimit

import (
	"errors"
	"time"
)

// Response headers carrying the quota.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Redis key suffixes for quota state storage; see Tracker.key.
const (
	redisKeyRemaining  = "remaining"
	redisKeyResetAt    = "reset_at"
	redisKeyLastUpdate = "last_update"
)

// Default thresholds for quota decisions.
const (
	// QuotaThresholdCritical blocks requests when fewer requests than this remain.
	QuotaThresholdCritical = 1

	// QuotaThresholdWarning throttles requests below this value.
	QuotaThresholdWarning = 10

	// QuotaThresholdHealthy marks the quota healthy at or above this value.
	QuotaThresholdHealthy = 50
)

// ErrQuotaExhausted is returned for requests blocked until the quota resets.
var ErrQuotaExhausted = errors.New("api quota exhausted")

// Thresholds configures the tracker's decisions.
type Thresholds struct {
	Critical int
	Warning  int
	Healthy  int
}

// DefaultThresholds returns the package default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Critical: QuotaThresholdCritical,
		Warning:  QuotaThresholdWarning,
		Healthy:  QuotaThresholdHealthy,
	}
}

// QuotaState is the last known request quota.
type QuotaState struct {
	// Remaining requests in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	LastUpdate time.Time `json:"last_update"`

	IsHealthy bool `json:"is_healthy"`
}

// NeedsBlock reports whether requests must wait for the reset. A window that
// has already reset never blocks.
func (s *QuotaState) NeedsBlock(th Thresholds) bool {
	return s.Remaining < th.Critical && s.TimeUntilReset() > 0
}

// NeedsThrottling reports whether requests should be slowed down.
func (s *QuotaState) NeedsThrottling(th Thresholds) bool {
	return s.Remaining < th.Warning && !s.NeedsBlock(th) && s.TimeUntilReset() > 0
}

// TimeUntilReset returns the duration until the window resets, or 0.
func (s *QuotaState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth recomputes IsHealthy.
func (s *QuotaState) UpdateHealth(th Thresholds) {
	s.IsHealthy = s.Remaining >= th.Healthy
}

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ishmael_quota_remaining",
		Help: "Requests remaining in the current API quota window",
	})

	quotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ishmael_quota_blocks_total",
		Help: "Total number of requests blocked because the API quota was exhausted",
	})

	quotaThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ishmael_quota_throttles_total",
		Help: "Total number of requests delayed because the API quota was low",
	})
)

// ThrottleDelay is the pause applied to requests in the warning band.
var ThrottleDelay = 1 * time.Second

// Tracker monitors the API quota and gates requests.
type Tracker struct {
	redis      *redis.Client
	scope      string
	thresholds Thresholds
	logger     zerolog.Logger
}

// NewTracker creates a quota tracker. scope separates API keys sharing one Redis.
func NewTracker(redisClient *redis.Client, scope string, th Thresholds, logger zerolog.Logger) *Tracker {
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}
	return &Tracker{
		redis:      redisClient,
		scope:      scope,
		thresholds: th,
		logger:     logger,
	}
}

func (t *Tracker) key(suffix string) string {
	if t.scope == "" {
		return "ishmael:quota:" + suffix
	}
	return "ishmael:quota:" + t.scope + ":" + suffix
}

// GetState retrieves the quota state from Redis. A healthy default is
// returned when nothing has been recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	vals, err := t.redis.MGet(ctx,
		t.key(redisKeyRemaining),
		t.key(redisKeyResetAt),
		t.key(redisKeyLastUpdate),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("get quota state: %w", err)
	}

	if vals[0] == nil {
		t.logger.Debug().Msg("No quota state in Redis, assuming healthy")
		state := &QuotaState{
			Remaining:  t.thresholds.Healthy,
			LastUpdate: time.Now(),
		}
		state.UpdateHealth(t.thresholds)
		return state, nil
	}

	remaining, err := strconv.Atoi(fmt.Sprint(vals[0]))
	if err != nil {
		return nil, fmt.Errorf("parse remaining: %w", err)
	}
	state := &QuotaState{Remaining: remaining}

	if vals[1] != nil {
		resetUnix, err := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse reset timestamp: %w", err)
		}
		state.ResetAt = time.Unix(resetUnix, 0)
	}
	if vals[2] != nil {
		if ts, err := time.Parse(time.RFC3339Nano, fmt.Sprint(vals[2])); err == nil {
			state.LastUpdate = ts
		}
	}
	state.UpdateHealth(t.thresholds)

	return state, nil
}

// UpdateFromHeaders records the quota reported by a response.
// Responses without quota headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetSeconds := 0
	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		resetSeconds, err = strconv.Atoi(resetStr)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
	}

	now := time.Now()
	state := &QuotaState{
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}
	state.UpdateHealth(t.thresholds)

	// Keys outlive the window slightly so a stale block can never stick.
	expiry := time.Duration(resetSeconds)*time.Second + time.Minute

	pipe := t.redis.TxPipeline()
	pipe.Set(ctx, t.key(redisKeyRemaining), remain, expiry)
	pipe.Set(ctx, t.key(redisKeyResetAt), state.ResetAt.Unix(), expiry)
	pipe.Set(ctx, t.key(redisKeyLastUpdate), now.Format(time.RFC3339Nano), expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store quota state in redis: %w", err)
	}

	quotaRemaining.Set(float64(remain))

	switch {
	case state.NeedsBlock(t.thresholds):
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("API quota exhausted - requests will be blocked until reset")
	case state.NeedsThrottling(t.thresholds):
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("API quota low - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Bool("is_healthy", state.IsHealthy).
			Msg("API quota state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether a request may be sent now. In the
// warning band it sleeps ThrottleDelay first, returning early if ctx ends.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	if state.NeedsBlock(t.thresholds) {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("API quota exhausted - blocking request")

		quotaBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling(t.thresholds) {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("API quota low - throttling request")

		quotaThrottlesTotal.Inc()
		timer := time.NewTimer(ThrottleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}

// Reset clears the recorded state.
func (t *Tracker) Reset(ctx context.Context) error {
	err := t.redis.Del(ctx,
		t.key(redisKeyRemaining),
		t.key(redisKeyResetAt),
		t.key(redisKeyLastUpdate),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("reset quota state: %w", err)
	}
	return nil
}

// internal/rategate/rategate.go

// Package rategate caps per-device notification volume with rolling
// hour/day counters and suppresses delivery during quiet hours.
package rategate

import (
	"context"
	"fmt"
	"time"

	"jobalert-workers/internal/common/logger"
)

const (
	hourWindow = time.Hour
	dayWindow  = 24 * time.Hour
)

// CounterStore is the rolling-counter abstraction the gate is built on.
// Incr must set the TTL only when the increment creates the key, so a
// window expires a fixed duration after its first increment, not its
// last.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
}

// Limits holds the per-device send caps and the daily active window.
type Limits struct {
	MaxPerHour      int
	MaxPerDay       int
	QuietHoursStart int // first active UTC hour, inclusive
	QuietHoursEnd   int // first quiet UTC hour, exclusive bound of the active window
}

// DefaultLimits mirror the production configuration: 5 sends per hour,
// 20 per day, active 08:00-22:00 UTC.
func DefaultLimits() Limits {
	return Limits{
		MaxPerHour:      5,
		MaxPerDay:       20,
		QuietHoursStart: 8,
		QuietHoursEnd:   22,
	}
}

// Gate enforces the caps. All keys are device-scoped, so concurrent
// per-device pipelines never interfere with each other.
type Gate struct {
	store  CounterStore
	limits Limits
	logger logger.Logger
}

func New(store CounterStore, limits Limits, log logger.Logger) *Gate {
	if limits.MaxPerHour <= 0 {
		limits.MaxPerHour = DefaultLimits().MaxPerHour
	}
	if limits.MaxPerDay <= 0 {
		limits.MaxPerDay = DefaultLimits().MaxPerDay
	}
	return &Gate{
		store:  store,
		limits: limits,
		logger: log.WithFields(map[string]interface{}{"component": "rategate"}),
	}
}

// Allow reports whether the device still has budget in both rolling
// windows. It only reads; budget is consumed by RecordSend after a
// dispatch actually succeeds.
func (g *Gate) Allow(ctx context.Context, deviceID string) (bool, error) {
	hourly, err := g.store.Get(ctx, hourKey(deviceID))
	if err != nil {
		return false, fmt.Errorf("read hourly counter: %w", err)
	}
	if hourly >= int64(g.limits.MaxPerHour) {
		g.logger.Debug("hourly cap reached", map[string]interface{}{
			"deviceId": deviceID,
			"count":    hourly,
		})
		return false, nil
	}

	daily, err := g.store.Get(ctx, dayKey(deviceID))
	if err != nil {
		return false, fmt.Errorf("read daily counter: %w", err)
	}
	if daily >= int64(g.limits.MaxPerDay) {
		g.logger.Debug("daily cap reached", map[string]interface{}{
			"deviceId": deviceID,
			"count":    daily,
		})
		return false, nil
	}
	return true, nil
}

// RecordSend consumes one unit of budget in both windows. Callers must
// invoke it only after a successful dispatch; failed or skipped sends
// never consume budget.
func (g *Gate) RecordSend(ctx context.Context, deviceID string) error {
	if _, err := g.store.Incr(ctx, hourKey(deviceID), hourWindow); err != nil {
		return fmt.Errorf("increment hourly counter: %w", err)
	}
	if _, err := g.store.Incr(ctx, dayKey(deviceID), dayWindow); err != nil {
		return fmt.Errorf("increment daily counter: %w", err)
	}
	return nil
}

// InQuietHours reports whether now falls outside the [start,end) active
// window (UTC). A window with start > end is treated as crossing
// midnight.
func (g *Gate) InQuietHours(now time.Time) bool {
	start, end := g.limits.QuietHoursStart, g.limits.QuietHoursEnd
	if start == end {
		return false // no quiet window configured
	}
	h := now.UTC().Hour()
	if start < end {
		return h < start || h >= end
	}
	return h < start && h >= end
}

func hourKey(deviceID string) string { return "rate:h:" + deviceID }
func dayKey(deviceID string) string  { return "rate:d:" + deviceID }

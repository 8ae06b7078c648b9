package qrsession

import (
	"context"
	"time"
)

// Countdown recomputes the time left until ExpiresAt on every tick from the
// wall clock, so a late tick never drifts the display.
type Countdown struct {
	ExpiresAt time.Time
	Interval  time.Duration
	Now       func() time.Time
}

// NewCountdown ticks once per second against time.Now.
func NewCountdown(expiresAt time.Time) Countdown {
	return Countdown{ExpiresAt: expiresAt, Interval: time.Second, Now: time.Now}
}

// Remaining is the time left, never negative.
func (c Countdown) Remaining() time.Duration {
	if d := c.ExpiresAt.Sub(c.now()); d > 0 {
		return d
	}
	return 0
}

func (c Countdown) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Run calls onTick immediately and then on every interval with the remaining
// time. It returns true once remaining reaches zero, after the final onTick(0),
// and false if ctx is cancelled first. onTick may be nil.
func (c Countdown) Run(ctx context.Context, onTick func(time.Duration)) bool {
	interval := c.Interval
	if interval <= 0 {
		interval = time.Second
	}

	report := func() bool {
		left := c.Remaining()
		if onTick != nil {
			onTick(left)
		}
		return left == 0
	}
	if report() {
		return true
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if report() {
				return true
			}
		}
	}
}

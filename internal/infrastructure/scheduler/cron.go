package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"CreatorWatch/internal/ports"
)

// DefaultInterval is the pause between two monitoring cycles.
const DefaultInterval = 600 * time.Second

// FixedDelay waits the same interval after every cycle.
type FixedDelay struct {
	Interval time.Duration
}

var _ ports.Delay = FixedDelay{}

// Next ignores now and returns the configured interval.
func (f FixedDelay) Next(time.Time) time.Duration {
	if f.Interval <= 0 {
		return DefaultInterval
	}
	return f.Interval
}

// CronDelay waits until the next activation of a cron expression.
type CronDelay struct {
	schedule cron.Schedule
	location *time.Location
}

var _ ports.Delay = (*CronDelay)(nil)

// NewCronDelay parses a standard five-field expression (descriptors such as
// "@every 10m" are accepted too).
func NewCronDelay(spec string, loc *time.Location) (*CronDelay, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CronDelay{schedule: schedule, location: loc}, nil
}

// Next returns the time left until the following activation.
func (c *CronDelay) Next(now time.Time) time.Duration {
	next := c.schedule.Next(now.In(c.location))
	if d := next.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Sleep blocks for d or until ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

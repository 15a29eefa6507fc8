package scheduler

import (
	"context"
	"sync"
	"time"

	"ContentFactory/internal/ports"
)

// DailyScheduler fires a job once a day at a fixed wall-clock time.
type DailyScheduler struct {
	hour   int
	minute int
	loc    *time.Location
	now    func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*DailyScheduler)(nil)

// NewDailyScheduler runs at hour:minute in loc.
func NewDailyScheduler(hour, minute int, loc *time.Location) *DailyScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyScheduler{hour: hour, minute: minute, loc: loc, now: time.Now}
}

// Start waits for the next occurrence and then fires every day until ctx ends
// or Stop is called. Calling Start twice is a no-op.
func (c *DailyScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done

	go func() {
		defer close(done)
		for {
			wait := c.nextRun(c.now()).Sub(c.now())
			timer := time.NewTimer(wait)
			select {
			case t := <-timer.C:
				job(t.In(c.loc))
			case <-ctx.Done():
				timer.Stop()
				return
			case <-stop:
				timer.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop halts the timer goroutine and waits for a running job to return.
func (c *DailyScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// nextRun is the first hour:minute strictly after now.
func (c *DailyScheduler) nextRun(now time.Time) time.Time {
	local := now.In(c.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), c.hour, c.minute, 0, 0, c.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, c.hour, c.minute, 0, 0, c.loc)
	}
	return next
}

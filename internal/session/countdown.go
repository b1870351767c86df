package session

import (
	"context"
	"time"
)

const (
	DefaultCountdownTicks    = 3
	DefaultCountdownInterval = time.Second
)

// Countdown is a cancellable timed task. After each interval it calls step
// with the ticks still to go; the last call carries 0 and means the
// countdown completed. Stop prevents any further call that has not already
// begun, so callers must still guard against a step that raced with Stop.
type Countdown struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func StartCountdown(ticks int, interval time.Duration, step func(remaining int)) *Countdown {
	ctx, cancel := context.WithCancel(context.Background())
	cd := &Countdown{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(cd.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for remaining := ticks - 1; remaining >= 0; remaining-- {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			// Stop may have won the race with the ticker.
			if ctx.Err() != nil {
				return
			}
			step(remaining)
		}
	}()

	return cd
}

func (c *Countdown) Stop() {
	c.cancel()
}

// Done is closed once the countdown goroutine has exited.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

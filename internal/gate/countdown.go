package gate

import (
	"context"
	"sync"
	"time"
)

// Countdown drives Tick on a fixed interval while a lockout is displayed.
type Countdown struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartCountdown ticks g every interval and reports each remaining value to
// onTick. It stops by itself once the lockout clears or no lockout is active.
func StartCountdown(ctx context.Context, g *Gate, interval time.Duration, onTick func(remaining int)) *Countdown {
	if interval <= 0 {
		interval = TickInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &Countdown{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(c.done)
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				remaining, ok := g.Tick(ctx)
				if !ok {
					return
				}
				if onTick != nil {
					onTick(remaining)
				}
				if remaining == 0 {
					return
				}
			}
		}
	}()

	return c
}

// Stop cancels the countdown and waits for its goroutine to exit.
func (c *Countdown) Stop() {
	c.once.Do(c.cancel)
	<-c.done
}

// Done is closed when the countdown goroutine exits.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

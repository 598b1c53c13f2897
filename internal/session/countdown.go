package session

import (
	"context"
	"sync"
	"time"
)

// Countdown calls onTick once per tick until onTick returns false, the
// context ends, or Stop is called. Stop is safe from inside onTick.
type Countdown struct {
	stop chan struct{}
	once sync.Once
	done chan struct{}
}

// StartCountdown uses a one-second ticker when ticks is nil.
func StartCountdown(ctx context.Context, ticks <-chan time.Time, onTick func() bool) *Countdown {
	cd := &Countdown{stop: make(chan struct{}), done: make(chan struct{})}

	var ticker *time.Ticker
	if ticks == nil {
		ticker = time.NewTicker(time.Second)
		ticks = ticker.C
	}

	go func() {
		defer close(cd.done)
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-cd.stop:
				return
			case _, ok := <-ticks:
				if !ok {
					return
				}
				if !onTick() {
					return
				}
			}
		}
	}()
	return cd
}

func (c *Countdown) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Done is closed once the countdown goroutine has exited.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

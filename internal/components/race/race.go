// Package race settles a contest between an asynchronous event and a deadline.
package race

import (
	"context"
	"time"
)

type Outcome int

const (
	// Event means the observed event fired before the deadline.
	Event Outcome = iota
	// Deadline means the deadline elapsed first.
	Deadline
)

func (o Outcome) String() string {
	switch o {
	case Event:
		return "event"
	case Deadline:
		return "deadline"
	}
	return "unknown"
}

// FirstOf runs event and a deadline timer concurrently and reports which
// settled first. The loser is cancelled: event receives a cancelled context
// when the deadline wins, the timer is stopped when the event wins.
//
// An error returned by event before the deadline is passed through. When ctx
// ends first, ctx.Err() is returned.
func FirstOf(ctx context.Context, event func(ctx context.Context) error, deadline time.Duration) (Outcome, error) {
	eventCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- event(eventCtx)
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			if ctx.Err() != nil {
				return Deadline, ctx.Err()
			}
			return Event, err
		}
		return Event, nil
	case <-timer.C:
		return Deadline, nil
	case <-ctx.Done():
		return Deadline, ctx.Err()
	}
}

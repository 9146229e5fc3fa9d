package chrono

import (
	"context"
	"sync"
	"time"
)

// FixedImpl is a clock for tests, Now returns a settable instant and Sleep
// only records the requested durations.
type FixedImpl struct {
	mu        sync.Mutex
	now       time.Time
	slept     []time.Duration
	RealSleep bool
}

func NewFixedImpl(now time.Time) *FixedImpl {
	return &FixedImpl{now: now}
}

func (f *FixedImpl) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *FixedImpl) Location() *time.Location {
	return f.Now().Location()
}

func (f *FixedImpl) Set(now time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

func (f *FixedImpl) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.slept = append(f.slept, d)
	f.now = f.now.Add(d)
	real := f.RealSleep
	f.mu.Unlock()
	if real {
		return Sleep(ctx, d)
	}
	return ctx.Err()
}

// Slept returns every duration passed to Sleep so far.
func (f *FixedImpl) Slept() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.slept))
	copy(out, f.slept)
	return out
}

package chrono

import (
	"context"
	"time"
)

// API is the interface that anything depending on the system clock should use.
//
// note: fault injection point
type API interface {
	Now() time.Time
	Location() *time.Location
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

type StandardImpl struct {
	location *time.Location
}

// Local is the system clock in the machine's local zone.
func Local() StandardImpl {
	return StandardImpl{location: time.Local}
}

// NewStandardImpl creates a clock in the given IANA zone, an empty name
// means the machine's local zone.
func NewStandardImpl(zone string) (StandardImpl, error) {
	if zone == "" {
		return Local(), nil
	}
	location, err := time.LoadLocation(zone)
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

func (s StandardImpl) Sleep(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

// Sleep waits for d while honoring ctx cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

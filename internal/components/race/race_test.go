package race

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFirstOf(t *testing.T) {
	t.Run("event wins", func(t *testing.T) {
		outcome, err := FirstOf(context.Background(), func(ctx context.Context) error {
			return nil
		}, time.Second)
		require.NoError(t, err)
		require.Equal(t, Event, outcome)
	})

	t.Run("deadline wins and cancels event", func(t *testing.T) {
		cancelled := make(chan struct{})
		outcome, err := FirstOf(context.Background(), func(ctx context.Context) error {
			<-ctx.Done()
			close(cancelled)
			return ctx.Err()
		}, 10*time.Millisecond)
		require.NoError(t, err)
		require.Equal(t, Deadline, outcome)

		select {
		case <-cancelled:
		case <-time.After(time.Second):
			t.Fatal("event was not cancelled after losing")
		}
	})

	t.Run("event error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := FirstOf(context.Background(), func(ctx context.Context) error {
			return boom
		}, time.Second)
		require.ErrorIs(t, err, boom)
	})

	t.Run("parent cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := FirstOf(ctx, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}, time.Second)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "event", Event.String())
	require.Equal(t, "deadline", Deadline.String())
}

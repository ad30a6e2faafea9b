package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherPublish(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []Event
	d.Subscribe(EventLoginFailed, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})
	d.Subscribe(EventLoginSucceeded, func(context.Context, Event) error {
		t.Fatal("handler for another type invoked")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventLoginFailed, Subject: "alice"}))
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())
	assert.Equal(t, "alice", got[0].Subject)
}

func TestDispatcherJoinsHandlerErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	errFirst := errors.New("first")
	calls := 0

	d.Subscribe(EventPasswordChanged, func(context.Context, Event) error {
		calls++
		return errFirst
	})
	d.Subscribe(EventPasswordChanged, func(context.Context, Event) error {
		calls++
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventPasswordChanged})
	assert.ErrorIs(t, err, errFirst)
	assert.Equal(t, 2, calls, "later handlers still run")
}

func TestDispatcherWithoutSubscribers(t *testing.T) {
	assert.NoError(t, NewInMemoryDispatcher().Publish(context.Background(), Event{Type: EventSigningKeyRotated}))
}

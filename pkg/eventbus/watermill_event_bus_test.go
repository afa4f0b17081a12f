package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omlboard/omlboard/pkg/channels/gochannel"
	"github.com/omlboard/omlboard/pkg/events"
)

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NewStdLogger(false, false))
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)

	defer func() {
		require.NoError(t, bus.Close())
	}()

	received := make(chan any, 1)

	err = bus.Handle(events.BuildFinishedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	published := events.BuildFinished{
		BaseEvent: events.NewBaseEvent(events.BuildFinishedEvent, "session-1"),
		ExitCode:  0,
		LogPath:   "/tmp/build.log",
	}

	require.NoError(t, bus.Publish(ctx, "session-1", published))

	select {
	case event := <-received:
		finished, ok := event.(*events.BuildFinished)
		require.True(t, ok)
		assert.Equal(t, "session-1", finished.SessionID)
		assert.Equal(t, "/tmp/build.log", finished.LogPath)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_UnhandledTypesAreAcked(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NewStdLogger(false, false))
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)

	defer func() {
		require.NoError(t, bus.Close())
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered: publishing must still complete.
	err = bus.Publish(ctx, "session-1", events.QueryStarted{
		BaseEvent: events.NewBaseEvent(events.QueryStartedEvent, "session-1"),
	})
	assert.NoError(t, err)
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NewStdLogger(false, false))
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)

	defer func() {
		require.NoError(t, bus.Close())
	}()

	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}

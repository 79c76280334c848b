package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBus(t *testing.T) {
	bus := NewBus()
	require.NotNil(t, bus)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestBusSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus()

	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	assert.Equal(t, 2, bus.SubscriberCount())

	bus.Unsubscribe(ch1)
	assert.Equal(t, 1, bus.SubscriberCount())

	_, ok := <-ch1
	assert.False(t, ok, "unsubscribed channel should be closed")
	assert.NotNil(t, ch2)
}

func TestBusUnsubscribeTwiceAndForeign(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	bus.Unsubscribe(ch)
	// 二重解除や他バスのチャネルで close が二度呼ばれない
	assert.NotPanics(t, func() { bus.Unsubscribe(ch) })
	assert.NotPanics(t, func() { bus.Unsubscribe(NewBus().Subscribe()) })
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestBusPublishMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()

	bus.Publish(NewJobStartedEvent("job-1", 2, 2, 4))

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			assert.Equal(t, EventJobStarted, received.Type, "subscriber %d", i)
			assert.Equal(t, "job-1", received.JobID)
			assert.Equal(t, 4, received.Data.Workers)
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestBusPublishNonBlockingCountsDrops(t *testing.T) {
	bus := NewBusWithBuffer(1)
	ch := bus.Subscribe()

	bus.Publish(NewWorkerFaultEvent("job", 0, 1, "drop"))
	bus.Publish(NewWorkerFaultEvent("job", 0, 2, "drop"))
	bus.Publish(NewWorkerFaultEvent("job", 0, 3, "drop"))

	assert.Equal(t, uint64(2), bus.Dropped())

	select {
	case ev := <-ch:
		assert.Equal(t, 1, ev.Data.Index)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for first event")
	}
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()
	bus.Close()

	assert.Equal(t, 0, bus.SubscriberCount())
	_, ok := <-ch
	assert.False(t, ok)

	late := bus.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribe after close returns a closed channel")

	bus.Publish(NewJobFailedEvent("job", errors.New("x")))
}

func TestEventCreation(t *testing.T) {
	t.Run("JobCompleted", func(t *testing.T) {
		ev := NewJobCompletedEvent("id", 3, 4, 15*time.Millisecond)
		assert.Equal(t, EventJobCompleted, ev.Type)
		assert.Equal(t, "15ms", ev.Data.Duration)
		assert.Equal(t, 3, ev.Data.Rows)
	})

	t.Run("JobFailed", func(t *testing.T) {
		ev := NewJobFailedEvent("id", errors.New("boom"))
		assert.Equal(t, "boom", ev.Data.Error)
		assert.Empty(t, NewJobFailedEvent("id", nil).Data.Error)
	})

	t.Run("WorkerFault", func(t *testing.T) {
		ev := NewWorkerFaultEvent("id", 2, 17, "panic")
		assert.Equal(t, EventWorkerFault, ev.Type)
		assert.Equal(t, 2, ev.Data.Worker)
		assert.Equal(t, 17, ev.Data.Index)
	})

	t.Run("BenchCompletedJSON", func(t *testing.T) {
		ev := NewBenchCompletedEvent("stress", true, time.Second)
		raw, err := json.Marshal(ev)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"type":"bench_completed"`)
		assert.Contains(t, string(raw), `"name":"stress"`)
	})
}

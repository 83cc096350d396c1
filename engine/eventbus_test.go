package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"progresskit/core"
)

func TestEventBusSyncDispatch(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	defer bus.Close()

	var got []core.EventType
	bus.Subscribe(core.EventLevelUp, func(_ context.Context, e core.Event) {
		got = append(got, e.Type)
	})
	bus.Subscribe(core.EventRewardUnlocked, func(_ context.Context, e core.Event) {
		got = append(got, e.Type)
	})

	bus.Publish(context.Background(), core.Event{Type: core.EventLevelUp})
	bus.Publish(context.Background(), core.Event{Type: core.EventAttemptRecorded})

	if len(got) != 1 || got[0] != core.EventLevelUp {
		t.Fatalf("only the level-up handler should have fired: %v", got)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	defer bus.Close()

	var calls int
	off := bus.Subscribe(core.EventLevelUp, func(_ context.Context, _ core.Event) { calls++ })

	bus.Publish(context.Background(), core.Event{Type: core.EventLevelUp})
	off()
	bus.Publish(context.Background(), core.Event{Type: core.EventLevelUp})

	if calls != 1 {
		t.Fatalf("handler fired after unsubscribe: %d", calls)
	}
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	defer bus.Close()

	var calls int
	bus.SubscribeAll(func(_ context.Context, _ core.Event) { calls++ })

	bus.Publish(context.Background(), core.Event{Type: core.EventLevelUp})
	bus.Publish(context.Background(), core.Event{Type: core.EventRewardUnlocked})

	if calls != 2 {
		t.Fatalf("wildcard handler should see every event: %d", calls)
	}
}

func TestEventBusAsyncDispatch(t *testing.T) {
	bus := NewEventBus(DispatchAsync)

	var (
		mu   sync.Mutex
		got  []core.EventType
		done = make(chan struct{})
	)
	bus.Subscribe(core.EventRewardUnlocked, func(_ context.Context, e core.Event) {
		mu.Lock()
		got = append(got, e.Type)
		if len(got) == 3 {
			close(done)
		}
		mu.Unlock()
	})

	for i := 0; i < 3; i++ {
		bus.Publish(context.Background(), core.Event{Type: core.EventRewardUnlocked})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not run in time")
	}
	bus.Close()
}

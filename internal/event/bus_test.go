package event

import (
	"context"
	"testing"
	"time"
)

func TestBusSubscribePublish(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{})
	t.Cleanup(bus.Close)

	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(42)

	select {
	case got := <-ch:
		if got != 42 {
			t.Fatalf("expected 42, got %d", got)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to close after cancel")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestBusCloseClosesSubscribers(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{})
	ch, _ := bus.Subscribe()

	bus.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to close after bus close")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for channel close")
	}

	bus.Publish(1)
	if got := bus.Metrics().Published; got != 0 {
		t.Fatalf("expected publish after close to be ignored, got %d", got)
	}
}

func TestBusClosesWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewBus[int](ctx, BusOptions{})
	ch, _ := bus.Subscribe()

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to close after context cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestBusDropOnFull(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{SubscriberBufferSize: 1})
	t.Cleanup(bus.Close)

	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(1)
	bus.Publish(2)

	metrics := bus.Metrics()
	if metrics.Published != 2 || metrics.Dropped != 1 {
		t.Fatalf("expected 2 published and 1 dropped, got %+v", metrics)
	}
	if got := <-ch; got != 1 {
		t.Fatalf("expected first event to be kept, got %d", got)
	}
}

func TestBusFilteredSubscription(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{})
	t.Cleanup(bus.Close)

	evens, cancel := bus.SubscribeFiltered(func(value int) bool { return value%2 == 0 })
	defer cancel()

	for i := 1; i <= 4; i++ {
		bus.Publish(i)
	}

	for _, want := range []int{2, 4} {
		select {
		case got := <-evens:
			if got != want {
				t.Fatalf("expected %d, got %d", want, got)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBusHistoryKeepsMostRecent(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{HistorySize: 3})
	t.Cleanup(bus.Close)

	for i := 1; i <= 5; i++ {
		bus.Publish(i)
	}

	history := bus.DumpHistory()
	if len(history) != 3 || history[0] != 3 || history[2] != 5 {
		t.Fatalf("expected history [3 4 5], got %v", history)
	}
}

package events

import (
	"sync"
	"testing"
)

func TestBus_Subscribe(t *testing.T) {
	b := NewBus()
	called := false

	b.Subscribe(SessionCreated, func(e Event) {
		called = true
	})

	b.Publish(Event{Type: SessionReused})
	if called {
		t.Error("handler called for a different event type")
	}

	b.Publish(Event{Type: SessionCreated})
	if !called {
		t.Error("handler was not called")
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	b := NewBus()
	count := 0

	b.SubscribeAll(func(e Event) {
		count++
	})

	b.Publish(Event{Type: RunStarted})
	b.Publish(Event{Type: RunPolled})
	b.Publish(Event{Type: RunCompleted})

	if count != 3 {
		t.Errorf("expected 3 calls, got %d", count)
	}
}

func TestBus_SetsTimestamp(t *testing.T) {
	b := NewBus()
	var received Event
	b.Subscribe(SessionReaped, func(e Event) { received = e })

	b.Publish(Event{Type: SessionReaped, SubmissionID: "sub-1", Data: map[string]any{"age": "61m"}})

	if received.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if received.SubmissionID != "sub-1" || received.Data["age"] != "61m" {
		t.Errorf("unexpected event %+v", received)
	}
}

func TestBus_NilIsNoop(t *testing.T) {
	var b *Bus
	b.Publish(Event{Type: RunFailed})
}

func TestBus_HandlerMaySubscribe(t *testing.T) {
	b := NewBus()
	b.Subscribe(RunStarted, func(e Event) {
		b.Subscribe(RunCompleted, func(Event) {})
	})
	b.Publish(Event{Type: RunStarted})
}

func TestBus_Concurrent(t *testing.T) {
	b := NewBus()
	var mu sync.Mutex
	count := 0
	b.SubscribeAll(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(Event{Type: RunPolled})
		}()
	}
	wg.Wait()

	if count != 50 {
		t.Errorf("expected 50 events, got %d", count)
	}
}

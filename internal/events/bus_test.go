package events

import (
	"sync"
	"testing"
	"time"

	"github.com/smazurov/startstop/internal/measure"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan CaseStateChangedEvent, 1)

	unsub := bus.Subscribe(func(e CaseStateChangedEvent) {
		received <- e
	})
	defer unsub()

	ev := CaseStateChangedEvent{
		App:  "jax-rs-minimal",
		Mode: "jvm",
		From: "BUILT",
		To:   "RUNNING",
	}
	bus.Publish(ev)

	select {
	case got := <-received:
		if got.To != ev.To || got.App != ev.App {
			t.Errorf("got %+v, want %+v", got, ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := New()
	received1 := make(chan MeasurementRecordedEvent, 1)
	received2 := make(chan MeasurementRecordedEvent, 1)

	unsub1 := bus.Subscribe(func(e MeasurementRecordedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e MeasurementRecordedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(MeasurementRecordedEvent{Suite: "quarkus", Record: measure.Record{App: "a", StartedMs: 1234}})

	for _, ch := range []chan MeasurementRecordedEvent{received1, received2} {
		select {
		case got := <-ch:
			if got.Record.StartedMs != 1234 {
				t.Errorf("StartedMs = %d", got.Record.StartedMs)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	var mu sync.Mutex
	count := 0

	unsub := bus.Subscribe(func(CaseFinishedEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	unsub()

	bus.Publish(CaseFinishedEvent{Result: "passed"})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("handler called %d times after unsubscribe", count)
	}
}

func TestBus_TypeIsolation(t *testing.T) {
	bus := New()
	finished := make(chan CaseFinishedEvent, 1)
	states := make(chan CaseStateChangedEvent, 1)

	defer bus.Subscribe(func(e CaseFinishedEvent) { finished <- e })()
	defer bus.Subscribe(func(e CaseStateChangedEvent) { states <- e })()

	bus.Publish(CaseFinishedEvent{Result: "failed"})

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for finished event")
	}
	select {
	case e := <-states:
		t.Errorf("state handler received %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestEventTypesDistinct(t *testing.T) {
	seen := map[uint32]bool{}
	for _, e := range []Event{CaseStateChangedEvent{}, MeasurementRecordedEvent{}, CaseFinishedEvent{}} {
		if seen[e.Type()] {
			t.Errorf("duplicate type id %d", e.Type())
		}
		seen[e.Type()] = true
	}
}

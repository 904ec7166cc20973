package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan StreamEndedEvent, 1)

	unsub := bus.Subscribe(func(e StreamEndedEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(StreamEndedEvent{Direction: "record", Reason: "end of stream", Delivered: 3})

	select {
	case got := <-received:
		if got.Direction != "record" || got.Delivered != 3 {
			t.Errorf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := New()
	received1 := make(chan StreamStateChangedEvent, 1)
	received2 := make(chan StreamStateChangedEvent, 1)

	unsub1 := bus.Subscribe(func(e StreamStateChangedEvent) { received1 <- e })
	defer unsub1()
	unsub2 := bus.Subscribe(func(e StreamStateChangedEvent) { received2 <- e })
	defer unsub2()

	bus.Publish(StreamStateChangedEvent{Direction: "capture", OldState: "idle", NewState: "starting"})

	for _, ch := range []chan StreamStateChangedEvent{received1, received2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan FrameDroppedEvent, 1)

	unsub := bus.Subscribe(func(e FrameDroppedEvent) {
		received <- e
	})

	bus.Publish(FrameDroppedEvent{Reason: "size_mismatch"})
	<-received

	unsub()

	bus.Publish(FrameDroppedEvent{Reason: "size_mismatch"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	endedReceived := make(chan bool, 1)
	spawnReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ StreamEndedEvent) { endedReceived <- true })
	defer unsub1()
	unsub2 := bus.Subscribe(func(_ SpawnFailedEvent) { spawnReceived <- true })
	defer unsub2()

	bus.Publish(StreamEndedEvent{Direction: "capture"})
	<-endedReceived

	select {
	case <-spawnReceived:
		t.Fatal("spawn subscriber should not receive StreamEndedEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(t *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)
	unsub := bus.Subscribe(func(_ CallbackPanickedEvent) { receivedCh <- true })
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(CallbackPanickedEvent{Direction: "capture", Panic: "boom"})
			}
		}()
	}
	wg.Wait()

	for i := 0; i < expected; i++ {
		select {
		case <-receivedCh:
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of %d events", i, expected)
		}
	}
}

func TestBus_NilPublish(t *testing.T) {
	var bus *Bus
	bus.Publish(StreamEndedEvent{}) // must not panic
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan ConfigReloadedEvent, 1)
	unsub := SubscribeToChannel(bus, ch)
	defer unsub()

	bus.Publish(ConfigReloadedEvent{Path: "config.toml", Changed: []string{"video"}})
	select {
	case e := <-ch:
		if e.Path != "config.toml" || len(e.Changed) != 1 {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("event not forwarded to channel")
	}
}

func TestForwardToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 2)
	defer ForwardToChannel[SpawnFailedEvent](bus, ch)()
	defer ForwardToChannel[StreamEndedEvent](bus, ch)()

	bus.Publish(SpawnFailedEvent{Direction: "capture", Error: "exec: not found"})
	bus.Publish(StreamEndedEvent{Direction: "record"})

	seen := map[string]bool{}
	for range 2 {
		select {
		case e := <-ch:
			switch e := e.(type) {
			case SpawnFailedEvent:
				seen["spawn"] = e.Direction == "capture"
			case StreamEndedEvent:
				seen["ended"] = e.Direction == "record"
			default:
				t.Errorf("unexpected %T", e)
			}
		case <-time.After(time.Second):
			t.Fatal("event not forwarded")
		}
	}
	if !seen["spawn"] || !seen["ended"] {
		t.Errorf("seen = %v", seen)
	}
}

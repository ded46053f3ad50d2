package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan SourceAddedEvent, 1)

	unsub := bus.Subscribe(func(e SourceAddedEvent) {
		received <- e
	})
	defer unsub()

	ev := SourceAddedEvent{SceneID: "scene-1", SourceID: "cam", Kind: "camera", Timestamp: Now()}
	bus.Publish(ev)

	select {
	case got := <-received:
		if got.SourceID != ev.SourceID || got.Kind != ev.Kind {
			t.Errorf("received %+v, want %+v", got, ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan DeviceBindingEvent, 1)

	unsub := bus.Subscribe(func(e DeviceBindingEvent) {
		received <- e
	})

	bus.Publish(DeviceBindingEvent{DeviceID: "/dev/video0", State: "live"})
	<-received

	unsub()

	bus.Publish(DeviceBindingEvent{DeviceID: "/dev/video1", State: "failed"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	sceneReceived := make(chan bool, 1)
	sessionReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ SceneCreatedEvent) { sceneReceived <- true })
	defer unsub1()
	unsub2 := bus.Subscribe(func(_ SessionStateChangedEvent) { sessionReceived <- true })
	defer unsub2()

	bus.Publish(SceneCreatedEvent{SceneID: "s1"})
	<-sceneReceived

	select {
	case <-sessionReceived:
		t.Fatal("session subscriber should NOT have received SceneCreatedEvent")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(SessionStateChangedEvent{Track: "stream", From: "idle", To: "starting"})
	<-sessionReceived

	select {
	case <-sceneReceived:
		t.Fatal("scene subscriber should NOT have received SessionStateChangedEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ SessionStatsEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(SessionStatsEvent{Status: "live", FPS: 60})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_NilPublishIsNoop(_ *testing.T) {
	var bus *Bus
	bus.Publish(SceneDeletedEvent{SceneID: "gone"})
}

func TestBus_UnknownHandlerType(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	if unsub == nil {
		t.Fatal("Subscribe must always return an unsubscribe function")
	}
	unsub()
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)

	unsub := SubscribeToChannel[LogEntryEvent](bus, ch)
	defer unsub()

	bus.Publish(LogEntryEvent{Seq: 7, Message: "hello"})

	select {
	case got := <-ch:
		entry, ok := got.(LogEntryEvent)
		if !ok || entry.Seq != 7 {
			t.Errorf("unexpected value on channel: %#v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel delivery")
	}
}

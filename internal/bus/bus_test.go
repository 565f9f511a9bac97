package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("timeline.", 10)
	defer unsub()

	b.Publish(NewEvent(KindTimelineUpdated, "c1"))

	select {
	case evt := <-ch:
		if evt.Kind != KindTimelineUpdated {
			t.Errorf("got kind %q, want %q", evt.Kind, KindTimelineUpdated)
		}
		if evt.Payload != "c1" {
			t.Errorf("payload = %v, want c1", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("channel.", 10)
	defer unsub()

	b.Publish(NewEvent(KindRosterUpdated, nil))
	b.Publish(NewEvent(KindChannelMessage, nil))

	select {
	case evt := <-ch:
		if evt.Kind != KindChannelMessage {
			t.Errorf("got kind %q, want %q", evt.Kind, KindChannelMessage)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected second event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 10)
	unsub()

	b.Publish(NewEvent(KindRosterUpdated, nil))

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropWhenBufferFull(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("presence.", 1)
	defer unsub()

	b.Publish(NewEvent(KindPresenceUpdated, 1))
	b.Publish(NewEvent(KindPresenceUpdated, 2))

	evt := <-ch
	if evt.Payload != 1 {
		t.Errorf("payload = %v, want 1 (second publish dropped)", evt.Payload)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected buffered event: %v", evt)
	default:
	}
}

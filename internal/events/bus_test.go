package events

import "testing"

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := NewBus()
	b.YieldAfterPublish = 0

	ch1, unsub1 := b.Subscribe(4)
	defer unsub1()
	ch2, unsub2 := b.Subscribe(4)
	defer unsub2()

	b.Publish(Event{Type: TypeProgress, AlbumID: "a1", Value: 0.5})

	for _, ch := range []chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.AlbumID != "a1" {
				t.Errorf("got album %q, want a1", ev.AlbumID)
			}
		default:
			t.Fatal("expected event to be delivered")
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus()
	b.YieldAfterPublish = 0

	ch, unsub := b.Subscribe(4)
	unsub()

	b.Publish(Event{Type: TypeNotification, Message: "hi"})

	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed, not delivering")
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	b := NewBus()
	b.YieldAfterPublish = 0

	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: TypeProgress, Value: 0.1})
	b.Publish(Event{Type: TypeProgress, Value: 0.2}) // buffer full, should not block

	ev := <-ch
	if ev.Value != 0.1 {
		t.Errorf("expected first event retained, got %v", ev.Value)
	}
}

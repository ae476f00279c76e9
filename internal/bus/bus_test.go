package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribePrefix(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("poll.", 4)
	defer unsub()

	b.Emit(KindPollMessage, "m1")
	b.Emit(KindSendOK, "ignored")
	b.Emit(KindPollError, "e1")

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case evt := <-ch:
			got = append(got, evt.Kind)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	}
	if got[0] != KindPollMessage || got[1] != KindPollError {
		t.Errorf("kinds = %v, want [poll.message poll.error]", got)
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event %q for poll. subscriber", evt.Kind)
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 1)
	unsub()

	b.Emit(KindSendFailed, nil)

	select {
	case evt := <-ch:
		t.Errorf("received %q after unsubscribe", evt.Kind)
	default:
	}
}

func TestFullSubscriberDoesNotBlockPublisher(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("", 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Emit(KindPollMessage, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on full subscriber")
	}
}

func TestEmitStampsTimestamp(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(KindStatusChanged, 1)
	defer unsub()

	b.Emit(KindStatusChanged, nil)
	evt := <-ch
	if evt.Timestamp.IsZero() {
		t.Error("event timestamp is zero")
	}
}

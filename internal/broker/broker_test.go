package broker

import (
	"sync"
	"testing"
	"time"
)

func summary(source, id string) Summary {
	return Summary{EventID: id, Source: source, Fingerprint: "Error:boom", Time: time.Now()}
}

func TestSubscribeAndPublish(t *testing.T) {
	b := New()
	ch := b.Subscribe("tunnel")
	defer b.Unsubscribe("tunnel", ch)

	b.Publish(summary("tunnel", "e1"))

	select {
	case got := <-ch:
		if got.EventID != "e1" {
			t.Errorf("EventID = %q, want e1", got.EventID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected summary on channel")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch := b.Subscribe("tunnel")
	b.Unsubscribe("tunnel", ch)

	b.Publish(summary("tunnel", "e1"))

	select {
	case <-ch:
		t.Fatal("should not receive after unsubscribe")
	case <-time.After(50 * time.Millisecond):
		// success
	}
}

func TestSourceIsolation(t *testing.T) {
	b := New()
	tunnel := b.Subscribe("tunnel")
	sdk := b.Subscribe("sdk")
	all := b.Subscribe(AllSources)
	defer b.Unsubscribe("tunnel", tunnel)
	defer b.Unsubscribe("sdk", sdk)
	defer b.Unsubscribe(AllSources, all)

	b.Publish(summary("tunnel", "e1"))

	for name, ch := range map[string]chan Summary{"tunnel": tunnel, "all": all} {
		select {
		case <-ch:
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("%s subscriber should have received the summary", name)
		}
	}

	select {
	case <-sdk:
		t.Fatal("sdk subscriber should not receive tunnel summaries")
	case <-time.After(50 * time.Millisecond):
		// expected
	}
}

func TestSlowSubscriberSkipsInsteadOfBlocking(t *testing.T) {
	b := New()
	ch := b.Subscribe("sdk")
	defer b.Unsubscribe("sdk", ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			b.Publish(summary("sdk", "e"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if len(ch) != subscriberBuffer {
		t.Errorf("buffered = %d, want %d", len(ch), subscriberBuffer)
	}
}

func TestUnsubscribeCleansUpEmptySource(t *testing.T) {
	b := New()
	ch := b.Subscribe("sdk")
	if b.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", b.Subscribers())
	}
	b.Unsubscribe("sdk", ch)

	b.mu.Lock()
	_, exists := b.subs["sdk"]
	b.mu.Unlock()

	if exists {
		t.Fatal("expected source entry to be removed after last unsubscribe")
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	var nilBroker *Broker
	nilBroker.Publish(summary("sdk", "e1"))
	New().Publish(summary("sdk", "e1"))
}

func TestConcurrentAccess(t *testing.T) {
	b := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := b.Subscribe("tunnel")
			b.Publish(summary("tunnel", "e"))
			<-ch
			b.Unsubscribe("tunnel", ch)
		}()
	}

	wg.Wait()
}

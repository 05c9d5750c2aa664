// Package broker provides an in-memory pub/sub of scrubbed event summaries,
// scoped by event source. It feeds the admin live event stream.
package broker

import (
	"sync"
	"time"
)

// AllSources subscribes to every source.
const AllSources = ""

// subscriberBuffer is how many summaries a slow subscriber may fall behind
// before newer ones are skipped for it.
const subscriberBuffer = 16

// Summary describes one event after it was sanitized. It carries no payload
// fields, only what an operator needs to spot a problem.
type Summary struct {
	EventID     string    `json:"eventId"`
	Source      string    `json:"source"`
	Level       string    `json:"level,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	Message     string    `json:"message,omitempty"`
	Time        time.Time `json:"time"`
}

// Broker is a source-scoped pub/sub hub. Publish never blocks: a subscriber
// whose buffer is full misses the summary.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Summary]struct{}
}

// New creates a ready-to-use Broker.
func New() *Broker {
	return &Broker{
		subs: make(map[string]map[chan Summary]struct{}),
	}
}

// Subscribe returns a channel receiving summaries published for source, or
// for every source when source is AllSources.
func (b *Broker) Subscribe(source string) chan Summary {
	ch := make(chan Summary, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[source] == nil {
		b.subs[source] = make(map[chan Summary]struct{})
	}
	b.subs[source][ch] = struct{}{}
	return ch
}

// Unsubscribe removes a channel from the source's subscriber set.
// If the source has no remaining subscribers, the entry is cleaned up.
func (b *Broker) Unsubscribe(source string, ch chan Summary) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subs[source]; ok {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(b.subs, source)
		}
	}
}

// Publish delivers s to subscribers of its source and of AllSources.
// It is a no-op on a nil Broker.
func (b *Broker) Publish(s Summary) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliver(b.subs[s.Source], s)
	if s.Source != AllSources {
		b.deliver(b.subs[AllSources], s)
	}
}

func (b *Broker) deliver(subs map[chan Summary]struct{}, s Summary) {
	for ch := range subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Subscribers returns the number of open subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}
	return n
}

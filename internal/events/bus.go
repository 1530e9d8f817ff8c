// Package events fans out state changes to interested subscribers.
// Topics are session ids, plus CommunityTopic for the guild board.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// CommunityTopic carries guild events shared by every client
const CommunityTopic = "community"

// Event types
const (
	TypeStateChanged       = "state.changed"
	TypeViewChanged        = "view.changed"
	TypeAssessmentResult   = "assessment.result"
	TypePurchaseSucceeded  = "checkout.succeeded"
	TypeCheckoutComplete   = "checkout.complete"
	TypeGuildRegistered    = "guild.registered"
	TypeCommunityPost      = "community.post"
	TypeCommunityPostLiked = "community.liked"
)

// DefaultBufferSize is the per-subscriber channel capacity
const DefaultBufferSize = 32

// Event is a single notification
type Event struct {
	Seq       uint64      `json:"seq"`
	Topic     string      `json:"topic"`
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type subscriber struct {
	ch     chan Event
	topic  string
	closed bool
}

// Bus is an in-process publish/subscribe hub. Publish never blocks:
// a subscriber whose buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string]map[*subscriber]struct{}
	bufSize int
	seq     atomic.Uint64
	dropped atomic.Uint64
}

// NewBus creates a bus with the given per-subscriber buffer (0 = default)
func NewBus(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Bus{
		subs:    make(map[string]map[*subscriber]struct{}),
		bufSize: bufSize,
	}
}

// Subscribe returns a channel receiving events published to topic and a
// cancel func that unsubscribes and closes the channel. Cancel is idempotent.
func (b *Bus) Subscribe(topic string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, b.bufSize), topic: topic}

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*subscriber]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() { b.remove(sub) })
	}
	return sub.ch, cancel
}

func (b *Bus) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[sub.topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sub.topic)
		}
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// Publish sends an event of type typ to every subscriber of topic
func (b *Bus) Publish(topic, typ string, data interface{}) Event {
	ev := Event{
		Seq:       b.seq.Add(1),
		Topic:     topic,
		Type:      typ,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[topic] {
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
	return ev
}

// Subscribers returns the number of subscribers of topic
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Dropped returns how many deliveries were skipped because a buffer was full
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close unsubscribes everyone
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, set := range b.subs {
		for sub := range set {
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
		}
		delete(b.subs, topic)
	}
}

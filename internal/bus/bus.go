// Package bus is the in-process publish/subscribe channel between the
// background components and the interactive layer. Delivery is best-effort
// and in-order per topic; a slow subscriber drops events rather than
// blocking the publisher.
package bus

import (
	"sync"

	"github.com/clawdeck/clawdeck/internal/sessionlog"
)

// Topics published by the engine.
const (
	TopicMessageArrived      = "message-arrived"
	TopicThreadRenamed       = "thread-renamed"
	TopicBrainDumpFollowedUp = "brain-dump-followed-up"
)

// MessageArrived carries one newly observed log entry for a watched session.
type MessageArrived struct {
	SessionID string           `json:"session_id"`
	Entry     sessionlog.Entry `json:"entry"`
}

// ThreadRenamed announces a title change.
type ThreadRenamed struct {
	ThreadID string `json:"thread_id"`
	Name     string `json:"name"`
}

// BrainDumpFollowedUp announces a proactive follow-up thread.
type BrainDumpFollowedUp struct {
	ItemID    string  `json:"item_id"`
	SessionID string  `json:"session_id"`
	Content   string  `json:"content"`
	ProjectID *string `json:"project_id,omitempty"`
}

// Event is one published message.
type Event struct {
	Topic   string
	Payload any
}

const subscriberBuffer = 64

// Subscription is a registered listener on one topic. Events arrive on C
// until Unsubscribe is called, after which C is closed.
type Subscription struct {
	C <-chan Event

	bus   *Bus
	topic string
	ch    chan Event
	once  sync.Once
}

// Unsubscribe removes the subscription and closes C. Safe to call more
// than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s)
	})
}

// Bus routes events from publishers to topic subscribers.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]*Subscription
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]*Subscription)}
}

// Subscribe registers a listener on a topic.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		bus:   b,
		topic: topic,
		ch:    make(chan Event, subscriberBuffer),
	}
	sub.C = sub.ch

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	return sub
}

// Publish delivers an event to every current subscriber of the topic.
// Subscribers whose buffers are full miss the event; Publish never blocks.
// Sends happen under the bus lock so per-topic ordering is preserved and a
// concurrent Unsubscribe cannot close a channel mid-send.
func (b *Bus) Publish(topic string, payload any) {
	evt := Event{Topic: topic, Payload: payload}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[topic] {
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.topic]
	for i, s := range list {
		if s == sub {
			b.subs[sub.topic] = append(list[:i], list[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

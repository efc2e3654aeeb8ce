// Package events provides the in-memory publish/subscribe bus the portal
// client uses to deliver session lifecycle and realtime notifications to
// whatever frontend is driving it. Topics are dot-separated and subscription
// patterns may use "*" as a segment wildcard.
package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Session lifecycle topics. Subscribers typically watch "session.*" and
// branch on the concrete topic.
const (
	TopicLogin         = "session.login"
	TopicLogout        = "session.logout"
	TopicAutoLogin     = "session.autologin"
	TopicAutoLogout    = "session.autologout"
	TopicNoAccessToken = "session.notoken"
)

// RealtimeTopic returns the per-user realtime channel topic. The portal opens
// this channel for learner sessions after login.
func RealtimeTopic(userID string) string {
	return "realtime." + userID
}

// Event is a single published event.
type Event struct {
	Topic string
	Data  any
}

// subscriber holds one subscription's delivery channel and lifecycle state.
type subscriber struct {
	id      string
	channel chan Event
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// send delivers an event, giving up after timeout so a slow subscriber can
// never block a publisher.
func (s *subscriber) send(event Event, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.channel <- event:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		s.cancel()
		close(s.channel)
	}
}

// Bus is a thread-safe topic-routed event bus.
type Bus struct {
	sync.RWMutex
	subscribers map[string]map[string]*subscriber // pattern -> subscriberID -> subscriber
	counter     uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string]map[string]*subscriber),
	}
}

// Subscribe registers a subscriber for the given topic pattern and returns
// the delivery channel plus an unsubscribe function. The channel is closed on
// unsubscribe or shutdown.
func (b *Bus) Subscribe(pattern string, bufferSize int) (<-chan Event, func()) {
	id := fmt.Sprintf("sub-%d", atomic.AddUint64(&b.counter, 1))

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscriber{
		id:      id,
		channel: make(chan Event, bufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	b.Lock()
	defer b.Unlock()

	if _, ok := b.subscribers[pattern]; !ok {
		b.subscribers[pattern] = make(map[string]*subscriber)
	}
	b.subscribers[pattern][id] = sub

	unsubscribe := func() {
		b.Lock()
		defer b.Unlock()

		if subMap, ok := b.subscribers[pattern]; ok {
			if s, ok := subMap[id]; ok {
				s.close()
				delete(subMap, id)
				if len(subMap) == 0 {
					delete(b.subscribers, pattern)
				}
			}
		}
	}

	return sub.channel, unsubscribe
}

// Publish delivers an event to every subscriber whose pattern matches the
// topic. Non-blocking; events for slow subscribers are dropped after timeout.
func (b *Bus) Publish(topic string, data any, timeout time.Duration) {
	event := Event{Topic: topic, Data: data}

	b.RLock()
	defer b.RUnlock()

	for pattern, subMap := range b.subscribers {
		if matchTopic(pattern, topic) {
			for _, sub := range subMap {
				select {
				case <-sub.ctx.Done():
					continue
				default:
					sub.send(event, timeout)
				}
			}
		}
	}
}

// CloseTopic closes every subscription registered under the exact pattern.
func (b *Bus) CloseTopic(pattern string) {
	b.Lock()
	defer b.Unlock()

	if subs, ok := b.subscribers[pattern]; ok {
		for _, sub := range subs {
			sub.close()
		}
		delete(b.subscribers, pattern)
	}
}

// Shutdown closes all subscriptions and empties the bus.
func (b *Bus) Shutdown() {
	b.Lock()
	defer b.Unlock()

	for _, subs := range b.subscribers {
		for _, sub := range subs {
			sub.close()
		}
	}
	b.subscribers = make(map[string]map[string]*subscriber)
}

// matchTopic reports whether topic matches pattern. "*" matches a whole
// segment; "*" alone matches everything.
func matchTopic(pattern, topic string) bool {
	if pattern == "" || topic == "" {
		return false
	}
	if pattern == "*" || pattern == topic {
		return true
	}
	patternParts := strings.Split(pattern, ".")
	topicParts := strings.Split(topic, ".")

	if len(patternParts) != len(topicParts) {
		return false
	}

	for i := range patternParts {
		if patternParts[i] == "*" {
			continue
		}
		if patternParts[i] != topicParts[i] {
			return false
		}
	}
	return true
}

// Package realtime is the broadcast side of the system: a topic-keyed hub of
// subscribed connections plus a redis pub/sub bridge so events published on
// one process reach subscribers on every process. It relays core event
// payloads verbatim and never touches comment state.
package realtime

import (
	"log"
	"sync"
)

// Subscriber receives broadcast frames for anchors it subscribed to.
type Subscriber interface {
	Send(message []byte) error
}

// Hub tracks which subscribers are attached to which anchor topics.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[Subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[Subscriber]struct{})}
}

// Subscribe attaches the subscriber to an anchor topic.
func (h *Hub) Subscribe(sub Subscriber, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[Subscriber]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
}

// Unsubscribe detaches the subscriber from an anchor topic.
func (h *Hub) Unsubscribe(sub Subscriber, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}

// Drop detaches the subscriber from every topic, used on disconnect.
func (h *Hub) Drop(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, subs := range h.topics {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Broadcast delivers a frame to every subscriber of the topic. A failed send
// is logged and the subscriber stays attached; the websocket read loop drops
// it when the connection actually dies.
func (h *Hub) Broadcast(topic string, message []byte) {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.topics[topic]))
	for sub := range h.topics[topic] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.Send(message); err != nil {
			log.Printf("realtime: send on %s: %v", topic, err)
		}
	}
}

package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// chanSubscriber collects broadcast frames for assertions.
type chanSubscriber struct {
	frames chan []byte
}

func newChanSubscriber() *chanSubscriber {
	return &chanSubscriber{frames: make(chan []byte, 8)}
}

func (s *chanSubscriber) Send(message []byte) error {
	s.frames <- message
	return nil
}

func (s *chanSubscriber) next(t *testing.T) Event {
	t.Helper()
	select {
	case frame := <-s.frames:
		var event Event
		if err := json.Unmarshal(frame, &event); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast frame")
		return Event{}
	}
}

func TestPublishLocalOnly(t *testing.T) {
	hub := NewHub()
	gateway := NewGateway(nil, hub)

	sub := newChanSubscriber()
	hub.Subscribe(sub, "annotation:item-1:ann-1")

	if err := gateway.Publish(context.Background(), "annotation:item-1:ann-1", "comment_added", map[string]any{"id": "cmt-1"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	event := sub.next(t)
	if event.Event != "comment_added" || event.Topic != "annotation:item-1:ann-1" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestPublishThroughRedisBridge(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub := NewHub()
	gateway := NewGateway(client, hub)
	defer gateway.Close()

	sub := newChanSubscriber()
	hub.Subscribe(sub, "thread:GENERAL:thr-1")

	// The pattern subscription is established asynchronously; retry until the
	// bridge delivers.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := gateway.Publish(context.Background(), "thread:GENERAL:thr-1", "reaction_added", map[string]any{"type": "like"}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		select {
		case frame := <-sub.frames:
			var event Event
			if err := json.Unmarshal(frame, &event); err != nil {
				t.Fatalf("unmarshal frame: %v", err)
			}
			if event.Event != "reaction_added" || event.Topic != "thread:GENERAL:thr-1" {
				t.Fatalf("unexpected event: %+v", event)
			}
			return
		case <-time.After(50 * time.Millisecond):
			if time.Now().After(deadline) {
				t.Fatal("timed out waiting for bridged frame")
			}
		}
	}
}

func TestHubUnsubscribeAndDrop(t *testing.T) {
	hub := NewHub()
	first := newChanSubscriber()
	second := newChanSubscriber()
	hub.Subscribe(first, "topic-a")
	hub.Subscribe(second, "topic-a")
	hub.Subscribe(second, "topic-b")

	hub.Unsubscribe(first, "topic-a")
	hub.Broadcast("topic-a", []byte("x"))
	if len(first.frames) != 0 {
		t.Fatal("unsubscribed subscriber still received a frame")
	}
	if len(second.frames) != 1 {
		t.Fatalf("second subscriber frames = %d, want 1", len(second.frames))
	}

	hub.Drop(second)
	hub.Broadcast("topic-b", []byte("y"))
	if len(second.frames) != 1 {
		t.Fatal("dropped subscriber still received a frame")
	}
}

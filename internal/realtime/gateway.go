package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "anchor:"

// Event is the wire envelope relayed to subscribers. Payload is the core's
// output, untouched.
type Event struct {
	Event   string `json:"event"`
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// Gateway publishes mutation events. With a redis client the event travels
// through pub/sub and is re-broadcast by the bridge on each process; without
// one it is delivered to the local hub only.
type Gateway struct {
	hub    *Hub
	client *redis.Client
	pubsub *redis.PubSub
}

// NewGateway creates a gateway over the hub. client may be nil for
// single-process operation.
func NewGateway(client *redis.Client, hub *Hub) *Gateway {
	g := &Gateway{hub: hub, client: client}
	if client != nil {
		g.pubsub = client.PSubscribe(context.Background(), channelPrefix+"*")
		go g.bridge()
	}
	return g
}

// Publish sends one event for the anchor topic.
func (g *Gateway) Publish(ctx context.Context, topic, event string, payload any) error {
	message, err := json.Marshal(Event{Event: event, Topic: topic, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event, err)
	}
	if g.client == nil {
		g.hub.Broadcast(topic, message)
		return nil
	}
	if err := g.client.Publish(ctx, channelPrefix+topic, message).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// bridge pumps redis pub/sub messages into the local hub.
func (g *Gateway) bridge() {
	for message := range g.pubsub.Channel() {
		topic := strings.TrimPrefix(message.Channel, channelPrefix)
		g.hub.Broadcast(topic, []byte(message.Payload))
	}
	log.Printf("realtime: redis bridge stopped")
}

// Close stops the redis bridge.
func (g *Gateway) Close() error {
	if g.pubsub == nil {
		return nil
	}
	return g.pubsub.Close()
}

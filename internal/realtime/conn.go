package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"marginalia/api/internal/store"
)

// Conn adapts a websocket connection to the Subscriber interface and drives
// its subscribe/unsubscribe frames.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// NewConn wraps an upgraded websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Send writes one text frame. Writes are serialized; gorilla connections
// support one concurrent writer only.
func (c *Conn) Send(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, message)
}

// controlFrame is the client-to-server message shape.
type controlFrame struct {
	Action string          `json:"action"`
	Anchor store.AnchorKey `json:"anchor"`
}

// ReadLoop consumes control frames until the connection closes, then detaches
// the connection from every topic. It blocks and is meant to run on the
// handler's goroutine.
func (c *Conn) ReadLoop(hub *Hub) {
	defer func() {
		hub.Drop(c)
		_ = c.ws.Close()
	}()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var frame controlFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("realtime: bad control frame: %v", err)
			continue
		}
		if frame.Anchor.IsZero() {
			continue
		}
		switch frame.Action {
		case "subscribe":
			hub.Subscribe(c, frame.Anchor.Topic())
		case "unsubscribe":
			hub.Unsubscribe(c, frame.Anchor.Topic())
		}
	}
}

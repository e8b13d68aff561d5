package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hivemindhq/hivemind/internal/channels"
)

// upgrader accepts connections from any origin: hivemind is meant to
// run as a trusted sidecar for cooperating agents, not a
// browser-facing public service.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// clientFrame is one inbound message: subscribe, unsubscribe, or ping.
type clientFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
}

// serverFrame is one outbound message.
type serverFrame struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// wsConnection holds one client's live subscriptions and serializes
// writes onto its socket, since gorilla/websocket forbids concurrent
// writers.
type wsConnection struct {
	id     string
	conn   *websocket.Conn
	eng    interface {
		Subscribe(channel string) *channels.Subscription
	}
	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]*channels.Subscription
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade failed: %v", err)
		return
	}

	c := &wsConnection{
		id:   uuid.NewString(),
		conn: conn,
		eng:  s.eng,
		subs: make(map[string]*channels.Subscription),
	}

	log.Infof("websocket connection %s opened", c.id)
	defer func() {
		c.closeAll()
		conn.Close()
		log.Infof("websocket connection %s closed", c.id)
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.pingLoop()
	c.readLoop()
}

func (c *wsConnection) writeFrame(frame serverFrame) error {
	frame.Timestamp = time.Now().UTC()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame)
}

func (c *wsConnection) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.conn.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

func (c *wsConnection) readLoop() {
	for {
		var frame clientFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case "subscribe":
			c.subscribe(frame.Channel)
		case "unsubscribe":
			c.unsubscribe(frame.Channel)
		case "ping":
			c.writeFrame(serverFrame{Type: "pong"})
		default:
			c.writeFrame(serverFrame{Type: "error", Error: "unknown frame type: " + frame.Type})
		}
	}
}

func (c *wsConnection) subscribe(channelName string) {
	if channelName == "" {
		c.writeFrame(serverFrame{Type: "error", Error: "channel is required"})
		return
	}

	c.mu.Lock()
	if _, already := c.subs[channelName]; already {
		c.mu.Unlock()
		return
	}
	sub := c.eng.Subscribe(channelName)
	c.subs[channelName] = sub
	c.mu.Unlock()

	c.writeFrame(serverFrame{Type: "subscribed", Channel: channelName})

	go func() {
		for event := range sub.Events() {
			if err := c.writeFrame(serverFrame{Type: event.Type, Channel: event.Channel, Payload: event.Payload}); err != nil {
				return
			}
		}
	}()
}

// unsubscribe is a no-op: explicit per-channel unsubscribe does not
// tear anything down, since this process relies on client disconnect
// to release subscriptions. It still acks so well-behaved clients
// waiting on a response don't stall.
func (c *wsConnection) unsubscribe(channelName string) {
	c.writeFrame(serverFrame{Type: "unsubscribed", Channel: channelName})
}

func (c *wsConnection) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, sub := range c.subs {
		sub.Unsubscribe()
		delete(c.subs, name)
	}
}

// Package replication emits a best-effort outbound copy of every
// mutation onto an external NATS sink, so a downstream collector can
// mirror this process's state without being in the hot path of any
// request. Ground: internal/nats/client.go's reconnect options
// (ReconnectWait, unlimited MaxReconnects, disconnect/reconnect/closed
// handlers logged with a bracketed tag) and PublishJSON helper,
// generalized from a request/reply client into a fire-and-forget
// frame emitter with its own retry loop for the initial connect.
package replication

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	nc "github.com/nats-io/nats.go"

	"github.com/hivemindhq/hivemind/internal/logging"
)

var log = logging.WithComponent("REPLICATION")

// initialConnectBackoff is how long the emitter waits between attempts
// to reach the sink for the first time; subsequent reconnects are
// handled by the nats.go client's own backoff.
const initialConnectBackoff = 5 * time.Second

// Frame is one replicated change, published as JSON.
type Frame struct {
	Kind      string      `json:"kind"`
	Operation string      `json:"operation"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Emitter owns an unbounded outbound queue and a best-effort NATS
// connection: callers never block on network I/O or on queue
// capacity, and a sink that is down simply accumulates a backlog the
// emitter drains once it reconnects. The only loss mechanism is
// connect/send failure, never queue capacity: frames in flight when
// the sink is unreachable are dropped, but Emit itself never drops one
// for a full buffer.
type Emitter struct {
	subject string
	url     string
	conn    *nc.Conn

	mu     sync.Mutex
	cond   *sync.Cond
	frames []Frame
	closed bool
}

// NewEmitter builds an emitter targeting subject on the server at url.
// The connection is established by Run, not here, so construction
// never fails or blocks.
func NewEmitter(url, subject string) *Emitter {
	e := &Emitter{subject: subject, url: url}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Emit appends a frame to the unbounded outbound queue and never
// blocks the caller.
func (e *Emitter) Emit(kind, operation string, payload interface{}) {
	frame := Frame{Kind: kind, Operation: operation, Payload: payload, Timestamp: time.Now().UTC()}
	e.mu.Lock()
	e.frames = append(e.frames, frame)
	e.mu.Unlock()
	e.cond.Signal()
}

// pop blocks until a frame is available or the queue has been closed
// and drained, returning ok=false only once nothing is left to send.
func (e *Emitter) pop() (Frame, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.frames) == 0 && !e.closed {
		e.cond.Wait()
	}
	if len(e.frames) == 0 {
		return Frame{}, false
	}
	frame := e.frames[0]
	e.frames = e.frames[1:]
	return frame, true
}

// Run connects to the sink, retrying every initialConnectBackoff until
// it succeeds or stop is closed, then sends queued frames until the
// queue is drained following stop.
func (e *Emitter) Run(stop <-chan struct{}) {
	go func() {
		<-stop
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		e.cond.Broadcast()
	}()

	for {
		conn, err := e.connect()
		if err == nil {
			e.conn = conn
			break
		}
		log.Warnf("failed to connect to replication sink %s: %v, retrying in %s", e.url, err, initialConnectBackoff)

		select {
		case <-time.After(initialConnectBackoff):
		case <-stop:
			return
		}
	}
	defer e.conn.Close()

	log.Infof("replication connected to %s, publishing to subject %q", e.url, e.subject)

	for {
		frame, ok := e.pop()
		if !ok {
			if err := e.conn.Flush(); err != nil {
				log.Warnf("failed to flush replication connection on shutdown: %v", err)
			}
			return
		}
		e.publish(frame)
	}
}

func (e *Emitter) connect() (*nc.Conn, error) {
	opts := []nc.Option{
		nc.Name("hivemind-replication"),
		nc.ReconnectWait(5 * time.Second),
		nc.MaxReconnects(-1),
		nc.DisconnectErrHandler(func(_ *nc.Conn, err error) {
			if err != nil {
				log.Warnf("disconnected from replication sink: %v", err)
			}
		}),
		nc.ReconnectHandler(func(conn *nc.Conn) {
			log.Infof("reconnected to replication sink at %s", conn.ConnectedUrl())
		}),
		nc.ClosedHandler(func(*nc.Conn) {
			log.Infof("replication connection closed")
		}),
	}

	conn, err := nc.Connect(e.url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

func (e *Emitter) publish(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Errorf("failed to marshal replication frame: %v", err)
		return
	}
	if err := e.conn.Publish(e.subject, data); err != nil {
		log.Warnf("failed to publish replication frame: %v", err)
	}
}

package cluster

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// WSChannel is a Channel backed by a single coder/websocket connection to
// a cluster peer, grounded on the teacher's internal/wsproto codec (JSON
// text-frame envelope; the teacher's optional msgpack binary framing is
// not carried over here since nothing in SPEC_FULL needs a second wire
// encoding for cluster gossip).
type WSChannel struct {
	conn *websocket.Conn
	ctx  context.Context

	mu      sync.Mutex
	handler Handler
}

// DialWSChannel connects to a peer's cluster endpoint at url and starts
// reading inbound events in the background.
func DialWSChannel(ctx context.Context, url string) (*WSChannel, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	ch := &WSChannel{conn: conn, ctx: ctx}
	go ch.readLoop()
	return ch, nil
}

// NewWSChannel wraps an already-established connection (e.g. one
// accepted server-side), starting the same background read loop.
func NewWSChannel(ctx context.Context, conn *websocket.Conn) *WSChannel {
	ch := &WSChannel{conn: conn, ctx: ctx}
	go ch.readLoop()
	return ch
}

func (c *WSChannel) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Broadcast sends e as a JSON text frame, matching the teacher's
// EncodingJSON wire path in internal/wsproto.Marshal.
func (c *WSChannel) Broadcast(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.conn.Write(c.ctx, websocket.MessageText, data)
}

func (c *WSChannel) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "cluster channel closing")
}

func (c *WSChannel) readLoop() {
	for {
		typ, data, err := c.conn.Read(c.ctx)
		if err != nil {
			slog.Debug("cluster channel read loop exiting", "error", err)
			return
		}
		if typ != websocket.MessageText {
			slog.Warn("cluster channel ignoring non-text frame", "type", typ)
			continue
		}
		var e Event
		if err := json.Unmarshal(data, &e); err != nil {
			slog.Warn("cluster channel dropping malformed event", "error", err)
			continue
		}
		c.mu.Lock()
		handler := c.handler
		c.mu.Unlock()
		if handler != nil {
			handler.HandleClusterEvent(e)
		}
	}
}

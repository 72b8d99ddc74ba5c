// Package ws serves client connections over websocket. Every frame is a
// JSON envelope {"type": ..., "data": ...}.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/flipnotify/core/flip"
	"github.com/kilianp07/flipnotify/core/model"
)

// Outbound message types.
const (
	TypeFlip      = "flip"
	TypeMessage   = "chatMessage"
	TypeCountdown = "countdown"
	TypeSound     = "playSound"
	TypePing      = "ping"
	TypeChallenge = "challenge"
)

// Inbound message types.
const (
	TypeSettings = "settings"
	TypePong     = "pong"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Conn implements session.Conn on a websocket. Writes are serialised; after
// the first write error every call returns flip.ErrConnectionClosed.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed atomic.Bool
}

// NewConn wraps ws.
func NewConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Conn{ws: ws, writeTimeout: writeTimeout}
}

func (c *Conn) write(ctx context.Context, typ string, v any) error {
	if c.closed.Load() {
		return flip.ErrConnectionClosed
	}
	var data json.RawMessage
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", typ, err)
		}
		data = b
	}
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		c.closed.Store(true)
		return fmt.Errorf("%w: %v", flip.ErrConnectionClosed, err)
	}
	if err := c.ws.WriteJSON(Envelope{Type: typ, Data: data}); err != nil {
		c.closed.Store(true)
		return fmt.Errorf("%w: %v", flip.ErrConnectionClosed, err)
	}
	return nil
}

func (c *Conn) SendFlip(ctx context.Context, f *model.FlipInstance) error {
	return c.write(ctx, TypeFlip, f)
}

func (c *Conn) SendMessage(ctx context.Context, text string) error {
	return c.write(ctx, TypeMessage, text)
}

func (c *Conn) SendCountdown(ctx context.Context, cd model.Countdown) error {
	return c.write(ctx, TypeCountdown, cd)
}

func (c *Conn) PlaySound(ctx context.Context, name string) error {
	return c.write(ctx, TypeSound, name)
}

func (c *Conn) Ping(ctx context.Context) error {
	return c.write(ctx, TypePing, nil)
}

// Challenge asks the client to answer a macro check.
func (c *Conn) Challenge(ctx context.Context, account model.AccountInfo) error {
	return c.write(ctx, TypeChallenge, map[string]string{"user_id": account.UserID})
}

// Close sends a close frame and closes the socket. Safe to call twice.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.ws.Close()
}

// Package telemetry publishes capture state and cycle reports to a monitor
// over a websocket, and implements that monitor.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/junsooki/ScreenDelta/internal/pump"
)

var ErrNotConnected = errors.New("telemetry client not connected")

const (
	pingInterval = 25 * time.Second
	writeTimeout = 5 * time.Second
	outboxSize   = 64
)

// Handler callbacks for incoming telemetry messages.
type Handler struct {
	OnRegistered func()
	OnError      func(msg string)
}

// Client is a websocket telemetry publisher. It implements pump.Observer;
// reports are queued and written by a background goroutine so the pump
// never blocks on the network. Reports that do not fit the queue are dropped.
type Client struct {
	url      string
	clientID string
	handler  Handler

	conn    *websocket.Conn
	mu      sync.Mutex
	outbox  chan Message
	done    chan struct{}
	closed  bool
	dropped uint64
}

var _ pump.Observer = (*Client)(nil)

// NewClientID returns a fresh overlay client id.
func NewClientID() string {
	return "overlay-" + uuid.NewString()[:8]
}

// NewClient creates a telemetry client. clientID defaults to NewClientID().
func NewClient(url, clientID string, handler Handler) *Client {
	if clientID == "" {
		clientID = NewClientID()
	}
	return &Client{
		url:      url,
		clientID: clientID,
		handler:  handler,
		outbox:   make(chan Message, outboxSize),
		done:     make(chan struct{}),
	}
}

// ID returns the id the client registers with.
func (c *Client) ID() string {
	return c.clientID
}

// Connect dials the monitor, registers and starts the background loops.
// The loops log through the logger carried by ctx.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("telemetry dial: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	err = c.send(Message{
		Type:       TypeRegister,
		ID:         c.clientID,
		ClientType: ClientTypeOverlay,
	})
	if err != nil {
		c.Close()
		return fmt.Errorf("telemetry register: %w", err)
	}

	go c.readLoop(ctx)
	go c.writeLoop(ctx)
	return nil
}

// Close shuts down the connection. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
	}
}

// Dropped returns how many messages were discarded because the queue was full.
func (c *Client) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *Client) StateChanged(ctx context.Context, from, to pump.State, reason string) {
	c.enqueue(ctx, stateMessage(from, to, reason, time.Now()))
}

func (c *Client) CycleCompleted(ctx context.Context, report pump.CycleReport) {
	c.enqueue(ctx, cycleMessage(report, time.Now()))
}

func (c *Client) enqueue(ctx context.Context, msg Message) {
	msg.From = c.clientID
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.outbox <- msg:
	default:
		c.mu.Lock()
		c.dropped++
		dropped := c.dropped
		c.mu.Unlock()
		if dropped == 1 || dropped%100 == 0 {
			logger.Debugf(ctx, "telemetry queue full, %d messages dropped so far", dropped)
		}
	}
}

func (c *Client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.closed {
		return ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func (c *Client) readLoop(ctx context.Context) {
	defer c.Close()
	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			select {
			case <-c.done:
			default:
				logger.Warnf(ctx, "telemetry read error: %v", err)
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg Message) {
	switch msg.Type {
	case TypeRegistered:
		if c.handler.OnRegistered != nil {
			c.handler.OnRegistered()
		}
	case TypeError:
		if c.handler.OnError != nil {
			c.handler.OnError(msg.Msg)
		}
	case TypePong:
		// heartbeat response, nothing to do
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		var msg Message
		select {
		case <-c.done:
			return
		case <-ticker.C:
			msg = Message{Type: TypePing}
		case msg = <-c.outbox:
		}
		if err := c.send(msg); err != nil {
			if !errors.Is(err, ErrNotConnected) {
				logger.Warnf(ctx, "telemetry write error: %v", err)
			}
			c.Close()
			return
		}
	}
}

// Package channel maintains the persistent bidirectional event channel
// to the chat server. Inbound events are published on the bus under
// "channel."; outbound commands are fire-and-forget frames. Reconnection
// uses capped exponential backoff with jitter; delivery guarantees are
// at-most-once by design.
package channel

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/parleychat/parley/internal/bus"
	"github.com/parleychat/parley/internal/status"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Options configures the channel client.
type Options struct {
	URL       string
	Token     string
	BaseDelay time.Duration // first reconnect delay, default 1s
	MaxDelay  time.Duration // backoff cap, default 30s
}

// Client owns the websocket connection lifecycle.
type Client struct {
	opts    Options
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// NewClient creates a channel client. Start must be called to connect.
func NewClient(opts Options, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *Client {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	return &Client{opts: opts, bus: b, machine: machine, logger: logger}
}

// Start launches the connect/read/reconnect loop.
func (c *Client) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
}

// Stop tears the connection down and stops reconnecting.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "shutting down")
	}
	_ = c.machine.Transition(status.Closed)
}

func (c *Client) run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		if c.machine.Current() == status.Starting {
			_ = c.machine.Transition(status.Connecting)
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("channel dial failed", zap.Error(err), zap.Int("attempt", attempt))
			_ = c.machine.Transition(status.Reconnecting)
			c.bus.Publish(bus.NewEvent(bus.KindChannelError, err.Error()))
			attempt++
			if !c.sleep(ctx, attempt) {
				return
			}
			continue
		}

		attempt = 0
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		_ = c.machine.Transition(status.Connected)
		c.bus.Publish(bus.NewEvent(bus.KindChannelConnected, nil))
		c.logger.Info("event channel connected")

		err = c.readLoop(ctx, conn)
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("event channel lost", zap.Error(err))
		_ = c.machine.Transition(status.Reconnecting)
		c.bus.Publish(bus.NewEvent(bus.KindChannelDisconnected, err))
		attempt++
		if !c.sleep(ctx, attempt) {
			return
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	conn, _, err := websocket.Dial(dialCtx, c.opts.URL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		evt, err := decodeInbound(data)
		if err != nil {
			// Unknown or malformed frames are logged, never fatal.
			c.logger.Warn("dropping channel frame", zap.Error(err))
			continue
		}
		c.bus.Publish(evt)
	}
}

// sleep waits for the backoff delay of the given attempt.
// Returns false if ctx was cancelled while waiting.
func (c *Client) sleep(ctx context.Context, attempt int) bool {
	delay := float64(c.opts.BaseDelay) * math.Pow(2, float64(attempt-1))
	if max := float64(c.opts.MaxDelay); delay > max {
		delay = max
	}
	// Jitter in [0.5, 1.0) of the computed delay.
	delay *= 0.5 + rand.Float64()/2

	select {
	case <-time.After(time.Duration(delay)):
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) write(eventType string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("channel not connected")
	}

	data, err := encodeOutbound(eventType, payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// Join subscribes the channel to a conversation's events.
func (c *Client) Join(conversationID string) error {
	return c.write(TypeJoin, scopePayload{ConversationID: conversationID})
}

// Leave unsubscribes the channel from a conversation's events.
func (c *Client) Leave(conversationID string) error {
	return c.write(TypeLeave, scopePayload{ConversationID: conversationID})
}

// SendMessage publishes a fire-and-forget mirror of a REST send for
// low-latency fan-out to other participants.
func (c *Client) SendMessage(conversationID, clientMsgID, body string) error {
	return c.write(TypeMessageSend, sendPayload{
		ConversationID: conversationID,
		ClientMsgID:    clientMsgID,
		Body:           body,
	})
}

// Typing announces that the viewer started typing.
func (c *Client) Typing(conversationID string) error {
	return c.write(TypeTypingStart, scopePayload{ConversationID: conversationID})
}

// StopTyping announces that the viewer stopped typing.
func (c *Client) StopTyping(conversationID string) error {
	return c.write(TypeTypingStop, scopePayload{ConversationID: conversationID})
}

// Package realtime is a named-channel subscription facade over a single
// real-time transport connection.
//
// Transport lifecycle (connect, disconnect, errors, subscribe handshakes) is
// logged and offered to listeners but never returned to callers. There is no
// reconnect: once the connection drops the client stays disconnected.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
)

var (
	ErrNotConnected = errors.New("realtime: client is not connected")
	ErrEmptyChannel = errors.New("realtime: channel name is required")
)

// Handlers configures a subscription. OnPublication is called once per
// inbound message on the channel, in transport arrival order.
type Handlers struct {
	OnPublication func(payload json.RawMessage)
}

// ChannelSubscription is one registry entry. handle is nil while the
// subscribe handshake is in flight or when it failed.
type ChannelSubscription struct {
	Channel  string
	Handlers Handlers
	handle   TransportSubscription
}

type Client struct {
	endpoint  string
	token     string
	transport Transport
	logger    *slog.Logger

	mu            sync.Mutex
	state         State
	dialing       bool
	conn          Conn
	subscriptions map[string]*ChannelSubscription
	listeners     []Listener
}

type Option func(*Client)

// WithTransport replaces the default WebSocket transport.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(endpoint, token string, opts ...Option) *Client {
	c := &Client{
		endpoint:      endpoint,
		token:         token,
		logger:        slog.Default(),
		state:         StateUnconnected,
		subscriptions: make(map[string]*ChannelSubscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = NewWSTransport()
	}
	return c
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscriptions returns the registered channel names, sorted.
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := make([]string, 0, len(c.subscriptions))
	for ch := range c.subscriptions {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	return channels
}

// OnEvent registers a listener for every transport event.
func (c *Client) OnEvent(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Connect opens the transport connection once. Failures are logged and
// leave the client in StateDisconnected.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateUnconnected || c.dialing {
		c.mu.Unlock()
		c.logger.Debug("Connect ignored", "state", c.State())
		return
	}
	c.dialing = true
	c.mu.Unlock()

	conn, err := c.transport.Dial(ctx, c.endpoint, c.token, c)

	c.mu.Lock()
	c.dialing = false
	if err != nil {
		c.state = StateDisconnected
		c.mu.Unlock()
		c.logger.Error("Realtime connection failed", "endpoint", c.endpoint, "error", err)
		c.HandleEvent(Event{Type: EventError, Err: err})
		return
	}
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()
}

// Subscribe registers channel with handlers and starts the transport
// handshake. A second call for a channel already in the registry is a
// no-op; the first handlers stay in place.
func (c *Client) Subscribe(ctx context.Context, channel, channelToken string, handlers Handlers) error {
	if channel == "" {
		return ErrEmptyChannel
	}

	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if _, exists := c.subscriptions[channel]; exists {
		c.mu.Unlock()
		c.logger.Debug("Already subscribed", "channel", channel)
		return nil
	}
	sub := &ChannelSubscription{Channel: channel, Handlers: handlers}
	c.subscriptions[channel] = sub
	conn := c.conn
	c.mu.Unlock()

	handle, err := conn.Subscribe(ctx, channel, channelToken)
	if err != nil {
		c.logger.Error("Subscription failed", "channel", channel, "error", err)
		c.HandleEvent(Event{Type: EventError, Channel: channel, Err: err})
		return nil
	}

	c.mu.Lock()
	sub.handle = handle
	c.mu.Unlock()
	return nil
}

// Disconnect releases every subscription and closes the connection. It is
// a no-op unless the client is connected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	conn := c.conn
	c.conn = nil
	type release struct {
		channel string
		handle  TransportSubscription
	}
	handles := make([]release, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		if sub.handle != nil {
			handles = append(handles, release{channel: sub.Channel, handle: sub.handle})
		}
	}
	c.mu.Unlock()

	for _, r := range handles {
		if err := r.handle.Unsubscribe(); err != nil {
			c.logger.Warn("Unsubscribe failed", "channel", r.channel, "error", err)
		}
	}
	if err := conn.Close(); err != nil {
		c.logger.Warn("Closing realtime connection failed", "error", err)
	}
}

// HandleEvent implements EventSink.
func (c *Client) HandleEvent(ev Event) {
	switch ev.Type {
	case EventConnected:
		c.logger.Info("Realtime connected", "clientID", ev.ClientID)
	case EventDisconnected:
		c.markDropped()
		c.logger.Info("Realtime disconnected", "code", ev.Code, "reason", ev.Reason)
	case EventError:
		c.logger.Warn("Realtime error", "channel", ev.Channel, "error", ev.Err)
	case EventSubscribing:
		c.logger.Info("Subscribing to channel", "channel", ev.Channel)
	case EventSubscribed:
		c.logger.Info("Subscribed to channel", "channel", ev.Channel)
	case EventUnsubscribed:
		c.logger.Info("Unsubscribed from channel", "channel", ev.Channel)
	case EventPublication:
		c.deliver(ev)
	}

	c.mu.Lock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}

func (c *Client) deliver(ev Event) {
	c.mu.Lock()
	sub, ok := c.subscriptions[ev.Channel]
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("Publication for unknown channel", "channel", ev.Channel)
		return
	}
	if sub.Handlers.OnPublication != nil {
		sub.Handlers.OnPublication(ev.Data)
	}
}

// markDropped moves a connected client to StateDisconnected when the
// server or network ends the connection.
func (c *Client) markDropped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConnected {
		c.state = StateDisconnected
		c.conn = nil
	}
}

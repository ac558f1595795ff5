package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"devguru-client/internal/realtime/protocol"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the server
	writeWait = 10 * time.Second

	// Time allowed to wait for a command reply when the caller's context
	// has no deadline
	defaultReplyTimeout = 10 * time.Second

	// Maximum frame size accepted from the server
	maxMessageSize = 64 * 1024

	clientName = "devguru-go"
)

var (
	ErrConnectionClosed = errors.New("realtime: connection closed")
	ErrReplyTimeout     = errors.New("realtime: timed out waiting for reply")
)

// WSTransport dials Centrifugo compatible endpoints over gorilla/websocket.
type WSTransport struct {
	Dialer       *websocket.Dialer
	ReplyTimeout time.Duration
	Logger       *slog.Logger
}

func NewWSTransport() *WSTransport {
	return &WSTransport{
		Dialer:       websocket.DefaultDialer,
		ReplyTimeout: defaultReplyTimeout,
		Logger:       slog.Default(),
	}
}

func (t *WSTransport) Dial(ctx context.Context, endpoint, token string, sink EventSink) (Conn, error) {
	ws, _, err := t.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		ws:           ws,
		sink:         sink,
		logger:       t.Logger,
		replyTimeout: t.ReplyTimeout,
		send:         make(chan []byte, 64),
		pending:      make(map[uint32]chan protocol.Reply),
		ctx:          connCtx,
		cancel:       cancel,
		writerDone:   make(chan struct{}),
	}
	if c.replyTimeout <= 0 {
		c.replyTimeout = defaultReplyTimeout
	}

	c.wg.Add(2)
	go c.writePump()
	go c.readPump()

	reply, err := c.request(ctx, protocol.Command{
		Connect: &protocol.ConnectRequest{Token: token, Name: clientName},
	})
	if err != nil {
		c.connected.Store(false)
		c.Close()
		return nil, fmt.Errorf("connect handshake: %w", err)
	}

	clientID := ""
	if reply.Connect != nil {
		clientID = reply.Connect.Client
	}
	sink.HandleEvent(Event{Type: EventConnected, ClientID: clientID})
	return c, nil
}

type wsConn struct {
	ws           *websocket.Conn
	sink         EventSink
	logger       *slog.Logger
	replyTimeout time.Duration

	send   chan []byte
	nextID atomic.Uint32

	mu      sync.Mutex
	pending map[uint32]chan protocol.Reply

	ctx        context.Context
	cancel     context.CancelFunc
	closed     atomic.Bool
	localClose atomic.Bool
	connected  atomic.Bool
	writerDone chan struct{}
	wg         sync.WaitGroup

	// set by the read loop only
	serverClose *protocol.Disconnect
}

func (c *wsConn) Subscribe(ctx context.Context, channel, token string) (TransportSubscription, error) {
	c.sink.HandleEvent(Event{Type: EventSubscribing, Channel: channel})

	_, err := c.request(ctx, protocol.Command{
		Subscribe: &protocol.SubscribeRequest{Channel: channel, Token: token},
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	c.sink.HandleEvent(Event{Type: EventSubscribed, Channel: channel})
	return &wsSubscription{conn: c, channel: channel}, nil
}

func (c *wsConn) Close() error {
	c.localClose.Store(true)
	c.shutdown()
	return nil
}

// shutdown stops both pumps and waits for them, logging when they overrun.
func (c *wsConn) shutdown() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.cancel()

	select {
	case <-c.writerDone:
	case <-time.After(writeWait):
	}
	c.ws.Close()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		c.logger.Warn("Timeout waiting for realtime goroutines to finish")
	}
}

func (c *wsConn) request(ctx context.Context, cmd protocol.Command) (protocol.Reply, error) {
	if c.closed.Load() {
		return protocol.Reply{}, ErrConnectionClosed
	}

	cmd.ID = c.nextID.Add(1)
	wait := make(chan protocol.Reply, 1)

	c.mu.Lock()
	c.pending[cmd.ID] = wait
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, cmd.ID)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(cmd)
	if err != nil {
		return protocol.Reply{}, err
	}

	select {
	case c.send <- data:
	case <-c.ctx.Done():
		return protocol.Reply{}, ErrConnectionClosed
	case <-ctx.Done():
		return protocol.Reply{}, ctx.Err()
	}

	var timeout <-chan time.Time
	if _, ok := ctx.Deadline(); !ok {
		timer := time.NewTimer(c.replyTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case reply := <-wait:
		if reply.Error != nil {
			return reply, reply.Error
		}
		return reply, nil
	case <-c.ctx.Done():
		return protocol.Reply{}, ErrConnectionClosed
	case <-ctx.Done():
		return protocol.Reply{}, ctx.Err()
	case <-timeout:
		return protocol.Reply{}, ErrReplyTimeout
	}
}

func (c *wsConn) readPump() {
	defer func() {
		c.wg.Done()
		go c.shutdown()
		if !c.connected.Load() {
			// a failed handshake is reported by Dial
			return
		}
		ev := Event{Type: EventDisconnected, Reason: "connection lost"}
		switch {
		case c.localClose.Load():
			ev.Reason = "client disconnect"
		case c.serverClose != nil:
			ev.Code, ev.Reason = c.serverClose.Code, c.serverClose.Reason
		}
		c.sink.HandleEvent(ev)
	}()

	c.ws.SetReadLimit(maxMessageSize)

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if c.localClose.Load() {
				c.logger.Debug("Realtime read loop stopped", "error", err)
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.sink.HandleEvent(Event{Type: EventError, Err: err})
			}
			return
		}

		replies, err := protocol.DecodeReplies(frame)
		if err != nil {
			c.logger.Error("Failed to decode frame", "error", err, "frame", string(frame))
			c.sink.HandleEvent(Event{Type: EventError, Err: err})
		}
		for i := range replies {
			if stop := c.dispatch(&replies[i]); stop {
				return
			}
		}
	}
}

// dispatch routes one reply; it returns true when the server asked to end
// the connection.
func (c *wsConn) dispatch(r *protocol.Reply) bool {
	if r.ID != 0 {
		c.mu.Lock()
		wait, ok := c.pending[r.ID]
		c.mu.Unlock()
		if ok {
			if r.Connect != nil && r.Error == nil {
				// set before Dial returns so a later drop is always reported
				c.connected.Store(true)
			}
			wait <- *r
		} else {
			c.logger.Debug("Reply for unknown command", "id", r.ID)
		}
		return false
	}

	if r.IsPing() {
		select {
		case c.send <- []byte("{}"):
		default:
			c.logger.Warn("Send buffer full, dropping pong")
		}
		return false
	}

	push := r.Push
	if push == nil {
		return false
	}
	switch {
	case push.Pub != nil:
		c.sink.HandleEvent(Event{Type: EventPublication, Channel: push.Channel, Data: push.Pub.Data})
	case push.Unsubscribe != nil:
		c.sink.HandleEvent(Event{Type: EventUnsubscribed, Channel: push.Channel, Code: push.Unsubscribe.Code, Reason: push.Unsubscribe.Reason})
	case push.Disconnect != nil:
		c.logger.Info("Server requested disconnect", "code", push.Disconnect.Code, "reason", push.Disconnect.Reason)
		c.serverClose = push.Disconnect
		return true
	}
	return false
}

func (c *wsConn) writePump() {
	defer func() {
		c.wg.Done()
		close(c.writerDone)
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.ws.NextWriter(websocket.TextMessage)
			if err != nil {
				c.logger.Debug("Error getting next writer", "error", err)
				return
			}
			w.Write(data)

			// Batch queued commands into the current frame
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				c.logger.Debug("Error closing writer", "error", err)
				return
			}

		case <-c.ctx.Done():
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := c.ws.WriteMessage(websocket.CloseMessage, msg); err != nil {
				c.logger.Debug("Error sending close frame", "error", err)
			}
			return
		}
	}
}

type wsSubscription struct {
	conn    *wsConn
	channel string
}

func (s *wsSubscription) Unsubscribe() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.conn.replyTimeout)
	defer cancel()

	_, err := s.conn.request(ctx, protocol.Command{
		Unsubscribe: &protocol.UnsubscribeRequest{Channel: s.channel},
	})
	if err != nil {
		return fmt.Errorf("unsubscribe %s: %w", s.channel, err)
	}
	s.conn.sink.HandleEvent(Event{Type: EventUnsubscribed, Channel: s.channel})
	return nil
}

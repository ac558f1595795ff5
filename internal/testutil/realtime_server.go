// Package testutil provides in-process stand-ins for the DevGuru HTTP API
// and the Centrifugo real-time server.
package testutil

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"devguru-client/internal/realtime/protocol"
	"devguru-client/internal/token"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RealtimeServer speaks enough of the Centrifugo client protocol for
// connect, subscribe, unsubscribe and publication pushes.
type RealtimeServer struct {
	URL string

	srv    *httptest.Server
	issuer *token.Issuer

	mu       sync.Mutex
	clients  map[*rtClient]bool
	channels map[string]map[*rtClient]bool
	commands []protocol.Command
}

type rtClient struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex // one writer at a time
}

func (c *rtClient) write(r protocol.Reply) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// NewRealtimeServer starts a server. When secret is non-empty, connect and
// subscribe tokens are verified with it.
func NewRealtimeServer(t testing.TB, secret string) *RealtimeServer {
	t.Helper()

	s := &RealtimeServer{
		clients:  make(map[*rtClient]bool),
		channels: make(map[string]map[*rtClient]bool),
	}
	if secret != "" {
		issuer, err := token.NewIssuer(secret, 0)
		if err != nil {
			t.Fatalf("realtime server issuer: %v", err)
		}
		s.issuer = issuer
	}

	s.srv = httptest.NewServer(http.HandlerFunc(s.serveWS))
	s.URL = "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/connection/websocket"
	t.Cleanup(s.Close)
	return s
}

func (s *RealtimeServer) Close() {
	s.mu.Lock()
	for c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()
	s.srv.Close()
}

func (s *RealtimeServer) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}
	client := &rtClient{id: uuid.New().String(), conn: conn}

	s.mu.Lock()
	s.clients[client] = true
	s.mu.Unlock()

	defer func() {
		s.unregister(client)
		conn.Close()
	}()

	connected := false
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		cmds, err := protocol.DecodeCommands(frame)
		if err != nil {
			return
		}
		for _, cmd := range cmds {
			s.record(cmd)
			switch {
			case cmd.Connect != nil:
				if !s.allowConnect(cmd.Connect.Token) {
					client.write(protocol.Reply{ID: cmd.ID, Error: &protocol.Error{Code: 101, Message: "unauthorized"}})
					return
				}
				connected = true
				client.write(protocol.Reply{ID: cmd.ID, Connect: &protocol.ConnectResult{Client: client.id, Version: "test"}})
			case !connected:
				return
			case cmd.Subscribe != nil:
				ch := cmd.Subscribe.Channel
				if !s.allowSubscribe(ch, cmd.Subscribe.Token) {
					client.write(protocol.Reply{ID: cmd.ID, Error: &protocol.Error{Code: 103, Message: "permission denied"}})
					continue
				}
				s.join(client, ch)
				client.write(protocol.Reply{ID: cmd.ID, Subscribe: &protocol.SubscribeResult{}})
			case cmd.Unsubscribe != nil:
				s.leave(client, cmd.Unsubscribe.Channel)
				client.write(protocol.Reply{ID: cmd.ID, Unsubscribe: &protocol.UnsubscribeResult{}})
			}
		}
	}
}

func (s *RealtimeServer) allowConnect(raw string) bool {
	if s.issuer == nil {
		return true
	}
	claims, err := s.issuer.Parse(raw)
	return err == nil && claims.Channel == ""
}

func (s *RealtimeServer) allowSubscribe(channel, raw string) bool {
	if s.issuer == nil {
		return true
	}
	claims, err := s.issuer.Parse(raw)
	return err == nil && claims.Channel == channel
}

func (s *RealtimeServer) record(cmd protocol.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, cmd)
}

func (s *RealtimeServer) join(c *rtClient, channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channels[channel] == nil {
		s.channels[channel] = make(map[*rtClient]bool)
	}
	s.channels[channel][c] = true
}

func (s *RealtimeServer) leave(c *rtClient, channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels[channel], c)
}

func (s *RealtimeServer) unregister(c *rtClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
	for _, members := range s.channels {
		delete(members, c)
	}
}

// Publish pushes data to every subscriber of channel and returns how many
// clients it was written to.
func (s *RealtimeServer) Publish(channel string, data any) int {
	payload, err := json.Marshal(data)
	if err != nil {
		return 0
	}

	s.mu.Lock()
	members := make([]*rtClient, 0, len(s.channels[channel]))
	for c := range s.channels[channel] {
		members = append(members, c)
	}
	s.mu.Unlock()

	sent := 0
	for _, c := range members {
		err := c.write(protocol.Reply{Push: &protocol.Push{
			Channel: channel,
			Pub:     &protocol.Publication{Data: payload},
		}})
		if err == nil {
			sent++
		}
	}
	return sent
}

// Ping sends an empty keepalive frame to every client.
func (s *RealtimeServer) Ping() {
	s.mu.Lock()
	clients := make([]*rtClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.write(protocol.Reply{})
	}
}

// DisconnectAll sends a disconnect push to every client.
func (s *RealtimeServer) DisconnectAll(code uint32, reason string) {
	s.mu.Lock()
	clients := make([]*rtClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.write(protocol.Reply{Push: &protocol.Push{Disconnect: &protocol.Disconnect{Code: code, Reason: reason}}})
	}
}

func (s *RealtimeServer) Subscribers(channel string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels[channel])
}

func (s *RealtimeServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Commands returns every command received so far, in arrival order.
func (s *RealtimeServer) Commands() []protocol.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Command, len(s.commands))
	copy(out, s.commands)
	return out
}

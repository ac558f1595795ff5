// Package protocol holds the JSON frames exchanged with a Centrifugo
// compatible real-time server. Every frame carries one or more
// newline-separated objects.
package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
)

// Command is sent from client to server. Exactly one request field is set.
type Command struct {
	ID          uint32              `json:"id,omitempty"`
	Connect     *ConnectRequest     `json:"connect,omitempty"`
	Subscribe   *SubscribeRequest   `json:"subscribe,omitempty"`
	Unsubscribe *UnsubscribeRequest `json:"unsubscribe,omitempty"`
}

type ConnectRequest struct {
	Token   string `json:"token,omitempty"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

type SubscribeRequest struct {
	Channel string `json:"channel"`
	Token   string `json:"token,omitempty"`
}

type UnsubscribeRequest struct {
	Channel string `json:"channel"`
}

// Reply is sent from server to client. A reply with ID zero and no push is
// a server ping and must be answered with an empty command.
type Reply struct {
	ID          uint32             `json:"id,omitempty"`
	Error       *Error             `json:"error,omitempty"`
	Connect     *ConnectResult     `json:"connect,omitempty"`
	Subscribe   *SubscribeResult   `json:"subscribe,omitempty"`
	Unsubscribe *UnsubscribeResult `json:"unsubscribe,omitempty"`
	Push        *Push              `json:"push,omitempty"`
}

// IsPing reports whether r is an empty keepalive frame.
func (r *Reply) IsPing() bool {
	return r.ID == 0 && r.Push == nil && r.Error == nil
}

type Error struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

type ConnectResult struct {
	Client  string `json:"client"`
	Version string `json:"version,omitempty"`
	Ping    uint32 `json:"ping,omitempty"`
	Pong    bool   `json:"pong,omitempty"`
}

type SubscribeResult struct {
	Recoverable bool `json:"recoverable,omitempty"`
}

type UnsubscribeResult struct{}

// Push is an asynchronous server message not bound to a command.
type Push struct {
	Channel     string           `json:"channel,omitempty"`
	Pub         *Publication     `json:"pub,omitempty"`
	Disconnect  *Disconnect      `json:"disconnect,omitempty"`
	Unsubscribe *UnsubscribePush `json:"unsubscribe,omitempty"`
}

type Publication struct {
	Data   json.RawMessage `json:"data"`
	Offset uint64          `json:"offset,omitempty"`
}

type Disconnect struct {
	Code   uint32 `json:"code"`
	Reason string `json:"reason"`
}

type UnsubscribePush struct {
	Code   uint32 `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// DecodeReplies splits a frame into replies.
func DecodeReplies(frame []byte) ([]Reply, error) {
	return decodeLines[Reply](frame)
}

// DecodeCommands splits a frame into commands.
func DecodeCommands(frame []byte) ([]Command, error) {
	return decodeLines[Command](frame)
}

func decodeLines[T any](frame []byte) ([]T, error) {
	var out []T
	scanner := bufio.NewScanner(bytes.NewReader(frame))
	scanner.Buffer(make([]byte, 0, len(frame)+1), len(frame)+1)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			return out, fmt.Errorf("decode frame: %w", err)
		}
		out = append(out, v)
	}
	return out, scanner.Err()
}

// Package protocol describes the JSON frames exchanged with the duel server.
// Every frame is an object with a "type" tag; the rest of its shape varies
// by type and, in practice, by server version.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Outbound frame types.
const (
	TypePing      = "ping"
	TypeFindMatch = "findMatch"
	TypeAttack    = "attack"
	TypeTest      = "test"
)

// Inbound frame types.
const (
	TypePong           = "pong"
	TypeUserConnected  = "user_connected"
	TypeTestResponse   = "testResponse"
	TypeGameUpdate     = "gameUpdate"
	TypeHPUpdate       = "hpUpdate"
	TypeGameEnd        = "gameEnd"
	TypeRoomJoined     = "roomJoined"
	TypeGameReady      = "gameReady"
	TypeGameStart      = "gameStart"
	TypeMatchCancelled = "matchCancelled"
	TypeError          = "error"
	TypeDuelData       = "duelData"
)

var ErrMissingType = errors.New("frame has no type")

// Message is an outbound frame.
type Message map[string]interface{}

// Type returns the frame's tag.
func (m Message) Type() string {
	t, _ := m["type"].(string)
	return t
}

func Ping() Message { return Message{"type": TypePing} }

func FindMatch(playerID string) Message {
	return Message{"type": TypeFindMatch, "playerId": playerID}
}

func Attack(cardID string, attackPower int) Message {
	return Message{"type": TypeAttack, "cardId": cardID, "attackPower": attackPower}
}

func Test(content, userID string) Message {
	return Message{"type": TypeTest, "content": content, "userId": userID}
}

// Frame is one decoded inbound message.
type Frame struct {
	Type   string
	Fields Object
}

// Decode parses a raw frame. Numbers are kept as json.Number so integer
// fields survive without float rounding.
func Decode(data []byte) (Frame, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields Object
	if err := dec.Decode(&fields); err != nil {
		return Frame{}, fmt.Errorf("invalid frame json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Frame{}, errors.New("invalid frame json: trailing data")
	}
	if fields == nil {
		return Frame{}, ErrMissingType
	}
	typ, ok := fields["type"].(string)
	if !ok || typ == "" {
		return Frame{}, ErrMissingType
	}
	return Frame{Type: typ, Fields: fields}, nil
}

// Content returns the nested "content" object, or nil.
func (f Frame) Content() Object {
	c, _ := f.Fields.Object("content")
	return c
}

// ErrorMessage extracts the human-readable text of an error frame.
func (f Frame) ErrorMessage() string {
	if msg, ok := f.Fields.String("message"); ok && msg != "" {
		return msg
	}
	if msg, ok := f.Content().String("message"); ok && msg != "" {
		return msg
	}
	if msg, ok := f.Fields.String("content"); ok && msg != "" {
		return msg
	}
	return "server error"
}

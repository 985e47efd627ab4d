package messages

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cbodonnell/roulette/pkg/events"
	"github.com/cbodonnell/roulette/pkg/state"
)

// Message types that are not game events. Event messages use the event kind as their type.
const (
	MessageTypeClientPing  = "ping"
	MessageTypeServerPong  = "pong"
	MessageTypeServerState = "state"
)

// Message represents a generic message for serialization/deserialization
type Message struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`

	state *state.TableState
}

// NewMessage marshals payload into a message of the given type.
func NewMessage(messageType string, payload interface{}) (*Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", messageType, err)
	}
	return &Message{
		Type:      messageType,
		Timestamp: time.Now().UnixMilli(),
		Payload:   b,
	}, nil
}

// NewStateMessage wraps a table state snapshot.
func NewStateMessage(tableState *state.TableState) (*Message, error) {
	if tableState == nil {
		return nil, fmt.Errorf("table state is nil")
	}
	m, err := NewMessage(MessageTypeServerState, tableState)
	if err != nil {
		return nil, err
	}
	m.state = tableState
	return m, nil
}

// NewEventMessage wraps a game event.
func NewEventMessage(e events.Event) (*Message, error) {
	if e == nil {
		return nil, fmt.Errorf("event is nil")
	}
	return NewMessage(e.Kind(), e)
}

// DecodePayload unmarshals the payload into v.
func (m *Message) DecodePayload(v interface{}) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %v", m.Type, err)
	}
	return nil
}

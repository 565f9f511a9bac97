package channel

import (
	"encoding/json"
	"fmt"

	"github.com/parleychat/parley/internal/bus"
	"github.com/parleychat/parley/internal/chat"
)

// Wire event types carried by the channel, both directions.
const (
	// Inbound.
	TypeMessageNew  = "message.new"
	TypeTypingStart = "typing.start"
	TypeTypingStop  = "typing.stop"

	// Outbound.
	TypeJoin        = "conversation.join"
	TypeLeave       = "conversation.leave"
	TypeMessageSend = "message.send"
)

// Envelope is the wire format for every channel frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type messagePayload struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	SenderName     string `json:"senderName"`
	Body           string `json:"body"`
	CreatedAt      int64  `json:"createdAt"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
}

type scopePayload struct {
	ConversationID string `json:"conversationId"`
}

type sendPayload struct {
	ConversationID string `json:"conversationId"`
	ClientMsgID    string `json:"clientMsgId"`
	Body           string `json:"body"`
}

// TypingEvent is the bus payload for typing start/stop events.
type TypingEvent struct {
	ConversationID string
	UserID         string
	UserName       string
}

// decodeInbound maps a wire envelope to a bus event.
func decodeInbound(data []byte) (bus.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return bus.Event{}, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case TypeMessageNew:
		var p messagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return bus.Event{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return bus.NewEvent(bus.KindChannelMessage, chat.Message{
			ID:             p.ID,
			ConversationID: p.ConversationID,
			SenderID:       p.SenderID,
			SenderName:     p.SenderName,
			Body:           p.Body,
			CreatedAt:      p.CreatedAt,
			State:          chat.StateConfirmed,
		}), nil
	case TypeTypingStart, TypeTypingStop:
		var p typingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return bus.Event{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		kind := bus.KindChannelTyping
		if env.Type == TypeTypingStop {
			kind = bus.KindChannelStopTyping
		}
		return bus.NewEvent(kind, TypingEvent{
			ConversationID: p.ConversationID,
			UserID:         p.UserID,
			UserName:       p.UserName,
		}), nil
	default:
		return bus.Event{}, fmt.Errorf("unknown channel event type %q", env.Type)
	}
}

func encodeOutbound(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return json.Marshal(Envelope{Type: eventType, Payload: raw})
}

package api

import (
	"fmt"

	"github.com/parleychat/parley/internal/chat"
)

// Wire DTOs for the request/response chat API.

type conversationDTO struct {
	ID           string           `json:"id"`
	Kind         string           `json:"kind"`
	Name         string           `json:"name"`
	AvatarURL    string           `json:"avatarUrl"`
	Participants []participantDTO `json:"participants"`
	LastMessage  *summaryDTO      `json:"lastMessage"`
	UnreadCount  int              `json:"unreadCount"`
	UpdatedAt    int64            `json:"updatedAt"`
}

type participantDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

type summaryDTO struct {
	Body     string `json:"body"`
	SenderID string `json:"senderId"`
	SentAt   int64  `json:"sentAt"`
}

type messageDTO struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	SenderName     string `json:"senderName"`
	Body           string `json:"body"`
	CreatedAt      int64  `json:"createdAt"`
	Read           bool   `json:"read"`
}

type userDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

type sendRequest struct {
	Body string `json:"body"`
}

type createConversationRequest struct {
	Kind           string   `json:"kind"`
	Name           string   `json:"name,omitempty"`
	ParticipantIDs []string `json:"participantIds"`
}

// MessagePage is one page of history, ascending by createdAt, with
// hasMore inferred from a full page.
type MessagePage struct {
	Messages []chat.Message
	HasMore  bool
}

// Error is a non-2xx response from the chat API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("chat api: status %d: %s", e.StatusCode, e.Message)
}

func (d conversationDTO) toDomain() chat.Conversation {
	c := chat.Conversation{
		ID:        d.ID,
		Kind:      chat.Kind(d.Kind),
		Name:      d.Name,
		AvatarURL: d.AvatarURL,
		Unread:    d.UnreadCount,
		UpdatedAt: d.UpdatedAt,
	}
	for _, p := range d.Participants {
		c.Participants = append(c.Participants, chat.Participant(p))
	}
	if d.LastMessage != nil {
		c.LastMessage = &chat.Summary{
			Body:     d.LastMessage.Body,
			SenderID: d.LastMessage.SenderID,
			SentAt:   d.LastMessage.SentAt,
		}
	}
	return c
}

func (d messageDTO) toDomain() chat.Message {
	return chat.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		SenderName:     d.SenderName,
		Body:           d.Body,
		CreatedAt:      d.CreatedAt,
		ReadByViewer:   d.Read,
		State:          chat.StateConfirmed,
	}
}

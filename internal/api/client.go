package api

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/parleychat/parley/internal/chat"
)

// Client talks to the request/response side of the chat server.
type Client struct {
	http *resty.Client
}

// New creates an API client for the given base URL and bearer token.
func New(baseURL, token string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "parleyd/1.0")
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Client{http: c}
}

// ListConversations fetches the viewer's conversations, optionally
// filtered by kind. The server returns them ordered by recency.
func (c *Client) ListConversations(ctx context.Context, kind chat.Kind) ([]chat.Conversation, error) {
	var dtos []conversationDTO
	req := c.http.R().SetContext(ctx).SetResult(&dtos)
	if kind != "" {
		req.SetQueryParam("kind", string(kind))
	}
	resp, err := req.Get("/api/conversations")
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if resp.IsError() {
		return nil, &Error{StatusCode: resp.StatusCode(), Message: resp.String()}
	}
	out := make([]chat.Conversation, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// ListUsers fetches the users eligible for direct or group chat.
func (c *Client) ListUsers(ctx context.Context) ([]chat.User, error) {
	var dtos []userDTO
	resp, err := c.http.R().SetContext(ctx).SetResult(&dtos).Get("/api/users")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if resp.IsError() {
		return nil, &Error{StatusCode: resp.StatusCode(), Message: resp.String()}
	}
	out := make([]chat.User, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, chat.User(d))
	}
	return out, nil
}

// FetchMessagePage retrieves one history page. Page numbering starts at
// 1 (the most recent messages); higher pages reach further back.
// HasMore is inferred from the page being full. Messages are returned
// ascending by createdAt regardless of server ordering.
func (c *Client) FetchMessagePage(ctx context.Context, conversationID string, page, pageSize int) (*MessagePage, error) {
	var dtos []messageDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("pageSize", strconv.Itoa(pageSize)).
		SetResult(&dtos).
		Get("/api/conversations/" + conversationID + "/messages")
	if err != nil {
		return nil, fmt.Errorf("fetch message page: %w", err)
	}
	if resp.IsError() {
		return nil, &Error{StatusCode: resp.StatusCode(), Message: resp.String()}
	}

	msgs := make([]chat.Message, 0, len(dtos))
	for _, d := range dtos {
		msgs = append(msgs, d.toDomain())
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt < msgs[j].CreatedAt })

	return &MessagePage{
		Messages: msgs,
		HasMore:  len(msgs) == pageSize,
	}, nil
}

// SendMessage posts a message body and returns the confirmed message
// with its server identity and server timestamp.
func (c *Client) SendMessage(ctx context.Context, conversationID, body string) (*chat.Message, error) {
	var dto messageDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendRequest{Body: body}).
		SetResult(&dto).
		Post("/api/conversations/" + conversationID + "/messages")
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	if resp.IsError() {
		return nil, &Error{StatusCode: resp.StatusCode(), Message: resp.String()}
	}
	m := dto.toDomain()
	return &m, nil
}

// MarkRead tells the server the viewer has read the conversation.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Post("/api/conversations/" + conversationID + "/read")
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if resp.IsError() {
		return &Error{StatusCode: resp.StatusCode(), Message: resp.String()}
	}
	return nil
}

// CreateConversation creates a conversation of the given kind with the
// given participants. Name applies to group-like kinds.
func (c *Client) CreateConversation(ctx context.Context, kind chat.Kind, name string, participantIDs []string) (*chat.Conversation, error) {
	var dto conversationDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createConversationRequest{Kind: string(kind), Name: name, ParticipantIDs: participantIDs}).
		SetResult(&dto).
		Post("/api/conversations")
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	if resp.IsError() {
		return nil, &Error{StatusCode: resp.StatusCode(), Message: resp.String()}
	}
	conv := dto.toDomain()
	return &conv, nil
}

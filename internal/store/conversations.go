package store

import (
	"database/sql"
	"time"

	"github.com/parleychat/parley/internal/chat"
)

// UpsertConversation inserts or updates a cached conversation.
// updated_at never moves backwards so an out-of-order mirror write
// cannot demote a conversation in the cached ordering.
func (db *DB) UpsertConversation(c *chat.Conversation) error {
	var body, senderID string
	var sentAt int64
	if c.LastMessage != nil {
		body = c.LastMessage.Body
		senderID = c.LastMessage.SenderID
		sentAt = c.LastMessage.SentAt
	}
	_, err := db.Exec(`
		INSERT INTO conversations (id, kind, name, avatar_url, last_body, last_sender_id, last_sent_at, unread_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			avatar_url = excluded.avatar_url,
			last_body = CASE WHEN excluded.last_sent_at >= conversations.last_sent_at THEN excluded.last_body ELSE conversations.last_body END,
			last_sender_id = CASE WHEN excluded.last_sent_at >= conversations.last_sent_at THEN excluded.last_sender_id ELSE conversations.last_sender_id END,
			last_sent_at = MAX(conversations.last_sent_at, excluded.last_sent_at),
			unread_count = excluded.unread_count,
			updated_at = MAX(conversations.updated_at, excluded.updated_at)`,
		c.ID, string(c.Kind), c.Name, c.AvatarURL, body, senderID, sentAt, c.Unread, c.UpdatedAt)
	return err
}

// ListConversations returns cached conversations ordered by updated_at descending.
func (db *DB) ListConversations(limit int) ([]chat.Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT id, kind, name, avatar_url, last_body, last_sender_id, last_sent_at, unread_count, updated_at
		FROM conversations
		ORDER BY updated_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []chat.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetConversation returns a cached conversation, or nil if unknown.
func (db *DB) GetConversation(id string) (*chat.Conversation, error) {
	row := db.QueryRow(`
		SELECT id, kind, name, avatar_url, last_body, last_sender_id, last_sent_at, unread_count, updated_at
		FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ClearUnread zeroes the cached unread counter for a conversation.
func (db *DB) ClearUnread(id string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE conversations SET unread_count = 0, updated_at = MAX(updated_at, ?) WHERE id = ?`, now, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(r rowScanner) (chat.Conversation, error) {
	var c chat.Conversation
	var kind, body, senderID string
	var sentAt int64
	if err := r.Scan(&c.ID, &kind, &c.Name, &c.AvatarURL, &body, &senderID, &sentAt, &c.Unread, &c.UpdatedAt); err != nil {
		return c, err
	}
	c.Kind = chat.Kind(kind)
	if sentAt > 0 || body != "" {
		c.LastMessage = &chat.Summary{Body: body, SenderID: senderID, SentAt: sentAt}
	}
	return c, nil
}

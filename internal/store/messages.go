package store

import (
	"time"

	"github.com/parleychat/parley/internal/chat"
)

// UpsertMessage inserts or updates a confirmed message, idempotent on
// (conversation_id, msg_id). Only confirmed messages belong in the
// cache; pending and failed entries live in the timeline and in the
// send journal.
func (db *DB) UpsertMessage(m *chat.Message) error {
	now := time.Now().UnixMilli()
	read := 0
	if m.ReadByViewer {
		read = 1
	}
	_, err := db.Exec(`
		INSERT INTO messages (conversation_id, msg_id, sender_id, sender_name, body, read_by_viewer, created_at, inserted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, msg_id) DO UPDATE SET
			sender_name = excluded.sender_name,
			body = excluded.body,
			read_by_viewer = excluded.read_by_viewer`,
		m.ConversationID, m.ID, m.SenderID, m.SenderName, m.Body, read, m.CreatedAt, now)
	return err
}

// UpsertMessages writes a batch inside one transaction.
func (db *DB) UpsertMessages(msgs []chat.Message) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, m := range msgs {
		read := 0
		if m.ReadByViewer {
			read = 1
		}
		if _, err := tx.Exec(`
			INSERT INTO messages (conversation_id, msg_id, sender_id, sender_name, body, read_by_viewer, created_at, inserted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(conversation_id, msg_id) DO UPDATE SET
				sender_name = excluded.sender_name,
				body = excluded.body,
				read_by_viewer = excluded.read_by_viewer`,
			m.ConversationID, m.ID, m.SenderID, m.SenderName, m.Body, read, m.CreatedAt, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListMessages returns cached messages for a conversation older than
// beforeTs, newest first, using keyset pagination.
func (db *DB) ListMessages(conversationID string, beforeTs int64, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT conversation_id, msg_id, sender_id, sender_name, body, read_by_viewer, created_at
		FROM messages
		WHERE conversation_id = ? AND created_at < ?
		ORDER BY created_at DESC
		LIMIT ?`, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		var read int
		if err := rows.Scan(&m.ConversationID, &m.ID, &m.SenderID, &m.SenderName, &m.Body, &read, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.ReadByViewer = read != 0
		m.State = chat.StateConfirmed
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

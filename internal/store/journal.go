package store

import "time"

// JournalEntry records one locally originated send attempt. The journal
// is an audit trail for durability and diagnosis; it is never drained
// automatically, since a failed send requires an explicit viewer retry.
type JournalEntry struct {
	ClientMsgID    string
	ConversationID string
	Body           string
	Status         string // queued, sending, sent, failed
	ErrorMessage   string
	ServerMsgID    string
}

// JournalQueued records a new send intent.
func (db *DB) JournalQueued(clientMsgID, conversationID, body string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO send_journal (client_msg_id, conversation_id, body, status, created_at, updated_at)
		VALUES (?, ?, ?, 'queued', ?, ?)
		ON CONFLICT(client_msg_id) DO UPDATE SET
			status = 'queued', error_message = '', updated_at = excluded.updated_at`,
		clientMsgID, conversationID, body, now, now)
	return err
}

// JournalSending marks an entry as in flight.
func (db *DB) JournalSending(clientMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE send_journal SET status = 'sending', updated_at = ? WHERE client_msg_id = ?`, now, clientMsgID)
	return err
}

// JournalSent marks an entry as acknowledged with its server identity.
func (db *DB) JournalSent(clientMsgID, serverMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE send_journal SET status = 'sent', server_msg_id = ?, updated_at = ? WHERE client_msg_id = ?`, serverMsgID, now, clientMsgID)
	return err
}

// JournalFailed marks an entry as failed with the transport error.
func (db *DB) JournalFailed(clientMsgID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE send_journal SET status = 'failed', error_message = ?, updated_at = ? WHERE client_msg_id = ?`, errMsg, now, clientMsgID)
	return err
}

// FailedSends returns journal entries awaiting an explicit retry.
func (db *DB) FailedSends() ([]JournalEntry, error) {
	rows, err := db.Query(`
		SELECT client_msg_id, conversation_id, body, status, error_message, server_msg_id
		FROM send_journal WHERE status = 'failed' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ClientMsgID, &e.ConversationID, &e.Body, &e.Status, &e.ErrorMessage, &e.ServerMsgID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

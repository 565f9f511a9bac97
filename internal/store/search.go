package store

import "github.com/parleychat/parley/internal/chat"

// SearchResult holds a cached message with a highlighted snippet.
type SearchResult struct {
	Message chat.Message
	Snippet string
}

// SearchMessages runs a full-text search over cached message bodies.
// This covers history beyond what the in-memory timeline holds; the
// live substring search over the active timeline is internal/search.
func (db *DB) SearchMessages(query string, conversationID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.conversation_id, m.msg_id, m.sender_id, m.sender_name, m.body,
		       m.read_by_viewer, m.created_at,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE messages_fts MATCH ?`

	args := []any{query}
	if conversationID != "" {
		q += " AND m.conversation_id = ?"
		args = append(args, conversationID)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var read int
		if err := rows.Scan(
			&r.Message.ConversationID, &r.Message.ID, &r.Message.SenderID,
			&r.Message.SenderName, &r.Message.Body, &read,
			&r.Message.CreatedAt, &r.Snippet,
		); err != nil {
			return nil, err
		}
		r.Message.ReadByViewer = read != 0
		r.Message.State = chat.StateConfirmed
		results = append(results, r)
	}
	return results, rows.Err()
}

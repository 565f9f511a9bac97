// Package presence tracks ephemeral "who is typing" state. Entries are
// valid only for the lifetime of the active connection and are never
// persisted.
package presence

import "sort"

// Tracker maps (conversation, user) to a display name. Received
// entries are cleared only by an explicit stop signal; a stop lost to
// an abrupt disconnect leaves the entry behind, an accepted limitation
// of the protocol.
type Tracker struct {
	byConv map[string]map[string]string
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{byConv: make(map[string]map[string]string)}
}

// Set records that user is typing in the conversation. Repeated
// signals overwrite the entry.
func (t *Tracker) Set(conversationID, userID, name string) {
	users := t.byConv[conversationID]
	if users == nil {
		users = make(map[string]string)
		t.byConv[conversationID] = users
	}
	users[userID] = name
}

// Clear removes the typing entry for user in the conversation.
func (t *Tracker) Clear(conversationID, userID string) {
	if users := t.byConv[conversationID]; users != nil {
		delete(users, userID)
		if len(users) == 0 {
			delete(t.byConv, conversationID)
		}
	}
}

// Reset drops all entries for a conversation, e.g. when the viewer
// switches away from it.
func (t *Tracker) Reset(conversationID string) {
	delete(t.byConv, conversationID)
}

// Typing returns the display names currently typing in the
// conversation, sorted for stable rendering.
func (t *Tracker) Typing(conversationID string) []string {
	users := t.byConv[conversationID]
	if len(users) == 0 {
		return nil
	}
	names := make([]string, 0, len(users))
	for _, name := range users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

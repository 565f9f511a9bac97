// Package roster holds the ordered conversation list for the viewer.
// It is mutated only by the sync engine's run loop and therefore needs
// no locking of its own.
package roster

import (
	"sort"

	"github.com/parleychat/parley/internal/chat"
)

// List is the conversation store, always sorted descending by
// UpdatedAt. UpdatedAt only moves forward.
type List struct {
	items []chat.Conversation
}

// New creates an empty list.
func New() *List {
	return &List{}
}

// Len returns the number of conversations held.
func (l *List) Len() int { return len(l.items) }

// Items returns a copy of the ordered conversations.
func (l *List) Items() []chat.Conversation {
	out := make([]chat.Conversation, len(l.items))
	copy(out, l.items)
	return out
}

// Get returns the conversation with the given id, or nil if unknown.
func (l *List) Get(id string) *chat.Conversation {
	for i := range l.items {
		if l.items[i].ID == id {
			c := l.items[i]
			return &c
		}
	}
	return nil
}

// Replace swaps in a full server listing, e.g. after reconciliation.
// Per-conversation UpdatedAt stays monotonic: if a held entry is newer
// than the server's copy, the held ordering key and summary win.
func (l *List) Replace(convs []chat.Conversation) {
	prev := make(map[string]chat.Conversation, len(l.items))
	for _, c := range l.items {
		prev[c.ID] = c
	}
	items := make([]chat.Conversation, 0, len(convs))
	for _, c := range convs {
		if held, ok := prev[c.ID]; ok && held.UpdatedAt > c.UpdatedAt {
			c.UpdatedAt = held.UpdatedAt
			c.LastMessage = held.LastMessage
		}
		items = append(items, c)
	}
	l.items = items
	l.resort()
}

// Upsert inserts or updates a single conversation, keeping UpdatedAt
// monotonic for existing entries.
func (l *List) Upsert(c chat.Conversation) {
	for i := range l.items {
		if l.items[i].ID == c.ID {
			if c.UpdatedAt < l.items[i].UpdatedAt {
				c.UpdatedAt = l.items[i].UpdatedAt
				c.LastMessage = l.items[i].LastMessage
			}
			l.items[i] = c
			l.resort()
			return
		}
	}
	l.items = append(l.items, c)
	l.resort()
}

// Touch applies a new-message summary. UpdatedAt advances to the
// message timestamp only if greater than the stored value, so
// out-of-order delivery cannot move a conversation down the list.
// Returns false if the conversation is unknown.
func (l *List) Touch(id string, summary chat.Summary) bool {
	for i := range l.items {
		if l.items[i].ID != id {
			continue
		}
		if summary.SentAt > l.items[i].UpdatedAt {
			l.items[i].UpdatedAt = summary.SentAt
			l.items[i].LastMessage = &summary
			l.resort()
		}
		return true
	}
	return false
}

// IncrementUnread bumps the per-viewer unread counter.
func (l *List) IncrementUnread(id string) {
	for i := range l.items {
		if l.items[i].ID == id {
			l.items[i].Unread++
			return
		}
	}
}

// ClearUnread zeroes the per-viewer unread counter.
func (l *List) ClearUnread(id string) {
	for i := range l.items {
		if l.items[i].ID == id {
			l.items[i].Unread = 0
			return
		}
	}
}

func (l *List) resort() {
	sort.SliceStable(l.items, func(i, j int) bool {
		return l.items[i].UpdatedAt > l.items[j].UpdatedAt
	})
}

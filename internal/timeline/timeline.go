// Package timeline holds the ordered message sequence of the active
// conversation, including the pending/failed send sub-states of locally
// originated messages. Mutation happens only on the sync engine's run
// loop.
package timeline

import (
	"sort"

	"github.com/parleychat/parley/internal/chat"
	"go.uber.org/zap"
)

// Timeline is the per-conversation message view with pagination state.
// Messages are ordered ascending by CreatedAt, ties broken by arrival.
type Timeline struct {
	conversationID string
	msgs           []chat.Message
	page           int // highest history page applied, 0 = none
	hasMore        bool
	fetching       bool
	logger         *zap.Logger
}

// New creates an empty timeline. logger may be nil.
func New(logger *zap.Logger) *Timeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Timeline{logger: logger}
}

// Reset discards all held messages and pagination state and binds the
// timeline to a new conversation.
func (t *Timeline) Reset(conversationID string) {
	t.conversationID = conversationID
	t.msgs = nil
	t.page = 0
	t.hasMore = false
	t.fetching = false
}

// ConversationID returns the conversation the timeline is bound to.
func (t *Timeline) ConversationID() string { return t.conversationID }

// Messages returns a copy of the ordered messages.
func (t *Timeline) Messages() []chat.Message {
	out := make([]chat.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len returns the number of held messages.
func (t *Timeline) Len() int { return len(t.msgs) }

// Page returns the highest applied history page.
func (t *Timeline) Page() int { return t.page }

// HasMore reports whether older history pages remain.
func (t *Timeline) HasMore() bool { return t.hasMore }

// Fetching reports whether a history fetch is in flight.
func (t *Timeline) Fetching() bool { return t.fetching }

// SetFetching flags a history fetch in flight, suppressing duplicates.
func (t *Timeline) SetFetching(v bool) { t.fetching = v }

// ApplyPage splices a history page in front of the held messages.
// Returns false if the page is out of order (already applied or
// skipping ahead); the caller discards such responses. pageLen is the
// raw item count before dedupe, used to infer hasMore.
func (t *Timeline) ApplyPage(page int, msgs []chat.Message, pageSize int) bool {
	t.fetching = false
	if page != t.page+1 {
		return false
	}

	pageLen := len(msgs)

	// Drop entries already held (a live event can race the first page).
	held := make(map[string]bool, len(t.msgs))
	for _, m := range t.msgs {
		if m.ID != "" {
			held[m.ID] = true
		}
	}
	fresh := msgs[:0:0]
	for _, m := range msgs {
		if m.ID != "" && held[m.ID] {
			continue
		}
		fresh = append(fresh, m)
	}

	// The page must end strictly before the earliest held message. If it
	// does not, the data is inconsistent; keep both sides and log.
	if len(fresh) > 0 && len(t.msgs) > 0 {
		if fresh[len(fresh)-1].CreatedAt >= t.msgs[0].CreatedAt {
			t.logger.Warn("history page overlaps held timeline",
				zap.String("conversation", t.conversationID),
				zap.Int("page", page),
				zap.Int64("page_last", fresh[len(fresh)-1].CreatedAt),
				zap.Int64("held_first", t.msgs[0].CreatedAt))
		}
	}

	t.msgs = append(fresh, t.msgs...)
	sort.SliceStable(t.msgs, func(i, j int) bool { return t.msgs[i].CreatedAt < t.msgs[j].CreatedAt })
	t.page = page
	t.hasMore = pageLen == pageSize
	return true
}

// AppendLive inserts a confirmed message from the event channel.
// Returns false when the message duplicates an already-held server
// identity. Out-of-order timestamps insert at their sorted position.
func (t *Timeline) AppendLive(m chat.Message) bool {
	if m.ID != "" {
		for _, held := range t.msgs {
			if held.ID == m.ID {
				return false
			}
		}
	}
	idx := sort.Search(len(t.msgs), func(i int) bool { return t.msgs[i].CreatedAt > m.CreatedAt })
	t.msgs = append(t.msgs, chat.Message{})
	copy(t.msgs[idx+1:], t.msgs[idx:])
	t.msgs[idx] = m
	return true
}

// AppendPending adds a locally originated message in pending state.
func (t *Timeline) AppendPending(m chat.Message) {
	m.State = chat.StatePending
	m.ID = ""
	t.msgs = append(t.msgs, m)
}

// Find returns the message with the given local identity.
func (t *Timeline) Find(localID string) (chat.Message, bool) {
	for _, m := range t.msgs {
		if m.LocalID == localID {
			return m, true
		}
	}
	return chat.Message{}, false
}

// Promote replaces the pending entry identified by localID with the
// server-confirmed message. The local identity is retained on the
// confirmed entry so promotion is traceable; the swap is exactly-once.
// If the confirmed server identity already arrived via the event
// channel, the pending entry is removed instead of duplicated.
func (t *Timeline) Promote(localID string, confirmed chat.Message) bool {
	idx := -1
	for i := range t.msgs {
		if t.msgs[i].LocalID == localID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	for i := range t.msgs {
		if i != idx && confirmed.ID != "" && t.msgs[i].ID == confirmed.ID {
			// Echo already held; drop the pending twin.
			t.msgs = append(t.msgs[:idx], t.msgs[idx+1:]...)
			return true
		}
	}

	confirmed.LocalID = localID
	confirmed.State = chat.StateConfirmed
	t.msgs[idx] = confirmed
	sort.SliceStable(t.msgs, func(i, j int) bool { return t.msgs[i].CreatedAt < t.msgs[j].CreatedAt })
	return true
}

// MarkFailed transitions a pending local message to failed.
func (t *Timeline) MarkFailed(localID string) bool {
	for i := range t.msgs {
		if t.msgs[i].LocalID == localID && t.msgs[i].State == chat.StatePending {
			t.msgs[i].State = chat.StateFailed
			return true
		}
	}
	return false
}

// MarkPending transitions a failed local message back to pending for a
// retry. Confirmed messages never leave confirmed.
func (t *Timeline) MarkPending(localID string) bool {
	for i := range t.msgs {
		if t.msgs[i].LocalID == localID && t.msgs[i].State == chat.StateFailed {
			t.msgs[i].State = chat.StatePending
			return true
		}
	}
	return false
}

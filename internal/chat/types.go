// Package chat holds the domain model shared by the stores, the
// transports, and the sync engine. Entities are referenced by identity
// (id strings), never by back-pointer.
package chat

// Kind classifies a conversation.
type Kind string

const (
	KindDirect    Kind = "direct"
	KindGroup     Kind = "group"
	KindTeam      Kind = "team"
	KindTeamStaff Kind = "team_with_staff"
	KindBroadcast Kind = "broadcast"
)

// Participant is a member of a conversation.
type Participant struct {
	ID        string
	Name      string
	AvatarURL string
}

// Summary is the last-message digest shown in the conversation list.
type Summary struct {
	Body     string
	SenderID string
	SentAt   int64 // unix ms
}

// Conversation is one entry of the conversation list.
type Conversation struct {
	ID           string
	Kind         Kind
	Name         string // raw name; display name is derived, see roster.Display
	AvatarURL    string
	Participants []Participant
	LastMessage  *Summary
	Unread       int   // per-viewer scalar
	UpdatedAt    int64 // unix ms, list ordering key, only moves forward
}

// SendState tracks the delivery state of a message held by the client.
type SendState string

const (
	// StateConfirmed marks anything received from history or the event
	// channel, and locally sent messages after the server ack.
	StateConfirmed SendState = "confirmed"
	// StatePending marks a locally originated message still in flight.
	StatePending SendState = "pending"
	// StateFailed marks a local send the transport rejected. Stays
	// failed until the viewer retries.
	StateFailed SendState = "failed"
)

// Message is one timeline entry.
type Message struct {
	// ID is the server-assigned identity. Empty while the message is
	// pending or failed locally.
	ID string
	// LocalID is the client-generated identity of a local send. It is
	// stable across retries; promotion to confirmed keeps the entry but
	// fills in ID.
	LocalID        string
	ConversationID string
	SenderID       string
	SenderName     string
	Body           string
	CreatedAt      int64 // unix ms
	ReadByViewer   bool
	State          SendState
}

// Identity returns the server id when assigned, else the local id.
func (m Message) Identity() string {
	if m.ID != "" {
		return m.ID
	}
	return m.LocalID
}

// User is a participant eligible for direct/group chat.
type User struct {
	ID        string
	Name      string
	AvatarURL string
}

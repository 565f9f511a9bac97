package bus

import "time"

// Event kinds published in this repo. Subscribers filter by prefix,
// e.g. "channel." receives every inbound transport event.
const (
	KindChannelMessage      = "channel.message"
	KindChannelTyping       = "channel.typing"
	KindChannelStopTyping   = "channel.stop_typing"
	KindChannelConnected    = "channel.connected"
	KindChannelDisconnected = "channel.disconnected"
	KindChannelError        = "channel.error"

	KindRosterUpdated   = "roster.updated"
	KindTimelineUpdated = "timeline.updated"
	KindTimelineFollow  = "timeline.follow"
	KindPresenceUpdated = "presence.updated"
	KindSearchCursor    = "search.cursor"

	KindSendAck    = "message.send_ack"
	KindSendFailed = "message.send_failed"

	KindSyncError      = "sync.error"
	KindSyncReconciled = "sync.reconciled"

	KindStatusChanged = "session.status_changed"
)

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent builds an event stamped with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}

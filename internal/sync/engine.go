// Package sync owns the client-side state of one chat session: the
// conversation roster, the active timeline, typing presence, and the
// in-timeline search cursor. All state is mutated by a single run loop
// goroutine; commands and transport events are funneled onto it, so no
// package-level locking is needed.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parleychat/parley/internal/api"
	"github.com/parleychat/parley/internal/bus"
	"github.com/parleychat/parley/internal/channel"
	"github.com/parleychat/parley/internal/chat"
	"github.com/parleychat/parley/internal/presence"
	"github.com/parleychat/parley/internal/roster"
	"github.com/parleychat/parley/internal/search"
	"github.com/parleychat/parley/internal/store"
	"github.com/parleychat/parley/internal/timeline"
)

var (
	// ErrEmptyMessage is returned by SendMessage for blank text.
	ErrEmptyMessage = errors.New("message text is empty")
	// ErrNoActiveConversation is returned when a command targets a
	// conversation other than the selected one.
	ErrNoActiveConversation = errors.New("conversation is not active")
	// ErrStopped is returned when the engine run loop has exited.
	ErrStopped = errors.New("sync engine stopped")
)

// Requester is the request/response transport the engine depends on.
// *api.Client satisfies it.
type Requester interface {
	ListConversations(ctx context.Context, kind chat.Kind) ([]chat.Conversation, error)
	ListUsers(ctx context.Context) ([]chat.User, error)
	FetchMessagePage(ctx context.Context, conversationID string, page, pageSize int) (*api.MessagePage, error)
	SendMessage(ctx context.Context, conversationID, body string) (*chat.Message, error)
	MarkRead(ctx context.Context, conversationID string) error
	CreateConversation(ctx context.Context, kind chat.Kind, name string, participantIDs []string) (*chat.Conversation, error)
}

// Publisher is the event-channel side the engine talks to. Every call
// is fire-and-forget: a failure here never blocks a command, the
// request/response transport stays authoritative.
type Publisher interface {
	Join(conversationID string) error
	Leave(conversationID string) error
	SendMessage(conversationID, clientMsgID, body string) error
	Typing(conversationID string) error
	StopTyping(conversationID string) error
}

// OpError is the payload of bus.KindSyncError.
type OpError struct {
	Op             string
	ConversationID string
	Err            error
}

func (e OpError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.ConversationID, e.Err)
}

// SendFailure is the payload of bus.KindSendFailed.
type SendFailure struct {
	ConversationID string
	LocalID        string
	Err            error
}

// Options configures an Engine.
type Options struct {
	ViewerID   string
	PageSize   int
	TypingIdle time.Duration
}

// Engine is the session orchestrator. Construct with New, drive with
// Start/Stop; every exported method is safe from any goroutine.
type Engine struct {
	api    Requester
	ch     Publisher
	cache  *store.DB // nil disables the local mirror
	bus    *bus.Bus
	logger *zap.Logger

	viewerID string
	pageSize int

	roster   *roster.List
	tl       *timeline.Timeline
	presence *presence.Tracker
	index    *search.Index
	typer    *presence.Debouncer

	calls  chan func()
	done   chan struct{}
	cancel context.CancelFunc
	ctx    context.Context

	// loop-owned state, never touched off-loop
	active      string
	epoch       int
	typingConv  string
	reconciling bool
}

// New builds an engine. cache may be nil when no local database is
// available; the engine then runs network-only.
func New(api Requester, ch Publisher, cache *store.DB, b *bus.Bus, opts Options, logger *zap.Logger) *Engine {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.TypingIdle <= 0 {
		opts.TypingIdle = 2 * time.Second
	}
	e := &Engine{
		api:      api,
		ch:       ch,
		cache:    cache,
		bus:      b,
		logger:   logger,
		viewerID: opts.ViewerID,
		pageSize: opts.PageSize,
		roster:   roster.New(),
		tl:       timeline.New(logger),
		presence: presence.NewTracker(),
		index:    search.New(),
		calls:    make(chan func(), 256),
		done:     make(chan struct{}),
	}
	e.typer = presence.NewDebouncer(opts.TypingIdle, e.typingStarted, e.typingStopped)
	return e
}

// Start spins up the run loop, primes the roster from the local cache,
// and kicks off the first network refresh.
func (e *Engine) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)

	events, unsub := e.bus.Subscribe("channel.", 256)

	go func() {
		defer close(e.done)
		defer unsub()
		e.loadCache()
		e.refreshRoster("startup")
		for {
			select {
			case fn := <-e.calls:
				fn()
			case evt := <-events:
				e.handleChannelEvent(evt)
			case <-e.ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the run loop and waits for it to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	<-e.done
}

// dispatch hands fn to the run loop. It becomes a no-op once the loop
// has exited so callers never hang on shutdown.
func (e *Engine) dispatch(fn func()) {
	select {
	case e.calls <- fn:
	case <-e.done:
	}
}

// --- snapshots -------------------------------------------------------

// Conversations returns the roster ordered by recency.
func (e *Engine) Conversations() []chat.Conversation {
	reply := make(chan []chat.Conversation, 1)
	e.dispatch(func() { reply <- e.roster.Items() })
	select {
	case items := <-reply:
		return items
	case <-e.done:
		return nil
	}
}

// ActiveConversation returns the selected conversation id, or "".
func (e *Engine) ActiveConversation() string {
	reply := make(chan string, 1)
	e.dispatch(func() { reply <- e.active })
	select {
	case id := <-reply:
		return id
	case <-e.done:
		return ""
	}
}

// TimelineSnapshot is a consistent read of the active timeline.
type TimelineSnapshot struct {
	ConversationID string
	Messages       []chat.Message
	Annotations    []timeline.Annotation
	HasMore        bool
	Fetching       bool
	Typing         []string
	SearchQuery    string
	SearchMatches  int
}

// Timeline returns the active timeline with day and unread markers
// resolved, plus the current typing roster and search state.
func (e *Engine) Timeline() TimelineSnapshot {
	reply := make(chan TimelineSnapshot, 1)
	e.dispatch(func() {
		msgs := e.tl.Messages()
		reply <- TimelineSnapshot{
			ConversationID: e.tl.ConversationID(),
			Messages:       msgs,
			Annotations:    timeline.Annotate(msgs, e.viewerID),
			HasMore:        e.tl.HasMore(),
			Fetching:       e.tl.Fetching(),
			Typing:         e.presence.Typing(e.active),
			SearchQuery:    e.index.Query(),
			SearchMatches:  len(e.index.Matches()),
		}
	})
	select {
	case snap := <-reply:
		return snap
	case <-e.done:
		return TimelineSnapshot{}
	}
}

// --- commands --------------------------------------------------------

// SelectConversation makes id the active conversation: the previous
// timeline and its typing state are discarded, page one of history is
// fetched, and the conversation is marked read. A late response for a
// previously selected conversation is discarded by the epoch guard.
func (e *Engine) SelectConversation(id string) {
	e.typer.Cancel()
	e.dispatch(func() {
		prev := e.active
		e.active = id
		e.epoch++
		epoch := e.epoch

		if prev != "" && prev != id {
			e.presence.Reset(prev)
			go e.publishChannel("leave", prev, func() error { return e.ch.Leave(prev) })
		}

		e.tl.Reset(id)
		e.index.Recompute("", nil)
		e.publish(bus.KindTimelineUpdated, id)
		e.publish(bus.KindPresenceUpdated, id)

		if id == "" {
			return
		}
		go e.publishChannel("join", id, func() error { return e.ch.Join(id) })
		e.tl.SetFetching(true)
		go e.fetchPage(id, 1, epoch)
		go e.markRead(id, epoch)
	})
}

// SendMessage queues text for the active conversation and returns the
// local id of the pending entry. The REST send runs asynchronously; the
// outcome arrives as bus.KindSendAck or bus.KindSendFailed.
func (e *Engine) SendMessage(conversationID, text string) (string, error) {
	type result struct {
		localID string
		err     error
	}
	reply := make(chan result, 1)
	e.dispatch(func() {
		if strings.TrimSpace(text) == "" {
			reply <- result{err: ErrEmptyMessage}
			return
		}
		if conversationID == "" || conversationID != e.active {
			reply <- result{err: ErrNoActiveConversation}
			return
		}

		localID := uuid.New().String()
		e.tl.AppendPending(chat.Message{
			LocalID:        localID,
			ConversationID: conversationID,
			SenderID:       e.viewerID,
			Body:           text,
			CreatedAt:      time.Now().UnixMilli(),
			ReadByViewer:   true,
		})
		if e.cache != nil {
			if err := e.cache.JournalQueued(localID, conversationID, text); err != nil {
				e.logger.Warn("journal write failed", zap.Error(err))
			}
		}
		e.publish(bus.KindTimelineUpdated, conversationID)

		// Mirror on the event channel so other participants see the
		// message immediately; the REST response stays authoritative.
		go e.publishChannel("send", conversationID, func() error {
			return e.ch.SendMessage(conversationID, localID, text)
		})
		go e.performSend(conversationID, localID, text)

		reply <- result{localID: localID}
	})
	select {
	case r := <-reply:
		return r.localID, r.err
	case <-e.done:
		return "", ErrStopped
	}
}

// RetrySend re-issues a failed send. The entry keeps its local id and
// body; only failed entries are eligible.
func (e *Engine) RetrySend(localID string) error {
	reply := make(chan error, 1)
	e.dispatch(func() {
		m, ok := e.tl.Find(localID)
		if !ok || m.State != chat.StateFailed {
			reply <- fmt.Errorf("no failed send %s", localID)
			return
		}
		e.tl.MarkPending(localID)
		if e.cache != nil {
			if err := e.cache.JournalQueued(localID, m.ConversationID, m.Body); err != nil {
				e.logger.Warn("journal write failed", zap.Error(err))
			}
		}
		e.publish(bus.KindTimelineUpdated, m.ConversationID)
		go e.performSend(m.ConversationID, localID, m.Body)
		reply <- nil
	})
	select {
	case err := <-reply:
		return err
	case <-e.done:
		return ErrStopped
	}
}

// LoadOlderMessages fetches the next history page for the active
// conversation. It is a no-op while a fetch is in flight or when the
// server reported no more history.
func (e *Engine) LoadOlderMessages(conversationID string) {
	e.dispatch(func() {
		if conversationID != e.active || e.active == "" {
			return
		}
		if e.tl.Fetching() || !e.tl.HasMore() {
			return
		}
		e.tl.SetFetching(true)
		go e.fetchPage(conversationID, e.tl.Page()+1, e.epoch)
	})
}

// TypingKeystroke records viewer input in the composer. The first
// keystroke of a burst publishes a typing start; the stop follows after
// the idle window or on Cancel.
func (e *Engine) TypingKeystroke() {
	e.typer.Keystroke()
}

// StopTypingNow flushes the typing state immediately, e.g. right after
// a send.
func (e *Engine) StopTypingNow() {
	e.typer.Cancel()
}

// SetSearchQuery recomputes the match set over the active timeline.
// An empty query clears search state.
func (e *Engine) SetSearchQuery(query string) {
	e.dispatch(func() {
		e.index.Recompute(query, e.tl.Messages())
		e.publish(bus.KindSearchCursor, e.searchState())
	})
}

// SearchNext advances the circular search cursor toward newer matches
// and returns the identity of the selected message.
func (e *Engine) SearchNext() (string, bool) {
	return e.searchStep(func() (string, bool) { return e.index.Next() })
}

// SearchPrevious moves the cursor toward older matches.
func (e *Engine) SearchPrevious() (string, bool) {
	return e.searchStep(func() (string, bool) { return e.index.Previous() })
}

// CursorState is the payload of bus.KindSearchCursor.
type CursorState struct {
	Query    string
	Matches  int
	Selected string
}

func (e *Engine) searchState() CursorState {
	state := CursorState{Query: e.index.Query(), Matches: len(e.index.Matches())}
	return state
}

func (e *Engine) searchStep(step func() (string, bool)) (string, bool) {
	type result struct {
		identity string
		ok       bool
	}
	reply := make(chan result, 1)
	e.dispatch(func() {
		id, ok := step()
		if ok {
			state := e.searchState()
			state.Selected = id
			e.publish(bus.KindSearchCursor, state)
		}
		reply <- result{identity: id, ok: ok}
	})
	select {
	case r := <-reply:
		return r.identity, r.ok
	case <-e.done:
		return "", false
	}
}

// Users lists the directory of known users, straight off the server.
func (e *Engine) Users(ctx context.Context) ([]chat.User, error) {
	return e.api.ListUsers(ctx)
}

// CreateConversation creates a conversation server-side and folds it
// into the roster.
func (e *Engine) CreateConversation(ctx context.Context, kind chat.Kind, name string, participantIDs []string) (*chat.Conversation, error) {
	conv, err := e.api.CreateConversation(ctx, kind, name, participantIDs)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	e.dispatch(func() {
		e.roster.Upsert(*conv)
		e.mirrorConversation(conv)
		e.publish(bus.KindRosterUpdated, conv.ID)
	})
	return conv, nil
}

// SearchHistory queries the cache's full-text index across cached
// messages, optionally scoped to one conversation. It complements the
// in-timeline cursor search, which only sees loaded messages.
func (e *Engine) SearchHistory(query, conversationID string, limit int) ([]store.SearchResult, error) {
	if e.cache == nil {
		return nil, nil
	}
	return e.cache.SearchMessages(query, conversationID, limit)
}

// FailedSends lists journaled sends that ended failed, so a frontend
// can offer retry after a restart. Entries are never retried
// automatically.
func (e *Engine) FailedSends() ([]store.JournalEntry, error) {
	if e.cache == nil {
		return nil, nil
	}
	return e.cache.FailedSends()
}

// RefreshConversations forces a roster refresh from the server.
func (e *Engine) RefreshConversations() {
	e.dispatch(func() { e.refreshRoster("manual") })
}

// --- loop internals --------------------------------------------------

func (e *Engine) loadCache() {
	if e.cache == nil {
		return
	}
	convs, err := e.cache.ListConversations(200)
	if err != nil {
		e.logger.Warn("cache load failed", zap.Error(err))
		return
	}
	if len(convs) == 0 {
		return
	}
	e.roster.Replace(convs)
	e.publish(bus.KindRosterUpdated, "")
	e.logger.Info("roster primed from cache", zap.Int("conversations", len(convs)))
}

// refreshRoster replaces the roster with the server view. It doubles as
// the reconciliation path for unknown conversation ids; concurrent
// refreshes collapse into one.
func (e *Engine) refreshRoster(reason string) {
	if e.reconciling {
		return
	}
	e.reconciling = true
	go func() {
		convs, err := e.api.ListConversations(e.ctx, "")
		e.dispatch(func() {
			e.reconciling = false
			if err != nil {
				e.reportError("list_conversations", "", err)
				return
			}
			e.roster.Replace(convs)
			for i := range convs {
				e.mirrorConversation(&convs[i])
			}
			if e.cache != nil {
				stamp := time.Now().UTC().Format(time.RFC3339)
				if err := e.cache.SetCheckpoint(store.CheckpointLastReconcile, stamp); err != nil {
					e.logger.Warn("checkpoint write failed", zap.Error(err))
				}
			}
			e.publish(bus.KindRosterUpdated, "")
			e.publish(bus.KindSyncReconciled, reason)
			e.logger.Debug("roster refreshed",
				zap.String("reason", reason),
				zap.Int("conversations", len(convs)))
		})
	}()
}

// fetchPage retrieves one history page off-loop and applies it on-loop.
// Pages for a superseded selection are discarded by the epoch guard.
func (e *Engine) fetchPage(conversationID string, page, epoch int) {
	resp, err := e.api.FetchMessagePage(e.ctx, conversationID, page, e.pageSize)
	e.dispatch(func() {
		if err == nil {
			// Confirmed history is valid regardless of what is selected
			// now; keep the cache warm even for a stale view.
			e.mirrorMessages(resp.Messages)
		}
		if epoch != e.epoch || conversationID != e.active {
			e.logger.Debug("discarding stale history page",
				zap.String("conversation", conversationID),
				zap.Int("page", page))
			return
		}
		if err != nil {
			e.tl.SetFetching(false)
			e.reportError("fetch_messages", conversationID, err)
			return
		}
		if !e.tl.ApplyPage(page, resp.Messages, e.pageSize) {
			return
		}
		if e.index.Query() != "" {
			e.index.Recompute(e.index.Query(), e.tl.Messages())
			e.publish(bus.KindSearchCursor, e.searchState())
		}
		e.publish(bus.KindTimelineUpdated, conversationID)
	})
}

// markRead tells the server the viewer has seen the conversation and
// clears the local unread counter.
func (e *Engine) markRead(conversationID string, epoch int) {
	err := e.api.MarkRead(e.ctx, conversationID)
	e.dispatch(func() {
		if err != nil {
			e.reportError("mark_read", conversationID, err)
			return
		}
		if epoch != e.epoch {
			return
		}
		e.roster.ClearUnread(conversationID)
		if e.cache != nil {
			if cerr := e.cache.ClearUnread(conversationID); cerr != nil {
				e.logger.Warn("cache write failed", zap.Error(cerr))
			}
		}
		e.publish(bus.KindRosterUpdated, conversationID)
		// The server recomputes unread and summaries on read receipts;
		// pick that up with a list refresh.
		e.refreshRoster("mark_read")
	})
}

// performSend is the authoritative delivery path. Promotion and failure
// both key off the local id, so a retried entry resolves in place.
func (e *Engine) performSend(conversationID, localID, body string) {
	if e.cache != nil {
		if err := e.cache.JournalSending(localID); err != nil {
			e.logger.Warn("journal write failed", zap.Error(err))
		}
	}
	msg, err := e.api.SendMessage(e.ctx, conversationID, body)
	e.dispatch(func() {
		if err != nil {
			if e.cache != nil {
				if jerr := e.cache.JournalFailed(localID, err.Error()); jerr != nil {
					e.logger.Warn("journal write failed", zap.Error(jerr))
				}
			}
			if conversationID == e.active && e.tl.MarkFailed(localID) {
				e.publish(bus.KindTimelineUpdated, conversationID)
			}
			e.publish(bus.KindSendFailed, SendFailure{
				ConversationID: conversationID,
				LocalID:        localID,
				Err:            err,
			})
			e.logger.Warn("send failed",
				zap.String("conversation", conversationID),
				zap.String("local_id", localID),
				zap.Error(err))
			return
		}

		confirmed := *msg
		confirmed.LocalID = localID
		confirmed.ReadByViewer = true
		if e.cache != nil {
			if jerr := e.cache.JournalSent(localID, confirmed.ID); jerr != nil {
				e.logger.Warn("journal write failed", zap.Error(jerr))
			}
			if serr := e.cache.UpsertMessage(&confirmed); serr != nil {
				e.logger.Warn("cache write failed", zap.Error(serr))
			}
		}
		if e.roster.Touch(conversationID, chat.Summary{
			Body:     confirmed.Body,
			SenderID: confirmed.SenderID,
			SentAt:   confirmed.CreatedAt,
		}) {
			e.publish(bus.KindRosterUpdated, conversationID)
		}
		if conversationID == e.active && e.tl.Promote(localID, confirmed) {
			e.publish(bus.KindTimelineUpdated, conversationID)
		}
		e.publish(bus.KindSendAck, confirmed)
	})
}

func (e *Engine) handleChannelEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindChannelMessage:
		msg, ok := evt.Payload.(chat.Message)
		if !ok {
			return
		}
		e.handleIncomingMessage(msg)
	case bus.KindChannelTyping:
		te, ok := evt.Payload.(channel.TypingEvent)
		if !ok {
			return
		}
		e.handleTyping(te, true)
	case bus.KindChannelStopTyping:
		te, ok := evt.Payload.(channel.TypingEvent)
		if !ok {
			return
		}
		e.handleTyping(te, false)
	case bus.KindChannelConnected:
		// Subscriptions do not survive a reconnect; rejoin and resync.
		if e.active != "" {
			active := e.active
			go e.publishChannel("join", active, func() error { return e.ch.Join(active) })
		}
		e.refreshRoster("reconnect")
	case bus.KindChannelDisconnected:
		e.logger.Debug("event channel lost, holding state")
	}
}

// handleIncomingMessage folds a live message into the roster and, when
// it targets the active conversation, into the timeline. A message for
// an unknown conversation triggers a full roster reconciliation.
func (e *Engine) handleIncomingMessage(msg chat.Message) {
	if e.roster.Get(msg.ConversationID) == nil {
		e.logger.Info("message for unknown conversation, reconciling",
			zap.String("conversation", msg.ConversationID))
		e.refreshRoster("unknown_conversation")
	} else {
		changed := e.roster.Touch(msg.ConversationID, chat.Summary{
			Body:     msg.Body,
			SenderID: msg.SenderID,
			SentAt:   msg.CreatedAt,
		})
		if msg.ConversationID != e.active && msg.SenderID != e.viewerID {
			e.roster.IncrementUnread(msg.ConversationID)
			changed = true
		}
		if changed {
			e.publish(bus.KindRosterUpdated, msg.ConversationID)
		}
	}

	if e.cache != nil && msg.ID != "" {
		if err := e.cache.UpsertMessage(&msg); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
	}

	if msg.ConversationID != e.active {
		return
	}
	// A sender stops typing the moment their message lands.
	e.presence.Clear(msg.ConversationID, msg.SenderID)
	e.publish(bus.KindPresenceUpdated, msg.ConversationID)
	if e.tl.AppendLive(msg) {
		if e.index.Query() != "" {
			e.index.Recompute(e.index.Query(), e.tl.Messages())
			e.publish(bus.KindSearchCursor, e.searchState())
		}
		e.publish(bus.KindTimelineUpdated, msg.ConversationID)
		e.publish(bus.KindTimelineFollow, msg.Identity())
	}
}

func (e *Engine) handleTyping(te channel.TypingEvent, start bool) {
	if te.ConversationID != e.active || te.UserID == e.viewerID {
		return
	}
	if start {
		e.presence.Set(te.ConversationID, te.UserID, te.UserName)
	} else {
		e.presence.Clear(te.ConversationID, te.UserID)
	}
	e.publish(bus.KindPresenceUpdated, te.ConversationID)
}

// typingStarted and typingStopped run on the debouncer's timer
// goroutine; both hop onto the loop before touching state.
func (e *Engine) typingStarted() {
	e.dispatch(func() {
		if e.active == "" {
			return
		}
		e.typingConv = e.active
		conv := e.active
		go e.publishChannel("typing", conv, func() error { return e.ch.Typing(conv) })
	})
}

func (e *Engine) typingStopped() {
	e.dispatch(func() {
		conv := e.typingConv
		e.typingConv = ""
		if conv == "" {
			return
		}
		go e.publishChannel("stop_typing", conv, func() error { return e.ch.StopTyping(conv) })
	})
}

// --- helpers ---------------------------------------------------------

func (e *Engine) publish(kind string, payload any) {
	e.bus.Publish(bus.NewEvent(kind, payload))
}

// publishChannel runs a fire-and-forget channel write, logging failures
// at debug; the channel client reconnects on its own.
func (e *Engine) publishChannel(op, conversationID string, fn func() error) {
	if err := fn(); err != nil {
		e.logger.Debug("channel publish failed",
			zap.String("op", op),
			zap.String("conversation", conversationID),
			zap.Error(err))
	}
}

func (e *Engine) reportError(op, conversationID string, err error) {
	e.logger.Error("sync operation failed",
		zap.String("op", op),
		zap.String("conversation", conversationID),
		zap.Error(err))
	e.publish(bus.KindSyncError, OpError{Op: op, ConversationID: conversationID, Err: err})
}

func (e *Engine) mirrorConversation(c *chat.Conversation) {
	if e.cache == nil {
		return
	}
	if err := e.cache.UpsertConversation(c); err != nil {
		e.logger.Warn("cache write failed", zap.Error(err))
	}
}

func (e *Engine) mirrorMessages(msgs []chat.Message) {
	if e.cache == nil || len(msgs) == 0 {
		return
	}
	if err := e.cache.UpsertMessages(msgs); err != nil {
		e.logger.Warn("cache write failed", zap.Error(err))
	}
}
